package fixture

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode"
)

// newSlug は「home-away-ランダム接尾辞」形式のスラッグを生成する。
// 全体を小文字化し、英数字以外の並びはハイフン1つに潰す。
// 接尾辞により同一カードの再作成でも衝突しない。
func newSlug(home, away string) string {
	return slugify(home+"-"+away) + "-" + randomSuffix()
}

// slugify は文字列をURLセーフな小文字スラッグに変換する。
func slugify(s string) string {
	var b strings.Builder
	prevHyphen := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevHyphen = false
			continue
		}
		if !prevHyphen && b.Len() > 0 {
			b.WriteByte('-')
			prevHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// randomSuffix は12バイトの乱数を16進文字列で返す。
func randomSuffix() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		// crypto/randの失敗は実質的に発生しない
		panic(err)
	}
	return hex.EncodeToString(buf)
}
