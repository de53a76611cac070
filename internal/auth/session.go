package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/matchday/internal/cache"
)

// sessionKeyPrefix はセッションバインディングのキャッシュキー接頭辞。
const sessionKeyPrefix = "session:"

// SessionBinder はセッション識別子（トークンのjti）とユーザーIDの
// バインディングをキャッシュストアに保持する。サーバー側でセッションを
// 無効化した後の失効トークンを検出するために使う。
type SessionBinder struct {
	store *cache.Store
	ttl   time.Duration
}

// NewSessionBinder はSessionBinderを生成する。
// ttlはトークンの有効期間と揃えること。
func NewSessionBinder(store *cache.Store, ttl time.Duration) *SessionBinder {
	return &SessionBinder{store: store, ttl: ttl}
}

// Bind はユーザーの現行セッションをjtiで上書きする。
// ログイン・サインアップのたびに呼ばれ、古いトークンを事実上無効化する。
func (b *SessionBinder) Bind(ctx context.Context, userID, jti string) error {
	if err := b.store.Set(ctx, sessionKeyPrefix+userID, []byte(jti), b.ttl); err != nil {
		return fmt.Errorf("failed to bind session: %w", err)
	}
	return nil
}

// Valid は提示されたjtiがユーザーの現行セッションと一致するかを返す。
// バインディングが存在しない（失効・未ログイン）場合もfalse。
func (b *SessionBinder) Valid(ctx context.Context, userID, jti string) (bool, error) {
	bound, ok, err := b.store.Get(ctx, sessionKeyPrefix+userID)
	if err != nil {
		return false, fmt.Errorf("failed to read session binding: %w", err)
	}
	if !ok {
		return false, nil
	}
	return string(bound) == jti, nil
}

// Unbind はユーザーのセッションバインディングを破棄する。
func (b *SessionBinder) Unbind(ctx context.Context, userID string) error {
	if err := b.store.Delete(ctx, sessionKeyPrefix+userID); err != nil {
		return fmt.Errorf("failed to unbind session: %w", err)
	}
	return nil
}
