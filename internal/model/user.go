// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Passwordはbcryptハッシュを保持し、APIレスポンスには決して含めない。
type User struct {
	ID        string
	Name      string
	Email     string
	Password  string
	Admin     bool
	CreatedAt time.Time
}

// PublicUser はユーザーの公開ビュー。
// ストア境界で一度だけ構築し、キャッシュ・レスポンス・埋め込みcreatedByの
// すべてでこの形を使う。秘密フィールドは含まない。
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public はUserから公開ビューを構築する。
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Admin:     u.Admin,
		CreatedAt: u.CreatedAt,
	}
}
