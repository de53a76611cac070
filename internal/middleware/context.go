// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/hitoshi/matchday/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// RequireUserを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (model.PublicUser, error) {
	user, ok := ctx.Value(userContextKey).(model.PublicUser)
	if !ok || user.ID == "" {
		return model.PublicUser{}, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user model.PublicUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
