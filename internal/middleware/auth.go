package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/matchday/internal/auth"
	"github.com/hitoshi/matchday/internal/model"
)

// TokenVerifier はベアラートークン検証に必要なインターフェース。
// auth.TokenManagerの部分集合として定義する。
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// SessionChecker はセッションバインディング照合に必要なインターフェース。
// auth.SessionBinderの部分集合として定義する。
type SessionChecker interface {
	Valid(ctx context.Context, userID, jti string) (bool, error)
}

// UserFinder はトークンの主体をストア上のユーザーに解決するインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// RequireUser はベアラートークンから呼び出し元の身元を確立するミドルウェアを返す。
//
// ヘッダー不在→401、署名・期限の構造的検証失敗→400、現行セッションとの
// 不一致→セッション失効（資格情報不正とは別のエラー）、ストアに主体が
// 存在しない→400。解決済みユーザーの公開ビューをコンテキストに注入し、
// 下流の所有権チェックとレート制限キーに使わせる。
func RequireUser(tokens TokenVerifier, sessions SessionChecker, users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized - Header Not Set")
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			claims, err := tokens.Verify(token)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Access Denied. Please Log In.")
				return
			}

			ok, err := sessions.Valid(r.Context(), claims.UserID, claims.JTI)
			if err != nil {
				slog.Error("failed to check session binding",
					slog.String("error", err.Error()),
				)
				writeError(w, http.StatusInternalServerError, "Error verifying user.")
				return
			}
			if !ok {
				writeRequestError(w, model.NewSessionExpiredError())
				return
			}

			user, err := users.FindByID(r.Context(), claims.UserID)
			if err != nil {
				slog.Error("failed to resolve user",
					slog.String("error", err.Error()),
				)
				writeError(w, http.StatusInternalServerError, "Error verifying user.")
				return
			}
			if user == nil {
				writeError(w, http.StatusBadRequest, "Non-existent user.")
				return
			}

			ctx := ContextWithUser(r.Context(), user.Public())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin は解決済みユーザーのadminフラグを検査するミドルウェアを返す。
// RequireUserの後段に配置すること。資格情報自体の有効性とは独立した検査で、
// 非管理者には401を返す。
func RequireAdmin() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "You are not authorized to make this action")
				return
			}
			if !user.Admin {
				writeError(w, http.StatusUnauthorized, "You are not authorized to make this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
