package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims はベアラートークンから取り出す主張。
// Subjectはストアが採番した不変のユーザーIDで統一する
// （メールアドレスは変更されうるため主張には使わない）。
type Claims struct {
	UserID string // sub
	JTI    string // jti: セッションバインディングとの突合に使う
}

// TokenManager はHS256署名のベアラートークンを発行・検証する。
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// TTL はトークンの有効期間を返す。セッションバインディングのTTLと揃える。
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue は指定ユーザーIDのトークンを発行する。
func (m *TokenManager) Issue(userID string) (token string, jti string, err error) {
	jti = uuid.New().String()
	now := time.Now()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	})

	token, err = t.SignedString(m.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, jti, nil
}

// Verify はトークンの署名と期限を検証し、主張を取り出す。
// 構造的に不正なトークンはすべてエラーになる。
func (m *TokenManager) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject claim")
	}

	return &Claims{UserID: claims.Subject, JTI: claims.ID}, nil
}
