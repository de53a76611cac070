// Package auth はサインアップ・ログインとベアラートークンの発行・検証を提供する。
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/matchday/internal/model"
	"github.com/hitoshi/matchday/internal/repository"
)

// AuthenticatedUser は認証成功レスポンスのデータ部。
// 公開ビューに発行済みトークンを添えた形。
type AuthenticatedUser struct {
	model.PublicUser
	Token string `json:"token"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	tokens   *TokenManager
	sessions *SessionBinder
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, tokens *TokenManager, sessions *SessionBinder) *Service {
	return &Service{users: users, tokens: tokens, sessions: sessions}
}

// Signup はユーザーを作成し、トークンを発行してセッションをバインドする。
// メールアドレス重複時はConflictエラーを返す。
func (s *Service) Signup(ctx context.Context, name, email, password string) (*AuthenticatedUser, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewConflictError("This user already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Password:  string(hashed),
		CreatedAt: time.Now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if err == repository.ErrDuplicate {
			return nil, model.NewConflictError("This user already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.authenticate(ctx, user)
}

// Login はメールアドレスとパスワードを検証し、トークンを発行して
// セッションをバインドする。どちらが誤っていたかは区別せず同一メッセージを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthenticatedUser, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("The email or password is not correct")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, model.NewNotFoundError("The email or password is not correct")
	}

	return s.authenticate(ctx, user)
}

// authenticate はトークン発行とセッションバインドを行い、公開ビューを組み立てる。
func (s *Service) authenticate(ctx context.Context, user *model.User) (*AuthenticatedUser, error) {
	token, jti, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Bind(ctx, user.ID, jti); err != nil {
		return nil, err
	}

	return &AuthenticatedUser{
		PublicUser: user.Public(),
		Token:      token,
	}, nil
}
