package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/matchday/internal/auth"
	"github.com/hitoshi/matchday/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Signup はユーザーを作成し、トークンを発行する。
	Signup(ctx context.Context, name, email, password string) (*auth.AuthenticatedUser, error)
	// Login は資格情報を検証し、トークンを発行する。
	Login(ctx context.Context, email, password string) (*auth.AuthenticatedUser, error)
}

// AuthHandler はサインアップ・ログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	errors  *errorWriter
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, errors *errorWriter) *AuthHandler {
	return &AuthHandler{service: service, errors: errors}
}

// Signup はユーザー登録を処理する。
// POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.write(w, model.NewBadRequestError("Invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		h.errors.write(w, toValidationError(err))
		return
	}

	user, err := h.service.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.errors.write(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, model.SourceServer, "You have successfully created an account", user)
}

// Login はログインを処理する。
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.write(w, model.NewBadRequestError("Invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		h.errors.write(w, toValidationError(err))
		return
	}

	user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errors.write(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.SourceServer, "You have successfully logged in", user)
}
