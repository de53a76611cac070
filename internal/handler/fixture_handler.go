package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matchday/internal/fixture"
	"github.com/hitoshi/matchday/internal/middleware"
	"github.com/hitoshi/matchday/internal/model"
)

// FixtureServiceInterface は対戦カードハンドラーが必要とするサービスインターフェース。
type FixtureServiceInterface interface {
	Create(ctx context.Context, actor model.PublicUser, in fixture.Input) (*model.Fixture, error)
	Update(ctx context.Context, actor model.PublicUser, id string, in fixture.Input) (*model.Fixture, error)
	Delete(ctx context.Context, actor model.PublicUser, id string) error
	GetAll(ctx context.Context) ([]model.Fixture, model.Source, error)
	GetByID(ctx context.Context, id string) (*model.Fixture, model.Source, error)
	GetByStatus(ctx context.Context, status string) ([]model.Fixture, model.Source, error)
}

// FixtureHandler は対戦カードのHTTPハンドラー。
type FixtureHandler struct {
	service FixtureServiceInterface
	errors  *errorWriter
}

// NewFixtureHandler はFixtureHandlerを生成する。
func NewFixtureHandler(service FixtureServiceInterface, errors *errorWriter) *FixtureHandler {
	return &FixtureHandler{service: service, errors: errors}
}

// toInput はリクエストボディをサービス入力に変換する。
func (r fixtureRequest) toInput() fixture.Input {
	return fixture.Input{
		Time:     r.Time,
		Home:     r.Home,
		Away:     r.Away,
		Location: r.Location,
		Status:   model.FixtureStatus(r.Status),
	}
}

// Create は対戦カード作成を処理する。
// POST /api/v1/fixture
func (h *FixtureHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		h.errors.write(w, model.NewSessionExpiredError())
		return
	}

	var req fixtureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.write(w, model.NewBadRequestError("Invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		h.errors.write(w, toValidationError(err))
		return
	}

	created, err := h.service.Create(r.Context(), actor, req.toInput())
	if err != nil {
		h.errors.write(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, model.SourceDB, "Fixture created", created)
}

// Update は対戦カード更新を処理する。
// PATCH /api/v1/fixture/{fixtureId}
func (h *FixtureHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		h.errors.write(w, model.NewSessionExpiredError())
		return
	}

	var req fixtureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.write(w, model.NewBadRequestError("Invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		h.errors.write(w, toValidationError(err))
		return
	}

	updated, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "fixtureId"), req.toInput())
	if err != nil {
		h.errors.write(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.SourceDB, "Fixture updated", updated)
}

// Delete は対戦カード削除を処理する。
// DELETE /api/v1/fixture/{fixtureId}
func (h *FixtureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		h.errors.write(w, model.NewSessionExpiredError())
		return
	}

	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "fixtureId")); err != nil {
		h.errors.write(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.SourceServer, "Fixture has been deleted", nil)
}

// GetAll は全対戦カード取得を処理する。
// GET /api/v1/fixture
func (h *FixtureHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	fixtures, source, err := h.service.GetAll(r.Context())
	if err != nil {
		h.errors.write(w, err)
		return
	}

	message := "All Fixtures"
	if len(fixtures) == 0 {
		message = "Nothing here"
	}
	writeSuccess(w, http.StatusOK, source, message, fixtures)
}

// GetByID は単一対戦カード取得を処理する。
// GET /api/v1/fixture/{fixtureId}
func (h *FixtureHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	found, source, err := h.service.GetByID(r.Context(), chi.URLParam(r, "fixtureId"))
	if err != nil {
		h.errors.write(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, source, "Fixture Found", found)
}

// GetByStatus はステータス別の対戦カード取得を処理する。
// GET /api/v1/fixture/status/{status}
func (h *FixtureHandler) GetByStatus(w http.ResponseWriter, r *http.Request) {
	fixtures, source, err := h.service.GetByStatus(r.Context(), chi.URLParam(r, "status"))
	if err != nil {
		h.errors.write(w, err)
		return
	}

	message := "Fixtures Found"
	if len(fixtures) == 0 {
		message = "Nothing here"
	}
	writeSuccess(w, http.StatusOK, source, message, fixtures)
}
