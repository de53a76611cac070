package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matchday/internal/middleware"
	"github.com/hitoshi/matchday/internal/model"
)

// TeamServiceInterface はチームハンドラーが必要とするサービスインターフェース。
type TeamServiceInterface interface {
	Create(ctx context.Context, actor model.PublicUser, name, stadium string) (*model.Team, error)
	Update(ctx context.Context, actor model.PublicUser, id, name, stadium string) (*model.Team, error)
	Delete(ctx context.Context, actor model.PublicUser, id string) error
	GetAll(ctx context.Context) ([]model.Team, model.Source, error)
	GetByID(ctx context.Context, id string) (*model.Team, model.Source, error)
}

// TeamHandler はチームのHTTPハンドラー。
type TeamHandler struct {
	service TeamServiceInterface
	errors  *errorWriter
}

// NewTeamHandler はTeamHandlerを生成する。
func NewTeamHandler(service TeamServiceInterface, errors *errorWriter) *TeamHandler {
	return &TeamHandler{service: service, errors: errors}
}

// Create はチーム作成を処理する。
// POST /api/v1/team
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		h.errors.write(w, model.NewSessionExpiredError())
		return
	}

	var req teamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.write(w, model.NewBadRequestError("Invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		h.errors.write(w, toValidationError(err))
		return
	}

	team, err := h.service.Create(r.Context(), actor, req.Name, req.Stadium)
	if err != nil {
		h.errors.write(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, model.SourceDB, "Team created", team)
}

// Update はチーム更新を処理する。
// PATCH /api/v1/team/{teamId}
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		h.errors.write(w, model.NewSessionExpiredError())
		return
	}

	var req teamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.write(w, model.NewBadRequestError("Invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		h.errors.write(w, toValidationError(err))
		return
	}

	team, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "teamId"), req.Name, req.Stadium)
	if err != nil {
		h.errors.write(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.SourceDB, "Team updated", team)
}

// Delete はチーム削除を処理する。
// DELETE /api/v1/team/{teamId}
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		h.errors.write(w, model.NewSessionExpiredError())
		return
	}

	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "teamId")); err != nil {
		h.errors.write(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.SourceServer, "Team has been deleted", nil)
}

// GetAll は全チーム取得を処理する。
// GET /api/v1/team
func (h *TeamHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	teams, source, err := h.service.GetAll(r.Context())
	if err != nil {
		h.errors.write(w, err)
		return
	}

	message := "All Teams"
	if len(teams) == 0 {
		message = "Nothing here"
	}
	writeSuccess(w, http.StatusOK, source, message, teams)
}

// GetByID は単一チーム取得を処理する。
// GET /api/v1/team/{teamId}
func (h *TeamHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	team, source, err := h.service.GetByID(r.Context(), chi.URLParam(r, "teamId"))
	if err != nil {
		h.errors.write(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, source, "Team Found", team)
}
