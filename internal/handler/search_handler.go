package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/matchday/internal/model"
	"github.com/hitoshi/matchday/internal/search"
)

// SearchServiceInterface は検索ハンドラーが必要とするサービスインターフェース。
type SearchServiceInterface interface {
	Search(ctx context.Context, keyword string) (*search.Result, error)
}

// SearchHandler は横断検索のHTTPハンドラー。
type SearchHandler struct {
	service SearchServiceInterface
	errors  *errorWriter
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(service SearchServiceInterface, errors *errorWriter) *SearchHandler {
	return &SearchHandler{service: service, errors: errors}
}

// Search はキーワード検索を処理する。検索は常にストアを直接引く。
// GET /api/v1/search?keyword=...
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		h.errors.write(w, model.NewBadRequestError("Keyword is required"))
		return
	}

	result, err := h.service.Search(r.Context(), keyword)
	if err != nil {
		h.errors.write(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.SourceDB, "Found", result)
}
