package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/matchday/internal/model"
)

// errorEnvelope はミドルウェアが直接返すエラーレスポンスの統一フォーマット。
// ハンドラー層のエンベロープと同じ形。
type errorEnvelope struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// writeError は統一エンベロープでHTTPエラーレスポンスを書き込む。
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorEnvelope{
		Status:  "error",
		Message: message,
	})
}

// writeRequestError はRequestErrorを統一エンベロープで書き込む。
func writeRequestError(w http.ResponseWriter, reqErr *model.RequestError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reqErr.Status)
	json.NewEncoder(w).Encode(errorEnvelope{
		Status:  "error",
		Message: reqErr.Message,
		Errors:  reqErr.Errs,
	})
}
