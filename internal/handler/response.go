// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/matchday/internal/model"
)

// successEnvelope は成功レスポンスの統一フォーマット。
// sourceはどの層が応答したかを示す。
type successEnvelope struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Data    any          `json:"data"`
	Source  model.Source `json:"source"`
}

// errorEnvelope はエラーレスポンスの統一フォーマット。
type errorEnvelope struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// writeSuccess は統一エンベロープで成功レスポンスを書き込む。
func writeSuccess(w http.ResponseWriter, statusCode int, source model.Source, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(successEnvelope{
		Status:  "success",
		Message: message,
		Data:    data,
		Source:  source,
	})
}

// errorWriter はサービス層のエラーをHTTPレスポンスに変換する。
// developmentがtrueの場合、予期しないエラーの内容をそのまま返す。
// 本番では一般化したメッセージに差し替え、詳細はログにのみ残す。
type errorWriter struct {
	development bool
}

// write はエラーをエンベロープに変換して書き込む。
func (ew *errorWriter) write(w http.ResponseWriter, err error) {
	var reqErr *model.RequestError
	if errors.As(err, &reqErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reqErr.Status)
		json.NewEncoder(w).Encode(errorEnvelope{
			Status:  "error",
			Message: reqErr.Message,
			Errors:  reqErr.Errs,
		})
		return
	}

	slog.Error("unexpected error", slog.String("error", err.Error()))

	message := "Something went wrong, please try again."
	if ew.development {
		message = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(errorEnvelope{
		Status:  "error",
		Message: message,
	})
}

// writeMethodNotAllowed は未定義ルートへの統一応答。
// 存在しないパスもメソッド違いも区別せず405を返す。
func writeMethodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(errorEnvelope{
		Status:  "error",
		Message: "Method not allowed",
	})
}
