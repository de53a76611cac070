package model

import "fmt"

// RequestError はHTTPステータスに対応づく業務エラーを表す。
// ハンドラー層でerrors.Asにより取り出し、統一エンベロープに変換する。
type RequestError struct {
	Status  int      // HTTPステータスコード
	Message string   // ユーザー向けメッセージ
	Errs    []string // バリデーション違反の一覧（該当する場合のみ）
}

// Error はerrorインターフェースを実装する。
func (e *RequestError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// NewValidationError は422エラーを生成する。
// 違反したルールの全リストを1レスポンスで返す。
func NewValidationError(errs []string) *RequestError {
	return &RequestError{Status: 422, Message: "Validation error", Errs: errs}
}

// NewNotFoundError は404エラーを生成する。
func NewNotFoundError(message string) *RequestError {
	return &RequestError{Status: 404, Message: message}
}

// NewConflictError は一意制約違反の409エラーを生成する。
func NewConflictError(message string) *RequestError {
	return &RequestError{Status: 409, Message: message}
}

// NewUnauthorizedError は401エラーを生成する。
func NewUnauthorizedError(message string) *RequestError {
	return &RequestError{Status: 401, Message: message}
}

// NewAccessDeniedError は不正・失効した資格情報に対する400エラーを生成する。
func NewAccessDeniedError(message string) *RequestError {
	return &RequestError{Status: 400, Message: message}
}

// NewBadRequestError は400エラーを生成する。
func NewBadRequestError(message string) *RequestError {
	return &RequestError{Status: 400, Message: message}
}

// NewRateLimitError はレート制限超過の429エラーを生成する。
func NewRateLimitError() *RequestError {
	return &RequestError{
		Status:  429,
		Message: "API Request limit exceeded. Please try again later",
	}
}

// NewSessionExpiredError はセッション失効エラーを生成する。
// レート制限エラーとは別物として404で返す。
func NewSessionExpiredError() *RequestError {
	return &RequestError{
		Status:  404,
		Message: "Your session has expired, please login",
	}
}
