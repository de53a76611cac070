package handler

import (
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/hitoshi/matchday/internal/model"
)

// signupRequest はサインアップリクエストのボディ。
type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate はフィールドを検証する。
func (r signupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(8, 0)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, is.Alphanumeric, validation.Length(8, 0)),
	)
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate はフィールドを検証する。
func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, is.Alphanumeric),
	)
}

// teamRequest はチームの作成・更新リクエストのボディ。
type teamRequest struct {
	Name    string `json:"name"`
	Stadium string `json:"stadium"`
}

// Validate はフィールドを検証する。
func (r teamRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Stadium, validation.Required),
	)
}

// fixtureRequest は対戦カードの作成・更新リクエストのボディ。
// HomeとAwayはチーム名。Statusは省略可で、省略時はpendingになる。
type fixtureRequest struct {
	Time     time.Time `json:"time"`
	Home     string    `json:"home"`
	Away     string    `json:"away"`
	Location string    `json:"location"`
	Status   string    `json:"status"`
}

// Validate はフィールドを検証する。
func (r fixtureRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Time, validation.Required),
		validation.Field(&r.Home, validation.Required),
		validation.Field(&r.Away, validation.Required),
		validation.Field(&r.Location, validation.Required),
		validation.Field(&r.Status, validation.In("pending", "completed")),
	)
}

// toValidationError は検証結果を422のRequestErrorに変換する。
// 違反したルールの全リストをフィールド名順で1レスポンスにまとめる。
func toValidationError(err error) *model.RequestError {
	errs, ok := err.(validation.Errors)
	if !ok {
		return model.NewValidationError([]string{err.Error()})
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(errs))
	for _, field := range fields {
		messages = append(messages, field+" "+errs[field].Error())
	}
	return model.NewValidationError(messages)
}
