package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/matchday/internal/metrics"
	"github.com/hitoshi/matchday/internal/model"
)

// RateStore は回数レコードの保存先。cache.Storeが満たす。
type RateStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// rateRecord は固定窓の状態。ウィンドウ開始時刻と以降のリクエスト数を持つ。
type rateRecord struct {
	Count     int       `json:"count"`
	StartTime time.Time `json:"startTime"`
}

// RateLimiter はユーザー単位の固定窓レートリミッター。
// レコードの有効期限はウィンドウ長とは独立で、窓の判定は常に
// startTimeとの経過時間で行う。レコードストアの障害時は制限を
// 諦めてリクエストを通す。
type RateLimiter struct {
	store    RateStore
	max      int
	window   time.Duration
	ttl      time.Duration
	recorder metrics.Recorder
	now      func() time.Time
}

// NewRateLimiter はRateLimiterを生成する。recorderがnilの場合は計測なしで動作する。
func NewRateLimiter(store RateStore, max int, window, ttl time.Duration, recorder metrics.Recorder) *RateLimiter {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &RateLimiter{
		store:    store,
		max:      max,
		window:   window,
		ttl:      ttl,
		recorder: recorder,
		now:      time.Now,
	}
}

// Middleware はレート制限を適用するミドルウェアを返す。
// コンテキストに認証済みユーザーがいることを前提とし、いなければ
// セッション失効として扱う。上限到達時はレコードを変更せずに429を返す。
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r.Context())
			if err != nil {
				writeRequestError(w, model.NewSessionExpiredError())
				return
			}

			allowed := rl.allow(r.Context(), user.ID)
			if !allowed {
				rl.recorder.RecordRateLimitRejected()
				writeRequestError(w, model.NewRateLimitError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(ctx context.Context, userID string) bool {
	key := "ratelimit:" + userID

	raw, ok, err := rl.store.Get(ctx, key)
	if err != nil {
		slog.Error("failed to read rate limit record, allowing request",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return true
	}

	now := rl.now()

	if !ok {
		rl.write(ctx, key, rateRecord{Count: 1, StartTime: now}, userID)
		return true
	}

	var rec rateRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		slog.Error("failed to decode rate limit record, resetting",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		rl.write(ctx, key, rateRecord{Count: 1, StartTime: now}, userID)
		return true
	}

	if now.Sub(rec.StartTime) >= rl.window {
		rl.write(ctx, key, rateRecord{Count: 1, StartTime: now}, userID)
		return true
	}

	if rec.Count >= rl.max {
		return false
	}

	rec.Count++
	rl.write(ctx, key, rec, userID)
	return true
}

func (rl *RateLimiter) write(ctx context.Context, key string, rec rateRecord, userID string) {
	raw, err := json.Marshal(rec)
	if err != nil {
		slog.Error("failed to encode rate limit record",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := rl.store.Set(ctx, key, raw, rl.ttl); err != nil {
		slog.Error("failed to write rate limit record",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
