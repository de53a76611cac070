package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AuthThrottleConfig は認証エンドポイント向けIP別レート制限の設定を保持する。
type AuthThrottleConfig struct {
	Rate            rate.Limit    // req/sec。10/60 = 毎分10リクエスト相当
	Burst           int           // バーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultAuthThrottleConfig はデフォルトの認証レート制限設定を返す。
func DefaultAuthThrottleConfig() AuthThrottleConfig {
	return AuthThrottleConfig{
		Rate:            rate.Limit(10.0 / 60.0),
		Burst:           10,
		CleanupInterval: 5 * time.Minute,
	}
}

// ipLimiter はIPごとのレートリミッターとアクセス時刻を保持する。
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// AuthThrottle は認証前のエンドポイント（サインアップ・ログイン）を
// IP単位で制限する。認証後のユーザー別制限とは独立に動作する。
type AuthThrottle struct {
	config AuthThrottleConfig

	mu       sync.RWMutex
	limiters map[string]*ipLimiter

	stopCh chan struct{}
}

// NewAuthThrottle は新しいAuthThrottleを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewAuthThrottle(config AuthThrottleConfig) *AuthThrottle {
	at := &AuthThrottle{
		config:   config,
		limiters: make(map[string]*ipLimiter),
		stopCh:   make(chan struct{}),
	}

	go at.cleanupLoop()

	return at
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (at *AuthThrottle) Stop() {
	close(at.stopCh)
}

// Middleware はIP別レート制限ミドルウェアを返す。
func (at *AuthThrottle) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			limiter := at.getOrCreateLimiter(ip)

			if !limiter.Allow() {
				slog.Warn("auth rate limit exceeded",
					slog.String("ip", ip),
				)
				writeThrottleResponse(w, at.config.Rate)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (at *AuthThrottle) LimiterCount() int {
	at.mu.RLock()
	defer at.mu.RUnlock()
	return len(at.limiters)
}

// getOrCreateLimiter はIPのリミッターを取得または作成する。
func (at *AuthThrottle) getOrCreateLimiter(ip string) *rate.Limiter {
	at.mu.RLock()
	il, exists := at.limiters[ip]
	at.mu.RUnlock()

	if exists {
		at.mu.Lock()
		il.lastAccess = time.Now()
		at.mu.Unlock()
		return il.limiter
	}

	at.mu.Lock()
	defer at.mu.Unlock()

	// ダブルチェック
	if il, exists := at.limiters[ip]; exists {
		il.lastAccess = time.Now()
		return il.limiter
	}

	limiter := rate.NewLimiter(at.config.Rate, at.config.Burst)
	at.limiters[ip] = &ipLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (at *AuthThrottle) cleanupLoop() {
	ticker := time.NewTicker(at.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			at.cleanup()
		case <-at.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (at *AuthThrottle) cleanup() {
	ttl := at.config.CleanupInterval * 2

	now := time.Now()

	at.mu.Lock()
	for ip, il := range at.limiters {
		if now.Sub(il.lastAccess) > ttl {
			delete(at.limiters, ip)
		}
	}
	at.mu.Unlock()
}

// clientIP はリクエスト元IPを返す。ポート部は取り除く。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeThrottleResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeThrottleResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
}
