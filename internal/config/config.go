// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Environment: development | production | test
	Env string

	// Database
	DatabaseURL string

	// Cache (Redis)
	RedisAddr     string
	RedisPassword string

	// Auth
	SecretKey string
	TokenTTL  time.Duration

	// Cache snapshot
	SnapshotTTL time.Duration

	// Rate limit（固定ウィンドウ）
	// RateLimitTTLはウィンドウ長とは独立した保存レコードのTTL。
	// 休眠中のレコードがウィンドウ途中で消えないよう、ウィンドウ長以上を要求する。
	RateLimitMax    int
	RateLimitWindow time.Duration
	RateLimitTTL    time.Duration

	// Login/signup per-IP rate limit (req/min)
	AuthRatePerMinute int
	AuthRateBurst     int

	// Server
	ServerPort        string
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または整合しない値の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SecretKey = os.Getenv("SECRET_KEY")
	if cfg.SecretKey == "" {
		missing = append(missing, "SECRET_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.Env = getEnvString("APP_ENV", "development")
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 720*time.Hour)
	cfg.SnapshotTTL = getEnvDuration("SNAPSHOT_TTL", time.Hour)
	cfg.RateLimitMax = getEnvInt("RATE_LIMIT_MAX", 10)
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", time.Minute)
	cfg.RateLimitTTL = getEnvDuration("RATE_LIMIT_TTL", time.Hour)
	cfg.AuthRatePerMinute = getEnvInt("AUTH_RATE_PER_MINUTE", 10)
	cfg.AuthRateBurst = getEnvInt("AUTH_RATE_BURST", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	// レコードTTLがウィンドウより短いと、カウント中のウィンドウが
	// 途中で破棄されて制限をすり抜けられる。起動時に弾く。
	if cfg.RateLimitTTL < cfg.RateLimitWindow {
		return nil, fmt.Errorf("RATE_LIMIT_TTL (%v) must be >= RATE_LIMIT_WINDOW (%v)",
			cfg.RateLimitTTL, cfg.RateLimitWindow)
	}

	return cfg, nil
}

// Development は開発環境かどうかを返す。
// 500レスポンスに元エラーの詳細を含めるかの判定に使う。
func (c *Config) Development() bool {
	return c.Env == "development"
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
