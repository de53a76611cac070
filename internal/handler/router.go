package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matchday/internal/metrics"
	"github.com/hitoshi/matchday/internal/middleware"
)

// Pinger はヘルスチェックで疎通確認する依存。
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	SessionChecker    middleware.SessionChecker
	UserFinder        middleware.UserFinder
	RateLimiter       *middleware.RateLimiter
	AuthThrottle      *middleware.AuthThrottle
	CORSAllowedOrigin string
	Logger            *slog.Logger
	Recorder          metrics.Recorder
	MetricsHandler    http.Handler

	// サービス
	AuthService    AuthServiceInterface
	TeamService    TeamServiceInterface
	FixtureService FixtureServiceInterface
	SearchService  SearchServiceInterface

	// ヘルスチェック対象
	DBPinger    Pinger
	CachePinger Pinger

	// 開発モードでは予期しないエラーの内容をレスポンスに含める
	Development bool
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (ルートごと) RequireUser → RequireAdmin → RateLimiter
//
// 認証ルート（/api/v1/auth/*）はIP別スロットルの内側、認可ゲートの外側に置く。
// マッチしないパス・メソッドはすべて405で応答する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Recorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	errors := &errorWriter{development: deps.Development}

	authHandler := NewAuthHandler(deps.AuthService, errors)
	teamHandler := NewTeamHandler(deps.TeamService, errors)
	fixtureHandler := NewFixtureHandler(deps.FixtureService, errors)
	searchHandler := NewSearchHandler(deps.SearchService, errors)

	requireUser := middleware.RequireUser(deps.TokenVerifier, deps.SessionChecker, deps.UserFinder)
	requireAdmin := middleware.RequireAdmin()
	rateLimit := deps.RateLimiter.Middleware()

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(deps.AuthThrottle.Middleware())
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
		})

		r.Route("/team", func(r chi.Router) {
			// 読み取りは未認証でも可
			r.Get("/", teamHandler.GetAll)
			r.Get("/{teamId}", teamHandler.GetByID)

			// ミューテーションは認証・管理者・レート制限の内側
			r.Group(func(r chi.Router) {
				r.Use(requireUser, requireAdmin, rateLimit)
				r.Post("/", teamHandler.Create)
				r.Patch("/{teamId}", teamHandler.Update)
				r.Delete("/{teamId}", teamHandler.Delete)
			})
		})

		r.Route("/fixture", func(r chi.Router) {
			// 読み取りにも認証とレート制限を課す
			r.Group(func(r chi.Router) {
				r.Use(requireUser, rateLimit)
				r.Get("/", fixtureHandler.GetAll)
				r.Get("/status/{status}", fixtureHandler.GetByStatus)
				r.Get("/{fixtureId}", fixtureHandler.GetByID)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireUser, requireAdmin, rateLimit)
				r.Post("/", fixtureHandler.Create)
				r.Patch("/{fixtureId}", fixtureHandler.Update)
				r.Delete("/{fixtureId}", fixtureHandler.Delete)
			})
		})

		r.Get("/search", searchHandler.Search)
	})

	r.Get("/healthz", newHealthzHandler(deps.DBPinger, deps.CachePinger))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 存在しないパスもメソッド違いも区別せず405で応答する
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMethodNotAllowed(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMethodNotAllowed(w)
	})

	return r
}

// newHealthzHandler はDBとキャッシュの疎通を確認するハンドラーを返す。
// キャッシュの障害はサービス劣化であって停止ではないため、DBのみを可用性の条件とする。
func newHealthzHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				slog.Error("healthcheck: database unreachable", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("unhealthy"))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				slog.Warn("healthcheck: cache unreachable", slog.String("error", err.Error()))
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
