// Package app はアプリケーションの初期化・ワイヤリング・起動を担う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/google/uuid"

	"github.com/hitoshi/matchday/internal/auth"
	"github.com/hitoshi/matchday/internal/cache"
	"github.com/hitoshi/matchday/internal/config"
	"github.com/hitoshi/matchday/internal/database"
	"github.com/hitoshi/matchday/internal/fixture"
	"github.com/hitoshi/matchday/internal/handler"
	"github.com/hitoshi/matchday/internal/logger"
	"github.com/hitoshi/matchday/internal/metrics"
	"github.com/hitoshi/matchday/internal/middleware"
	"github.com/hitoshi/matchday/internal/model"
	"github.com/hitoshi/matchday/internal/repository"
	"github.com/hitoshi/matchday/internal/search"
	"github.com/hitoshi/matchday/internal/snapshot"
	"github.com/hitoshi/matchday/internal/team"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("env", cfg.Env),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// dbPinger は*sql.DBをハンドラーのヘルスチェックインターフェースに適合させる。
type dbPinger struct {
	db *sql.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// runServe はAPIサーバーモードで起動する。
// DBとキャッシュストアへの接続を開き、全依存関係をワイヤリングし、
// HTTPサーバーを起動する。SIGINTまたはSIGTERMシグナルを受信すると
// グレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. キャッシュストア接続。落ちていてもサービスは劣化して動き続けるため、
	// 起動は止めない。
	store := cache.New(cfg.RedisAddr, cfg.RedisPassword)
	defer store.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		slog.Warn("cache store unreachable at startup, serving degraded",
			slog.String("error", err.Error()),
		)
	} else {
		slog.Info("cache store connection established")
	}
	cancelPing()

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	teamRepo := repository.NewPostgresTeamRepo(db)
	fixtureRepo := repository.NewPostgresFixtureRepo(db)

	// 5. 認証
	tokens := auth.NewTokenManager(cfg.SecretKey, cfg.TokenTTL)
	sessions := auth.NewSessionBinder(store, tokens.TTL())
	authService := auth.NewService(userRepo, tokens, sessions)

	// 6. コレクションスナップショットとドメインサービス
	teamCol := snapshot.NewCollection("teams", store, cfg.SnapshotTTL, teamRepo.List, collector)
	fixtureCol := snapshot.NewCollection("fixtures", store, cfg.SnapshotTTL, fixtureRepo.List, collector)

	teamService := team.NewService(teamRepo, teamCol)
	fixtureService := fixture.NewService(fixtureRepo, teamRepo, fixtureCol)
	searchService := search.NewService(userRepo, teamRepo, fixtureRepo)

	// 7. ミドルウェア
	rateLimiter := middleware.NewRateLimiter(
		store, cfg.RateLimitMax, cfg.RateLimitWindow, cfg.RateLimitTTL, collector,
	)
	authThrottle := middleware.NewAuthThrottle(middleware.AuthThrottleConfig{
		Rate:            rate.Limit(float64(cfg.AuthRatePerMinute) / 60.0),
		Burst:           cfg.AuthRateBurst,
		CleanupInterval: 5 * time.Minute,
	})
	defer authThrottle.Stop()

	// 8. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		TokenVerifier:     tokens,
		SessionChecker:    sessions,
		UserFinder:        userRepo,
		RateLimiter:       rateLimiter,
		AuthThrottle:      authThrottle,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		Recorder:          collector,
		MetricsHandler:    metrics.Handler(registry),

		AuthService:    authService,
		TeamService:    teamService,
		FixtureService: fixtureService,
		SearchService:  searchService,

		DBPinger:    dbPinger{db: db},
		CachePinger: store,

		Development: cfg.Development(),
	})

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed は初期管理者ユーザーを作成する。
// SEED_ADMIN_EMAILとSEED_ADMIN_PASSWORDを環境変数から読む。
// 同じメールアドレスのユーザーが既に存在する場合は何もしない（再実行可能）。
func runSeed(cfg *config.Config) error {
	email := os.Getenv("SEED_ADMIN_EMAIL")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return fmt.Errorf("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD must be set")
	}
	name := os.Getenv("SEED_ADMIN_NAME")
	if name == "" {
		name = "Administrator account"
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	userRepo := repository.NewPostgresUserRepo(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	existing, err := userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check existing admin: %w", err)
	}
	if existing != nil {
		slog.Info("admin user already exists, nothing to do",
			slog.String("user_id", existing.ID),
		)
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &model.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Password:  string(hashed),
		Admin:     true,
		CreatedAt: time.Now(),
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("admin user created", slog.String("user_id", admin.ID))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
