// Package app は設定の読み込み、依存関係のワイヤリング、サブコマンドの実行を行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/capacita/internal/account"
	"github.com/hitoshi/capacita/internal/auth"
	"github.com/hitoshi/capacita/internal/config"
	"github.com/hitoshi/capacita/internal/course"
	"github.com/hitoshi/capacita/internal/database"
	"github.com/hitoshi/capacita/internal/handler"
	"github.com/hitoshi/capacita/internal/importer"
	"github.com/hitoshi/capacita/internal/logger"
	"github.com/hitoshi/capacita/internal/metrics"
	"github.com/hitoshi/capacita/internal/middleware"
	"github.com/hitoshi/capacita/internal/security"
	"github.com/hitoshi/capacita/internal/storage"
	"github.com/hitoshi/capacita/internal/validation"
	"github.com/hitoshi/capacita/internal/worker/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.InsecureSecret {
		slog.Warn("JWT_SECRET is not set, using the built-in development secret")
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
			port = os.Getenv("PORT")
		}
		if port == "" {
			port = "3300"
		}
		return runHealthcheck("http://localhost:" + port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageBackend),
		slog.String("env", cfg.AppEnv),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandReconcile:
		return runReconcile(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openStore は設定されたバックエンドを開き、メトリクス計測でラップした Store を返す。
// observer が nil の場合は計測しない。
func openStore(ctx context.Context, cfg *config.Config, observer storage.Observer) (*storage.Store, error) {
	var backend storage.Backend

	switch cfg.StorageBackend {
	case config.BackendMemory:
		slog.Warn("using in-memory storage, data will be lost on exit")
		backend = storage.NewMemoryBackend()

	case config.BackendFile:
		b, err := storage.NewFileBackend(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open data directory: %w", err)
		}
		backend = b

	case config.BackendRedis:
		b, err := storage.NewRedisBackend(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		backend = b

	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		})
		if err != nil {
			return nil, err
		}
		if err := database.Ping(ctx, db, 5*time.Second); err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("database connection established")

		// collections テーブルがない状態で起動しないよう、未適用のマイグレーションを適用する
		if _, err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		backend = storage.NewPostgresBackend(db)

	case config.BackendS3:
		b, err := storage.NewS3Backend(ctx, storage.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure s3: %w", err)
		}
		backend = b

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}

	if observer != nil {
		backend = storage.Instrument(backend, observer)
	}
	return storage.NewStore(backend, slog.Default()), nil
}

// newMetrics はプロセス・Goランタイムのメトリクスを含むレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newHandler はサービスを組み立て、全エンドポイントを持つHTTPハンドラーを返す。
// 返り値の停止関数はレートリミッターのクリーンアップを止める。
func newHandler(cfg *config.Config, store *storage.Store, reg prometheus.Gatherer, collector *metrics.Collector) (http.Handler, func()) {
	// 1. 認証・検証
	v := validation.New()
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	// 2. ドメインサービスの初期化
	courseService := course.NewService(store, v, cfg.CoursePages)
	importService := importer.NewService(courseService, security.NewURLGuard(), v, collector, importer.Config{
		Timeout: cfg.ImportTimeout,
		MaxSize: cfg.ImportMaxSize,
	})
	accountService := account.NewService(store, v, hasher, tokens, collector)

	// 3. ミドルウェア依存
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	var csrf *middleware.CSRFConfig
	if cfg.CSRFEnabled {
		csrf = &middleware.CSRFConfig{CookieSecure: cfg.IsProduction()}
	}

	// 4. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             slog.Default(),
		TokenVerifier:      tokens,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		AdminAPIKey:        cfg.AdminAPIKey,
		CSRF:               csrf,
		HTTPObserver:       collector,
		MetricsHandler:     metrics.Handler(reg),

		Cookie: handler.CookieConfig{
			Secure: cfg.IsProduction(),
			MaxAge: cfg.TokenTTL,
		},

		CourseService:  courseService,
		CourseImporter: importService,
		AccountService: accountService,
		Health:         store,
	})
	return router, rateLimiter.Stop
}

// runServe はAPIサーバーモードで起動する。
// ストレージを開き、整合性チェックを実行してから、全依存関係をワイヤリングしてHTTPサーバーを起動する。
// ctx がキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	reg, collector := newMetrics()

	// 1. ストレージ
	store, err := openStore(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer store.Backend().Close()

	// 2. 起動時の整合性チェック（中断されたコミットの再適用とミラー修復）
	job := reconcile.NewJob(store, collector, slog.Default())
	if _, err := job.Run(ctx); err != nil {
		slog.Error("startup reconcile failed", slog.String("error", err.Error()))
	}

	// 3. ルーターの構築
	router, stopLimiter := newHandler(cfg, store, reg, collector)
	defer stopLimiter()

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()
	go job.Start(jobCtx, cfg.ReconcileInterval)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はPostgreSQLのスキーママイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("migrate requires DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runReconcile は整合性チェックを1回だけ実行する。
func runReconcile(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer store.Backend().Close()

	report, err := reconcile.NewJob(store, nil, slog.Default()).Run(ctx)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	slog.Info("reconcile finished",
		slog.Int("intents_replayed", report.IntentsReplayed),
		slog.Int("mirrors_repaired", report.Repairs()),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(baseURL + "/api/health")
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
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	u.RawQuery = ""
	return u.String()
}
