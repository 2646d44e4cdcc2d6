package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/valuetrainer/internal/auth"
	"github.com/hitoshi/valuetrainer/internal/config"
	"github.com/hitoshi/valuetrainer/internal/database"
	"github.com/hitoshi/valuetrainer/internal/handler"
	"github.com/hitoshi/valuetrainer/internal/logger"
	"github.com/hitoshi/valuetrainer/internal/metrics"
	"github.com/hitoshi/valuetrainer/internal/middleware"
	"github.com/hitoshi/valuetrainer/internal/repository"
	"github.com/hitoshi/valuetrainer/internal/security"
	"github.com/hitoshi/valuetrainer/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込んでログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルの反映
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, ParseMigrateDirection(args))
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// newMetricsRegistry はアプリケーション用のPrometheusレジストリを生成する。
// Goランタイムとプロセスのメトリクスも併せて登録する。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はHTTPサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	accountRepo := repository.NewPostgresAccountRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. ドメインサービスの初期化
	authService := auth.NewService(
		accountRepo, sessionRepo,
		auth.NewBcryptHasher(cfg.BcryptCost),
		auth.ServiceConfig{
			SessionMaxAge:  cfg.SessionMaxAge,
			RememberMaxAge: cfg.RememberMaxAge,
		},
	)

	// 4. ミドルウェア依存の初期化
	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return fmt.Errorf("failed to parse trusted proxies: %w", err)
	}
	rateLimiterCfg := middleware.NewRateLimiterConfig(cfg.RateLimitAuth)
	rateLimiterCfg.TrustedProxies = trustedProxies
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	reg, collector := newMetricsRegistry()

	// 5. ルーターの構築
	router, err := handler.NewRouter(&handler.RouterDeps{
		AccountResolver: authService,
		RateLimiter:     rateLimiter,
		Logger:          slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			Cookie: handler.CookieConfig{
				Secure: cfg.CookieSecure,
				Domain: cfg.CookieDomain,
			},
			RememberMaxAge: cfg.RememberMaxAge,
		},

		SessionSecret: cfg.SessionSecret,
		Sanitizer:     security.NewTextSanitizer(),
		StaticJSDir:   cfg.StaticJSDir,

		HealthChecker:   db,
		Metrics:         collector,
		MetricsGatherer: reg,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	// 6. HTTPサーバーの起動
	return serveUntilSignal(&http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, nil)
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションのクリーンアップジョブを定期実行する。
// ヘルスチェックとメトリクス用の小さなHTTPサーバーも併せて起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリとジョブの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	reg, collector := newMetricsRegistry()
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, collector, slog.Default())

	// 3. 運用エンドポイント
	r := chi.NewRouter()
	r.Get("/health", handler.NewHealthHandler(db))
	r.Handle("/metrics", metrics.Handler(reg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		slog.Info("worker starting",
			slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
		)
		cleanupJob.Start(ctx, cfg.SessionCleanupInterval)
	}()

	err = serveUntilSignal(&http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}, cancel)

	<-done
	slog.Info("worker stopped gracefully")
	return err
}

// serveUntilSignal はHTTPサーバーを起動し、SIGINTまたはSIGTERMを受信するまでブロックする。
// onStopが指定された場合はシャットダウン開始前に呼び出す。
func serveUntilSignal(server *http.Server, onStop func()) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-listenErr:
		if onStop != nil {
			onStop()
		}
		return fmt.Errorf("server listen error: %w", err)
	}

	slog.Info("shutting down HTTP server...")
	if onStop != nil {
		onStop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// MigrateUpでは未適用のマイグレーションを順番に適用し、MigrateDownでは最新の1件を取り消す。
func runMigrate(cfg *config.Config, direction MigrateDirection) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.String("direction", string(direction)),
	)

	var (
		version uint
		err     error
	)
	if direction == MigrateDown {
		version, err = database.RollbackMigration(cfg.DatabaseURL)
	} else {
		version, err = database.RunMigrations(cfg.DatabaseURL)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
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
// 解析できないURLは全体を伏せる。
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
