package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/valuetrainer/internal/metrics"
	"github.com/hitoshi/valuetrainer/internal/middleware"
	"github.com/hitoshi/valuetrainer/internal/security"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	AccountResolver middleware.AccountResolver
	RateLimiter     *middleware.RateLimiter
	Logger          *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 表示
	SessionSecret string
	Sanitizer     security.TextSanitizerService
	StaticJSDir   string

	// 運用
	HealthChecker   HealthChecker
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Metrics → Session → Logging
//
// /login と /signup には追加で GateAuthForms → RateLimit(AuthForm) → CSRF を適用する。
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	flashes := NewFlashStore(deps.SessionSecret, deps.AuthConfig.Cookie)
	renderer, err := NewRenderer(flashes)
	if err != nil {
		return nil, err
	}

	authHandler := NewAuthHandler(deps.AuthService, renderer, flashes, deps.Metrics, deps.AuthConfig)
	pageHandler := NewPageHandler(renderer, deps.Sanitizer, deps.StaticJSDir)
	exerciseLogHandler := NewExerciseLogHandler(deps.Metrics, deps.Logger)

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewSessionMiddleware(deps.AccountResolver))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	// --- ページ ---
	r.Get("/", withAccount(pageHandler.Index))
	r.Get("/index", withAccount(pageHandler.Index))
	r.Get("/exercise/{name}", withAccount(pageHandler.Exercise))
	r.Get("/js/vs.js", pageHandler.ExerciseScript)
	r.Get("/js/exercise-init.js", pageHandler.ExerciseInitScript)
	r.Post("/exercise_log", withAccount(exerciseLogHandler.Receive))

	// --- 認証フォーム ---
	// ミドルウェアスタック: Gate → RateLimit(AuthForm) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(GateAuthForms)
		r.Use(deps.RateLimiter.AuthFormMiddleware())
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{
			CookieSecure: deps.AuthConfig.Cookie.Secure,
			CookieDomain: deps.AuthConfig.Cookie.Domain,
		}))

		r.Get("/login", authHandler.ShowLogin)
		r.Post("/login", authHandler.SubmitLogin)
		r.Get("/signup", authHandler.ShowSignup)
		r.Post("/signup", authHandler.SubmitSignup)
	})
	r.Get("/logout", withAccount(authHandler.Logout))

	// --- 認証が必要なAPI ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAccount)

		r.Get("/api/me", withAccount(Me))
	})

	// --- 運用 ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))

	return r, nil
}
