package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/capacita/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	TokenVerifier      middleware.TokenVerifier
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	AdminAPIKey        string
	CSRF               *middleware.CSRFConfig // nil の場合はCSRF検証を行わない
	HTTPObserver       middleware.HTTPObserver
	MetricsHandler     http.Handler

	// セッションCookie
	Cookie CookieConfig

	// サービス
	CourseService  CourseServiceInterface
	CourseImporter CourseImporter
	AccountService AccountServiceInterface
	Health         HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Metrics → Recovery → SecurityHeaders → CORS → RateLimit(General) → CSRF
//
// 認証が必要なルートにはグループ単位で Auth を、講座の管理操作には AdminKey を、
// 登録・ログインには RateLimit(Auth) を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPObserver != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPObserver))
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.GeneralMiddleware())
	}
	if deps.CSRF != nil {
		r.Use(middleware.NewCSRFMiddleware(*deps.CSRF))
	}

	courseHandler := NewCourseHandler(deps.CourseService, deps.CourseImporter)
	accountHandler := NewAccountHandler(deps.AccountService, deps.Cookie)

	requireJSON := chimw.AllowContentType("application/json")
	requireAuth := middleware.NewAuthMiddleware(deps.TokenVerifier)
	requireAdmin := middleware.NewAdminKeyMiddleware(deps.AdminAPIKey)
	authLimit := func(next http.Handler) http.Handler { return next }
	if deps.RateLimiter != nil {
		authLimit = deps.RateLimiter.AuthMiddleware()
	}

	// --- 認証不要のルート ---

	r.Get("/api/health", NewHealthHandler(deps.Health))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	if deps.CSRF != nil {
		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(*deps.CSRF))
	}

	// 講座
	r.Route("/api/courses", func(r chi.Router) {
		r.Get("/", courseHandler.List)
		r.Get("/{page}", courseHandler.ListByPage)

		// 管理操作（ADMIN_API_KEY 設定時のみ X-Admin-Key を要求）
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Use(requireJSON)

			r.Post("/", courseHandler.Create)
			r.Post("/import", courseHandler.Import)
			// reorder は {id} より先に登録する
			r.Put("/reorder", courseHandler.Reorder)
			r.Put("/{id}", courseHandler.Update)
			r.Delete("/{id}", courseHandler.Delete)
		})
	})

	// 求職者・企業の登録と一覧
	r.Route("/api/students", func(r chi.Router) {
		r.Get("/", accountHandler.ListStudents)
		r.With(authLimit, requireJSON).Post("/", accountHandler.RegisterStudent)
	})
	r.Route("/api/companies", func(r chi.Router) {
		r.Get("/", accountHandler.ListCompanies)
		r.With(authLimit, requireJSON).Post("/", accountHandler.RegisterCompany)
	})

	// 登録・ログイン・ログアウト
	r.Group(func(r chi.Router) {
		r.Use(authLimit)
		r.With(requireJSON).Post("/api/auth/register", accountHandler.Register)
		r.With(requireJSON).Post("/api/auth/login", accountHandler.Login)
		r.With(requireJSON).Post("/api/login", accountHandler.Login)
	})
	r.Post("/api/auth/logout", accountHandler.Logout)
	r.Post("/api/logout", accountHandler.Logout)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/api/auth/me", accountHandler.Me)
		r.Get("/api/auth/verify", accountHandler.Verify)

		r.Get("/api/profile", accountHandler.Me)
		r.With(requireJSON).Put("/api/profile", accountHandler.UpdateProfile)

		r.Route("/api/users/{id}", func(r chi.Router) {
			r.With(requireJSON).Put("/", accountHandler.UpdateUser)
			r.With(requireJSON).Patch("/", accountHandler.UpdateUser)
			r.Delete("/", accountHandler.DeactivateUser)
			r.Get("/history", accountHandler.History)
		})
	})

	return r
}
