package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/studylog/internal/metrics"
	"github.com/hitoshi/studylog/internal/middleware"
	"github.com/hitoshi/studylog/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionStore      sessions.Store
	Trackers          middleware.TrackerSource
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig

	// 監視
	HealthChecker   HealthChecker
	Metrics         *metrics.Collector
	MetricsGatherer prometheus.Gatherer

	// 画面
	Sanitizer        security.TitleSanitizer
	PasswordResetter PasswordResetter
}

// NewRouter は画面とAPIのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → Metrics → SecurityHeaders → RealIP → CORS
//	  → CSRF → BrowserContext → RateLimit(GeneralMiddleware)
//
// /health と /metrics はブラウザコンテキストの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = security.NewTitleSanitizer()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(metrics.NewHTTPMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRF.CookieSecure))
	r.Use(chimw.RealIP)
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- ブラウザコンテキスト不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	pages := NewPageHandler(sanitizer, deps.PasswordResetter, deps.Trackers)
	api := NewAPIHandler(sanitizer)

	authLimit := func(h http.HandlerFunc) http.Handler { return h }
	if deps.RateLimiter != nil {
		limit := deps.RateLimiter.AuthMiddleware()
		authLimit = func(h http.HandlerFunc) http.Handler { return limit(h) }
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
		r.Use(middleware.NewBrowserContextMiddleware(deps.SessionStore, deps.Trackers, logger))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// 画面
		r.Get("/", pages.Home)
		r.Get("/login", pages.LoginPage)
		r.Method(http.MethodPost, "/login", authLimit(pages.Login))
		r.Get("/register", pages.RegisterPage)
		r.Method(http.MethodPost, "/register", authLimit(pages.Register))
		r.Post("/logout", pages.Logout)
		r.Get("/sendReset", pages.SendResetPage)
		r.Method(http.MethodPost, "/sendReset", authLimit(pages.SendReset))
		r.Get("/updatePassword", pages.UpdatePasswordPage)
		r.Method(http.MethodPost, "/updatePassword", authLimit(pages.UpdatePassword))
		r.Get(RouteResetPassword, pages.ResetPasswordPage)
		r.Method(http.MethodPost, RouteResetPassword, authLimit(pages.ResetPassword))

		r.Post("/records", pages.CreateRecord)
		r.Post("/records/{id}", pages.UpdateRecord)
		r.Post("/records/{id}/delete", pages.DeleteRecord)

		// JSON API
		r.Route("/api", func(r chi.Router) {
			r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler())
			r.Get("/me", api.Me)

			r.Group(func(r chi.Router) {
				r.Use(api.RequireSignedIn)
				r.Get("/records", api.ListRecords)
				r.Post("/records", api.CreateRecord)
				r.Put("/records/{id}", api.UpdateRecord)
				r.Delete("/records/{id}", api.DeleteRecord)
			})
		})
	})

	return r
}
