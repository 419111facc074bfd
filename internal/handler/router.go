package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gymii/dashboard/internal/errreport"
	"github.com/gymii/dashboard/internal/metrics"
	"github.com/gymii/dashboard/internal/middleware"
)

// RouterConfig wires handlers and middleware into the API router.
type RouterConfig struct {
	Logger      *slog.Logger
	Reporter    errreport.Reporter
	Metrics     metrics.Recorder
	ServiceName string

	Auth      middleware.Authenticator
	RateLimit middleware.RateLimitConfig
	CORS      middleware.CORSConfig
	Security  middleware.SecurityConfig

	Root         *Handler
	Health       *HealthHandler
	Analytics    *AnalyticsHandler
	Cost         *CostHandler
	Admin        *AdminHandler
	MetricsRoute *MetricsHandler
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Security.MaxRequestBodySize <= 0 {
		cfg.Security.MaxRequestBodySize = middleware.DefaultSecurityConfig().MaxRequestBodySize
	}
	if cfg.RateLimit.Logger == nil {
		cfg.RateLimit.Logger = cfg.Logger
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger, cfg.Reporter))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))

	// Probes and exposition (no auth required)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	r.Get("/health", cfg.Health.Health)
	if cfg.MetricsRoute != nil {
		r.Get("/metrics", cfg.MetricsRoute.Metrics)
	}
	r.Get("/", cfg.Root.Index)

	adminAuth := middleware.AdminAuth(middleware.AdminAuthConfig{
		Logger:   cfg.Logger,
		Verifier: cfg.Auth,
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(cfg.RateLimit))
		r.Use(middleware.MaxBodySize(cfg.Security.MaxRequestBodySize))
		r.Use(adminAuth)

		r.Route("/analytics", func(r chi.Router) {
			r.With(middleware.RateLimitRefresh(cfg.RateLimit)).Post("/refresh", cfg.Analytics.Refresh)
			r.Get("/retention", cfg.Analytics.Retention)
			r.Get("/retention_by_cohort", cfg.Analytics.RetentionByCohort)
			r.Get("/dau", cfg.Analytics.DAU)
			r.Get("/users", cfg.Analytics.Users)
			r.Get("/kpi", cfg.Analytics.KPI)
			r.Get("/snapshot", cfg.Analytics.Snapshot)
		})

		r.Post("/cost/report", cfg.Cost.Report)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/", cfg.Admin.ListUsers)
			r.Get("/me", cfg.Admin.Me)
			r.Get("/users", cfg.Admin.SearchUsers)
			r.Put("/comments/{commentID}", cfg.Admin.UpdateComment)
			r.Delete("/comments/{commentID}", cfg.Admin.DeleteComment)
			r.Get("/{userID}", cfg.Admin.GetUser)
			r.Get("/{userID}/comments", cfg.Admin.ListComments)
			r.Post("/{userID}/comments", cfg.Admin.CreateComment)
			r.Get("/{userID}/sessions", cfg.Admin.Sessions)
		})
	})

	r.NotFound(cfg.Root.NotFound)
	r.MethodNotAllowed(cfg.Root.MethodNotAllowed)

	return r
}
