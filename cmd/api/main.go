// Package main is the entrypoint for the dashboard API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gymii/dashboard/internal/auth"
	"github.com/gymii/dashboard/internal/cache"
	"github.com/gymii/dashboard/internal/config"
	"github.com/gymii/dashboard/internal/cost"
	"github.com/gymii/dashboard/internal/datastore"
	"github.com/gymii/dashboard/internal/errreport"
	"github.com/gymii/dashboard/internal/handler"
	"github.com/gymii/dashboard/internal/kpi"
	"github.com/gymii/dashboard/internal/metrics"
	"github.com/gymii/dashboard/internal/middleware"
	"github.com/gymii/dashboard/internal/observability"
	"github.com/gymii/dashboard/internal/repository"
	"github.com/gymii/dashboard/internal/server"
	"github.com/gymii/dashboard/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		logger.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewProm(registry)

	mainDB := connectDB(ctx, logger, "main", cfg.MainDatabaseURL, recorder)
	analyticsDB := connectDB(ctx, logger, "analytics", cfg.AnalyticsDatabaseURL, recorder)

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	store := datastore.New(datastore.Config{
		Main:      mainDB,
		Analytics: analyticsDB,
		Persist:   cacheClient,
		Metrics:   recorder,
		Logger:    logger,

		RefreshTimeout: cfg.RefreshTimeout,
	})
	if err := store.Init(ctx); err != nil {
		logger.Warn("some snapshots failed to load", "error", err)
	}
	if cfg.RefreshOnStart {
		if _, err := store.Refresh(ctx); err != nil {
			logger.Warn("startup refresh failed", "error", err)
		}
	}
	for _, q := range []string{datastore.QueryUsers, datastore.QueryDAU, datastore.QueryRetention, datastore.QueryCohortRetention} {
		if !store.Loaded(q) {
			logger.Warn("serving without snapshot until next refresh", "query", q)
		}
	}

	if cfg.SupabaseJWTSecret == "" {
		if cfg.IsProduction() {
			logger.Error("SUPABASE_JWT_SECRET is required in production")
			os.Exit(1)
		}
		logger.Warn("SUPABASE_JWT_SECRET is empty; every API request will be rejected")
	}
	if len(cfg.GetAdminEmails()) == 0 {
		logger.Warn("ADMIN_EMAILS is empty; no one can use the API")
	}
	verifier := auth.NewVerifier(cfg.SupabaseJWTSecret, cfg.JWTAudience, cfg.GetAdminEmails())

	userService := service.NewUserService(mainDB, analyticsDB, store)
	commentService := service.NewCommentService(mainDB, recorder, logger).WithAdminCache(cacheClient)

	security := middleware.DefaultSecurityConfig()
	security.IsDevelopment = cfg.IsDevelopment()
	security.MaxRequestBodySize = cfg.MaxRequestBodySize

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = append([]string{"http://localhost:5173", "https://*.gymii.ai"}, cfg.GetCORSAllowedOrigins()...)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:      logger,
		Reporter:    errreport.NewLogReporter(logger),
		Metrics:     recorder,
		ServiceName: cfg.ServiceName,
		Auth:        verifier,
		RateLimit: middleware.RateLimitConfig{
			Logger:           logger,
			Limiter:          cacheClient,
			Enabled:          cfg.RateLimitEnabled,
			RefreshPerMinute: cfg.RefreshRateLimit,
			RefreshBurst:     cfg.RefreshRateLimit,
			IPRPS:            20,
			IPBurst:          40,
		},
		CORS:     cors,
		Security: security,
		Root:     handler.New(version),
		Health:   handler.NewHealthHandler(mainDB, analyticsDB, cacheClient),
		Analytics: handler.NewAnalyticsHandler(handler.AnalyticsConfig{
			Snapshot:       store,
			Refresher:      store,
			Classifier:     kpi.Classifier{TrialCode: cfg.TrialPromoCode},
			RefreshTimeout: cfg.RefreshTimeout,
			Logger:         logger,
		}),
		Cost:         handler.NewCostHandler(cost.DefaultPrices(), recorder, logger),
		Admin:        handler.NewAdminHandler(userService, commentService, logger),
		MetricsRoute: handler.NewMetricsHandler(registry),
	})

	srv := server.New(server.Config{
		Handler:         router,
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	})

	// Registered first, stopped last.
	srv.OnShutdown("tracer", shutdownTracer)
	srv.OnShutdown("analytics_db", func(context.Context) error {
		analyticsDB.Close()
		return nil
	})
	srv.OnShutdown("main_db", func(context.Context) error {
		mainDB.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", version,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func connectDB(ctx context.Context, logger *slog.Logger, name, dsn string, rec metrics.Recorder) *repository.Repository {
	repo, err := repository.New(ctx, dsn, repository.WithName(name), repository.WithRecorder(rec))
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("database", name),
			slog.String("error", sanitizeError(err, dsn)),
			slog.String("database_url", redactURL(dsn)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database", "database", name)
	return repo
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
