// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the API server configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	AppPort     int    `env:"APP_PORT" envDefault:"5500"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"dashboard-api"`

	// Databases (PostgreSQL)
	MainDatabaseURL      string `env:"MAIN_DB_CONNECTION_STRING,required"`
	AnalyticsDatabaseURL string `env:"ANALYTIC_DB_CONNECTION_STRING,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Admin authentication
	SupabaseJWTSecret string `env:"SUPABASE_JWT_SECRET"`
	JWTAudience       string `env:"JWT_AUDIENCE" envDefault:"authenticated"`
	// Comma-separated list of admin emails
	AdminEmails string `env:"ADMIN_EMAILS" envDefault:""`

	// Paying-user heuristic
	TrialPromoCode string `env:"TRIAL_PROMO_CODE" envDefault:"14-day-free"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Tracing; empty disables the exporter
	OTELEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Snapshot refresh
	RefreshOnStart   bool          `env:"REFRESH_ON_START" envDefault:"false"`
	RefreshTimeout   time.Duration `env:"REFRESH_TIMEOUT" envDefault:"2m"`
	RateLimitEnabled bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	// Refreshes allowed per minute per admin
	RefreshRateLimit int `env:"REFRESH_RATE_LIMIT" envDefault:"6"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 10MB, CSV uploads go through it)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"10485760"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// GetAdminEmails parses the comma-separated admin allow-list, lowercased.
func (c *Config) GetAdminEmails() []string {
	emails := splitList(c.AdminEmails)
	for i, e := range emails {
		emails[i] = strings.ToLower(e)
	}
	return emails
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))

	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	LoadDotEnv()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads the first .env file found in the working directory or the
// user config directory. Variables already set in the environment win.
func LoadDotEnv() {
	for _, path := range envPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func envPaths() []string {
	var paths []string
	if p := os.Getenv("DOTENV_PATH"); p != "" {
		paths = append(paths, p)
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "dashctl", ".env"))
	}
	return paths
}
