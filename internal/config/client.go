package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
)

// API base URLs by client mode.
const (
	ProductionAPIURL  = "https://staging.gymii.ai/dashboard/api"
	DevelopmentAPIURL = "http://localhost:5500/api"
)

// ClientConfig holds the dashctl configuration.
type ClientConfig struct {
	// Mode selects the default API base URL: "production" or anything else.
	Mode string `env:"DASHCTL_MODE" envDefault:"development"`
	// APIURL overrides the mode-derived base URL.
	APIURL string `env:"DASHCTL_API_URL"`

	// Auth provider
	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`

	// SessionPath is where the persisted session lives.
	SessionPath string `env:"DASHCTL_SESSION_PATH"`

	RequestTimeout time.Duration `env:"DASHCTL_TIMEOUT" envDefault:"30s"`
	LogLevel       string        `env:"DASHCTL_LOG_LEVEL" envDefault:"warn"`
}

// BaseURL returns the API base URL for the configured mode.
func (c *ClientConfig) BaseURL() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	if c.Mode == "production" {
		return ProductionAPIURL
	}
	return DevelopmentAPIURL
}

// LoadClient parses the CLI configuration.
func LoadClient() (*ClientConfig, error) {
	LoadDotEnv()

	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if cfg.SessionPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config dir: %w", err)
		}
		cfg.SessionPath = filepath.Join(dir, "dashctl", "session.json")
	}
	return cfg, nil
}
