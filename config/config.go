// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix of every environment variable read by Load
const Prefix = "OPTITRACK"

// Config is flat so every variable maps to OPTITRACK_<TAG>
type Config struct {
	DBPath      string `envconfig:"DB_PATH" default:"./data/optitrack.db"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":4534"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE"`
	ActivityDir string `envconfig:"ACTIVITY_DIR" default:"./activity_logs"`

	// Quote gateway
	QuoteGatewayURL string        `envconfig:"QUOTE_GATEWAY_URL" default:"http://127.0.0.1:11112"`
	QuoteAPIKey     string        `envconfig:"QUOTE_API_KEY"`
	QuoteRatePerSec float64       `envconfig:"QUOTE_RATE_PER_SEC" default:"5"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"15s"`

	// Alpaca reference prices for US underlyings
	AlpacaAPIKey    string `envconfig:"ALPACA_API_KEY"`
	AlpacaSecretKey string `envconfig:"ALPACA_SECRET_KEY"`

	// Summary cache, in memory unless RedisAddr is set
	RedisAddr string        `envconfig:"REDIS_ADDR"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"30s"`
}

// AlpacaEnabled reports whether both Alpaca keys are set
func (c *Config) AlpacaEnabled() bool {
	return c.AlpacaAPIKey != "" && c.AlpacaSecretKey != ""
}

// Load reads .env if present, then the environment
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if cfg.RefreshInterval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", cfg.RefreshInterval)
	}

	return &cfg, nil
}
