package main

import (
	"time"

	"github.com/fastprodman/buzzledger/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"API_PORT" default:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
	// Optional TOML file with bonus tiers and rate limits.
	SettingsPath string   `env:"SETTINGS_PATH" default:""`
	CORSOrigins  []string `env:"CORS_ALLOWED_ORIGINS" default:""`

	Postgres     config.PostgresConfig
	Redis        config.RedisConfig
	Auth         config.AuthConfig
	Orchestrator config.OrchestratorConfig
	Auction      config.AuctionConfig
	Ledger       config.LedgerConfig
	RateLimit    config.RateLimitConfig
	Tracing      config.TracingConfig
}
