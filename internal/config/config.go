package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" default:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" default:"30m"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" default:""`
	DB       int    `env:"REDIS_DB" default:"0"`
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type OrchestratorConfig struct {
	Host        string        `env:"ORCHESTRATOR_HOST"`
	Token       string        `env:"ORCHESTRATOR_TOKEN"`
	HTTPTimeout time.Duration `env:"ORCHESTRATOR_HTTP_TIMEOUT" default:"10s"`
	MaxRetries  int           `env:"ORCHESTRATOR_MAX_RETRIES" default:"2"`
	Backoff     time.Duration `env:"ORCHESTRATOR_INITIAL_BACKOFF" default:"200ms"`
}

type AuctionConfig struct {
	BiddingEnabled bool   `env:"AUCTION_BIDDING_ENABLED" default:"true"`
	MinimumBid     int64  `env:"AUCTION_MINIMUM_BID" default:"100"`
	RefundPolicy   string `env:"AUCTION_REFUND_POLICY" default:"before_end"`
}

type LedgerConfig struct {
	BatchWorkers     int           `env:"LEDGER_BATCH_WORKERS" default:"8"`
	BalanceCacheSize int           `env:"LEDGER_BALANCE_CACHE_SIZE" default:"10000"`
	BalanceCacheTTL  time.Duration `env:"LEDGER_BALANCE_CACHE_TTL" default:"5s"`
}

type RateLimitConfig struct {
	// Used when the settings file does not set a limit.
	RedeemAttemptsPerDay int64         `env:"REDEEM_MAX_ATTEMPTS_PER_DAY" default:"5"`
	RefreshInterval      time.Duration `env:"RATE_LIMIT_REFRESH_INTERVAL" default:"24h"`
}

type TracingConfig struct {
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`
	ServiceName  string `env:"OTEL_SERVICE_NAME" default:"buzzledger"`
}
