package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `env:", prefix=SERVER_"`
	Provider  ProviderConfig  `env:", prefix=PROVIDER_"`
	Market    MarketConfig    `env:", prefix=MARKET_"`
	Redis     RedisConfig     `env:", prefix=REDIS_"`
	NATS      NATSConfig      `env:", prefix=NATS_"`
	WebSocket WebSocketConfig `env:", prefix=WEBSOCKET_"`
	Security  SecurityConfig  `env:", prefix=SECURITY_"`
	Logging   LoggingConfig   `env:", prefix=LOG_"`
}

// ServerConfig holds gateway HTTP server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=3001"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// ProviderConfig holds upstream market-data provider configuration.
// The API key is supplied out-of-band and never ships to clients.
type ProviderConfig struct {
	BaseURL string        `env:"BASE_URL, default=https://pro-api.coinmarketcap.com/v1"`
	APIKey  string        `env:"API_KEY"`
	Timeout time.Duration `env:"TIMEOUT, default=10s"`
}

// MarketConfig holds aggregator configuration
type MarketConfig struct {
	GatewayURL      string        `env:"GATEWAY_URL, default=http://localhost:3001/api"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL, default=120s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT, default=15s"`
	ListingLimit    int           `env:"LISTING_LIMIT, default=50"`
	ConvertCurrency string        `env:"CONVERT_CURRENCY, default=USD"`
	FallbackAssets  int           `env:"FALLBACK_ASSETS, default=10"`
}

// RedisConfig holds Redis configuration for the optional snapshot mirror
type RedisConfig struct {
	Enabled      bool          `env:"ENABLED, default=false"`
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
	SnapshotTTL  time.Duration `env:"SNAPSHOT_TTL, default=10m"`
}

// NATSConfig holds NATS configuration for optional snapshot distribution
type NATSConfig struct {
	Enabled       bool          `env:"ENABLED, default=false"`
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
	DrainTimeout  time.Duration `env:"DRAIN_TIMEOUT, default=30s"`
}

// WebSocketConfig holds snapshot stream configuration
type WebSocketConfig struct {
	Enabled         bool          `env:"ENABLED, default=true"`
	ReadBufferSize  int           `env:"READ_BUFFER_SIZE, default=1024"`
	WriteBufferSize int           `env:"WRITE_BUFFER_SIZE, default=1024"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT, default=10s"`
	PingInterval    time.Duration `env:"PING_INTERVAL, default=30s"`
	PongTimeout     time.Duration `env:"PONG_TIMEOUT, default=60s"`
	SendBuffer      int           `env:"SEND_BUFFER, default=16"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	CORSEnabled bool     `env:"CORS_ENABLED, default=true"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,POST,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=*"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=json"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider base URL is required")
	}

	if c.Market.GatewayURL == "" {
		return fmt.Errorf("market gateway URL is required")
	}

	if c.Market.RefreshInterval <= 0 {
		return fmt.Errorf("invalid refresh interval: %s", c.Market.RefreshInterval)
	}

	if c.Market.ListingLimit <= 0 {
		return fmt.Errorf("invalid listing limit: %d", c.Market.ListingLimit)
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("Redis host is required when Redis is enabled")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required when NATS is enabled")
	}

	return nil
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
