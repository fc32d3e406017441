package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// RelayEnabled turns on cross-instance relaying over Redis Pub/Sub.
	// Single-instance deployments leave it off and need no Redis at all.
	RelayEnabled        bool          `env:"RELAY_ENABLED" default:"false"`
	RelayPublishTimeout time.Duration `env:"RELAY_PUBLISH_TIMEOUT" default:"2s"`

	BroadcastWorkers int           `env:"BROADCAST_WORKERS" default:"4"`
	BroadcastBacklog int           `env:"BROADCAST_BACKLOG" default:"256"`
	AggregateTimeout time.Duration `env:"AGGREGATE_TIMEOUT" default:"2s"`

	MaxStreamConnections    int           `env:"MAX_STREAM_CONNECTIONS" default:"10000"`
	StreamTimeout           time.Duration `env:"STREAM_TIMEOUT" default:"0s"` // 0 = unlimited
	StreamHeartbeatInterval time.Duration `env:"STREAM_HEARTBEAT_INTERVAL" default:"30s"`

	// AllowedOrigins is a comma separated list of browser origins for CORS and
	// WebSocket upgrades. Empty allows any origin.
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	StampRateLimit float64 `env:"STAMP_RATE_LIMIT" default:"5"`
	StampRateBurst int     `env:"STAMP_RATE_BURST" default:"10"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" default:"stampsys"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if cfg.RelayEnabled && cfg.RedisURL == "" {
		return errors.New("REDIS_URL is required when RELAY_ENABLED is set")
	}

	if cfg.BroadcastWorkers < 1 {
		return fmt.Errorf("BROADCAST_WORKERS must be at least 1, got %d", cfg.BroadcastWorkers)
	}
	if cfg.BroadcastBacklog < 1 {
		return fmt.Errorf("BROADCAST_BACKLOG must be at least 1, got %d", cfg.BroadcastBacklog)
	}
	if cfg.MaxStreamConnections < 1 {
		return fmt.Errorf("MAX_STREAM_CONNECTIONS must be at least 1, got %d", cfg.MaxStreamConnections)
	}
	if cfg.StreamTimeout < 0 {
		return errors.New("STREAM_TIMEOUT must not be negative")
	}
	if cfg.StreamHeartbeatInterval <= 0 {
		return errors.New("STREAM_HEARTBEAT_INTERVAL must be positive")
	}

	return nil
}
