// Package config loads and validates application configuration from YAML
// files and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Bus           BusConfig           `yaml:"bus"`
	Idempotency   IdempotencyConfig   `yaml:"idempotency"`
	Analytics     AnalyticsConfig     `yaml:"analytics"`
	Notifications NotificationConfig  `yaml:"notifications"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig describes the PostgreSQL store. When disabled the service
// runs against the in-memory store, which loses all records on restart.
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig describes the Redis connection used by the idempotency store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// BusConfig describes enhanced event bus behavior.
type BusConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	BackoffBase  time.Duration `yaml:"backoff_base"`
	HistoryLimit int           `yaml:"history_limit"`
}

// IdempotencyConfig describes request deduplication for mutating
// orchestrator operations.
type IdempotencyConfig struct {
	Enabled bool          `yaml:"enabled"`
	Backend string        `yaml:"backend"` // "memory" or "redis"
	TTL     time.Duration `yaml:"ttl"`
}

// AnalyticsConfig bounds the in-memory analytics cache.
type AnalyticsConfig struct {
	MaxSamples int `yaml:"max_samples"`
}

// NotificationConfig bounds the in-memory notification queue.
type NotificationConfig struct {
	QueueLimit int `yaml:"queue_limit"`
}

// ObservabilityConfig describes logging and tracing.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
}

// TracingConfig describes the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // "otlp" or "stdout"
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Bus: BusConfig{
			MaxRetries:   3,
			BackoffBase:  1 * time.Second,
			HistoryLimit: 1000,
		},
		Idempotency: IdempotencyConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
		},
		Analytics: AnalyticsConfig{
			MaxSamples: 10000,
		},
		Notifications: NotificationConfig{
			QueueLimit: 5000,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required when database.enabled is true")
	}
	if c.Bus.MaxRetries < 0 {
		errs = append(errs, "bus.max_retries must not be negative")
	}
	if c.Bus.HistoryLimit < 1 {
		errs = append(errs, "bus.history_limit must be at least 1")
	}
	switch c.Idempotency.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("idempotency.backend %q is not supported (memory, redis)", c.Idempotency.Backend))
	}
	if c.Idempotency.Backend == "redis" && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required when idempotency.backend is redis")
	}
	if c.Analytics.MaxSamples < 1 {
		errs = append(errs, "analytics.max_samples must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads RENTORD_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RENTORD_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RENTORD_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
		cfg.Database.Enabled = true
	}
	if v := os.Getenv("RENTORD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RENTORD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RENTORD_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("RENTORD_IDEMPOTENCY_BACKEND"); v != "" {
		cfg.Idempotency.Backend = v
	}
}
