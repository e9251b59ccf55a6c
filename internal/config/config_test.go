package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_valid(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 15s
bus:
  max_retries: 5
  backoff_base: 500ms
  history_limit: 200
idempotency:
  enabled: true
  backend: memory
  ttl: 1h
observability:
  log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Bus.MaxRetries != 5 {
		t.Errorf("Bus.MaxRetries = %d, want 5", cfg.Bus.MaxRetries)
	}
	if cfg.Bus.BackoffBase != 500*time.Millisecond {
		t.Errorf("Bus.BackoffBase = %v, want 500ms", cfg.Bus.BackoffBase)
	}
	if cfg.Bus.HistoryLimit != 200 {
		t.Errorf("Bus.HistoryLimit = %d, want 200", cfg.Bus.HistoryLimit)
	}
	if !cfg.Idempotency.Enabled {
		t.Error("Idempotency.Enabled = false, want true")
	}
	if cfg.Idempotency.TTL != 1*time.Hour {
		t.Errorf("Idempotency.TTL = %v, want 1h", cfg.Idempotency.TTL)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("Observability.LogLevel = %q, want debug", cfg.Observability.LogLevel)
	}

	// Unset fields keep their defaults.
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want default 30s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Analytics.MaxSamples != 10000 {
		t.Errorf("Analytics.MaxSamples = %d, want default 10000", cfg.Analytics.MaxSamples)
	}
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Bus.MaxRetries != 3 {
		t.Errorf("Bus.MaxRetries = %d, want 3", cfg.Bus.MaxRetries)
	}
	if cfg.Bus.BackoffBase != 1*time.Second {
		t.Errorf("Bus.BackoffBase = %v, want 1s", cfg.Bus.BackoffBase)
	}
	if cfg.Bus.HistoryLimit != 1000 {
		t.Errorf("Bus.HistoryLimit = %d, want 1000", cfg.Bus.HistoryLimit)
	}
	if cfg.Idempotency.Backend != "memory" {
		t.Errorf("Idempotency.Backend = %q, want memory", cfg.Idempotency.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults().Validate() error = %v", err)
	}
}

func TestValidate_errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"db enabled without dsn", func(c *Config) { c.Database.Enabled = true }},
		{"negative retries", func(c *Config) { c.Bus.MaxRetries = -1 }},
		{"zero history", func(c *Config) { c.Bus.HistoryLimit = 0 }},
		{"bad idempotency backend", func(c *Config) { c.Idempotency.Backend = "dynamo" }},
		{"redis backend without addr", func(c *Config) {
			c.Idempotency.Backend = "redis"
			c.Redis.Addr = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("RENTORD_SERVER_PORT", "7070")
	t.Setenv("RENTORD_OBSERVABILITY_LOG_LEVEL", "warn")
	t.Setenv("RENTORD_DATABASE_DSN", "postgres://localhost/rentord")

	cfg := Defaults()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Observability.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.Observability.LogLevel)
	}
	if !cfg.Database.Enabled || cfg.Database.DSN != "postgres://localhost/rentord" {
		t.Errorf("Database = %+v, want enabled with DSN", cfg.Database)
	}
}
