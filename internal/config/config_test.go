package config

import (
	"errors"
	"testing"
	"time"

	"github.com/health-triage/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "MAX_BODY_BYTES",
		"CORS_ALLOW_ORIGIN", "CONFIG_SOURCE", "RULES_DIR", "SQLITE_PATH",
		"CONFIG_REFRESH_INTERVAL", "CONFIG_RETRY_BACKOFF", "METRICS_ENABLED",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Server.Port)
	}
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Source.Kind != SourceFile || cfg.Source.RulesDir != "rules" {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Source.RefreshInterval != 0 || !cfg.Source.CheckOnRead {
		t.Errorf("without a refresh interval CheckOnRead should be set: %+v", cfg.Source)
	}
	if cfg.Source.RetryBackoff != 5*time.Second {
		t.Errorf("RetryBackoff = %v, want 5s", cfg.Source.RetryBackoff)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should be enabled by default")
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SERVER_READ_TIMEOUT", "5")
	t.Setenv("CONFIG_SOURCE", "sqlite")
	t.Setenv("SQLITE_PATH", "/var/lib/triage.db")
	t.Setenv("CONFIG_REFRESH_INTERVAL", "1m")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "8080" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Source.Kind != SourceSQLite || cfg.Source.SQLitePath != "/var/lib/triage.db" {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Source.RefreshInterval != time.Minute || cfg.Source.CheckOnRead {
		t.Errorf("refresh = %v, check on read = %v", cfg.Source.RefreshInterval, cfg.Source.CheckOnRead)
	}
	if cfg.Metrics.Enabled {
		t.Error("METRICS_ENABLED=false was ignored")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "3000", MaxBodyBytes: 4096},
			Source: SourceConfig{Kind: SourceFile, RulesDir: "rules"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"non numeric port", func(c *Config) { c.Server.Port = "http" }, true},
		{"tiny body limit", func(c *Config) { c.Server.MaxBodyBytes = 10 }, true},
		{"unknown source", func(c *Config) { c.Source.Kind = "etcd" }, true},
		{"file source without dir", func(c *Config) { c.Source.RulesDir = "" }, true},
		{"sqlite source without path", func(c *Config) { c.Source.Kind = SourceSQLite }, true},
		{"sqlite source", func(c *Config) {
			c.Source.Kind = SourceSQLite
			c.Source.SQLitePath = "triage.db"
		}, false},
		{"negative refresh", func(c *Config) { c.Source.RefreshInterval = -time.Second }, true},
		{"negative retry backoff", func(c *Config) { c.Source.RetryBackoff = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
