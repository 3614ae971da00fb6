// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/health-triage/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Rule configuration source
	Source SourceConfig

	// Metrics configuration
	Metrics MetricsConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP port to listen on.
	Port string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration

	// MaxBodyBytes caps the size of request bodies.
	MaxBodyBytes int64

	// CORSAllowOrigin is sent as Access-Control-Allow-Origin.
	CORSAllowOrigin string
}

// SourceKind selects where rules and catalogs are loaded from.
type SourceKind string

const (
	// SourceFile reads JSON or YAML files from a directory.
	SourceFile SourceKind = "file"

	// SourceSQLite reads from a SQLite database populated by rulesctl.
	SourceSQLite SourceKind = "sqlite"
)

// SourceConfig contains configuration source settings.
type SourceConfig struct {
	// Kind specifies which source to use (file, sqlite).
	Kind SourceKind

	// RulesDir is the directory read by the file source.
	RulesDir string

	// SQLitePath is the database read by the sqlite source.
	SQLitePath string

	// RefreshInterval enables background refresh when positive.
	RefreshInterval time.Duration

	// CheckOnRead compares the source version on every request. It is set
	// when no background refresh is configured.
	CheckOnRead bool

	// RetryBackoff pauses version checks after a failed rebuild.
	RetryBackoff time.Duration
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes GET /metrics.
	Enabled bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	refresh := getDurationOrDefault("CONFIG_REFRESH_INTERVAL", 0)

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", "3000"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			MaxBodyBytes:    int64(getIntOrDefault("MAX_BODY_BYTES", 1<<20)), // 1MiB
			CORSAllowOrigin: getEnvOrDefault("CORS_ALLOW_ORIGIN", "*"),
		},
		Source: SourceConfig{
			Kind:            SourceKind(getEnvOrDefault("CONFIG_SOURCE", string(SourceFile))),
			RulesDir:        getEnvOrDefault("RULES_DIR", "rules"),
			SQLitePath:      getEnvOrDefault("SQLITE_PATH", "triage.db"),
			RefreshInterval: refresh,
			CheckOnRead:     refresh == 0,
			RetryBackoff:    getDurationOrDefault("CONFIG_RETRY_BACKOFF", 5*time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolOrDefault("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("%w: PORT must be numeric, got %q", domain.ErrInvalidConfig, c.Server.Port)
	}

	if c.Server.MaxBodyBytes < 1024 {
		return fmt.Errorf("%w: MAX_BODY_BYTES must be at least 1024 bytes", domain.ErrInvalidConfig)
	}

	switch c.Source.Kind {
	case SourceFile:
		if c.Source.RulesDir == "" {
			return fmt.Errorf("%w: RULES_DIR is required for the file source", domain.ErrInvalidConfig)
		}
	case SourceSQLite:
		if c.Source.SQLitePath == "" {
			return fmt.Errorf("%w: SQLITE_PATH is required for the sqlite source", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: CONFIG_SOURCE must be file or sqlite, got %q", domain.ErrInvalidConfig, c.Source.Kind)
	}

	if c.Source.RefreshInterval < 0 {
		return fmt.Errorf("%w: CONFIG_REFRESH_INTERVAL must not be negative", domain.ErrInvalidConfig)
	}

	if c.Source.RetryBackoff < 0 {
		return fmt.Errorf("%w: CONFIG_RETRY_BACKOFF must not be negative", domain.ErrInvalidConfig)
	}

	return nil
}

// Helper functions for reading environment variables

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Try parsing as seconds first (e.g., "15")
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		// Try parsing as duration string (e.g., "15s", "1m")
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
