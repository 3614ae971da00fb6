// Package logger provides structured logging setup.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Development enables human readable console output.
	Development bool

	// Level overrides the default level (debug in development, info
	// otherwise). Empty means LOG_LEVEL, then the default.
	Level string

	// Service is attached to every entry when set.
	Service string
}

// New creates a new structured logger.
func New(opts Options) (*zap.Logger, error) {
	var config zap.Config

	if opts.Development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level := opts.Level
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level != "" {
		zapLevel, err := zapcore.ParseLevel(level)
		if err == nil {
			config.Level = zap.NewAtomicLevelAt(zapLevel)
		}
	}

	if opts.Service != "" {
		config.InitialFields = map[string]interface{}{"service": opts.Service}
	}

	return config.Build()
}
