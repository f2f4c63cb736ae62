// Package logging builds the zap logger used across testloop.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger configuration.
type Options struct {
	// Verbosity: 0 logs warnings and errors, 1 adds info, 2+ adds debug.
	Verbosity int

	// File, when set, receives logs instead of stderr.
	File string

	// JSON selects the production JSON encoder.
	JSON bool
}

// New builds a logger from opts.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.JSON {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Development = false
	}
	cfg.Level = zap.NewAtomicLevelAt(Level(opts.Verbosity))
	cfg.DisableStacktrace = opts.Verbosity < 3
	cfg.InitialFields = map[string]interface{}{
		"service": "testloop",
	}

	if opts.File != "" {
		cfg.OutputPaths = []string{opts.File}
		cfg.ErrorOutputPaths = []string{opts.File}
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// Level maps a verbosity count to a zap level.
func Level(verbosity int) zapcore.Level {
	switch {
	case verbosity <= 0:
		return zapcore.WarnLevel
	case verbosity == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
