package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Verbose bool
	JSON    bool
	// Level overrides the info/debug choice made by Verbose when set.
	Level string
}

func New(opts Options) (*zap.Logger, error) {
	level, err := resolveLevel(opts)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if !opts.JSON {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeCaller = nil
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	}

	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = level > zapcore.DebugLevel

	if opts.JSON {
		cfg.Encoding = "json"
	} else {
		cfg.Encoding = "console"
	}

	return cfg.Build()
}

func resolveLevel(opts Options) (zapcore.Level, error) {
	if value := strings.TrimSpace(opts.Level); value != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(value))
		if err != nil {
			return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		return level, nil
	}
	if opts.Verbose {
		return zapcore.DebugLevel, nil
	}
	return zapcore.InfoLevel, nil
}
