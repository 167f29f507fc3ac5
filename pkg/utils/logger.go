package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogPolicy controls the root log level and which component loggers are
// held at warn so their per-call chatter stays out of the operator's view.
type LogPolicy struct {
	Level         string
	Debug         bool
	QuietBackends []string
}

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewLoggerWithPolicy builds a logger from a LogPolicy. An empty level keeps
// the NewLogger default for the debug flag.
func NewLoggerWithPolicy(p LogPolicy) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if p.Debug {
		cfg = zap.NewDevelopmentConfig()
	}
	if p.Level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(p.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", p.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// Component returns a named sub-logger. Components listed as quiet in the
// policy only emit warnings and above.
func (p LogPolicy) Component(root *zap.Logger, name string) *zap.Logger {
	l := root.Named(name)
	for _, q := range p.QuietBackends {
		if strings.EqualFold(q, name) {
			return l.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
		}
	}
	return l
}
