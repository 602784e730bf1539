package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how the base zap logger is constructed.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // json|console
}

// New builds a logr.Logger backed by zap, following the teacher's
// zapr-bridge idiom so packages that only know about logr.Logger (the
// CI client, the ingestion pipeline, the scheduler) can be driven by a
// zap-configured root logger.
func New(cfg Config) (logr.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return logr.Logger{}, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zl, err := zapCfg.Build()
	if err != nil {
		return logr.Logger{}, fmt.Errorf("build zap logger: %w", err)
	}

	return zapr.NewLogger(zl), nil
}

// WithFields returns a logr.Logger with the given Fields attached as
// structured key/value pairs.
func WithFields(log logr.Logger, f Fields) logr.Logger {
	return log.WithValues(f.KeysAndValues()...)
}
