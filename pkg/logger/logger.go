package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Format is "console" or "json"; an unknown
// level falls back to info rather than failing the run.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	// Keep stdout free for the live report; logs go to stderr.
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build()
}

// WithSession returns a logger scoped to one session index.
func WithSession(l *zap.Logger, index int) *zap.Logger {
	return l.With(zap.Int("session", index))
}
