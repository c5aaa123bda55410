// Package logger builds the process-wide slog logger from LogConfig.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"geokd/pkg/config"
)

var defaultLogger *slog.Logger

// Setup installs a logger writing to stderr.
func Setup(cfg config.LogConfig) *slog.Logger {
	defaultLogger = New(os.Stderr, cfg)
	return defaultLogger
}

// New builds a text or json handler at the configured level.
func New(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Discard returns a logger that drops everything, for tests and quiet shells.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// L returns the logger installed by Setup, or a default one.
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup(config.Default().Log)
	}
	return defaultLogger
}
