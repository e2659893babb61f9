// Package logging wraps slog with the bridge's default fields and
// level/format configuration.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/cyncbridge/cyncbridge/internal/config"
)

// Logger wraps slog.Logger with bridge-specific defaults, and exposes
// the Debug/Info/Warn/Error(msg, keysAndValues...) shape the bridge and
// command packages depend on via their own Logger interfaces.
type Logger struct {
	*slog.Logger
}

// New creates a Logger from logging configuration.
func New(cfg config.LoggingConfig, version string) *Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "cyncbridge"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Debug logs at debug level, matching the bridge/command Logger interfaces.
func (l *Logger) Debug(msg string, keysAndValues ...any) { l.Logger.Debug(msg, keysAndValues...) }

// Info logs at info level.
func (l *Logger) Info(msg string, keysAndValues ...any) { l.Logger.Info(msg, keysAndValues...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keysAndValues ...any) { l.Logger.Warn(msg, keysAndValues...) }

// Error logs at error level.
func (l *Logger) Error(msg string, keysAndValues ...any) { l.Logger.Error(msg, keysAndValues...) }

// Default returns a logger usable before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}
