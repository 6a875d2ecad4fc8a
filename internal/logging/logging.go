// Package logging provides the application logger: structured slog with a
// tinted console handler.
package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Logger is the application logger. It embeds slog.Logger, so call sites use
// the usual Info/Warn/Error/Debug with key-value pairs.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a console logger at the given level ("debug", "info",
// "warn", "error"; anything else means info).
func NewLogger(level string) *Logger {
	return &Logger{slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      parseLevel(level),
		TimeFormat: time.TimeOnly,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}))}
}

// With returns a logger with the given attributes attached to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
