package utils

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// NewLogger creates the application logger: colorized output on a terminal,
// controlled by LOG_LEVEL (debug, info, warn, error; default info).
func NewLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))
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
