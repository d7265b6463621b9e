package runtime

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a JSON logger tagged with the service name. LOG_LEVEL selects
// debug, info (default), warn or error.
func NewLogger(service string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(Getenv("LOG_LEVEL", "info")),
	})
	return slog.New(h).With("service", service)
}

func levelFromEnv(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
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
