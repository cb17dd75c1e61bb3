package obs

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a JSON slog.Logger at the given level. Production
// deployments ship stdout to the log pipeline, so text output is only used
// in development.
func NewLogger(level, env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromString(level)}
	if env == "development" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
