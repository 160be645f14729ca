package observability

import (
	"log/slog"
	"os"

	"github.com/couchcryptid/climate-trends-analytics/internal/config"
)

// NewLogger builds the service logger: JSON or text handler at the configured
// level, with a service attribute on every record.
func NewLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "climate-trends-analytics")
}
