package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"drone-dispatch/config"
)

// Setup installs the process-wide slog logger described by cfg and returns it.
func Setup(appName string, cfg config.LogConfig) *slog.Logger {
	logger := New(os.Stdout, cfg).With(slog.String("app", appName))
	slog.SetDefault(logger)
	return logger
}

func New(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel maps debug, info, warn and error onto slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
