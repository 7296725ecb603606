// Package logger builds the service's slog logger from configuration.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/HatiCode/viewcast/cmd/viewcast/config"
)

// New returns a logger writing to stderr in cfg.LogFormat at cfg.LogLevel.
func New(cfg *config.Config) *slog.Logger {
	return NewWithWriter(os.Stderr, cfg.LogFormat, cfg.LogLevel)
}

// NewWithWriter returns a logger writing to w. Unknown formats fall back to
// text and unknown levels to info.
func NewWithWriter(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With("service", "viewcast")
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
