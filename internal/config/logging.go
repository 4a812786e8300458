package config

import (
	"io"
	"log/slog"
)

// NewLogger builds the slog logger described by s, writing to w.
func NewLogger(s LogSettings, w io.Writer) *slog.Logger {
	var level slog.Level
	switch s.Level {
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
	if s.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
