package app

import (
	"io"
	"log/slog"

	"github.com/specialistvlad/stepgrid/internal/config"
)

// newLogger builds the process logger. Level and format come from cfg when
// set there, then from the pipeline block, then default to info and text.
// The global logger is never touched.
func newLogger(outW io.Writer, cfg *Config, engine config.Engine) *slog.Logger {
	levelStr := firstNonEmpty(cfg.LogLevel, engine.LogLevel, "info")
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if firstNonEmpty(cfg.LogFormat, engine.LogFormat, "text") == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
