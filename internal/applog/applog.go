// Package applog builds the daemon's structured logger: slog with
// JSON/text output and masq-based field redaction, adapted from the
// pattern the rest of the pack's observability layer uses.
package applog

import (
	"io"
	"log/slog"
	"os"

	"github.com/m-mizutani/masq"
)

// Config selects the logger's verbosity and rendering.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // "json" or "text"
}

// New builds a logger writing to os.Stderr per cfg.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter builds a logger writing to w, useful for tests.
func NewWithWriter(cfg Config, w io.Writer) *slog.Logger {
	redactor := masq.New(
		masq.WithFieldName("token"),
		masq.WithFieldName("secret"),
		masq.WithFieldName("auth_token"),
	)

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			return redactor(groups, a)
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "trace":
		return slog.LevelDebug - 4
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

// WithJob returns a logger scoped to one worker's job, correlating every
// line for a single client session (spec §4.H: the parent logs the child
// PID; the child logs its own session under a distinct correlation id).
func WithJob(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With(slog.String("session_id", sessionID))
}
