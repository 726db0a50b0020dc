// Package ctxlog carries a slog.Logger through context.Context and builds
// the loggers used by both commands.
package ctxlog

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type key struct{}

var loggerKey = key{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the slog.Logger from a context. If no logger is
// found, it returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// ParseLevel maps debug, info, warn and error to a slog.Level. The second
// return value is false for anything else.
func ParseLevel(levelStr string) (slog.Level, bool) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// New creates a logger writing to outW. formatStr selects the json handler
// when it is "json" and the text handler otherwise. Unknown levels fall back
// to info. It does not touch the global logger.
func New(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	level, _ := ParseLevel(levelStr)
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(formatStr) == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}

	return slog.New(handler)
}
