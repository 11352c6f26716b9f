package mmapio

import (
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
)

// Logger wraps slog.Logger with mmapio-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithMode adds a mode field to the logger.
func (l *Logger) WithMode(mode Mode) *Logger {
	return &Logger{
		Logger: l.Logger.With("mode", mode.String()),
	}
}

// WithSize adds a humanized size field to the logger.
func (l *Logger) WithSize(bytes int64) *Logger {
	return &Logger{
		Logger: l.Logger.With("size", humanize.IBytes(uint64(bytes))),
	}
}

// LogFlush logs a flush operation.
func (l *Logger) LogFlush(path string, bytes int64, err error) {
	if err != nil {
		l.Error("flush failed",
			"path", path,
			"bytes", humanize.IBytes(uint64(bytes)),
			"error", err,
		)
	} else {
		l.Debug("flush completed",
			"path", path,
			"bytes", humanize.IBytes(uint64(bytes)),
		)
	}
}

// LogResize logs a resize operation.
func (l *Logger) LogResize(path string, oldSize, newSize int64, err error) {
	if err != nil {
		l.Error("resize failed",
			"path", path,
			"old_size", humanize.IBytes(uint64(oldSize)),
			"new_size", humanize.IBytes(uint64(newSize)),
			"error", err,
		)
	} else {
		l.Info("resize completed",
			"path", path,
			"old_size", humanize.IBytes(uint64(oldSize)),
			"new_size", humanize.IBytes(uint64(newSize)),
		)
	}
}
