package vecscan

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/vecscan/model"
)

// Logger wraps slog.Logger with vecscan-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithK adds a k (result count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithEFSearch adds a beam width field to the logger.
func (l *Logger) WithEFSearch(ef int) *Logger {
	return &Logger{
		Logger: l.Logger.With("ef_search", ef),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// LogScan logs a completed scan.
func (l *Logger) LogScan(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scan failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "scan completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogRescan logs a cursor reset.
func (l *Logger) LogRescan(ctx context.Context, dimension int, nullQuery bool) {
	l.DebugContext(ctx, "cursor rescanned",
		"dimension", dimension,
		"null_query", nullQuery,
	)
}

// LogPin logs a failed page pin.
func (l *Logger) LogPin(ctx context.Context, ref model.RecordRef, err error) {
	l.ErrorContext(ctx, "pin failed",
		"ref", ref.String(),
		"error", err,
	)
}
