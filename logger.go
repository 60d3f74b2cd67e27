package vocabtree

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with vocabtree-specific context.
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

// WithImageID adds an image id field to the logger.
func (l *Logger) WithImageID(id uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("image_id", id),
	}
}

// WithBranching adds a branching factor field to the logger.
func (l *Logger) WithBranching(branching int) *Logger {
	return &Logger{
		Logger: l.Logger.With("branching", branching),
	}
}

// WithDepth adds a depth field to the logger.
func (l *Logger) WithDepth(depth int) *Logger {
	return &Logger{
		Logger: l.Logger.With("depth", depth),
	}
}

// LogBuild logs a tree build operation.
func (l *Logger) LogBuild(ctx context.Context, rows, words int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"rows", rows,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"rows", rows,
			"words", words,
		)
	}
}

// LogAddImage logs an image ingest operation.
func (l *Logger) LogAddImage(ctx context.Context, id uint32, descriptors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add image failed",
			"image_id", id,
			"descriptors", descriptors,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add image completed",
			"image_id", id,
			"descriptors", descriptors,
		)
	}
}

// LogScore logs a query scoring operation.
func (l *Logger) LogScore(ctx context.Context, descriptors, images int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "score failed",
			"descriptors", descriptors,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "score completed",
			"descriptors", descriptors,
			"images", images,
		)
	}
}

// LogSave logs a persistence operation.
func (l *Logger) LogSave(ctx context.Context, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "save completed",
			"filename", filename,
		)
	}
}
