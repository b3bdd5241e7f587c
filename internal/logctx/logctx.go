package logctx

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	taskKey   contextKey = "task"
)

// WithLogger returns a new context with the provided slog.Logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the slog.Logger from the context, or returns slog.Default() if not found.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}

	return slog.Default()
}

// WithTask tags the context with the name of the task being run.
func WithTask(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, taskKey, name)
}

// TaskFromContext returns the task name set by WithTask, or "".
func TaskFromContext(ctx context.Context) string {
	name, _ := ctx.Value(taskKey).(string)

	return name
}
