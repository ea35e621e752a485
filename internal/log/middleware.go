package log

import (
	"context"
	"log/slog"
)

// LevelForStatus picks the log level of a completed request.
func LevelForStatus(statusCode int) slog.Level {
	switch {
	case statusCode >= 500:
		return slog.LevelError
	case statusCode >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// LogPanel records which state a panel request ended in.
func LogPanel(ctx context.Context, table, state string, leaves int) {
	FromContext(ctx).WithComponent(ComponentPanel).InfoContext(ctx, "Panel evaluated",
		NewFields().WithTable(table).With(FieldState, state).With(FieldLeaves, leaves)...)
}

// LogError logs err with the operation that failed.
func LogError(ctx context.Context, msg string, err error, component, operation string, fields Fields) {
	all := append(fields.WithError(err).WithOperation(operation), FieldComponent, component)
	FromContext(ctx).ErrorContext(ctx, msg, all...)
}
