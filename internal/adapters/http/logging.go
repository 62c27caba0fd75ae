package http

import (
	"context"
	"log/slog"
)

const serviceName = "portal-security"

func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}

// logHTTPOperationError records a failed request outcome. Server faults log
// at error level, client-caused failures at warn.
func logHTTPOperationError(ctx context.Context, operation string, statusCode int, code, message string, err error) {
	level := slog.LevelWarn
	if statusCode >= 500 {
		level = slog.LevelError
	}
	attrs := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"message", message,
		"request_id", requestIDFromContext(ctx),
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	httpLogger().Log(ctx, level, "request failed", attrs...)
}
