package http

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/example/attendance-tracker/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger resolves the request-scoped logger and scopes it to one
// handler operation. When the request went through the chi mux the
// matched route pattern is tagged as well, so log lines group by
// endpoint rather than by concrete URL.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = fallback
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"handler", handlerName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if route := chi.RouteContext(ctx); route != nil {
		if pattern := route.RoutePattern(); pattern != "" {
			pairs = append(pairs, "route", pattern)
		}
	}
	return logger.With(append(pairs, attrs...)...)
}
