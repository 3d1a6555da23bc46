package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/timerecording/internal/application"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
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
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// serviceFailure logs a failed service call and writes the mapped error
// response. Unexpected errors are logged at error level.
func serviceFailure(r *http.Request, w http.ResponseWriter, resp responder, logger *slog.Logger, message string, err error) {
	kind := application.ErrorKind(err)
	if kind == "unexpected" {
		logger.ErrorContext(r.Context(), message, "error", err, "error_kind", kind)
	} else {
		logger.WarnContext(r.Context(), message, "error", err, "error_kind", kind)
	}
	resp.handleServiceError(r.Context(), w, err)
}

// badRequest logs an undecodable request and answers 400.
func badRequest(r *http.Request, w http.ResponseWriter, resp responder, logger *slog.Logger, err error, public error) {
	logger.WarnContext(r.Context(), "rejected malformed request", "error", err, "error_kind", "bad_request")
	resp.writeError(r.Context(), w, http.StatusBadRequest, public)
}
