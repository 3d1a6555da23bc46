package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/timerecording/internal/logging"
)

// Labels logged under error_kind besides the sentinel ones.
const (
	kindValidation = "validation"
	kindUnexpected = "unexpected"
)

// errorKinds pairs every sentinel error with its error_kind label. The first
// match wins.
var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrUnauthorized, "unauthorized"},
	{ErrUnauthenticated, "unauthenticated"},
	{ErrNotFound, "not_found"},
	{ErrAlreadyExists, "already_exists"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrAccountDisabled, "account_disabled"},
	{ErrSessionExpired, "session_expired"},
	{ErrSessionRevoked, "session_revoked"},
	{ErrOverlap, "overlap"},
	{ErrInvalidState, "invalid_state"},
	{ErrTrackingActive, "tracking_active"},
	{ErrTrackingInactive, "tracking_inactive"},
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// serviceLogger prefers the request scoped logger carried by ctx so service
// logs share the request id of the HTTP layer.
func serviceLogger(ctx context.Context, base *slog.Logger, service, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = defaultLogger(base)
	}

	fields := make([]any, 0, len(attrs)+4)
	fields = append(fields, "service", service)
	if operation != "" {
		fields = append(fields, "operation", operation)
	}
	return logger.With(append(fields, attrs...)...)
}

// logOutcome logs a failed operation. Business rule violations are warnings;
// anything unclassified is an error.
func logOutcome(ctx context.Context, logger *slog.Logger, err error, failure string) {
	kind := ErrorKind(err)
	level := slog.LevelWarn
	if kind == kindUnexpected {
		level = slog.LevelError
	}
	logger.Log(ctx, level, failure, "error", err, "error_kind", kind)
}

// ErrorKind returns the stable error_kind label for err, "" for nil.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return kindValidation
	}
	return kindUnexpected
}
