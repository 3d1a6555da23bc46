package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/timerecording/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)))

	serviceLogger(ctx, slog.New(slog.NewTextHandler(&base, nil)), "AbsenceService", "CreateAbsence", "user_id", "u-1").Info("done")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay unused, got %q", base.String())
	}
	out := scoped.String()
	for _, want := range []string{"service=AbsenceService", "operation=CreateAbsence", "user_id=u-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":                  nil,
		"unauthorized":      ErrUnauthorized,
		"unauthenticated":   ErrUnauthenticated,
		"not_found":         fmt.Errorf("wrapped: %w", ErrNotFound),
		"already_exists":    ErrAlreadyExists,
		"overlap":           ErrOverlap,
		"invalid_state":     ErrInvalidState,
		"tracking_active":   ErrTrackingActive,
		"tracking_inactive": ErrTrackingInactive,
		"session_revoked":   ErrSessionRevoked,
		"validation":        newValidationError("name", "required"),
		"unexpected":        errors.New("boom"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Errorf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestLogOutcomeLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logOutcome(context.Background(), logger, ErrOverlap, "failed to create absence")
	if out := buf.String(); !strings.Contains(out, "level=WARN") || !strings.Contains(out, "error_kind=overlap") {
		t.Fatalf("expected warning for business failure, got %q", out)
	}

	buf.Reset()
	logOutcome(context.Background(), logger, errors.New("disk I/O error"), "failed to create absence")
	if out := buf.String(); !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "error_kind=unexpected") {
		t.Fatalf("expected error for unexpected failure, got %q", out)
	}
}
