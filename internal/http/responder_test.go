package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/example/timerecording/internal/application"
)

func TestErrorResponseFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{err: application.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized, wantCode: codeInvalidCredentials},
		{err: application.ErrAccountDisabled, wantStatus: http.StatusForbidden, wantCode: codeAccountDisabled},
		{err: fmt.Errorf("wrapped: %w", application.ErrSessionExpired), wantStatus: http.StatusUnauthorized, wantCode: codeSessionExpired},
		{err: application.ErrSessionRevoked, wantStatus: http.StatusUnauthorized, wantCode: codeSessionRevoked},
		{err: application.ErrUnauthenticated, wantStatus: http.StatusUnauthorized, wantCode: codeUnauthenticated},
		{err: application.ErrUnauthorized, wantStatus: http.StatusForbidden, wantCode: codeForbidden},
		{err: application.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: codeNotFound},
		{err: application.ErrAlreadyExists, wantStatus: http.StatusConflict, wantCode: codeAlreadyExists},
		{err: application.ErrOverlap, wantStatus: http.StatusConflict, wantCode: codeOverlap},
		{err: application.ErrInvalidState, wantStatus: http.StatusConflict, wantCode: codeInvalidState},
		{err: application.ErrTrackingActive, wantStatus: http.StatusConflict, wantCode: codeTrackingActive},
		{err: application.ErrTrackingInactive, wantStatus: http.StatusConflict, wantCode: codeTrackingInactive},
		{err: &application.ValidationError{FieldErrors: map[string]string{"name": "is required"}}, wantStatus: http.StatusUnprocessableEntity, wantCode: codeValidation},
		{err: errors.New("disk full"), wantStatus: http.StatusInternalServerError, wantCode: codeInternal},
	}

	for _, tc := range tests {
		status, body := errorResponseFor(tc.err)
		if status != tc.wantStatus || body.ErrorCode != tc.wantCode {
			t.Fatalf("%v: expected %d/%s, got %d/%s", tc.err, tc.wantStatus, tc.wantCode, status, body.ErrorCode)
		}
		if body.Message == "" {
			t.Fatalf("%v: message must not be empty", tc.err)
		}
	}
}

func TestTranslateValidationMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field   string
		message string
		want    string
	}{
		{field: "email", message: "is required", want: "E-Mail-Adresse ist erforderlich."},
		{field: "startTimes[0]", message: "must use HH:MM", want: "Ungültiges Format für Startzeit 1, erwartet wird HH:MM."},
		{field: "breaks[1].end", message: "must be after start", want: "Pausenende 2 muss nach dem Pausenbeginn liegen."},
		{field: "startTimes", message: "at least one start time is required", want: "Mindestens eine Startzeit ist erforderlich."},
		{field: "endDate", message: "must not exceed 60 days", want: "Eine Abwesenheit darf höchstens 60 Tage umfassen."},
		{field: "newPassword", message: "must be at least 8 characters", want: "Neues Passwort muss mindestens 8 Zeichen lang sein."},
		{field: "custom", message: "something else", want: "something else"},
	}

	for _, tc := range tests {
		if got := translateValidationMessage(tc.field, tc.message); got != tc.want {
			t.Fatalf("%s/%s: expected %q, got %q", tc.field, tc.message, tc.want, got)
		}
	}

	if label := fieldLabel("unknownField"); label != "unknownField" {
		t.Fatalf("unknown fields keep their name, got %q", label)
	}
}
