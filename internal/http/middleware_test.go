package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/timerecording/internal/application"
)

type fakeTokenValidator struct {
	principal application.Principal
	err       error
	seen      []string
}

func (f *fakeTokenValidator) ValidateToken(ctx context.Context, token string) (application.Principal, error) {
	f.seen = append(f.seen, token)
	return f.principal, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestRequireToken(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without valid tokens", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name         string
			header       string
			cookie       *http.Cookie
			validatorErr error
			wantCode     string
		}{
			{name: "missing credentials", wantCode: codeUnauthenticated},
			{name: "non bearer scheme", header: "Basic abc", wantCode: codeUnauthenticated},
			{name: "expired token", header: "Bearer expired", validatorErr: application.ErrSessionExpired, wantCode: codeSessionExpired},
			{name: "revoked cookie", cookie: &http.Cookie{Name: accessTokenCookie, Value: "revoked"}, validatorErr: application.ErrSessionRevoked, wantCode: codeSessionRevoked},
			{name: "garbage token", header: "Bearer garbage", validatorErr: application.ErrUnauthenticated, wantCode: codeUnauthenticated},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				validator := &fakeTokenValidator{err: tc.validatorErr}
				handler := RequireToken(validator, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler should not be called when authentication fails")
				}))

				req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
				if tc.header != "" {
					req.Header.Set("Authorization", tc.header)
				}
				if tc.cookie != nil {
					req.AddCookie(tc.cookie)
				}
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, req)

				if rec.Code != http.StatusUnauthorized {
					t.Fatalf("expected 401, got %d", rec.Code)
				}
				if body := decodeError(t, rec); body.ErrorCode != tc.wantCode || body.Message == "" {
					t.Fatalf("unexpected error body: %+v", body)
				}
			})
		}
	})

	t.Run("attaches the principal to the request context", func(t *testing.T) {
		t.Parallel()

		principal := application.Principal{UserID: "user-1", Roles: []string{application.RoleEmployee}}
		validator := &fakeTokenValidator{principal: principal}

		var captured application.Principal
		handler := RequireToken(validator, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				t.Fatal("expected principal in request context")
			}
			captured = p
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
		req.Header.Set("Authorization", "bearer  valid-token ")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if captured.UserID != "user-1" {
			t.Fatalf("unexpected principal %+v", captured)
		}
		if len(validator.seen) != 1 || validator.seen[0] != "valid-token" {
			t.Fatalf("expected trimmed token, got %v", validator.seen)
		}
	})

	t.Run("lets public paths through", func(t *testing.T) {
		t.Parallel()

		validator := &fakeTokenValidator{err: errors.New("must not be called")}
		handler := RequireToken(validator, discardLogger(), PublicPaths...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
		if rec.Code != http.StatusNoContent || len(validator.seen) != 0 {
			t.Fatalf("expected public path to bypass validation, got %d", rec.Code)
		}
	})

	t.Run("maps validator failures to 500", func(t *testing.T) {
		t.Parallel()

		validator := &fakeTokenValidator{err: errors.New("database is locked")}
		handler := RequireToken(validator, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
		req.Header.Set("Authorization", "Bearer token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var fromContext bool
	handler := RequestLogger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = LoggerFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !fromContext {
		t.Fatal("expected request logger in context")
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status must pass through, got %d", rec.Code)
	}
	if id := rec.Header().Get(requestIDHeader); len(id) != 36 {
		t.Fatalf("expected generated request id, got %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "client-supplied")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if id := rec.Header().Get(requestIDHeader); id != "client-supplied" {
		t.Fatalf("expected client request id to be kept, got %q", id)
	}
}
