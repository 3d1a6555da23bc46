package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/timerecording/internal/application"
	"github.com/example/timerecording/internal/testfixtures"
)

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()
	active := env.harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.WithUserEmail("anna@example.com")))
	env.harness.SeedUser(t, testfixtures.NewUserFixture(
		testfixtures.WithUserEmail("locked@example.com"),
		testfixtures.WithUserStatus(application.UserStatusLocked),
	))
	env.harness.SeedUser(t, testfixtures.NewUserFixture(
		testfixtures.WithUserEmail("gone@example.com"),
		testfixtures.WithUserStatus(application.UserStatusInactive),
	))

	cases := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{name: "unknown email", email: "nobody@example.com", password: testfixtures.DefaultPassword, want: application.ErrInvalidCredentials},
		{name: "wrong password", email: "anna@example.com", password: "wrong-password", want: application.ErrInvalidCredentials},
		{name: "empty password", email: "anna@example.com", password: "", want: application.ErrInvalidCredentials},
		{name: "locked account", email: "locked@example.com", password: testfixtures.DefaultPassword, want: application.ErrAccountDisabled},
		{name: "inactive account", email: "gone@example.com", password: testfixtures.DefaultPassword, want: application.ErrAccountDisabled},
		{name: "locked account with wrong password", email: "locked@example.com", password: "wrong-password", want: application.ErrInvalidCredentials},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.services.Auth.Authenticate(ctx, application.AuthenticateParams{Email: tc.email, Password: tc.password})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	result, err := env.services.Auth.Authenticate(ctx, application.AuthenticateParams{Email: " ANNA@example.com ", Password: testfixtures.DefaultPassword})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if result.User.ID != active.ID || result.Token == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.ExpiresAt.Equal(env.factory.Clock.Current().Add(env.factory.TokenTTL)) {
		t.Fatalf("unexpected expiry %v", result.ExpiresAt)
	}

	admin := env.harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.AsAdmin()))
	logs, err := env.services.Audit.ListLogs(ctx, admin.Principal(), 0)
	if err != nil {
		t.Fatalf("ListLogs returned error: %v", err)
	}
	counts := map[string]int{}
	for _, l := range logs {
		counts[l.Action]++
	}
	if counts[application.ActionLoginSuccess] != 1 {
		t.Fatalf("expected one LOGIN_SUCCESS record, got %v", counts)
	}
	if counts[application.ActionLoginFailed] != len(cases) {
		t.Fatalf("expected %d LOGIN_FAILED records, got %v", len(cases), counts)
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()
	admin := env.harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.AsAdmin()))
	employee := env.harness.SeedUser(t, testfixtures.NewUserFixture())

	result, err := env.services.Auth.Authenticate(ctx, application.AuthenticateParams{Email: employee.Email, Password: testfixtures.DefaultPassword})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	principal, err := env.services.Auth.ValidateToken(ctx, result.Token)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if principal.UserID != employee.ID || principal.IsManager() {
		t.Fatalf("unexpected principal %+v", principal)
	}

	// Role changes apply to tokens issued before them.
	if _, err := env.services.Users.AddRole(ctx, admin.Principal(), employee.ID, application.RoleManager); err != nil {
		t.Fatalf("AddRole returned error: %v", err)
	}
	principal, err = env.services.Auth.ValidateToken(ctx, result.Token)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if !principal.IsManager() {
		t.Fatalf("expected refreshed roles, got %v", principal.Roles)
	}

	if _, err := env.services.Users.DeactivateUser(ctx, admin.Principal(), employee.ID); err != nil {
		t.Fatalf("DeactivateUser returned error: %v", err)
	}
	if _, err := env.services.Auth.ValidateToken(ctx, result.Token); !errors.Is(err, application.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for a deactivated user, got %v", err)
	}
}

func TestAuthService_Expiry(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()
	employee := env.harness.SeedUser(t, testfixtures.NewUserFixture())

	result, err := env.services.Auth.Authenticate(ctx, application.AuthenticateParams{Email: employee.Email, Password: testfixtures.DefaultPassword})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	env.factory.Clock.Advance(env.factory.TokenTTL + time.Second)
	if _, err := env.services.Auth.ValidateToken(ctx, result.Token); !errors.Is(err, application.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if err := env.services.Auth.RevokeToken(ctx, result.Token); err != nil {
		t.Fatalf("logging out an expired token should succeed, got %v", err)
	}
}

func TestAuthService_RevokeToken(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()
	employee := env.harness.SeedUser(t, testfixtures.NewUserFixture())

	first, err := env.services.Auth.Authenticate(ctx, application.AuthenticateParams{Email: employee.Email, Password: testfixtures.DefaultPassword})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	second, err := env.services.Auth.Authenticate(ctx, application.AuthenticateParams{Email: employee.Email, Password: testfixtures.DefaultPassword})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	if err := env.services.Auth.RevokeToken(ctx, first.Token); err != nil {
		t.Fatalf("RevokeToken returned error: %v", err)
	}
	if _, err := env.services.Auth.ValidateToken(ctx, first.Token); !errors.Is(err, application.ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
	if _, err := env.services.Auth.ValidateToken(ctx, second.Token); err != nil {
		t.Fatalf("other tokens must stay valid, got %v", err)
	}

	// A fresh denylist reads the revocation back from storage.
	fresh := testfixtures.NewServiceFactory(testfixtures.WithClock(env.factory.Clock)).NewServices(env.harness)
	if _, err := fresh.Auth.ValidateToken(ctx, first.Token); !errors.Is(err, application.ErrSessionRevoked) {
		t.Fatalf("expected persisted revocation, got %v", err)
	}

	if err := env.services.Auth.RevokeToken(ctx, "garbage"); !errors.Is(err, application.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for a malformed token, got %v", err)
	}
}

func TestAuditService_ListLogsRequiresAdmin(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	employee := testfixtures.NewUserFixture()
	if _, err := env.services.Audit.ListLogs(context.Background(), employee.Principal(), 10); !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
