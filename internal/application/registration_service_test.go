package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/timerecording/internal/application"
	"github.com/example/timerecording/internal/testfixtures"
)

func registrationInput(email string) application.RegistrationInput {
	return application.RegistrationInput{
		FirstName: " Lena ",
		LastName:  "Fischer",
		Email:     email,
		Password:  "sunny-meadow-9",
	}
}

func TestRegistrationService_Submit(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()
	manager := env.harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.AsManager(), testfixtures.WithUserName("Maria", "Lang")))
	employee := env.harness.SeedUser(t, testfixtures.NewUserFixture())

	t.Run("stores a pending request", func(t *testing.T) {
		input := registrationInput("Lena.Fischer@Example.com")
		input.ManagerID = &manager.ID
		request, err := env.services.Registrations.Submit(ctx, input)
		if err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
		if request.Email != "lena.fischer@example.com" || request.FirstName != "Lena" {
			t.Fatalf("input not normalized: %+v", request)
		}
		if request.Status != application.RegistrationPending || request.RequestedRole != application.RoleEmployee {
			t.Fatalf("unexpected defaults: %+v", request)
		}
		if request.ManagerName != "Maria Lang" {
			t.Fatalf("expected manager name, got %q", request.ManagerName)
		}
	})

	t.Run("second open request for the address", func(t *testing.T) {
		_, err := env.services.Registrations.Submit(ctx, registrationInput("lena.fischer@example.com"))
		if !errors.Is(err, application.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("address of an existing account", func(t *testing.T) {
		_, err := env.services.Registrations.Submit(ctx, registrationInput(employee.Email))
		if !errors.Is(err, application.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		input := registrationInput("someone@example.com")
		input.Password = "short"
		_, err := env.services.Registrations.Submit(ctx, input)
		requireFieldError(t, err, "password", "must be at least 8 characters")

		input = registrationInput("someone@example.com")
		input.RequestedRole = "admin"
		_, err = env.services.Registrations.Submit(ctx, input)
		requireFieldError(t, err, "requestedRole", "cannot be requested")

		input.RequestedRole = "intern"
		_, err = env.services.Registrations.Submit(ctx, input)
		requireFieldError(t, err, "requestedRole", "unknown role")

		input = registrationInput("someone@example.com")
		input.ManagerID = &employee.ID
		_, err = env.services.Registrations.Submit(ctx, input)
		requireFieldError(t, err, "managerId", "must hold the MANAGER or ADMIN role")

		input.ManagerID = ptr("missing")
		_, err = env.services.Registrations.Submit(ctx, input)
		requireFieldError(t, err, "managerId", "manager does not exist")
	})
}

func TestRegistrationService_Approve(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()
	admin := env.harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.AsAdmin()))
	manager := env.harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.AsManager()))

	input := registrationInput("lena.fischer@example.com")
	input.RequestedRole = "manager"
	request, err := env.services.Registrations.Submit(ctx, input)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if _, err := env.services.Registrations.Approve(ctx, manager.Principal(), request.ID); !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for a manager, got %v", err)
	}

	user, err := env.services.Registrations.Approve(ctx, admin.Principal(), request.ID)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if user.Email != "lena.fischer@example.com" || user.Status != application.UserStatusActive || user.PrimaryRole() != application.RoleManager {
		t.Fatalf("unexpected account: %+v", user)
	}

	// The password chosen at sign up is the login password.
	if _, err := env.services.Auth.Authenticate(ctx, application.AuthenticateParams{Email: user.Email, Password: "sunny-meadow-9"}); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	if _, err := env.services.Registrations.Approve(ctx, admin.Principal(), request.ID); !errors.Is(err, application.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second approval, got %v", err)
	}
	if err := env.services.Registrations.Reject(ctx, admin.Principal(), request.ID); !errors.Is(err, application.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState when rejecting an approved request, got %v", err)
	}

	pending, err := env.services.Registrations.ListPending(ctx, admin.Principal())
	if err != nil {
		t.Fatalf("ListPending returned error: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending requests, got %+v", pending)
	}

	logs, err := env.services.Audit.ListLogs(ctx, admin.Principal(), 0)
	if err != nil {
		t.Fatalf("ListLogs returned error: %v", err)
	}
	var approved bool
	for _, entry := range logs {
		if entry.Action == application.ActionRegistrationApproved && entry.TargetID == user.ID && entry.UserID == admin.ID {
			approved = true
		}
	}
	if !approved {
		t.Fatalf("expected approval audit record, got %+v", logs)
	}
}

func TestRegistrationService_RejectAllowsNewRequest(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()
	admin := env.harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.AsAdmin()))

	first, err := env.services.Registrations.Submit(ctx, registrationInput("lena.fischer@example.com"))
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if err := env.services.Registrations.Reject(ctx, admin.Principal(), first.ID); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if err := env.services.Registrations.Reject(ctx, admin.Principal(), first.ID); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a deleted request, got %v", err)
	}

	second, err := env.services.Registrations.Submit(ctx, registrationInput("lena.fischer@example.com"))
	if err != nil {
		t.Fatalf("Submit after rejection returned error: %v", err)
	}
	pending, err := env.services.Registrations.ListPending(ctx, admin.Principal())
	if err != nil {
		t.Fatalf("ListPending returned error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID || pending[0].ManagerName != "" {
		t.Fatalf("unexpected pending requests: %+v", pending)
	}
	if _, err := env.services.Registrations.ListPending(ctx, application.Principal{UserID: "someone", Roles: []string{application.RoleEmployee}}); !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for an employee, got %v", err)
	}
}
