package application_test

import (
	"errors"
	"testing"

	"github.com/example/timerecording/internal/application"
	"github.com/example/timerecording/internal/testfixtures"
)

type serviceEnv struct {
	harness  *testfixtures.SQLiteHarness
	factory  *testfixtures.ServiceFactory
	services testfixtures.Services
}

func newServiceEnv(t *testing.T, opts ...testfixtures.ServiceFactoryOption) serviceEnv {
	t.Helper()
	harness := testfixtures.NewSQLiteHarness(t)
	factory := testfixtures.NewServiceFactory(opts...)
	return serviceEnv{harness: harness, factory: factory, services: factory.NewServices(harness)}
}

func requireFieldError(t *testing.T, err error, field, message string) {
	t.Helper()
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := vErr.FieldErrors[field]; got != message {
		t.Fatalf("expected %s error %q, got %q (all: %v)", field, message, got, vErr.FieldErrors)
	}
}

func ptr[T any](v T) *T {
	return &v
}
