package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/timerecording/internal/application"
	"github.com/example/timerecording/internal/worktime"
)

// TokenSecret signs access tokens issued by factory built auth services.
const TokenSecret = "fixture-signing-secret"

// TokenIssuerName is the issuer claim of factory built tokens.
const TokenIssuerName = "timerecording-test"

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
	TokenTTL    time.Duration
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Location:    time.UTC,
		TokenTTL:    time.Hour,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation overrides the time zone used to derive "today".
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// Services bundles every application service wired to one SQLite harness.
type Services struct {
	Audit         *application.AuditService
	Auth          *application.AuthService
	Users         *application.UserService
	Registrations *application.RegistrationService
	Projects      *application.ProjectService
	TimeEntries   *application.TimeEntryService
	Absences      *application.AbsenceService
	Tokens        *application.TokenIssuer
	Denylist      *application.TokenDenylist
}

// NewServices wires the application services to the repositories of h.
func (f *ServiceFactory) NewServices(h *SQLiteHarness) Services {
	idGen := f.IDGenerator.NextFunc()
	now := f.Clock.NowFunc()
	calendar := worktime.NewCalendar(f.Location)

	audit := application.NewAuditServiceWithLogger(h.SystemLogs, idGen, now, f.Logger)
	tokens := application.NewTokenIssuer([]byte(TokenSecret), TokenIssuerName, f.TokenTTL, now)
	denylist := application.NewTokenDenylist(h.RevokedTokens, 64, f.TokenTTL)
	hasher := application.NewPasswordHasher(CheapArgon2)

	return Services{
		Audit:         audit,
		Auth:          application.NewAuthServiceWithLogger(h.Users, tokens, denylist, audit, application.VerifyPassword, now, f.Logger),
		Users:         application.NewUserServiceWithLogger(h.Users, audit, hasher, idGen, now, f.Logger),
		Registrations: application.NewRegistrationServiceWithLogger(h.Registrations, h.Users, audit, hasher, idGen, now, f.Logger),
		Projects:      application.NewProjectServiceWithLogger(h.Projects, h.Users, audit, idGen, now, f.Logger),
		TimeEntries:   application.NewTimeEntryServiceWithLogger(h.TimeEntries, h.Users, h.Projects, calendar, idGen, now, f.Logger),
		Absences:      application.NewAbsenceServiceWithLogger(h.Absences, audit, calendar, idGen, now, f.Logger),
		Tokens:        tokens,
		Denylist:      denylist,
	}
}

// SeedUser stores a user fixture and returns it.
func (h *SQLiteHarness) SeedUser(tb testing.TB, fixture UserFixture) UserFixture {
	tb.Helper()
	if err := h.Users.CreateUser(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed user %s: %v", fixture.ID, err)
	}
	return fixture
}

// SeedProject stores a project fixture and returns it.
func (h *SQLiteHarness) SeedProject(tb testing.TB, fixture ProjectFixture) ProjectFixture {
	tb.Helper()
	if err := h.Projects.CreateProject(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed project %s: %v", fixture.ID, err)
	}
	return fixture
}

// SeedTimeEntry stores a time entry fixture and returns it.
func (h *SQLiteHarness) SeedTimeEntry(tb testing.TB, fixture TimeEntryFixture) TimeEntryFixture {
	tb.Helper()
	if err := h.TimeEntries.CreateTimeEntry(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed time entry %s: %v", fixture.ID, err)
	}
	return fixture
}

// SeedAbsence stores an absence fixture and returns it.
func (h *SQLiteHarness) SeedAbsence(tb testing.TB, fixture AbsenceFixture) AbsenceFixture {
	tb.Helper()
	if err := h.Absences.CreateAbsence(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed absence %s: %v", fixture.ID, err)
	}
	return fixture
}
