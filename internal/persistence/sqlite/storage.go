package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/timerecording/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	pool *ConnectionPool

	Users         *UserRepository
	Projects      *ProjectRepository
	TimeEntries   *TimeEntryRepository
	Absences      *AbsenceRepository
	SystemLogs    *SystemLogRepository
	RevokedTokens *RevokedTokenRepository
	Registrations *RegistrationRepository
}

// Open connects to the database described by dsn. Schema migrations are not
// applied until Migrate is called.
func Open(ctx context.Context, dsn string) (*Storage, error) {
	return OpenWithConfig(ctx, ConfigFromDSN(dsn))
}

// OpenWithConfig connects using an explicit configuration.
func OpenWithConfig(ctx context.Context, cfg Config) (*Storage, error) {
	pool, err := NewConnectionPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:          pool,
		Users:         NewUserRepository(pool),
		Projects:      NewProjectRepository(pool),
		TimeEntries:   NewTimeEntryRepository(pool),
		Absences:      NewAbsenceRepository(pool),
		SystemLogs:    NewSystemLogRepository(pool),
		RevokedTokens: NewRevokedTokenRepository(pool),
		Registrations: NewRegistrationRepository(pool),
	}, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending embedded migrations.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) error {
	if err := s.migrationManager(logger).RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.Status, error) {
	return s.migrationManager(nil).Status(ctx)
}

func (s *Storage) migrationManager(logger *slog.Logger) *migration.Manager {
	scanner := migration.NewFSScanner(migrationFiles, "migrations")
	executor := migration.NewSQLiteExecutor(s.pool.db.DB)
	return migration.NewManager(scanner, executor, logger)
}
