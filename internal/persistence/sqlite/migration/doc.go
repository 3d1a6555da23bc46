// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migrations are read from an fs.FS (usually an embed.FS compiled into the
// binary) and must be named {version}_{description}.sql, for example
// "001_initial_schema.sql". Each migration runs in its own transaction and is
// recorded in the schema_migrations table so it is never applied twice.
//
// Example usage:
//
//	manager := migration.NewManager(
//		migration.NewFSScanner(files, "migrations"),
//		migration.NewSQLiteExecutor(db),
//		logger,
//	)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
