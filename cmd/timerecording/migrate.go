package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/example/timerecording/internal/persistence/sqlite"
	"github.com/example/timerecording/internal/persistence/sqlite/migration"
)

func newMigrateCommand() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(ctx context.Context, storage *sqlite.Storage, logger *slog.Logger) error {
				if err := storage.Migrate(ctx, logger); err != nil {
					return err
				}
				status, err := storage.MigrationStatus(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %s\n", versionLabel(status.CurrentVersion))
				return nil
			})
		},
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(ctx context.Context, storage *sqlite.Storage, _ *slog.Logger) error {
				status, err := storage.MigrationStatus(ctx)
				if err != nil {
					return err
				}
				return printMigrationStatus(cmd.OutOrStdout(), status, time.Now())
			})
		},
	})
	return migrate
}

func withStorage(cmd *cobra.Command, fn func(context.Context, *sqlite.Storage, *slog.Logger) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	storage, err := sqlite.Open(ctx, cfg.SQLiteDSN)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()
	return fn(ctx, storage, logger)
}

func printMigrationStatus(w io.Writer, status *migration.Status, now time.Time) error {
	fmt.Fprintf(w, "current version: %s\n", versionLabel(status.CurrentVersion))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, applied := range status.AppliedMigrations {
		fmt.Fprintf(tw, "%s\tapplied %s\ttook %s\n",
			applied.Version,
			humanize.RelTime(applied.AppliedAt, now, "ago", "from now"),
			applied.ExecutionTime.Round(time.Millisecond),
		)
	}
	for _, pending := range status.PendingMigrations {
		fmt.Fprintf(tw, "%s\tpending\t%s\n", pending.Version, pending.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s applied, %s pending\n",
		humanize.Comma(int64(len(status.AppliedMigrations))),
		humanize.Comma(int64(status.PendingCount)),
	)
	return nil
}

func versionLabel(version string) string {
	if version == "" {
		return "none"
	}
	return version
}
