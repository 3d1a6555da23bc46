package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/timerecording/internal/application"
	"github.com/example/timerecording/internal/config"
	httptransport "github.com/example/timerecording/internal/http"
	"github.com/example/timerecording/internal/persistence/sqlite"
	"github.com/example/timerecording/internal/worktime"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			logger, err := newLogger(cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

// server is the fully wired API on top of an open storage.
type server struct {
	storage *sqlite.Storage
	handler http.Handler
}

func (s *server) Close() error {
	return s.storage.Close()
}

// newServer opens and migrates the database, seeds the bootstrap
// administrator when configured and wires every handler.
func newServer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}

	storage, err := sqlite.Open(ctx, cfg.SQLiteDSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx, logger); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	idGenerator := uuid.NewString
	now := time.Now
	calendar := worktime.NewCalendar(loc)

	audit := application.NewAuditServiceWithLogger(storage.SystemLogs, idGenerator, now, logger)
	tokens := application.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL, now)
	denylist := application.NewTokenDenylist(storage.RevokedTokens, cfg.DenylistSize, cfg.JWTTTL)

	authService := application.NewAuthServiceWithLogger(storage.Users, tokens, denylist, audit, application.VerifyPassword, now, logger)
	hasher := application.NewPasswordHasher(application.DefaultArgon2idParams)
	userService := application.NewUserServiceWithLogger(storage.Users, audit, hasher, idGenerator, now, logger)
	registrationService := application.NewRegistrationServiceWithLogger(storage.Registrations, storage.Users, audit, hasher, idGenerator, now, logger)
	projectService := application.NewProjectServiceWithLogger(storage.Projects, storage.Users, audit, idGenerator, now, logger)
	timeEntryService := application.NewTimeEntryServiceWithLogger(storage.TimeEntries, storage.Users, storage.Projects, calendar, idGenerator, now, logger)
	absenceService := application.NewAbsenceServiceWithLogger(storage.Absences, audit, calendar, idGenerator, now, logger)

	if cfg.AdminEmail != "" {
		created, err := userService.BootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("bootstrap administrator: %w", err)
		}
		if created {
			logger.InfoContext(ctx, "bootstrap administrator created", "email", cfg.AdminEmail)
		}
	}

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:          httptransport.NewAuthHandler(authService, userService, logger),
		Users:         httptransport.NewUserHandler(userService, logger),
		Registrations: httptransport.NewRegistrationHandler(registrationService, logger),
		Projects:      httptransport.NewProjectHandler(projectService, logger),
		TimeEntries:   httptransport.NewTimeEntryHandler(timeEntryService, logger),
		Absences:      httptransport.NewAbsenceHandler(absenceService, logger),
		System:        httptransport.NewSystemHandler(audit, storage, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RequireToken(authService, logger, httptransport.PublicPaths...),
		},
	})

	return &server{storage: storage, handler: handler}, nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := newServer(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "failed to start", "error", err)
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("time recording API listening", "addr", httpServer.Addr, "timezone", cfg.Timezone)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}
