package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/timerecording/internal/config"
	"github.com/example/timerecording/internal/logging"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "timerecording",
		Short: "Working time and absence recording backend",
		Long: `timerecording serves the time recording REST API backed by SQLite.

Configuration is read from the TOML file given with --config (or
TIMEREC_CONFIG) and overridden by TIMEREC_* environment variables.
TIMEREC_JWT_SECRET is always required.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "path to a TOML configuration file")

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newHoursCommand())
	return root
}

// loadConfig resolves the configuration for cmd. The --config flag takes
// precedence over TIMEREC_CONFIG.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}
	return config.LoadFile(path)
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel, w)
	if err != nil {
		return nil, err
	}
	return logger.With("service", "timerecording"), nil
}
