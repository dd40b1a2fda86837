package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/kirinyoku/fairtix/docs"
	"github.com/kirinyoku/fairtix/internal/app"
	"github.com/kirinyoku/fairtix/internal/config"
)

// @title FairTix API
// @version 1.0
// @description Anti-scalping ticket lifecycle service: capped resale, lotteries, signed redemption.
// @host localhost:8080
// @BasePath /
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:           "fairtix",
		Short:         "Anti-scalping ticket lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		serveCmd(logger),
		migrateCmd(logger),
		keygenCmd(),
		signCmd(),
		signRequestCmd(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serveCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			return application.Run(cmd.Context())
		},
	}
}

func migrateCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if cfg.Store.Backend != config.BackendPostgres {
				logger.Info("nothing to migrate", "backend", cfg.Store.Backend)
				return nil
			}

			store, err := app.OpenPostgres(cmd.Context(), cfg.Postgres, cfg.Store.LockTimeout)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info("schema applied")
			return nil
		},
	}
}
