package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/app"
	"github.com/ST10104037/hippocampus-site/internal/config"
	"github.com/ST10104037/hippocampus-site/internal/docstore/postgres"
)

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting dashboard",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.Store))

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate {
		if err := a.Migrate(ctx); err != nil {
			return err
		}
	}

	return a.Run(ctx)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if cfg.Store != config.StorePostgres {
		return fmt.Errorf("migrate needs STORE=postgres")
	}

	ctx := cmd.Context()

	pool, err := postgres.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	m, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	return m.Run(ctx)
}
