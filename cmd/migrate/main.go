// Package main applies the embedded SQL migrations to DATABASE_URL.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideomind/unreal-dashboard/db"
	"github.com/ideomind/unreal-dashboard/db/migrator"
	"github.com/ideomind/unreal-dashboard/internal/adapters/outbound/postgres"
	"github.com/ideomind/unreal-dashboard/internal/pkg/env"
)

func main() {
	envFile := flag.String("env-file", ".env", "Optional KEY=value file loaded before reading the environment")
	list := flag.Bool("list", false, "List applied migrations and exit")
	flag.Parse()

	logger := env.NewLogger(os.Stdout, slog.LevelInfo)
	slog.SetDefault(logger)

	if err := env.Load(*envFile); err != nil {
		logger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	connStr, err := env.Require("DATABASE_URL")
	if err != nil {
		logger.Error("missing configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := postgres.DefaultDBConfig(connStr)
	cfg.MaxConns = 1
	cfg.MinConns = 0
	pool, err := postgres.OpenPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	m := migrator.New(pool, db.Migrations(), logger)

	if *list {
		applied, err := m.ListApplied(ctx)
		if err != nil {
			logger.Error("failed to list migrations", "error", err)
			os.Exit(1)
		}
		for _, name := range applied {
			logger.Info("applied", "file", name)
		}
		return
	}

	applied, err := m.ApplyAll(ctx)
	if err != nil {
		logger.Error("migration failed", "error", err, "appliedBeforeFailure", applied)
		os.Exit(1)
	}

	logger.Info("all migrations up to date", "newlyApplied", len(applied))
}
