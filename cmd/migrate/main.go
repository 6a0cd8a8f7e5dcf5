package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"nextpage/internal/config"
	"nextpage/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logging.Error().Err(err).Msg("migrate failed")
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	var (
		command    = fs.String("command", "up", "Migration command: up, down, status, create")
		name       = fs.String("name", "", "Name for 'create' command")
		configPath = fs.String("config", "", "Path to a YAML config file")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	config.LoadEnvFiles()
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	dir := migrationsDir()

	if *command == "create" {
		if *name == "" {
			return errors.New("name is required for 'create' command")
		}
		if err := goose.Create(nil, dir, *name, "sql"); err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		logging.Info().Str("name", *name).Str("dir", dir).Msg("migration created")
		return nil
	}

	dsn := cfg.Storage.PostgresDSN
	if dsn == "" {
		return errors.New("storage.postgres_dsn (or DB_DSN) is required for migrations")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", config.RedactedDSN(dsn), err)
	}
	defer pool.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("ping %s: %w", config.RedactedDSN(dsn), err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	switch *command {
	case "up":
		if err := goose.Up(db, dir); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logging.Info().Msg("migrations applied")
	case "down":
		if err := goose.Down(db, dir); err != nil {
			return fmt.Errorf("roll back migration: %w", err)
		}
		logging.Info().Msg("migration rolled back")
	case "status":
		if err := goose.Status(db, dir); err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
	default:
		return fmt.Errorf("unknown command %q, use: up, down, status, create", *command)
	}
	return nil
}
