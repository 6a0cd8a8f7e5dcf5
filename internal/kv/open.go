package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Options struct {
	Driver      string
	BadgerPath  string
	PostgresDSN string
	// Timeout bounds each Postgres statement and the initial ping.
	Timeout time.Duration
}

// Open returns the backend selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Backend, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	switch opts.Driver {
	case DriverBadger:
		b, err := OpenBadger(opts.BadgerPath)
		if err != nil {
			return nil, err
		}
		return b, nil
	case DriverPostgres:
		pool, err := pgxpool.New(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("create db pool: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		return NewPostgres(pool, opts.Timeout), nil
	case DriverMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
