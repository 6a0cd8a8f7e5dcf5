package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores blobs in the kv_store table created by cmd/migrate.
type Postgres struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgres(db *pgxpool.Pool, timeout time.Duration) *Postgres {
	return &Postgres{db: db, timeout: timeout}
}

func (p *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	const getSQL = `SELECT value FROM kv_store WHERE key = $1`

	timeoutCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	var value []byte
	if err := p.db.QueryRow(timeoutCtx, getSQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres get %q: %w", key, err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	const upsertSQL = `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	timeoutCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	if _, err := p.db.Exec(timeoutCtx, upsertSQL, key, value); err != nil {
		return fmt.Errorf("postgres set %q: %w", key, err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	timeoutCtx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.db.Ping(timeoutCtx)
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
