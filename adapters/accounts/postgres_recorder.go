package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layer-3/vaultauth/ports"
)

// DBTX is the subset of pgxpool.Pool the recorder needs
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRecorder upserts wallet accounts on login.
// The wallet_accounts table belongs to the product schema:
//
//	address TEXT PRIMARY KEY, first_seen_at TIMESTAMPTZ, last_login_at TIMESTAMPTZ, login_count BIGINT
type PostgresRecorder struct {
	db DBTX
}

// NewPostgresRecorder creates a recorder over a pgx pool or transaction
func NewPostgresRecorder(db DBTX) ports.AccountRecorder {
	return &PostgresRecorder{db: db}
}

const recordLoginQuery = `
	INSERT INTO wallet_accounts (address, first_seen_at, last_login_at, login_count)
	VALUES ($1, $2, $2, 1)
	ON CONFLICT (address)
	DO UPDATE SET
		last_login_at = EXCLUDED.last_login_at,
		login_count   = wallet_accounts.login_count + 1
`

// RecordLogin registers a successful login for address
func (r *PostgresRecorder) RecordLogin(ctx context.Context, address string, at time.Time) error {
	if _, err := r.db.Exec(ctx, recordLoginQuery, address, at.UTC()); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// NewPool opens a pgx pool and checks connectivity
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return pool, nil
}
