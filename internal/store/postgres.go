// Package store persists drivers, trips, duty logs, and rest stops in
// Postgres, and owns the schema migrations that create them.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lohun/driverlog/internal/config"
	"github.com/lohun/driverlog/internal/setup"
)

const probeName = "postgres"

// querier is the subset of pgxpool.Pool the stores use.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool wraps a pgx connection pool.
type Pool struct {
	*pgxpool.Pool
}

// Connect opens a pgx pool from cfg. No connection is established until the
// pool is first used; PingCheck verifies reachability on demand.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DB, cfg.SSLMode,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// dbPinger abstracts the pool methods used in Probe so tests can inject a
// fake without standing up a real database.
type dbPinger interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PingCheck verifies connectivity only. The setup database phase uses it
// because the schema may not exist yet.
func (p *Pool) PingCheck(ctx context.Context) error {
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Probe pings the server and verifies the schema_migrations table exists in
// the public schema, i.e. that setup has migrated the database at least once.
func (p *Pool) Probe(ctx context.Context) setup.ProbeResult {
	return probeDB(ctx, p.Pool)
}

func probeDB(ctx context.Context, db dbPinger) setup.ProbeResult {
	start := time.Now()

	err := func() error {
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("ping: %w", err)
		}

		var exists int
		row := db.QueryRow(ctx,
			"SELECT 1 FROM information_schema.tables WHERE table_schema='public' AND table_name='schema_migrations'",
		)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("schema_migrations table not found: %w", err)
		}
		return nil
	}()

	latency := time.Since(start).Milliseconds()

	if err != nil {
		return setup.ProbeResult{Name: probeName, OK: false, LatencyMs: latency, Error: err.Error()}
	}
	return setup.ProbeResult{Name: probeName, OK: true, LatencyMs: latency}
}
