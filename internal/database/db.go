// internal/database/db.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a connection pool against dsn and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	kind       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	owner_id   TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS documents_owner_idx ON documents (kind, owner_id);

CREATE TABLE IF NOT EXISTS session_runs (
	id         TEXT        PRIMARY KEY,
	status     TEXT        NOT NULL,
	start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	end_time   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS session_actions (
	session_id     TEXT        NOT NULL REFERENCES session_runs (id),
	action_index   INTEGER     NOT NULL,
	actor_id       TEXT        NOT NULL,
	action_type    TEXT        NOT NULL,
	action_payload JSONB,
	revision       BIGINT      NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, action_index)
);
`

// Migrate creates the tables used by the service if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
