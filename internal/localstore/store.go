// internal/localstore/store.go
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jason-s-yu/trivia/internal/persist"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	kind       TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	owner_id   TEXT    NOT NULL,
	data       BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS documents_owner_idx ON documents (kind, owner_id);
`

// Store is the on-device document store used when the shared store cannot be
// reached, and always for guest owners.
type Store struct {
	sqlDB *sql.DB
}

// Open opens and migrates a SQLite store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Put(ctx context.Context, d persist.Doc) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO documents (kind, id, owner_id, data, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (kind, id) DO UPDATE SET
		   owner_id = excluded.owner_id,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		string(d.Kind), d.ID, d.OwnerID, d.Data, d.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put %s %s: %w", d.Kind, d.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, kind persist.Kind, id string) (persist.Doc, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT owner_id, data, updated_at FROM documents WHERE kind = ? AND id = ?`,
		string(kind), id,
	)
	d := persist.Doc{Kind: kind, ID: id}
	var updatedAt int64
	if err := row.Scan(&d.OwnerID, &d.Data, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persist.Doc{}, persist.ErrNotFound
		}
		return persist.Doc{}, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	d.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return d, nil
}

// List returns the documents of one kind owned by ownerID, newest first.
func (s *Store) List(ctx context.Context, kind persist.Kind, ownerID string) ([]persist.Doc, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, data, updated_at FROM documents
		 WHERE kind = ? AND owner_id = ?
		 ORDER BY updated_at DESC`,
		string(kind), ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []persist.Doc
	for rows.Next() {
		d := persist.Doc{Kind: kind, OwnerID: ownerID}
		var updatedAt int64
		if err := rows.Scan(&d.ID, &d.Data, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		d.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, kind persist.Kind, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM documents WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return persist.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}
