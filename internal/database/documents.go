// internal/database/documents.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/trivia/internal/persist"
)

// Store keeps templates and session snapshots as JSONB documents.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Put overwrites the whole document.
func (s *Store) Put(ctx context.Context, d persist.Doc) error {
	q := `
		INSERT INTO documents (kind, id, owner_id, data, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, id)
		DO UPDATE SET owner_id = EXCLUDED.owner_id, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, string(d.Kind), d.ID, d.OwnerID, d.Data, d.UpdatedAt)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", d.Kind, d.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, kind persist.Kind, id string) (persist.Doc, error) {
	d := persist.Doc{Kind: kind, ID: id}
	q := `SELECT owner_id, data, updated_at FROM documents WHERE kind = $1 AND id = $2`
	err := s.pool.QueryRow(ctx, q, string(kind), id).Scan(&d.OwnerID, &d.Data, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persist.Doc{}, persist.ErrNotFound
	}
	if err != nil {
		return persist.Doc{}, fmt.Errorf("failed to get %s %s: %w", kind, id, err)
	}
	return d, nil
}

// List returns the documents of one kind owned by ownerID, newest first.
func (s *Store) List(ctx context.Context, kind persist.Kind, ownerID string) ([]persist.Doc, error) {
	q := `
		SELECT id, data, updated_at
		FROM documents
		WHERE kind = $1 AND owner_id = $2
		ORDER BY updated_at DESC
	`
	rows, err := s.pool.Query(ctx, q, string(kind), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []persist.Doc
	for rows.Next() {
		d := persist.Doc{Kind: kind, OwnerID: ownerID}
		if err := rows.Scan(&d.ID, &d.Data, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, kind persist.Kind, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return persist.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
