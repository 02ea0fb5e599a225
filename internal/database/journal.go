// internal/database/journal.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActionRow is one applied session transition as written to session_actions.
type ActionRow struct {
	SessionID   string
	ActionIndex int
	ActorID     string
	ActionType  string
	Payload     []byte
	Revision    int64
	Timestamp   time.Time
}

// Journal appends session transitions and tracks each run's status.
type Journal struct {
	pool *pgxpool.Pool
}

func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// InsertActions writes a batch in a single transaction. Replayed rows are
// ignored so a batch can be retried after a partial failure.
func (j *Journal) InsertActions(ctx context.Context, rows []ActionRow) error {
	if len(rows) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, j.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, r := range rows {
			if err := insertActionTx(ctx, tx, r); err != nil {
				return fmt.Errorf("insertActionTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert actions: %w", err)
	}
	return nil
}

func insertActionTx(ctx context.Context, tx pgx.Tx, r ActionRow) error {
	upsertRunQ := `
		INSERT INTO session_runs (id, status, start_time)
		VALUES ($1, 'live', $2)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertRunQ, r.SessionID, r.Timestamp); err != nil {
		return err
	}

	actionInsertQ := `
		INSERT INTO session_actions (
			session_id, action_index, actor_id, action_type, action_payload, revision, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, action_index) DO NOTHING
	`
	var payload interface{}
	if len(r.Payload) > 0 {
		payload = r.Payload
	}
	if _, err := tx.Exec(ctx, actionInsertQ,
		r.SessionID, r.ActionIndex, r.ActorID, r.ActionType, payload, r.Revision, r.Timestamp,
	); err != nil {
		return err
	}

	if r.ActionType == "end_game" {
		finalizeQ := `
			UPDATE session_runs
			SET status = 'ended', end_time = $2
			WHERE id = $1 AND status = 'live'
		`
		if _, err := tx.Exec(ctx, finalizeQ, r.SessionID, r.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// MarkAbandoned flags a run that is still live. It reports whether a row
// changed.
func (j *Journal) MarkAbandoned(ctx context.Context, sessionID string) (bool, error) {
	q := `
		UPDATE session_runs
		SET status = 'abandoned', end_time = NOW()
		WHERE id = $1 AND status = 'live'
	`
	tag, err := j.pool.Exec(ctx, q, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to mark session %s abandoned: %w", sessionID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// RunStatus returns the recorded status of a session run.
func (j *Journal) RunStatus(ctx context.Context, sessionID string) (string, error) {
	var status string
	err := j.pool.QueryRow(ctx, `SELECT status FROM session_runs WHERE id = $1`, sessionID).Scan(&status)
	return status, err
}

// CountActions returns how many transitions are journaled for a session.
func (j *Journal) CountActions(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := j.pool.QueryRow(ctx, `SELECT COUNT(*) FROM session_actions WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}
