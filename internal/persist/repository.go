// internal/persist/repository.go
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/trivia/internal/models"
)

// Repository is the typed view of a Backend used by the rest of the service.
type Repository struct {
	backend Backend
}

func NewRepository(b Backend) *Repository {
	return &Repository{backend: b}
}

// Backend returns the underlying store.
func (r *Repository) Backend() Backend {
	return r.backend
}

func (r *Repository) SaveTemplate(ctx context.Context, t *models.Template) error {
	return r.put(ctx, KindTemplate, t.ID, t.OwnerID, t.UpdatedAt, t)
}

func (r *Repository) LoadTemplate(ctx context.Context, id string) (*models.Template, error) {
	var t models.Template
	if err := r.get(ctx, KindTemplate, id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplates returns every template owned by ownerID.
func (r *Repository) ListTemplates(ctx context.Context, ownerID string) ([]*models.Template, error) {
	docs, err := r.backend.List(ctx, KindTemplate, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]*models.Template, 0, len(docs))
	for _, d := range docs {
		var t models.Template
		if err := json.Unmarshal(d.Data, &t); err != nil {
			return nil, fmt.Errorf("decode template %s: %w", d.ID, err)
		}
		out = append(out, &t)
	}
	return out, nil
}

func (r *Repository) DeleteTemplate(ctx context.Context, id string) error {
	return r.backend.Delete(ctx, KindTemplate, id)
}

func (r *Repository) SaveSession(ctx context.Context, s *models.GameSession) error {
	return r.put(ctx, KindSession, s.ID, s.OwnerID, s.UpdatedAt, s)
}

func (r *Repository) LoadSession(ctx context.Context, id string) (*models.GameSession, error) {
	var s models.GameSession
	if err := r.get(ctx, KindSession, id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SubscribeSession streams every snapshot written for session id until ctx is
// done. Undecodable documents are skipped.
func (r *Repository) SubscribeSession(ctx context.Context, id string) (<-chan *models.GameSession, error) {
	docs, err := r.backend.Subscribe(ctx, KindSession, id)
	if err != nil {
		return nil, fmt.Errorf("subscribe session %s: %w", id, err)
	}
	out := make(chan *models.GameSession, 8)
	go func() {
		defer close(out)
		for d := range docs {
			var s models.GameSession
			if err := json.Unmarshal(d.Data, &s); err != nil {
				continue
			}
			select {
			case out <- &s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *Repository) put(ctx context.Context, kind Kind, id, owner string, at time.Time, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, id, err)
	}
	d := Doc{Kind: kind, ID: id, OwnerID: owner, Data: data, UpdatedAt: at}
	if err := r.backend.Put(ctx, d); err != nil {
		return fmt.Errorf("save %s %s: %w", kind, id, err)
	}
	return nil
}

func (r *Repository) get(ctx context.Context, kind Kind, id string, v interface{}) error {
	d, err := r.backend.Get(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return nil
}
