// internal/persist/backend.go
package persist

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Kind partitions documents.
type Kind string

const (
	KindTemplate Kind = "template"
	KindSession  Kind = "session"
)

// Doc is a stored JSON document. Stores overwrite whole documents; there is no
// field-level merge.
type Doc struct {
	Kind      Kind      `json:"kind"`
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocStore is durable keyed storage.
type DocStore interface {
	Put(ctx context.Context, d Doc) error
	Get(ctx context.Context, kind Kind, id string) (Doc, error)
	List(ctx context.Context, kind Kind, ownerID string) ([]Doc, error)
	Delete(ctx context.Context, kind Kind, id string) error
	Ping(ctx context.Context) error
}

// Bus fans document writes out to subscribers. Subscribe channels are closed
// when ctx is done.
type Bus interface {
	Publish(ctx context.Context, d Doc) error
	Subscribe(ctx context.Context, kind Kind, id string) (<-chan Doc, error)
}

// Backend is a DocStore whose writes are pushed to subscribers.
type Backend interface {
	DocStore
	Subscribe(ctx context.Context, kind Kind, id string) (<-chan Doc, error)
}

// Pair joins a DocStore with a Bus. Every successful Put is published.
type Pair struct {
	DocStore
	Bus Bus
}

// NewBackend returns a Backend that stores in docs and publishes on bus.
func NewBackend(docs DocStore, bus Bus) *Pair {
	return &Pair{DocStore: docs, Bus: bus}
}

func (p *Pair) Put(ctx context.Context, d Doc) error {
	if err := p.DocStore.Put(ctx, d); err != nil {
		return err
	}
	return p.Bus.Publish(ctx, d)
}

func (p *Pair) Subscribe(ctx context.Context, kind Kind, id string) (<-chan Doc, error) {
	return p.Bus.Subscribe(ctx, kind, id)
}
