// internal/localstore/broker.go
package localstore

import (
	"context"
	"sync"

	"github.com/jason-s-yu/trivia/internal/persist"
)

// Broker fans document writes out to subscribers inside this process.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan persist.Doc]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan persist.Doc]struct{}),
	}
}

func topic(kind persist.Kind, id string) string {
	return string(kind) + "/" + id
}

// Subscribe returns a channel that receives every write to the document. The
// channel is closed when ctx is done.
func (b *Broker) Subscribe(ctx context.Context, kind persist.Kind, id string) (<-chan persist.Doc, error) {
	key := topic(kind, id)
	ch := make(chan persist.Doc, 16)
	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[chan persist.Doc]struct{})
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(key, ch)
	}()
	return ch, nil
}

func (b *Broker) unsubscribe(key string, ch chan persist.Doc) {
	b.mu.Lock()
	delete(b.subs[key], ch)
	if len(b.subs[key]) == 0 {
		delete(b.subs, key)
	}
	close(ch)
	b.mu.Unlock()
}

// Publish sends d to all subscribers of its document.
func (b *Broker) Publish(_ context.Context, d persist.Doc) error {
	b.mu.RLock()
	for ch := range b.subs[topic(d.Kind, d.ID)] {
		select {
		case ch <- d:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
	return nil
}

// Subscribers returns the number of live subscriptions to a document.
func (b *Broker) Subscribers(kind persist.Kind, id string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic(kind, id)])
}
