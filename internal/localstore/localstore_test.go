// internal/localstore/localstore_test.go
package localstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jason-s-yu/trivia/internal/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trivia.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestStoreCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, persist.Doc{Kind: persist.KindTemplate, ID: "t1", OwnerID: "u1", Data: []byte(`{"v":1}`), UpdatedAt: at}))
	require.NoError(t, s.Put(ctx, persist.Doc{Kind: persist.KindTemplate, ID: "t1", OwnerID: "u1", Data: []byte(`{"v":2}`), UpdatedAt: at.Add(time.Minute)}))
	require.NoError(t, s.Put(ctx, persist.Doc{Kind: persist.KindTemplate, ID: "t2", OwnerID: "u1", Data: []byte(`{"v":3}`), UpdatedAt: at}))
	require.NoError(t, s.Put(ctx, persist.Doc{Kind: persist.KindTemplate, ID: "t3", OwnerID: "u2", Data: []byte(`{}`), UpdatedAt: at}))

	d, err := s.Get(ctx, persist.KindTemplate, "t1")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(d.Data))
	assert.Equal(t, at.Add(time.Minute), d.UpdatedAt)

	docs, err := s.List(ctx, persist.KindTemplate, "u1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "t1", docs[0].ID, "newest first")

	_, err = s.Get(ctx, persist.KindSession, "t1")
	assert.ErrorIs(t, err, persist.ErrNotFound)

	require.NoError(t, s.Delete(ctx, persist.KindTemplate, "t1"))
	assert.ErrorIs(t, s.Delete(ctx, persist.KindTemplate, "t1"), persist.ErrNotFound)
	assert.NoError(t, s.Ping(ctx))
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trivia.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), persist.Doc{Kind: persist.KindSession, ID: "s1", OwnerID: "guest:1", Data: []byte(`{}`)}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	d, err := s.Get(context.Background(), persist.KindSession, "s1")
	require.NoError(t, err)
	assert.Equal(t, "guest:1", d.OwnerID)
}

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	a, err := b.Subscribe(ctx, persist.KindSession, "s1")
	require.NoError(t, err)
	c, err := b.Subscribe(ctx, persist.KindSession, "s1")
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, persist.KindSession, "s2")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Subscribers(persist.KindSession, "s1"))

	require.NoError(t, b.Publish(ctx, persist.Doc{Kind: persist.KindSession, ID: "s1", Data: []byte(`x`)}))
	assert.Equal(t, []byte(`x`), (<-a).Data)
	assert.Equal(t, []byte(`x`), (<-c).Data)
	select {
	case <-other:
		t.Fatal("unrelated subscriber received a write")
	default:
	}

	cancel()
	for range a {
	}
	require.Eventually(t, func() bool { return b.Subscribers(persist.KindSession, "s1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestBackendPairPublishesWrites(t *testing.T) {
	backend := persist.NewBackend(openTestStore(t), NewBroker())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	feed, err := backend.Subscribe(ctx, persist.KindSession, "s1")
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, persist.Doc{Kind: persist.KindSession, ID: "s1", OwnerID: "u", Data: []byte(`{}`)}))
	got := <-feed
	assert.Equal(t, "s1", got.ID)
}
