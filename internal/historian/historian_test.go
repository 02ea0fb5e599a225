// internal/historian/historian_test.go
package historian

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/jason-s-yu/trivia/internal/database"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSource chan cache.ActionRecord

func (c chanSource) PopAction(ctx context.Context, _ time.Duration) (*cache.ActionRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case rec := <-c:
		return &rec, nil
	}
}

type memSink struct {
	mu        sync.Mutex
	rows      []database.ActionRow
	abandoned []string
	fail      bool
}

func (m *memSink) InsertActions(_ context.Context, rows []database.ActionRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("db down")
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memSink) MarkAbandoned(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandoned = append(m.abandoned, id)
	return true, nil
}

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func record(session string, idx int, typ string) cache.ActionRecord {
	return cache.ActionRecord{SessionID: session, ActionIndex: idx, ActorID: "u1", ActionType: typ, Revision: int64(idx), Timestamp: 1700000000000}
}

func newTestService(src Source, sink Sink, cfg Config) (*Service, *clockwork.FakeClock) {
	logger, _ := test.NewNullLogger()
	clock := clockwork.NewFakeClock()
	return New(src, sink, cfg, clock, logger), clock
}

func TestFlushOnFullBatch(t *testing.T) {
	sink := &memSink{}
	s, _ := newTestService(nil, sink, Config{BatchSize: 2})
	ctx := context.Background()

	s.Add(ctx, record("s1", 1, "start_game"))
	assert.Equal(t, 0, sink.count())
	assert.Equal(t, 1, s.Pending())

	s.Add(ctx, record("s1", 2, "reveal_answer"))
	assert.Equal(t, 2, sink.count())
	assert.Equal(t, 0, s.Pending())

	row := sink.rows[0]
	assert.Equal(t, "s1", row.SessionID)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), row.Timestamp)
}

func TestFailedFlushIsRetried(t *testing.T) {
	sink := &memSink{fail: true}
	s, _ := newTestService(nil, sink, Config{BatchSize: 10})
	ctx := context.Background()

	s.Add(ctx, record("s1", 1, "start_game"))
	s.Flush(ctx)
	assert.Equal(t, 1, s.Pending(), "kept for retry")

	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()
	s.Add(ctx, record("s1", 2, "end_game"))
	s.Flush(ctx)
	assert.Equal(t, 0, s.Pending())
	require.Equal(t, 2, sink.count())
	assert.Equal(t, 1, sink.rows[0].ActionIndex, "order preserved")
}

func TestSweepInactive(t *testing.T) {
	sink := &memSink{}
	s, clock := newTestService(nil, sink, Config{Inactivity: time.Hour})
	ctx := context.Background()

	s.Add(ctx, record("idle", 1, "start_game"))
	s.Add(ctx, record("done", 1, "start_game"))
	s.Add(ctx, record("done", 2, "end_game"))
	clock.Advance(30 * time.Minute)
	s.Add(ctx, record("busy", 1, "start_game"))
	clock.Advance(45 * time.Minute)

	s.SweepInactive(ctx)
	assert.Equal(t, []string{"idle"}, sink.abandoned)

	s.SweepInactive(ctx)
	assert.Equal(t, []string{"idle"}, sink.abandoned, "each session is marked once")
}

func TestRunDrainsQueueAndFlushesOnShutdown(t *testing.T) {
	src := make(chanSource, 4)
	sink := &memSink{}
	s, _ := newTestService(src, sink, Config{BatchSize: 100})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	src <- record("s1", 1, "start_game")
	src <- record("s1", 2, "select_question")
	require.Eventually(t, func() bool { return s.Pending() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("historian did not stop")
	}
	assert.Equal(t, 2, sink.count())
}
