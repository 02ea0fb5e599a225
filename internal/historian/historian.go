// internal/historian/historian.go is an asynchronous historian that pops
// session transitions from the Redis queue and persists them to PostgreSQL.
package historian

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/jason-s-yu/trivia/internal/database"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Source yields queued action records. PopAction returns nil, nil when the
// queue stayed empty for timeout.
type Source interface {
	PopAction(ctx context.Context, timeout time.Duration) (*cache.ActionRecord, error)
}

// Sink is the durable journal.
type Sink interface {
	InsertActions(ctx context.Context, rows []database.ActionRow) error
	MarkAbandoned(ctx context.Context, sessionID string) (bool, error)
}

// Config tunes batching and abandonment.
type Config struct {
	BatchSize  int
	FlushEvery time.Duration
	PopTimeout time.Duration
	// Inactivity is how long a session may go without a transition before its
	// run is marked abandoned.
	Inactivity time.Duration
	CheckEvery time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 2 * time.Second
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = 3 * time.Second
	}
	if c.Inactivity <= 0 {
		c.Inactivity = 6 * time.Hour
	}
	if c.CheckEvery <= 0 {
		c.CheckEvery = time.Minute
	}
	return c
}

// Service drains Source into Sink.
type Service struct {
	src    Source
	sink   Sink
	cfg    Config
	clock  clockwork.Clock
	logger logrus.FieldLogger

	mu           sync.Mutex
	batch        []database.ActionRow
	lastActivity map[string]time.Time
}

func New(src Source, sink Sink, cfg Config, clock clockwork.Clock, logger logrus.FieldLogger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg = cfg.withDefaults()
	return &Service{
		src:          src,
		sink:         sink,
		cfg:          cfg,
		clock:        clock,
		logger:       logger,
		batch:        make([]database.ActionRow, 0, cfg.BatchSize),
		lastActivity: make(map[string]time.Time),
	}
}

// Run starts the read, flush and inactivity loops and blocks until ctx is
// done. Whatever is still batched is flushed before returning.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.every(gctx, s.cfg.FlushEvery, func() { s.Flush(gctx) }) })
	g.Go(func() error { return s.every(gctx, s.cfg.CheckEvery, func() { s.SweepInactive(gctx) }) })
	s.logger.Info("historian started")
	err := g.Wait()

	fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(fctx)
	s.logger.Info("historian shutting down")
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		rec, err := s.src.PopAction(ctx, s.cfg.PopTimeout)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.logger.WithError(err).Error("pop action")
			select {
			case <-ctx.Done():
				return nil
			case <-s.clock.After(time.Second):
			}
			continue
		}
		if rec != nil {
			s.Add(ctx, *rec)
		}
	}
}

func (s *Service) every(ctx context.Context, d time.Duration, fn func()) error {
	ticker := s.clock.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			fn()
		}
	}
}

// Add batches a record and flushes once the batch is full.
func (s *Service) Add(ctx context.Context, rec cache.ActionRecord) {
	row := toRow(rec)
	s.mu.Lock()
	if row.ActionType == "end_game" {
		delete(s.lastActivity, row.SessionID)
	} else {
		s.lastActivity[row.SessionID] = s.clock.Now()
	}
	s.batch = append(s.batch, row)
	full := len(s.batch) >= s.cfg.BatchSize
	s.mu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the current batch in one transaction. A failed batch is put
// back and retried on the next flush; the journal ignores replayed rows.
func (s *Service) Flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return
	}
	rows := s.batch
	s.batch = make([]database.ActionRow, 0, s.cfg.BatchSize)
	s.mu.Unlock()

	if err := s.sink.InsertActions(ctx, rows); err != nil {
		s.logger.WithError(err).WithField("rows", len(rows)).Error("flush actions")
		s.mu.Lock()
		s.batch = append(rows, s.batch...)
		s.mu.Unlock()
		return
	}
	s.logger.WithField("rows", len(rows)).Debug("flushed actions")
}

// Pending returns how many rows wait for the next flush.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batch)
}

// SweepInactive marks sessions idle for longer than Inactivity as abandoned.
func (s *Service) SweepInactive(ctx context.Context) {
	now := s.clock.Now()
	var stale []string
	s.mu.Lock()
	for id, last := range s.lastActivity {
		if now.Sub(last) > s.cfg.Inactivity {
			stale = append(stale, id)
			delete(s.lastActivity, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		changed, err := s.sink.MarkAbandoned(ctx, id)
		entry := s.logger.WithField("session_id", id)
		if err != nil {
			entry.WithError(err).Error("mark session abandoned")
			continue
		}
		if changed {
			entry.Info("marked session abandoned due to inactivity")
		}
	}
}

func toRow(rec cache.ActionRecord) database.ActionRow {
	return database.ActionRow{
		SessionID:   rec.SessionID,
		ActionIndex: rec.ActionIndex,
		ActorID:     rec.ActorID,
		ActionType:  rec.ActionType,
		Payload:     rec.ActionPayload,
		Revision:    rec.Revision,
		Timestamp:   time.UnixMilli(rec.Timestamp).UTC(),
	}
}
