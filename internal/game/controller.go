// internal/game/controller.go
package game

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// GameEventType is an enum-like type for what a Controller pushes to viewers.
type GameEventType string

const (
	EventSnapshot  GameEventType = "snapshot"   // full session snapshot after a transition
	EventTimeUp    GameEventType = "time_up"    // the clock just hit zero
	EventStoreMode GameEventType = "store_mode" // persistence switched between remote and local
	EventError     GameEventType = "error"
)

// GameEvent is what a Controller hands to BroadcastFn.
type GameEvent struct {
	Type    GameEventType          `json:"type"`
	Session *models.GameSession    `json:"session,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ActionRecord is the journal entry emitted for every applied transition.
type ActionRecord struct {
	SessionID   string
	ActionIndex int
	ActorID     string
	ActionType  ActionType
	Action      Action
	Revision    int64
	Timestamp   time.Time
}

// Controller drives one session on this node. It holds the current snapshot
// and serializes every transition through Apply, so a single dispatch is never
// partially applied. Snapshots handed out are never mutated afterwards.
type Controller struct {
	ID string

	mu     sync.Mutex
	tpl    *models.Template
	state  *models.GameSession
	seenAt time.Time // local time the current snapshot arrived

	// pubMu orders snapshot broadcasts; pubRev is the last revision sent.
	pubMu  sync.Mutex
	pubRev int64

	saveMu   sync.Mutex
	savedRev int64

	origin string
	clock  clockwork.Clock
	logger *logrus.Entry

	timerMu     sync.Mutex
	timerCancel context.CancelFunc
	timerDone   chan struct{}

	// SaveFn persists a snapshot. Called after every applied transition.
	SaveFn func(ctx context.Context, s *models.GameSession) error

	// BroadcastFn pushes events to connected viewers. If nil, nothing is sent.
	BroadcastFn func(ev GameEvent)

	// JournalFn receives one record per applied transition.
	JournalFn func(rec ActionRecord)

	// OnTimeUp is invoked (outside the lock) when a tick brings the clock to zero.
	OnTimeUp func(s *models.GameSession)

	// OnEnd is invoked once when the session transitions to ended.
	OnEnd func(s *models.GameSession)
}

// NewController wraps a session snapshot. origin identifies this node in the
// snapshots it produces.
func NewController(tpl *models.Template, s *models.GameSession, origin string, clock clockwork.Clock, logger logrus.FieldLogger) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Controller{
		ID:       s.ID,
		tpl:      tpl,
		state:    s,
		savedRev: s.Revision,
		pubRev:   s.Revision,
		seenAt:   clock.Now(),
		origin:   origin,
		clock:    clock,
		logger:   logger.WithField("session_id", s.ID),
	}
}

// Snapshot returns the current session. The value must be treated as read-only.
func (c *Controller) Snapshot() *models.GameSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Template returns the template the session was launched from.
func (c *Controller) Template() *models.Template {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tpl
}

// Dispatch applies a on behalf of actorID. It returns the resulting snapshot
// and whether anything changed; precondition failures are silent no-ops.
func (c *Controller) Dispatch(ctx context.Context, actorID string, a Action) (*models.GameSession, bool) {
	c.mu.Lock()
	prev := c.state
	next := Apply(c.tpl, prev, a)
	if next == prev {
		c.mu.Unlock()
		if a.Type() != ActionTickTimer {
			c.logger.WithField("action", a.Type()).Debug("action ignored: precondition not met")
		}
		return prev, false
	}

	next.Revision = prev.Revision + 1
	next.UpdatedAt = c.clock.Now()
	next.Origin = c.origin
	c.state = next
	c.seenAt = next.UpdatedAt
	// the revision doubles as the journal index so that a controller loaded
	// on another node or after a restart continues the sequence
	rec := ActionRecord{
		SessionID:   c.ID,
		ActionIndex: int(next.Revision),
		ActorID:     actorID,
		ActionType:  a.Type(),
		Action:      a,
		Revision:    next.Revision,
		Timestamp:   next.UpdatedAt,
	}
	ended := prev.Status != models.SessionEnded && next.Status == models.SessionEnded
	c.mu.Unlock()

	if err := CheckInvariants(next); err != nil {
		// Apply guarantees these; a failure here is a reducer bug.
		c.logger.WithError(err).WithField("action", a.Type()).Error("session invariant violated")
	}

	c.persist(ctx, next)
	c.publish(next, false)
	if c.JournalFn != nil {
		c.JournalFn(rec)
	}
	if ended {
		c.end(next)
	}
	return next, true
}

func (c *Controller) end(s *models.GameSession) {
	c.StopTimer()
	if c.OnEnd != nil {
		c.OnEnd(s)
	}
}

// Adopt replaces the local snapshot with one received from the shared store.
// Last write wins at snapshot granularity; only echoes of our own writes are
// skipped. It reports whether the snapshot was taken.
func (c *Controller) Adopt(remote *models.GameSession) bool {
	if remote == nil || remote.ID != c.ID {
		return false
	}
	c.mu.Lock()
	if remote.Origin == c.origin && remote.Revision <= c.state.Revision {
		c.mu.Unlock()
		return false
	}
	snap := remote.Clone()
	ended := c.state.Status != models.SessionEnded && snap.Status == models.SessionEnded
	c.state = snap
	c.seenAt = c.clock.Now()
	c.mu.Unlock()

	// the store already holds this snapshot
	c.saveMu.Lock()
	c.savedRev = snap.Revision
	c.saveMu.Unlock()

	c.logger.WithFields(logrus.Fields{"origin": remote.Origin, "revision": remote.Revision}).Debug("adopted remote snapshot")
	c.publish(snap, true)
	if ended {
		c.end(snap)
	}
	return true
}

// Notify pushes a non-snapshot event to viewers.
func (c *Controller) Notify(ev GameEvent) {
	c.fireEvent(ev)
}

// persist saves s unless a newer revision has already been written, so that
// racing dispatches cannot leave an older snapshot in the store.
func (c *Controller) persist(ctx context.Context, s *models.GameSession) {
	if c.SaveFn == nil {
		return
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if s.Revision <= c.savedRev {
		return
	}
	if err := c.SaveFn(ctx, s); err != nil {
		c.logger.WithError(err).WithField("revision", s.Revision).Warn("failed to save session snapshot")
		return
	}
	c.savedRev = s.Revision
}

// publish broadcasts a snapshot unless a newer one already went out, so that
// viewers never end on a stale revision when dispatches race. Adopted
// snapshots replace whatever was sent, even at a lower revision.
func (c *Controller) publish(s *models.GameSession, force bool) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if !force && s.Revision <= c.pubRev {
		return
	}
	c.pubRev = s.Revision
	c.fireEvent(GameEvent{Type: EventSnapshot, Session: s})
}

// drives reports whether this node should tick the current snapshot: it wrote
// it, or the writer has gone quiet for longer than the takeover window.
func (c *Controller) drives() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Origin == "" || c.state.Origin == c.origin {
		return true
	}
	return c.clock.Since(c.seenAt) >= TakeoverAfter
}

func (c *Controller) fireEvent(ev GameEvent) {
	if c.BroadcastFn == nil {
		return
	}
	c.BroadcastFn(ev)
}
