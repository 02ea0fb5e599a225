// internal/game/timer.go
package game

import (
	"context"
	"time"

	"github.com/jason-s-yu/trivia/internal/models"
)

// TickInterval is how often a running clock loses a second.
const TickInterval = time.Second

// TakeoverAfter is how long a running clock written by another node may go
// without a tick before this node starts driving it.
const TakeoverAfter = 3 * TickInterval

// StartTimer launches the tick driver for this controller. It is idempotent:
// calling it while a driver is already running does nothing. The driver stops
// when ctx is cancelled, StopTimer is called, or the session ends.
//
// The driver dispatches TickTimer once per TickInterval while the clock is
// running and this node wrote the current snapshot. Other nodes holding the
// session only adopt those ticks, which keeps one countdown across nodes.
// When a tick brings the clock to zero it raises a time_up event; the reducer
// itself never signals anything.
func (c *Controller) StartTimer(ctx context.Context) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.timerCancel != nil {
		return
	}
	tctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.timerCancel = cancel
	c.timerDone = done

	ticker := c.clock.NewTicker(TickInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-tctx.Done():
				return
			case <-ticker.Chan():
				c.tick(tctx)
			}
		}
	}()
}

// StopTimer cancels the tick driver if one is running. It does not wait for the
// driver goroutine to exit, so it is safe to call from a hook run by the driver.
func (c *Controller) StopTimer() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.timerCancel == nil {
		return
	}
	c.timerCancel()
	c.timerCancel = nil
}

// TimerDone returns a channel closed once the most recently started driver has
// exited, or nil if none was ever started.
func (c *Controller) TimerDone() <-chan struct{} {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	return c.timerDone
}

func (c *Controller) tick(ctx context.Context) {
	cur := c.Snapshot()
	if !cur.TimerRunning || cur.Timer == nil || *cur.Timer <= 0 {
		return
	}
	if !c.drives() {
		return
	}
	next, changed := c.Dispatch(ctx, "", TickTimer{})
	if !changed || next.Timer == nil || *next.Timer != 0 {
		return
	}
	c.timeUp(next)
}

func (c *Controller) timeUp(s *models.GameSession) {
	c.logger.Info("timer expired")
	payload := map[string]interface{}{}
	if s.ActiveQuestion != nil {
		payload["clueId"] = s.ActiveQuestion.ClueID
	}
	ev := GameEvent{Type: EventTimeUp, Session: s, Payload: payload}
	c.pubMu.Lock()
	if s.Revision < c.pubRev {
		// a later snapshot is already on screen
		ev.Session = nil
	}
	c.fireEvent(ev)
	c.pubMu.Unlock()
	if c.OnTimeUp != nil {
		c.OnTimeUp(s)
	}
}
