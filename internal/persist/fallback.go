// internal/persist/fallback.go
package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Mode is the persistence mode the service is running in.
type Mode string

const (
	// ModeRemote means writes reach the shared store and other devices see them.
	ModeRemote Mode = "remote"
	// ModeDegraded means writes only reach the local store; cross-device
	// consistency is lost until the remote store comes back.
	ModeDegraded Mode = "degraded"
)

// Fallback is a local-first Backend: it prefers the remote store and drops to
// the local one when the remote fails. Once degraded it stays degraded until
// Recover succeeds.
type Fallback struct {
	remote Backend
	local  Backend
	logger logrus.FieldLogger

	mu   sync.RWMutex
	mode Mode

	// LocalOnly reports owners whose documents never go remote (guests).
	LocalOnly func(ownerID string) bool

	// OnModeChange is invoked after every mode switch.
	OnModeChange func(m Mode)
}

// NewFallback wraps remote and local. A nil remote starts degraded for good.
func NewFallback(remote, local Backend, logger logrus.FieldLogger) *Fallback {
	f := &Fallback{remote: remote, local: local, logger: logger, mode: ModeRemote}
	if remote == nil {
		f.mode = ModeDegraded
	}
	return f
}

// Mode returns the current mode.
func (f *Fallback) Mode() Mode {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.mode
}

// active returns the remote store while in remote mode, nil otherwise.
func (f *Fallback) active() Backend {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.mode != ModeRemote {
		return nil
	}
	return f.remote
}

// Attach installs a remote store that was unreachable at startup. The
// fallback stays degraded until the next successful Recover.
func (f *Fallback) Attach(remote Backend) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		f.remote = remote
	}
}

func (f *Fallback) remoteStore() Backend {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.remote
}

func (f *Fallback) setMode(m Mode, cause error) {
	f.mu.Lock()
	if f.mode == m {
		f.mu.Unlock()
		return
	}
	f.mode = m
	cb := f.OnModeChange
	f.mu.Unlock()

	entry := f.logger.WithField("mode", m)
	if cause != nil {
		entry.WithError(cause).Warn("remote store unavailable, continuing on local store")
	} else {
		entry.Info("remote store reachable again")
	}
	if cb != nil {
		cb(m)
	}
}

// degrade switches to local mode for any failure other than a missing document
// or a cancelled request.
func (f *Fallback) degrade(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	f.setMode(ModeDegraded, err)
	return true
}

func (f *Fallback) localOnly(ownerID string) bool {
	return f.LocalOnly != nil && f.LocalOnly(ownerID)
}

func (f *Fallback) Put(ctx context.Context, d Doc) error {
	if remote := f.active(); remote != nil && !f.localOnly(d.OwnerID) {
		err := remote.Put(ctx, d)
		if !f.degrade(err) {
			return err
		}
	}
	return f.local.Put(ctx, d)
}

// Get looks in the remote store first and falls through to the local store,
// where documents of local-only owners live.
func (f *Fallback) Get(ctx context.Context, kind Kind, id string) (Doc, error) {
	if remote := f.active(); remote != nil {
		d, err := remote.Get(ctx, kind, id)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrNotFound) && !f.degrade(err) {
			return Doc{}, err
		}
	}
	return f.local.Get(ctx, kind, id)
}

func (f *Fallback) List(ctx context.Context, kind Kind, ownerID string) ([]Doc, error) {
	if remote := f.active(); remote != nil && !f.localOnly(ownerID) {
		docs, err := remote.List(ctx, kind, ownerID)
		if !f.degrade(err) {
			return docs, err
		}
	}
	return f.local.List(ctx, kind, ownerID)
}

// Delete removes the document from both stores.
func (f *Fallback) Delete(ctx context.Context, kind Kind, id string) error {
	found := false
	if remote := f.active(); remote != nil {
		err := remote.Delete(ctx, kind, id)
		switch {
		case err == nil:
			found = true
		case errors.Is(err, ErrNotFound):
		case !f.degrade(err):
			return err
		}
	}
	err := f.local.Delete(ctx, kind, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound) && found:
		return nil
	}
	return err
}

// Ping checks the store currently serving writes.
func (f *Fallback) Ping(ctx context.Context) error {
	if remote := f.active(); remote != nil {
		if err := remote.Ping(ctx); !f.degrade(err) {
			return err
		}
	}
	return f.local.Ping(ctx)
}

// Subscribe merges the local and, while reachable, the remote feed for a
// document. The local feed is always attached so that writes made after a
// switch to degraded mode keep reaching subscribers.
func (f *Fallback) Subscribe(ctx context.Context, kind Kind, id string) (<-chan Doc, error) {
	feeds := make([]<-chan Doc, 0, 2)
	lc, err := f.local.Subscribe(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	feeds = append(feeds, lc)
	if remote := f.active(); remote != nil {
		rc, err := remote.Subscribe(ctx, kind, id)
		if err == nil {
			feeds = append(feeds, rc)
		} else {
			f.degrade(err)
		}
	}

	out := make(chan Doc, 16)
	var wg sync.WaitGroup
	for _, feed := range feeds {
		wg.Add(1)
		go func(feed <-chan Doc) {
			defer wg.Done()
			for d := range feed {
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}(feed)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

// Recover probes the remote store and returns to remote mode if it answers.
func (f *Fallback) Recover(ctx context.Context) error {
	remote := f.remoteStore()
	if remote == nil {
		return errors.New("no remote store configured")
	}
	if f.active() != nil {
		return nil
	}
	if err := remote.Ping(ctx); err != nil {
		return err
	}
	f.setMode(ModeRemote, nil)
	return nil
}

// Watch calls Recover every interval while degraded, until ctx is done. A
// remote store attached later is picked up on the next tick.
func (f *Fallback) Watch(ctx context.Context, clock clockwork.Clock, interval time.Duration) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if f.remoteStore() == nil || f.active() != nil {
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, interval)
			if err := f.Recover(pctx); err != nil {
				f.logger.WithError(err).Debug("remote store still unavailable")
			}
			cancel()
		}
	}
}
