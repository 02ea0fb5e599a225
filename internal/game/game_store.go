// internal/game/game_store.go
package game

import (
	"sync"

	"github.com/jason-s-yu/trivia/internal/models"
)

// Store tracks the session controllers driven by this node.
type Store struct {
	mu          sync.Mutex
	controllers map[string]*Controller
}

func NewStore() *Store {
	return &Store{
		controllers: make(map[string]*Controller),
	}
}

func (s *Store) Add(c *Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers[c.ID] = c
}

func (s *Store) Get(id string) (*Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, exists := s.controllers[id]
	return c, exists
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.controllers, id)
}

// All returns every controller currently held.
func (s *Store) All() []*Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Controller, 0, len(s.controllers))
	for _, c := range s.controllers {
		out = append(out, c)
	}
	return out
}

// LiveForTemplate returns a session launched from templateID that has not
// ended yet, or nil if there is none.
func (s *Store) LiveForTemplate(templateID string) *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.controllers {
		snap := c.Snapshot()
		if snap.TemplateID == templateID && snap.Status != models.SessionEnded {
			return c
		}
	}
	return nil
}
