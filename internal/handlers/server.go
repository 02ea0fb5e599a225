// internal/handlers/server.go
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/jason-s-yu/trivia/internal/generate"
	"github.com/jason-s-yu/trivia/internal/middleware"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jason-s-yu/trivia/internal/persist"
	"github.com/jason-s-yu/trivia/internal/template"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Generator produces boards and clue visuals.
type Generator interface {
	GenerateBoard(ctx context.Context, topic string, settings models.Settings) (template.Board, error)
	GenerateVisual(ctx context.Context, prompt string) (generate.Visual, error)
}

// ModeSource reports whether persistence is degraded.
type ModeSource interface {
	Mode() persist.Mode
}

// Deps is everything the HTTP layer needs.
type Deps struct {
	Logger    logrus.FieldLogger
	Auth      *auth.Issuer
	Repo      *persist.Repository
	Games     *game.Store
	Generator Generator
	Store     ModeSource
	// Journal receives every applied transition; may be nil.
	Journal func(rec game.ActionRecord)
	Clock   clockwork.Clock
	NodeID  string
	// ProjectClueStatus copies answered/void marks onto the template when a
	// session ends.
	ProjectClueStatus bool
	NewID             func() string
}

// Server holds the long-lived state behind the HTTP and websocket handlers.
// Each session driven here has one game.Controller in Games.
type Server struct {
	Deps
	ctx    context.Context
	logger logrus.FieldLogger
	editor *template.Editor
	hub    *hub

	loadMu sync.Mutex

	detachMu sync.Mutex
	detach   map[string]context.CancelFunc // session id -> stops driver and subscription

	awardMu     sync.Mutex
	lastAwarded map[string]string // session id -> player id
}

// NewServer wires d. ctx bounds every background goroutine the server starts
// (tick drivers, store subscriptions).
func NewServer(ctx context.Context, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Games == nil {
		d.Games = game.NewStore()
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Generator == nil {
		d.Generator = generate.New(generate.Config{Clock: d.Clock})
	}
	s := &Server{
		Deps:        d,
		ctx:         ctx,
		logger:      d.Logger,
		hub:         newHub(d.Logger),
		lastAwarded: make(map[string]string),
		detach:      make(map[string]context.CancelFunc),
	}
	s.editor = &template.Editor{IsLive: s.templateLive, Clock: d.Clock, NewID: d.NewID}
	return s
}

// Routes returns the full HTTP surface.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/guest", s.handleGuest)
	mux.HandleFunc("GET /auth/me", s.handleMe)

	mux.HandleFunc("GET /templates", s.handleListTemplates)
	mux.HandleFunc("POST /templates", s.handleCreateTemplate)
	mux.HandleFunc("POST /templates/import", s.handleImportTemplate)
	mux.HandleFunc("GET /templates/{id}", s.handleGetTemplate)
	mux.HandleFunc("PUT /templates/{id}", s.handleEditTemplate)
	mux.HandleFunc("DELETE /templates/{id}", s.handleDeleteTemplate)
	mux.HandleFunc("GET /templates/{id}/export", s.handleExportTemplate)
	mux.HandleFunc("POST /templates/{id}/generate", s.handleGenerateBoard)
	mux.HandleFunc("POST /templates/{id}/clues/{clueId}/visual", s.handleGenerateVisual)

	mux.HandleFunc("POST /sessions", s.handleStartGame)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /sessions/{id}/actions", s.handleSessionAction)
	mux.HandleFunc("GET /sessions/{id}/ws", s.handleSessionWS)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	return middleware.LogMiddleware(s.logger)(mux)
}

// StoreModeChanged tells every connected viewer which store is serving writes.
func (s *Server) StoreModeChanged(m persist.Mode) {
	s.hub.broadcastAll(wsMessage{Type: string(game.EventStoreMode), Payload: map[string]interface{}{"mode": m}})
}

func (s *Server) templateLive(templateID string) bool {
	return s.Games.LiveForTemplate(templateID) != nil
}

func (s *Server) storeMode() persist.Mode {
	if s.Store == nil {
		return persist.ModeRemote
	}
	return s.Store.Mode()
}

// attach creates the controller for a session and starts its tick driver and
// store subscription.
func (s *Server) attach(tpl *models.Template, sess *models.GameSession) *game.Controller {
	ctrl := game.NewController(tpl, sess, s.NodeID, s.Clock, s.logger)
	ctrl.SaveFn = s.Repo.SaveSession
	ctrl.BroadcastFn = func(ev game.GameEvent) { s.hub.broadcast(ctrl, ev) }
	ctrl.JournalFn = s.Journal
	ctrl.OnEnd = s.onEnd
	s.Games.Add(ctrl)

	ctx, cancel := context.WithCancel(s.ctx)
	s.detachMu.Lock()
	s.detach[ctrl.ID] = cancel
	s.detachMu.Unlock()

	ctrl.StartTimer(ctx)
	feed, err := s.Repo.SubscribeSession(ctx, ctrl.ID)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", ctrl.ID).Warn("session subscription failed; remote changes will not be seen")
		return ctrl
	}
	go func() {
		for snap := range feed {
			ctrl.Adopt(snap)
		}
	}()
	return ctrl
}

// controller returns the in-memory controller for id, loading the session
// from the store if this node is not driving it yet.
func (s *Server) controller(ctx context.Context, id string) (*game.Controller, error) {
	if c, ok := s.Games.Get(id); ok {
		return c, nil
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if c, ok := s.Games.Get(id); ok {
		return c, nil
	}
	sess, err := s.Repo.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	tpl, err := s.Repo.LoadTemplate(ctx, sess.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("template of session %s: %w", id, err)
	}
	return s.attach(tpl, sess), nil
}

// release evicts the controller for id once no screen watches it and its
// clock is not running. The session stays in the store and is loaded again
// on the next request.
func (s *Server) release(id string) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	ctrl, ok := s.Games.Get(id)
	if !ok || s.hub.viewers(id) > 0 {
		return
	}
	snap := ctrl.Snapshot()
	if snap.Status == models.SessionLive && snap.TimerRunning {
		return
	}
	s.Games.Delete(id)
	ctrl.StopTimer()
	s.detachMu.Lock()
	cancel := s.detach[id]
	delete(s.detach, id)
	s.detachMu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.awardMu.Lock()
	delete(s.lastAwarded, id)
	s.awardMu.Unlock()
	s.logger.WithField("session_id", id).Debug("released idle session")
}

func (s *Server) onEnd(sess *models.GameSession) {
	s.awardMu.Lock()
	delete(s.lastAwarded, sess.ID)
	s.awardMu.Unlock()
	defer s.release(sess.ID)

	if !s.ProjectClueStatus {
		return
	}
	ctx := s.ctx
	tpl, err := s.Repo.LoadTemplate(ctx, sess.TemplateID)
	if err != nil {
		s.logger.WithError(err).WithField("template_id", sess.TemplateID).Warn("could not project clue status")
		return
	}
	projected := template.ProjectStatuses(tpl, sess)
	projected.UpdatedAt = s.Clock.Now()
	projected.UpdatedBy = sess.OwnerID
	if err := s.Repo.SaveTemplate(ctx, projected); err != nil {
		s.logger.WithError(err).WithField("template_id", sess.TemplateID).Warn("could not save projected clue status")
	}
}

// dispatch applies a director action. AddEvent gets its id and timestamp here
// since the reducer never reads a clock.
func (s *Server) dispatch(ctx context.Context, ctrl *game.Controller, actor string, a game.Action) (*models.GameSession, bool) {
	if ev, ok := a.(game.AddEvent); ok && ev.ID == "" {
		a = game.NewEvent(s.Clock.Now(), ev.Message)
	}
	next, changed := ctrl.Dispatch(ctx, actor, a)
	if up, ok := a.(game.UpdatePlayer); ok && changed && up.ScoreDelta != 0 {
		s.awardMu.Lock()
		s.lastAwarded[ctrl.ID] = up.ID
		s.awardMu.Unlock()
	}
	return next, changed
}

// dispatchKey resolves an operator shortcut against the current snapshot.
func (s *Server) dispatchKey(ctx context.Context, ctrl *game.Controller, actor, key string) (*models.GameSession, bool) {
	s.awardMu.Lock()
	last := s.lastAwarded[ctrl.ID]
	s.awardMu.Unlock()

	a := game.Shortcut(key, game.ShortcutContext{Template: ctrl.Template(), Session: ctrl.Snapshot(), LastAwarded: last})
	if a == nil {
		return ctrl.Snapshot(), false
	}
	return s.dispatch(ctx, ctrl, actor, a)
}
