// internal/handlers/sessions.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/sirupsen/logrus"
)

type startGameRequest struct {
	TemplateID string `json:"templateId"`
	// CarryOverFrom seeds the scoreboard from an earlier session of the same
	// owner.
	CarryOverFrom string `json:"carryOverFrom,omitempty"`
}

type sessionResponse struct {
	Session *models.GameSession `json:"session"`
	View    game.SessionView    `json:"view"`
	Changed *bool               `json:"changed,omitempty"`
}

func sessionBody(ctrl *game.Controller, s *models.GameSession) sessionResponse {
	return sessionResponse{Session: s, View: game.BuildView(ctrl.Template(), s, game.RoleDirector)}
}

// ownedSession resolves the session in the path for its owner.
func (s *Server) ownedSession(w http.ResponseWriter, r *http.Request) (*game.Controller, auth.Identity, bool) {
	id, ok := s.requireUser(w, r)
	if !ok {
		return nil, id, false
	}
	ctrl, err := s.controller(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, id, false
	}
	if ctrl.Snapshot().OwnerID != id.ID {
		s.writeError(w, r, fmt.Errorf("%w: session belongs to another user", errForbidden))
		return nil, id, false
	}
	return ctrl, id, true
}

// handleStartGame launches a live session from a template.
func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req startGameRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.TemplateID) == "" {
		s.writeError(w, r, fmt.Errorf("%w: templateId is required", errBadRequest))
		return
	}
	tpl, err := s.Repo.LoadTemplate(r.Context(), req.TemplateID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tpl.OwnerID != id.ID {
		s.writeError(w, r, fmt.Errorf("%w: template belongs to another user", errForbidden))
		return
	}

	var carry []models.Player
	if req.CarryOverFrom != "" {
		prev, err := s.Repo.LoadSession(r.Context(), req.CarryOverFrom)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if prev.OwnerID != id.ID {
			s.writeError(w, r, fmt.Errorf("%w: session belongs to another user", errForbidden))
			return
		}
		carry = prev.Scoreboard
	}

	sess := game.NewSession(s.NewID(), tpl, id.ID, carry)
	ctrl := s.attach(tpl, sess)
	next, _ := s.dispatch(r.Context(), ctrl, id.ID, game.StartGame{})
	s.logger.WithFields(logrus.Fields{"session_id": sess.ID, "template_id": tpl.ID}).Info("session started")
	writeJSON(w, http.StatusCreated, sessionBody(ctrl, next))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionBody(ctrl, ctrl.Snapshot()))
}

// actionRequest is either a transition ({type, payload}) or an operator
// shortcut ({key}).
type actionRequest struct {
	models.GameAction
	Key string `json:"key,omitempty"`
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	ctrl, id, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		next    *models.GameSession
		changed bool
	)
	if req.Key != "" {
		next, changed = s.dispatchKey(r.Context(), ctrl, id.ID, req.Key)
	} else {
		a, err := game.DecodeAction(req.GameAction)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		next, changed = s.dispatch(r.Context(), ctrl, id.ID, a)
	}
	body := sessionBody(ctrl, next)
	body.Changed = &changed
	writeJSON(w, http.StatusOK, body)
}
