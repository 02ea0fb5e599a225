// internal/handlers/session_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/jason-s-yu/trivia/internal/middleware"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/sirupsen/logrus"
)

// clientMessage is every client-to-server frame. Director frames carry either
// a transition ({type, payload}) or a shortcut ({type:"key", key}).
type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Key     string          `json:"key,omitempty"`
}

// handleSessionWS upgrades to a websocket carrying session views. The
// subprotocol picks the role: "director" (owner only, may send actions) or
// "stage" (read-only, answers hidden until revealed).
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	ctrl, err := s.controller(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ident, identErr := s.identify(r)

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{string(game.RoleDirector), string(game.RoleStage)},
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("websocket accept error")
		return
	}
	defer c.CloseNow()

	role := game.ViewRole(c.Subprotocol())
	switch role {
	case game.RoleDirector:
		if identErr != nil {
			c.Close(websocket.StatusCode(InvalidAuthTokenError), "director channel requires a valid token")
			return
		}
		if ident.ID != ctrl.Snapshot().OwnerID {
			c.Close(websocket.StatusCode(NotOwnerError), "only the session owner may direct")
			return
		}
	case game.RoleStage:
	default:
		c.Close(websocket.StatusCode(BadSubprotocolError), "client must use the 'director' or 'stage' subprotocol")
		return
	}

	logger := s.logger.WithFields(logrus.Fields{"session_id": sessionID, "role": role})
	middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, r.URL.Path, string(role))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	v := newViewer(c, role)
	s.hub.join(sessionID, v, func() []wsMessage {
		view := game.BuildView(ctrl.Template(), ctrl.Snapshot(), role)
		return []wsMessage{
			{Type: string(game.EventSnapshot), View: &view},
			{Type: string(game.EventStoreMode), Payload: map[string]interface{}{"mode": s.storeMode()}},
		}
	})
	defer func() {
		s.hub.leave(sessionID, v)
		s.release(sessionID)
	}()

	go func() {
		v.writeLoop(ctx, logger)
		cancel()
	}()

	err = s.readSessionMessages(ctx, c, v, ctrl, ident.ID, logger)
	middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, err)
}

// readSessionMessages reads frames until the connection closes. It returns
// nil on a normal closure.
func (s *Server) readSessionMessages(ctx context.Context, c *websocket.Conn, v *viewer, ctrl *game.Controller, actor string, logger logrus.FieldLogger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d. Ignoring.", msgType)
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			v.enqueueMsg(logger, wsMessage{Type: string(game.EventError), Message: "Invalid JSON format."})
			continue
		}

		if msg.Type == "ping" {
			v.enqueueMsg(logger, wsMessage{Type: "pong"})
			continue
		}
		if v.role != game.RoleDirector {
			v.enqueueMsg(logger, wsMessage{Type: string(game.EventError), Message: "stage channel is read-only"})
			continue
		}

		if msg.Type == "key" {
			s.dispatchKey(ctx, ctrl, actor, msg.Key)
			continue
		}
		a, err := game.DecodeAction(models.GameAction{ActionType: msg.Type, Payload: msg.Payload})
		if err != nil {
			logger.WithError(err).Debug("rejected director action")
			v.enqueueMsg(logger, wsMessage{Type: string(game.EventError), Message: fmt.Sprintf("invalid action: %v", err)})
			continue
		}
		s.dispatch(ctx, ctrl, actor, a)
	}
}
