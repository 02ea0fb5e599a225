// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/sirupsen/logrus"
)

// sendBuffer is how many messages a viewer may fall behind before it is
// disconnected.
const sendBuffer = 32

// wsMessage is every server-to-client websocket frame.
type wsMessage struct {
	Type    string                 `json:"type"`
	View    *game.SessionView      `json:"view,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// viewer is one connected director or stage screen. All writes go through
// send so frames reach the client in order.
type viewer struct {
	conn *websocket.Conn
	role game.ViewRole
	send chan []byte
	once sync.Once
}

func newViewer(conn *websocket.Conn, role game.ViewRole) *viewer {
	return &viewer{conn: conn, role: role, send: make(chan []byte, sendBuffer)}
}

// enqueue queues data without blocking. A full queue drops the viewer.
func (v *viewer) enqueue(data []byte) bool {
	select {
	case v.send <- data:
		return true
	default:
		v.once.Do(func() {
			go v.conn.Close(websocket.StatusCode(SlowConsumerError), "viewer fell behind")
		})
		return false
	}
}

func (v *viewer) enqueueMsg(logger logrus.FieldLogger, msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.WithError(err).WithField("type", msg.Type).Error("failed to marshal websocket message")
		return
	}
	v.enqueue(data)
}

// writeLoop drains send until ctx is done or a write fails.
func (v *viewer) writeLoop(ctx context.Context, logger logrus.FieldLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-v.send:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := v.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					logger.WithError(err).Debug("websocket write failed")
				}
				return
			}
		}
	}
}

// hub tracks viewers per session and fans controller events out to them.
type hub struct {
	logger logrus.FieldLogger

	mu       sync.Mutex
	sessions map[string]map[*viewer]struct{}
}

func newHub(logger logrus.FieldLogger) *hub {
	return &hub{logger: logger, sessions: make(map[string]map[*viewer]struct{})}
}

// join registers v and queues its first frame. initial runs under the hub
// lock so no broadcast can slip between the snapshot it reads and the
// registration.
func (h *hub) join(sessionID string, v *viewer, initial func() []wsMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.sessions[sessionID]
	if set == nil {
		set = make(map[*viewer]struct{})
		h.sessions[sessionID] = set
	}
	set[v] = struct{}{}
	for _, msg := range initial() {
		v.enqueueMsg(h.logger, msg)
	}
}

func (h *hub) leave(sessionID string, v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.sessions[sessionID]
	delete(set, v)
	if len(set) == 0 {
		delete(h.sessions, sessionID)
	}
}

// viewers returns how many screens watch sessionID.
func (h *hub) viewers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}

// broadcast renders ev once per role and queues it for every viewer of the
// controller's session.
func (h *hub) broadcast(ctrl *game.Controller, ev game.GameEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.sessions[ctrl.ID]
	if len(set) == 0 {
		return
	}
	frames := make(map[game.ViewRole][]byte, 2)
	for v := range set {
		data, ok := frames[v.role]
		if !ok {
			msg := wsMessage{Type: string(ev.Type), Payload: ev.Payload}
			if ev.Session != nil {
				view := game.BuildView(ctrl.Template(), ev.Session, v.role)
				msg.View = &view
			}
			var err error
			data, err = json.Marshal(msg)
			if err != nil {
				h.logger.WithError(err).WithField("session_id", ctrl.ID).Error("failed to marshal broadcast event")
				return
			}
			frames[v.role] = data
		}
		v.enqueue(data)
	}
}

// broadcastAll queues msg for every viewer of every session.
func (h *hub) broadcastAll(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal broadcast message")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.sessions {
		for v := range set {
			v.enqueue(data)
		}
	}
}
