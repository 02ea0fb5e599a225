// internal/handlers/health.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/trivia/internal/persist"
)

type healthResponse struct {
	Status   string       `json:"status"`
	Store    persist.Mode `json:"store"`
	Sessions int          `json:"sessions"`
	Node     string       `json:"node,omitempty"`
}

// handleHealth reports liveness. A degraded store is still healthy but is
// surfaced so operators know cross-device sync is off.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	mode := s.storeMode()
	status := "ok"
	if mode == persist.ModeDegraded {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   status,
		Store:    mode,
		Sessions: len(s.Games.All()),
		Node:     s.NodeID,
	})
}
