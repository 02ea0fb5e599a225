package models

import "encoding/json"

// GameAction is the wire envelope for a director command, over HTTP or ws.
type GameAction struct {
	ActionType string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
