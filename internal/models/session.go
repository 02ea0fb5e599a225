// internal/models/session.go
package models

import "time"

// SessionStatus is the coarse lifecycle of a game session.
type SessionStatus string

const (
	SessionLobby SessionStatus = "lobby"
	SessionLive  SessionStatus = "live"
	SessionEnded SessionStatus = "ended"
)

// MaxPlayers caps the scoreboard.
const MaxPlayers = 10

// ActiveQuestion identifies the clue currently on stage.
type ActiveQuestion struct {
	CategoryID string `json:"categoryId"`
	ClueID     string `json:"clueId"`
}

// EventEntry is an operator-facing log line. Not authoritative state.
type EventEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// GameSession is one live playthrough of a template. Values are treated as
// immutable snapshots: transitions produce a new value via Clone.
type GameSession struct {
	ID         string        `json:"id"`
	TemplateID string        `json:"templateId"`
	OwnerID    string        `json:"ownerId"`
	Status     SessionStatus `json:"status"`

	ActiveQuestion *ActiveQuestion `json:"activeQuestion"`
	ShowAnswer     bool            `json:"showAnswer"`

	Scoreboard []Player `json:"scoreboard"`

	// Timer is nil when hidden.
	Timer                *int `json:"timer"`
	TimerRunning         bool `json:"timerRunning"`
	DefaultTimerDuration int  `json:"defaultTimerDuration"`

	// Events is newest-first.
	Events []EventEntry `json:"events"`

	// ClueStatus holds clues closed during this session (answered or void).
	// Absent clues are available unless they are the active one.
	ClueStatus map[string]ClueStatus `json:"clueStatus,omitempty"`

	// Sync metadata, stamped by whoever applied the last transition.
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updatedAt"`
	Origin    string    `json:"origin,omitempty"`
}

// Player returns the index of the player with id, or -1.
func (s *GameSession) Player(id string) int {
	for i, p := range s.Scoreboard {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so the receiver can be shared with readers.
func (s *GameSession) Clone() *GameSession {
	if s == nil {
		return nil
	}
	cp := *s
	if s.ActiveQuestion != nil {
		aq := *s.ActiveQuestion
		cp.ActiveQuestion = &aq
	}
	if s.Timer != nil {
		t := *s.Timer
		cp.Timer = &t
	}
	if s.Scoreboard != nil {
		cp.Scoreboard = make([]Player, len(s.Scoreboard))
		copy(cp.Scoreboard, s.Scoreboard)
	}
	if s.Events != nil {
		cp.Events = make([]EventEntry, len(s.Events))
		copy(cp.Events, s.Events)
	}
	if s.ClueStatus != nil {
		cp.ClueStatus = make(map[string]ClueStatus, len(s.ClueStatus))
		for k, v := range s.ClueStatus {
			cp.ClueStatus[k] = v
		}
	}
	return &cp
}
