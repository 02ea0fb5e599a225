// internal/game/actions.go
package game

import (
	"time"

	"github.com/jason-s-yu/trivia/internal/models"
)

// ActionType names a transition. The string values double as the wire "type"
// field of models.GameAction.
type ActionType string

const (
	ActionStartGame               ActionType = "start_game"
	ActionSelectQuestion          ActionType = "select_question"
	ActionRevealAnswer            ActionType = "reveal_answer"
	ActionHideAnswer              ActionType = "hide_answer"
	ActionSetQuestionStatus       ActionType = "set_question_status"
	ActionUpdatePlayer            ActionType = "update_player"
	ActionAddPlayer               ActionType = "add_player"
	ActionRemovePlayer            ActionType = "remove_player"
	ActionSetTimer                ActionType = "set_timer"
	ActionToggleTimerRunning      ActionType = "toggle_timer_running"
	ActionTickTimer               ActionType = "tick_timer"
	ActionSetDefaultTimerDuration ActionType = "set_default_timer_duration"
	ActionAddEvent                ActionType = "add_event"
	ActionEndGame                 ActionType = "end_game"
)

// Action is a transition request. Every concrete action is a plain value so
// that the reducer stays deterministic.
type Action interface {
	Type() ActionType
}

// StartGame moves a lobby session onto the board.
type StartGame struct{}

// SelectQuestion opens a clue. A nil Question dismisses the open clue and
// returns to the board.
type SelectQuestion struct {
	Question *models.ActiveQuestion `json:"question"`
}

// RevealAnswer shows the answer of the open clue and stops the clock.
type RevealAnswer struct{}

// HideAnswer puts the answer of the open clue back under cover.
type HideAnswer struct{}

// SetQuestionStatus closes the open clue as answered or void.
type SetQuestionStatus struct {
	ClueID string            `json:"clueId"`
	Status models.ClueStatus `json:"status"`
}

// UpdatePlayer patches one scoreboard entry. Nil fields are left alone.
type UpdatePlayer struct {
	ID         string  `json:"id"`
	Name       *string `json:"name,omitempty"`
	ScoreDelta int     `json:"scoreDelta,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

// AddPlayer appends a contestant. The caller supplies the id.
type AddPlayer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RemovePlayer drops a contestant.
type RemovePlayer struct {
	ID string `json:"id"`
}

// SetTimer seeds the clock. Nil hides it.
type SetTimer struct {
	Seconds *int `json:"seconds"`
}

// ToggleTimerRunning pauses or resumes the clock.
type ToggleTimerRunning struct{}

// TickTimer removes one second from a running clock.
type TickTimer struct{}

// SetDefaultTimerDuration changes the value SetTimer is usually seeded with.
type SetDefaultTimerDuration struct {
	Seconds int `json:"seconds"`
}

// AddEvent prepends an operator log line. ID and At are stamped by the caller
// (see NewEvent) because the reducer never reads a clock.
type AddEvent struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// EndGame finishes the session.
type EndGame struct{}

func (StartGame) Type() ActionType               { return ActionStartGame }
func (SelectQuestion) Type() ActionType          { return ActionSelectQuestion }
func (RevealAnswer) Type() ActionType            { return ActionRevealAnswer }
func (HideAnswer) Type() ActionType              { return ActionHideAnswer }
func (SetQuestionStatus) Type() ActionType       { return ActionSetQuestionStatus }
func (UpdatePlayer) Type() ActionType            { return ActionUpdatePlayer }
func (AddPlayer) Type() ActionType               { return ActionAddPlayer }
func (RemovePlayer) Type() ActionType            { return ActionRemovePlayer }
func (SetTimer) Type() ActionType                { return ActionSetTimer }
func (ToggleTimerRunning) Type() ActionType      { return ActionToggleTimerRunning }
func (TickTimer) Type() ActionType               { return ActionTickTimer }
func (SetDefaultTimerDuration) Type() ActionType { return ActionSetDefaultTimerDuration }
func (AddEvent) Type() ActionType                { return ActionAddEvent }
func (EndGame) Type() ActionType                 { return ActionEndGame }

// Select is shorthand for SelectQuestion on a specific clue.
func Select(categoryID, clueID string) SelectQuestion {
	return SelectQuestion{Question: &models.ActiveQuestion{CategoryID: categoryID, ClueID: clueID}}
}

// Dismiss is shorthand for SelectQuestion(nil).
func Dismiss() SelectQuestion { return SelectQuestion{} }

// Seconds is shorthand for SetTimer with a value.
func Seconds(n int) SetTimer { return SetTimer{Seconds: &n} }

// HideTimer is shorthand for SetTimer(nil).
func HideTimer() SetTimer { return SetTimer{} }
