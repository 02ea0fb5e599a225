// internal/game/session.go
package game

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/models"
)

// Phase is the informal state of a session layered beneath its status.
type Phase string

const (
	PhaseLobby        Phase = "lobby"
	PhaseBoard        Phase = "board"
	PhaseClueOpen     Phase = "clue_open"
	PhaseClueRevealed Phase = "clue_revealed"
	PhaseEnded        Phase = "ended"
)

// PhaseOf derives the phase from a snapshot.
func PhaseOf(s *models.GameSession) Phase {
	switch {
	case s.Status == models.SessionEnded:
		return PhaseEnded
	case s.Status == models.SessionLobby:
		return PhaseLobby
	case s.ActiveQuestion == nil:
		return PhaseBoard
	case s.ShowAnswer:
		return PhaseClueRevealed
	default:
		return PhaseClueOpen
	}
}

// DefaultTimerSeconds is used when a template carries no timer setting.
const DefaultTimerSeconds = 15

// NewSession builds a lobby session for tpl. A carried-over scoreboard keeps
// names and scores from a previous session of the same show.
func NewSession(id string, tpl *models.Template, ownerID string, carry []models.Player) *models.GameSession {
	dur := tpl.Settings.TimerDuration
	if dur <= 0 {
		dur = DefaultTimerSeconds
	}
	if len(carry) > models.MaxPlayers {
		carry = carry[:models.MaxPlayers]
	}
	return &models.GameSession{
		ID:                   id,
		TemplateID:           tpl.ID,
		OwnerID:              ownerID,
		Status:               models.SessionLobby,
		Scoreboard:           append([]models.Player(nil), carry...),
		DefaultTimerDuration: dur,
		ClueStatus:           map[string]models.ClueStatus{},
	}
}

// NewEvent stamps an AddEvent with a fresh id and the given time.
func NewEvent(now time.Time, message string) AddEvent {
	return AddEvent{ID: uuid.NewString(), At: now, Message: message}
}

// ClueStatusOf projects the effective status of a clue within a session.
func ClueStatusOf(s *models.GameSession, clueID string) models.ClueStatus {
	if s.ActiveQuestion != nil && s.ActiveQuestion.ClueID == clueID {
		return models.ClueSelected
	}
	if st, ok := s.ClueStatus[clueID]; ok {
		return st
	}
	return models.ClueAvailable
}

// Remaining lists clues that can still be selected, in template order.
func Remaining(tpl *models.Template, s *models.GameSession) []models.Clue {
	var out []models.Clue
	for _, c := range tpl.Clues {
		if ClueStatusOf(s, c.ID) == models.ClueAvailable {
			out = append(out, c)
		}
	}
	return out
}

// BoardComplete reports whether every clue has been answered or voided.
func BoardComplete(tpl *models.Template, s *models.GameSession) bool {
	for _, c := range tpl.Clues {
		if !ClueStatusOf(s, c.ID).Terminal() {
			return false
		}
	}
	return true
}

// Invariant violations, reported by CheckInvariants.
var (
	ErrRevealedWhileRunning = errors.New("answer shown while timer running")
	ErrRevealedWithoutClue  = errors.New("answer shown with no active clue")
	ErrRunningWithoutTime   = errors.New("timer running with no time left")
	ErrClueOutsideLive      = errors.New("active clue outside a live session")
	ErrNegativeTimer        = errors.New("negative timer")
	ErrScoreboardOverflow   = errors.New("scoreboard over capacity")
)

// CheckInvariants verifies the derived invariants that must hold after every
// transition.
func CheckInvariants(s *models.GameSession) error {
	var errs []error
	if s.ShowAnswer && s.TimerRunning {
		errs = append(errs, ErrRevealedWhileRunning)
	}
	if s.ActiveQuestion == nil && s.ShowAnswer {
		errs = append(errs, ErrRevealedWithoutClue)
	}
	if s.TimerRunning && (s.Timer == nil || *s.Timer == 0) {
		errs = append(errs, ErrRunningWithoutTime)
	}
	if s.ActiveQuestion != nil && s.Status != models.SessionLive {
		errs = append(errs, ErrClueOutsideLive)
	}
	if s.Timer != nil && *s.Timer < 0 {
		errs = append(errs, ErrNegativeTimer)
	}
	if len(s.Scoreboard) > models.MaxPlayers {
		errs = append(errs, ErrScoreboardOverflow)
	}
	return errors.Join(errs...)
}
