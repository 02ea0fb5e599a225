// internal/game/shortcuts.go
package game

import "github.com/jason-s-yu/trivia/internal/models"

// Director keyboard keys, as sent by the director client.
const (
	KeySpace     = "Space"
	KeyEnter     = "Enter"
	KeyEscape    = "Escape"
	KeyBackspace = "Backspace"
	KeyTimer     = "t"
	KeyPlus      = "+"
	KeyMinus     = "-"
)

// ShortcutContext is what a key press is resolved against.
type ShortcutContext struct {
	Template *models.Template
	Session  *models.GameSession
	// LastAwarded is the player who last received a quick award, the target
	// of +/- adjustments.
	LastAwarded string
}

// Shortcut maps a single key press to exactly one transition. It returns nil
// when the key means nothing in the current state.
func Shortcut(key string, sc ShortcutContext) Action {
	s := sc.Session
	if s == nil || s.Status != models.SessionLive {
		return nil
	}

	switch key {
	case KeySpace, " ":
		if s.ActiveQuestion == nil {
			return nil
		}
		if s.ShowAnswer {
			return HideAnswer{}
		}
		return RevealAnswer{}
	case KeyEnter:
		if s.ActiveQuestion == nil || !s.ShowAnswer {
			return nil
		}
		return SetQuestionStatus{ClueID: s.ActiveQuestion.ClueID, Status: models.ClueAnswered}
	case KeyEscape:
		if s.ActiveQuestion == nil {
			return nil
		}
		return Dismiss()
	case KeyBackspace:
		if s.ActiveQuestion == nil {
			return nil
		}
		return SetQuestionStatus{ClueID: s.ActiveQuestion.ClueID, Status: models.ClueVoid}
	case KeyTimer, "T":
		if s.ActiveQuestion == nil {
			return nil
		}
		if s.Timer == nil || *s.Timer == 0 {
			return Seconds(s.DefaultTimerDuration)
		}
		return ToggleTimerRunning{}
	case KeyPlus, KeyMinus:
		if sc.LastAwarded == "" || s.Player(sc.LastAwarded) < 0 {
			return nil
		}
		step := ManualStep(sc.Template)
		if key == KeyMinus {
			step = -step
		}
		return UpdatePlayer{ID: sc.LastAwarded, ScoreDelta: step}
	}

	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		value, ok := ActiveClueValue(sc.Template, s)
		if !ok {
			return nil
		}
		id, ok := NewQuickAwardTable(s.Scoreboard).Lookup(int(key[0] - '0'))
		if !ok {
			return nil
		}
		return Award(id, value, true)
	}
	return nil
}
