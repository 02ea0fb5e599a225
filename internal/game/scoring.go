// internal/game/scoring.go
package game

import "github.com/jason-s-yu/trivia/internal/models"

// QuickAwardSlots is the number of digit keys bound to scoreboard positions.
const QuickAwardSlots = 9

// DefaultStep is the manual score increment when a template does not set one.
const DefaultStep = 100

// ClueValue is what a correct answer to c is worth. Daily doubles pay twice
// their face value.
func ClueValue(c models.Clue) int {
	if c.DailyDouble {
		return c.Points * 2
	}
	return c.Points
}

// ActiveClueValue returns the value of the open clue, if any.
func ActiveClueValue(tpl *models.Template, s *models.GameSession) (int, bool) {
	if tpl == nil || s.ActiveQuestion == nil {
		return 0, false
	}
	c, ok := tpl.Clue(s.ActiveQuestion.ClueID)
	if !ok {
		return 0, false
	}
	return ClueValue(*c), true
}

// ManualStep returns the +/- increment configured on the template.
func ManualStep(tpl *models.Template) int {
	if tpl == nil || tpl.Settings.Step <= 0 {
		return DefaultStep
	}
	return tpl.Settings.Step
}

// QuickAwardTable maps digit keys 1..9 to player ids by scoreboard position.
// Slots of inactive players stay empty rather than shifting later players up,
// so a key always points at the same seat.
type QuickAwardTable [QuickAwardSlots]string

// NewQuickAwardTable builds the table from the current scoreboard order.
func NewQuickAwardTable(scoreboard []models.Player) QuickAwardTable {
	var t QuickAwardTable
	for i, p := range scoreboard {
		if i >= QuickAwardSlots {
			break
		}
		if p.Active {
			t[i] = p.ID
		}
	}
	return t
}

// Lookup returns the player bound to digit (1-based), if any.
func (t QuickAwardTable) Lookup(digit int) (string, bool) {
	if digit < 1 || digit > QuickAwardSlots {
		return "", false
	}
	id := t[digit-1]
	return id, id != ""
}

// Award builds the score change for a player answering the open clue. A
// negative sign deducts the value instead.
func Award(playerID string, value int, correct bool) UpdatePlayer {
	if !correct {
		value = -value
	}
	return UpdatePlayer{ID: playerID, ScoreDelta: value}
}
