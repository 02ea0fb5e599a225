// internal/models/template.go
package models

import (
	"sort"
	"time"
)

// ClueStatus tracks where a clue is in its lifecycle within a session.
type ClueStatus string

const (
	ClueAvailable ClueStatus = "available"
	ClueSelected  ClueStatus = "selected"
	ClueAnswered  ClueStatus = "answered"
	ClueVoid      ClueStatus = "void"
)

// Valid reports whether s is one of the known statuses.
func (s ClueStatus) Valid() bool {
	switch s {
	case ClueAvailable, ClueSelected, ClueAnswered, ClueVoid:
		return true
	}
	return false
}

// Terminal reports whether a clue in this status can no longer be chosen.
func (s ClueStatus) Terminal() bool {
	return s == ClueAnswered || s == ClueVoid
}

// Settings holds the board-wide scoring and timing configuration.
type Settings struct {
	MinPoints      int    `json:"minPoints"`
	MaxPoints      int    `json:"maxPoints"`
	Step           int    `json:"step"`           // manual +/- score increment
	CurrencySymbol string `json:"currencySymbol"` // display only
	TimerDuration  int    `json:"timerDuration"`  // seconds, seeds a session's defaultTimerDuration
}

// DefaultSettings mirrors a classic five-row board.
func DefaultSettings() Settings {
	return Settings{
		MinPoints:      100,
		MaxPoints:      500,
		Step:           100,
		CurrencySymbol: "$",
		TimerDuration:  15,
	}
}

// Category is one column of the board.
type Category struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Clue is a single prompt/answer pair belonging to exactly one category.
type Clue struct {
	ID          string     `json:"id"`
	CategoryID  string     `json:"categoryId"`
	Points      int        `json:"points"`
	Prompt      string     `json:"prompt"`
	Answer      string     `json:"answer"`
	MediaURL    string     `json:"mediaUrl,omitempty"`
	MediaType   string     `json:"mediaType,omitempty"`
	DailyDouble bool       `json:"dailyDouble,omitempty"`
	Status      ClueStatus `json:"status"`
}

// Template is the reusable static definition of a board. Sessions reference
// it by ID and never mutate it while live.
type Template struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"ownerId"`
	Name       string     `json:"name"`
	Settings   Settings   `json:"settings"`
	Categories []Category `json:"categories"`
	Clues      []Clue     `json:"clues"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	UpdatedBy  string     `json:"updatedBy,omitempty"`
}

// Category returns the category with the given id.
func (t *Template) Category(id string) (*Category, bool) {
	for i := range t.Categories {
		if t.Categories[i].ID == id {
			return &t.Categories[i], true
		}
	}
	return nil, false
}

// Clue returns the clue with the given id.
func (t *Template) Clue(id string) (*Clue, bool) {
	for i := range t.Clues {
		if t.Clues[i].ID == id {
			return &t.Clues[i], true
		}
	}
	return nil, false
}

// CluesIn returns the clues of a category in board order (ascending points).
func (t *Template) CluesIn(categoryID string) []Clue {
	var out []Clue
	for _, c := range t.Clues {
		if c.CategoryID == categoryID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Points < out[j].Points })
	return out
}

// Clone returns a deep copy.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Categories = append([]Category(nil), t.Categories...)
	cp.Clues = append([]Clue(nil), t.Clues...)
	return &cp
}
