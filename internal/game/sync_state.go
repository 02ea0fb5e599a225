// internal/game/sync_state.go
package game

import (
	"github.com/jason-s-yu/trivia/internal/models"
)

// ViewRole selects how much of a session a viewer is shown.
type ViewRole string

const (
	RoleDirector ViewRole = "director"
	RoleStage    ViewRole = "stage"
)

// BoardCell is one clue tile as a viewer sees it.
type BoardCell struct {
	ClueID      string            `json:"clueId"`
	Points      int               `json:"points"`
	Status      models.ClueStatus `json:"status"`
	DailyDouble bool              `json:"dailyDouble,omitempty"` // director only
}

// BoardColumn is a category heading with its clues ordered by points.
type BoardColumn struct {
	CategoryID string      `json:"categoryId"`
	Title      string      `json:"title"`
	Cells      []BoardCell `json:"cells"`
}

// ClueView is the open clue. Answer is only present for the director, or for
// the stage once revealed.
type ClueView struct {
	CategoryID    string `json:"categoryId"`
	CategoryTitle string `json:"categoryTitle"`
	ClueID        string `json:"clueId"`
	Points        int    `json:"points"`
	Value         int    `json:"value"`
	Prompt        string `json:"prompt"`
	Answer        string `json:"answer,omitempty"`
	MediaURL      string `json:"mediaUrl,omitempty"`
	MediaType     string `json:"mediaType,omitempty"`
	DailyDouble   bool   `json:"dailyDouble,omitempty"`
}

// SessionView is what ws viewers receive after every transition.
type SessionView struct {
	SessionID      string               `json:"sessionId"`
	TemplateName   string               `json:"templateName"`
	Status         models.SessionStatus `json:"status"`
	Phase          Phase                `json:"phase"`
	CurrencySymbol string               `json:"currencySymbol"`
	Board          []BoardColumn        `json:"board"`
	Clue           *ClueView            `json:"clue,omitempty"`
	ShowAnswer     bool                 `json:"showAnswer"`
	Scoreboard     []models.Player      `json:"scoreboard"`
	Timer          *int                 `json:"timer"`
	TimerRunning   bool                 `json:"timerRunning"`
	Complete       bool                 `json:"complete"`
	Revision       int64                `json:"revision"`

	// director only
	DefaultTimerDuration int                 `json:"defaultTimerDuration,omitempty"`
	Events               []models.EventEntry `json:"events,omitempty"`
}

// BuildView projects a snapshot for role. The stage never sees an answer
// before it is revealed, nor the daily-double markers on the board.
func BuildView(tpl *models.Template, s *models.GameSession, role ViewRole) SessionView {
	director := role == RoleDirector
	v := SessionView{
		SessionID:    s.ID,
		Status:       s.Status,
		Phase:        PhaseOf(s),
		ShowAnswer:   s.ShowAnswer,
		Scoreboard:   append([]models.Player(nil), s.Scoreboard...),
		Timer:        s.Timer,
		TimerRunning: s.TimerRunning,
		Revision:     s.Revision,
	}
	if director {
		v.DefaultTimerDuration = s.DefaultTimerDuration
		v.Events = s.Events
	}
	if tpl == nil {
		return v
	}

	v.TemplateName = tpl.Name
	v.CurrencySymbol = tpl.Settings.CurrencySymbol
	v.Complete = BoardComplete(tpl, s)
	for _, cat := range tpl.Categories {
		col := BoardColumn{CategoryID: cat.ID, Title: cat.Title}
		for _, c := range tpl.CluesIn(cat.ID) {
			cell := BoardCell{ClueID: c.ID, Points: c.Points, Status: ClueStatusOf(s, c.ID)}
			if director {
				cell.DailyDouble = c.DailyDouble
			}
			col.Cells = append(col.Cells, cell)
		}
		v.Board = append(v.Board, col)
	}

	if s.ActiveQuestion != nil {
		if c, ok := tpl.Clue(s.ActiveQuestion.ClueID); ok {
			cv := &ClueView{
				CategoryID:  c.CategoryID,
				ClueID:      c.ID,
				Points:      c.Points,
				Value:       ClueValue(*c),
				Prompt:      c.Prompt,
				MediaURL:    c.MediaURL,
				MediaType:   c.MediaType,
				DailyDouble: c.DailyDouble,
			}
			if cat, ok := tpl.Category(c.CategoryID); ok {
				cv.CategoryTitle = cat.Title
			}
			if director || s.ShowAnswer {
				cv.Answer = c.Answer
			}
			v.Clue = cv
		}
	}
	return v
}
