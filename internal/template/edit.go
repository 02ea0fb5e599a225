// internal/template/edit.go
package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrTemplateLive is returned for edits to a template a live session is using.
	ErrTemplateLive     = errors.New("template is in use by a live session")
	ErrCategoryNotFound = errors.New("category not found")
	ErrClueNotFound     = errors.New("clue not found")
)

// Editor applies edits to templates. Every edit works on a copy, stamps
// UpdatedAt/UpdatedBy, and is refused while the template is live.
type Editor struct {
	// IsLive reports whether a session that has not ended references the
	// template. Nil means never.
	IsLive func(templateID string) bool

	Clock clockwork.Clock
	NewID func() string
}

// NewEditor returns an Editor with a real clock and uuid ids.
func NewEditor(isLive func(string) bool) *Editor {
	return &Editor{IsLive: isLive, Clock: clockwork.NewRealClock(), NewID: uuid.NewString}
}

// New creates an empty template owned by ownerID.
func (e *Editor) New(ownerID, name string, settings *models.Settings) (*models.Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "must not be blank")
	}
	st := models.DefaultSettings()
	if settings != nil {
		st = *settings
	}
	now := e.Clock.Now()
	t := &models.Template{
		ID:         e.NewID(),
		OwnerID:    ownerID,
		Name:       name,
		Settings:   st,
		Categories: []models.Category{},
		Clues:      []models.Clue{},
		CreatedAt:  now,
		UpdatedAt:  now,
		UpdatedBy:  ownerID,
	}
	return t, nil
}

// edit guards, copies, mutates and stamps.
func (e *Editor) edit(t *models.Template, actor string, fn func(cp *models.Template) error) (*models.Template, error) {
	if e.IsLive != nil && e.IsLive(t.ID) {
		return nil, ErrTemplateLive
	}
	cp := t.Clone()
	if err := fn(cp); err != nil {
		return nil, err
	}
	cp.UpdatedAt = e.Clock.Now()
	cp.UpdatedBy = actor
	return cp, nil
}

func (e *Editor) Rename(t *models.Template, actor, name string) (*models.Template, error) {
	return e.edit(t, actor, func(cp *models.Template) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return invalid("name", "must not be blank")
		}
		cp.Name = name
		return nil
	})
}

// UpdateSettings applies a partial settings patch (see the package-level
// UpdateSettings).
func (e *Editor) UpdateSettings(t *models.Template, actor string, patch map[string]interface{}) (*models.Template, error) {
	return e.edit(t, actor, func(cp *models.Template) error {
		st, err := UpdateSettings(cp.Settings, patch)
		if err != nil {
			return invalid("settings", err.Error())
		}
		cp.Settings = st
		return nil
	})
}

// AddCategory appends a column and returns the template with its id.
func (e *Editor) AddCategory(t *models.Template, actor, title string) (*models.Template, string, error) {
	id := e.NewID()
	out, err := e.edit(t, actor, func(cp *models.Template) error {
		title = strings.TrimSpace(title)
		if title == "" {
			return invalid("title", "must not be blank")
		}
		cp.Categories = append(cp.Categories, models.Category{ID: id, Title: title})
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, id, nil
}

func (e *Editor) RenameCategory(t *models.Template, actor, categoryID, title string) (*models.Template, error) {
	return e.edit(t, actor, func(cp *models.Template) error {
		cat, ok := cp.Category(categoryID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrCategoryNotFound, categoryID)
		}
		title = strings.TrimSpace(title)
		if title == "" {
			return invalid("title", "must not be blank")
		}
		cat.Title = title
		return nil
	})
}

// RemoveCategory drops a column together with its clues.
func (e *Editor) RemoveCategory(t *models.Template, actor, categoryID string) (*models.Template, error) {
	return e.edit(t, actor, func(cp *models.Template) error {
		if _, ok := cp.Category(categoryID); !ok {
			return fmt.Errorf("%w: %s", ErrCategoryNotFound, categoryID)
		}
		cats := cp.Categories[:0]
		for _, c := range cp.Categories {
			if c.ID != categoryID {
				cats = append(cats, c)
			}
		}
		cp.Categories = cats
		clues := cp.Clues[:0]
		for _, c := range cp.Clues {
			if c.CategoryID != categoryID {
				clues = append(clues, c)
			}
		}
		cp.Clues = clues
		return nil
	})
}

// AddClue appends c under its category. The id is always assigned here and
// the status reset to available.
func (e *Editor) AddClue(t *models.Template, actor string, c models.Clue) (*models.Template, string, error) {
	id := e.NewID()
	out, err := e.edit(t, actor, func(cp *models.Template) error {
		if _, ok := cp.Category(c.CategoryID); !ok {
			return fmt.Errorf("%w: %s", ErrCategoryNotFound, c.CategoryID)
		}
		c.ID = id
		c.Status = models.ClueAvailable
		if err := checkClue(c); err != nil {
			return err
		}
		cp.Clues = append(cp.Clues, c)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, id, nil
}

// ClueUpdate is a partial clue edit. Nil fields are left alone.
type ClueUpdate struct {
	Prompt      *string `json:"prompt,omitempty"`
	Answer      *string `json:"answer,omitempty"`
	Points      *int    `json:"points,omitempty"`
	MediaURL    *string `json:"mediaUrl,omitempty"`
	MediaType   *string `json:"mediaType,omitempty"`
	DailyDouble *bool   `json:"dailyDouble,omitempty"`
}

func (e *Editor) UpdateClue(t *models.Template, actor, clueID string, u ClueUpdate) (*models.Template, error) {
	return e.edit(t, actor, func(cp *models.Template) error {
		c, ok := cp.Clue(clueID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrClueNotFound, clueID)
		}
		next := *c
		if u.Prompt != nil {
			next.Prompt = *u.Prompt
		}
		if u.Answer != nil {
			next.Answer = *u.Answer
		}
		if u.Points != nil {
			next.Points = *u.Points
		}
		if u.MediaURL != nil {
			next.MediaURL = *u.MediaURL
		}
		if u.MediaType != nil {
			next.MediaType = *u.MediaType
		}
		if u.DailyDouble != nil {
			next.DailyDouble = *u.DailyDouble
		}
		if err := checkClue(next); err != nil {
			return err
		}
		*c = next
		return nil
	})
}

func (e *Editor) RemoveClue(t *models.Template, actor, clueID string) (*models.Template, error) {
	return e.edit(t, actor, func(cp *models.Template) error {
		for i, c := range cp.Clues {
			if c.ID == clueID {
				cp.Clues = append(cp.Clues[:i], cp.Clues[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrClueNotFound, clueID)
	})
}

// SetClueMedia attaches a generated or uploaded visual to a clue.
func (e *Editor) SetClueMedia(t *models.Template, actor, clueID, url, mediaType string) (*models.Template, error) {
	return e.UpdateClue(t, actor, clueID, ClueUpdate{MediaURL: &url, MediaType: &mediaType})
}

// ApplyBoard replaces every category and clue with a generated board.
func (e *Editor) ApplyBoard(t *models.Template, actor string, b Board) (*models.Template, error) {
	return e.edit(t, actor, func(cp *models.Template) error {
		cats, clues := b.toTemplate(e.NewID)
		cp.Categories = cats
		cp.Clues = clues
		return Check(cp)
	})
}

// ProjectStatuses copies the answered/void marks of a finished session onto a
// copy of its template so the editor shows which clues were played.
func ProjectStatuses(t *models.Template, s *models.GameSession) *models.Template {
	cp := t.Clone()
	for i := range cp.Clues {
		if st, ok := s.ClueStatus[cp.Clues[i].ID]; ok && st.Terminal() {
			cp.Clues[i].Status = st
		}
	}
	return cp
}

// ResetStatuses marks every clue available again.
func ResetStatuses(t *models.Template) *models.Template {
	cp := t.Clone()
	for i := range cp.Clues {
		cp.Clues[i].Status = models.ClueAvailable
	}
	return cp
}

func checkClue(c models.Clue) error {
	var issues []Issue
	if c.Points < 0 {
		issues = append(issues, Issue{Path: "points", Message: "must not be negative", Severity: SeverityError})
	}
	if strings.TrimSpace(c.Prompt) == "" {
		issues = append(issues, Issue{Path: "prompt", Message: "must not be blank", Severity: SeverityError})
	}
	if strings.TrimSpace(c.Answer) == "" {
		issues = append(issues, Issue{Path: "answer", Message: "must not be blank", Severity: SeverityError})
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
