// internal/template/board.go
package template

import (
	"fmt"
	"strings"

	"github.com/jason-s-yu/trivia/internal/models"
)

// Board is a complete set of categories and clues without ids, as produced by
// content generation.
type Board struct {
	Categories []BoardCategory `json:"categories"`
}

type BoardCategory struct {
	Title string      `json:"title"`
	Clues []BoardClue `json:"clues"`
}

type BoardClue struct {
	Points int    `json:"points"`
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
}

// Shape is the structure a generated board must have.
type Shape struct {
	Categories       int
	CluesPerCategory int
	MinPoints        int
	MaxPoints        int
}

// DefaultShape is a six column, five row board.
func DefaultShape(s models.Settings) Shape {
	return Shape{Categories: 6, CluesPerCategory: 5, MinPoints: s.MinPoints, MaxPoints: s.MaxPoints}
}

// CheckShape verifies b against want and returns every mismatch.
func (b Board) CheckShape(want Shape) error {
	var issues []Issue
	add := func(path, format string, args ...interface{}) {
		issues = append(issues, Issue{Path: path, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
	}
	if len(b.Categories) != want.Categories {
		add("categories", "want %d categories, got %d", want.Categories, len(b.Categories))
	}
	for i, cat := range b.Categories {
		path := fmt.Sprintf("categories[%d]", i)
		if strings.TrimSpace(cat.Title) == "" {
			add(path+".title", "must not be blank")
		}
		if len(cat.Clues) != want.CluesPerCategory {
			add(path+".clues", "want %d clues, got %d", want.CluesPerCategory, len(cat.Clues))
		}
		for j, c := range cat.Clues {
			cpath := fmt.Sprintf("%s.clues[%d]", path, j)
			if c.Points < want.MinPoints || c.Points > want.MaxPoints {
				add(cpath+".points", "%d outside %d..%d", c.Points, want.MinPoints, want.MaxPoints)
			}
			if strings.TrimSpace(c.Prompt) == "" {
				add(cpath+".prompt", "must not be blank")
			}
			if strings.TrimSpace(c.Answer) == "" {
				add(cpath+".answer", "must not be blank")
			}
		}
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func (b Board) toTemplate(newID func() string) ([]models.Category, []models.Clue) {
	cats := make([]models.Category, 0, len(b.Categories))
	var clues []models.Clue
	for _, bc := range b.Categories {
		cat := models.Category{ID: newID(), Title: strings.TrimSpace(bc.Title)}
		cats = append(cats, cat)
		for _, c := range bc.Clues {
			clues = append(clues, models.Clue{
				ID:         newID(),
				CategoryID: cat.ID,
				Points:     c.Points,
				Prompt:     strings.TrimSpace(c.Prompt),
				Answer:     strings.TrimSpace(c.Answer),
				Status:     models.ClueAvailable,
			})
		}
	}
	return cats, clues
}
