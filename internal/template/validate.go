// internal/template/validate.go
package template

import (
	"fmt"
	"strings"

	"github.com/jason-s-yu/trivia/internal/models"
)

// Severity of a validation issue. Warnings never block a save.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found in a template.
type Issue struct {
	Path     string   `json:"path"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// ValidationError carries every blocking issue found in a template.
type ValidationError struct {
	Issues []Issue `json:"issues"`
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid template: " + e.Issues[0].String()
	}
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return fmt.Sprintf("invalid template (%d issues): %s", len(e.Issues), strings.Join(parts, "; "))
}

func invalid(path, msg string) *ValidationError {
	return &ValidationError{Issues: []Issue{{Path: path, Message: msg, Severity: SeverityError}}}
}

// Validate reports every structural problem with t, errors and warnings alike.
func Validate(t *models.Template) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, args ...interface{}) {
		issues = append(issues, Issue{Path: path, Message: fmt.Sprintf(format, args...), Severity: sev})
	}

	if strings.TrimSpace(t.Name) == "" {
		add(SeverityError, "name", "must not be blank")
	}
	if len(t.Categories) == 0 {
		add(SeverityError, "categories", "at least one category is required")
	}
	st := t.Settings
	if st.MinPoints < 0 {
		add(SeverityError, "settings.minPoints", "must not be negative")
	}
	if st.MaxPoints < st.MinPoints {
		add(SeverityError, "settings.maxPoints", "must be at least minPoints")
	}
	if st.Step <= 0 {
		add(SeverityError, "settings.step", "must be positive")
	}
	if st.TimerDuration <= 0 {
		add(SeverityError, "settings.timerDuration", "must be positive")
	}

	cats := make(map[string]bool, len(t.Categories))
	for i, c := range t.Categories {
		path := fmt.Sprintf("categories[%d]", i)
		if c.ID == "" {
			add(SeverityError, path+".id", "must not be empty")
		} else if cats[c.ID] {
			add(SeverityError, path+".id", "duplicate id %q", c.ID)
		}
		cats[c.ID] = true
		if strings.TrimSpace(c.Title) == "" {
			add(SeverityError, path+".title", "must not be blank")
		}
	}

	clueIDs := make(map[string]bool, len(t.Clues))
	points := make(map[string]map[int]bool)
	for i, c := range t.Clues {
		path := fmt.Sprintf("clues[%d]", i)
		if c.ID == "" {
			add(SeverityError, path+".id", "must not be empty")
		} else if clueIDs[c.ID] {
			add(SeverityError, path+".id", "duplicate id %q", c.ID)
		}
		clueIDs[c.ID] = true
		if !cats[c.CategoryID] {
			add(SeverityError, path+".categoryId", "unknown category %q", c.CategoryID)
		}
		if c.Points < 0 {
			add(SeverityError, path+".points", "must not be negative")
		}
		if strings.TrimSpace(c.Prompt) == "" {
			add(SeverityError, path+".prompt", "must not be blank")
		}
		if strings.TrimSpace(c.Answer) == "" {
			add(SeverityError, path+".answer", "must not be blank")
		}
		if c.Status != "" && !c.Status.Valid() {
			add(SeverityError, path+".status", "unknown status %q", c.Status)
		}

		if points[c.CategoryID] == nil {
			points[c.CategoryID] = make(map[int]bool)
		}
		if points[c.CategoryID][c.Points] {
			add(SeverityWarning, path+".points", "%d already used in this category", c.Points)
		}
		points[c.CategoryID][c.Points] = true
	}
	return issues
}

// Check returns a *ValidationError if t has any blocking issue.
func Check(t *models.Template) error {
	var errs []Issue
	for _, is := range Validate(t) {
		if is.Severity == SeverityError {
			errs = append(errs, is)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Issues: errs}
}

// Warnings returns the non-blocking issues of t.
func Warnings(t *models.Template) []Issue {
	var out []Issue
	for _, is := range Validate(t) {
		if is.Severity == SeverityWarning {
			out = append(out, is)
		}
	}
	return out
}
