// internal/template/port.go
package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/trivia/internal/models"
)

// Export encodes t as indented JSON.
func Export(t *models.Template) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilename is the download name for an exported template.
func ExportFilename(id string) string {
	return fmt.Sprintf("trivia-template-%s.json", id)
}

// Import decodes and validates an exported template and gives it to owner.
// Template, category and clue ids are regenerated so an import never collides
// with the template it came from; every clue starts out available again.
func Import(data []byte, owner string, now time.Time, newID func() string) (*models.Template, error) {
	var in models.Template
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&in); err != nil {
		return nil, invalid("$", fmt.Sprintf("malformed JSON: %v", err))
	}
	if in.Settings == (models.Settings{}) {
		in.Settings = models.DefaultSettings()
	}
	if err := Check(&in); err != nil {
		return nil, err
	}

	out := &models.Template{
		ID:         newID(),
		OwnerID:    owner,
		Name:       in.Name,
		Settings:   in.Settings,
		Categories: make([]models.Category, 0, len(in.Categories)),
		Clues:      make([]models.Clue, 0, len(in.Clues)),
		CreatedAt:  now,
		UpdatedAt:  now,
		UpdatedBy:  owner,
	}
	remap := make(map[string]string, len(in.Categories))
	for _, c := range in.Categories {
		id := newID()
		remap[c.ID] = id
		out.Categories = append(out.Categories, models.Category{ID: id, Title: c.Title})
	}
	for _, c := range in.Clues {
		c.ID = newID()
		c.CategoryID = remap[c.CategoryID]
		c.Status = models.ClueAvailable
		out.Clues = append(out.Clues, c)
	}
	return out, nil
}
