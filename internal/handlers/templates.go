// internal/handlers/templates.go
package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jason-s-yu/trivia/internal/template"
)

type templateResponse struct {
	*models.Template
	Warnings []template.Issue `json:"warnings,omitempty"`
	Live     bool             `json:"live"`
}

func (s *Server) templateBody(t *models.Template) templateResponse {
	return templateResponse{Template: t, Warnings: template.Warnings(t), Live: s.templateLive(t.ID)}
}

// ownedTemplate loads the template in the path and checks the caller owns it.
func (s *Server) ownedTemplate(w http.ResponseWriter, r *http.Request) (*models.Template, auth.Identity, bool) {
	id, ok := s.requireUser(w, r)
	if !ok {
		return nil, id, false
	}
	tpl, err := s.Repo.LoadTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, id, false
	}
	if tpl.OwnerID != id.ID {
		s.writeError(w, r, fmt.Errorf("%w: template belongs to another user", errForbidden))
		return nil, id, false
	}
	return tpl, id, true
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	list, err := s.Repo.ListTemplates(r.Context(), id.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createTemplateRequest struct {
	Name     string           `json:"name"`
	Settings *models.Settings `json:"settings,omitempty"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req createTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	tpl, err := s.editor.New(id.ID, req.Name, req.Settings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Repo.SaveTemplate(r.Context(), tpl); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.templateBody(tpl))
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, _, ok := s.ownedTemplate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.templateBody(tpl))
}

// editRequest is one template edit. Op selects which fields are read.
type editRequest struct {
	Op         string                 `json:"op"`
	Name       string                 `json:"name,omitempty"`
	Settings   map[string]interface{} `json:"settings,omitempty"`
	CategoryID string                 `json:"categoryId,omitempty"`
	Title      string                 `json:"title,omitempty"`
	ClueID     string                 `json:"clueId,omitempty"`
	Clue       *models.Clue           `json:"clue,omitempty"`
	Update     *template.ClueUpdate   `json:"update,omitempty"`
	Board      *template.Board        `json:"board,omitempty"`
}

type editResponse struct {
	templateResponse
	CreatedID string `json:"createdId,omitempty"`
}

func (s *Server) applyEdit(tpl *models.Template, actor string, req editRequest) (*models.Template, string, error) {
	e := s.editor
	switch req.Op {
	case "rename":
		out, err := e.Rename(tpl, actor, req.Name)
		return out, "", err
	case "update_settings":
		out, err := e.UpdateSettings(tpl, actor, req.Settings)
		return out, "", err
	case "add_category":
		return e.AddCategory(tpl, actor, req.Title)
	case "rename_category":
		out, err := e.RenameCategory(tpl, actor, req.CategoryID, req.Title)
		return out, "", err
	case "remove_category":
		out, err := e.RemoveCategory(tpl, actor, req.CategoryID)
		return out, "", err
	case "add_clue":
		if req.Clue == nil {
			return nil, "", fmt.Errorf("%w: clue is required", errBadRequest)
		}
		return e.AddClue(tpl, actor, *req.Clue)
	case "update_clue":
		if req.Update == nil {
			return nil, "", fmt.Errorf("%w: update is required", errBadRequest)
		}
		out, err := e.UpdateClue(tpl, actor, req.ClueID, *req.Update)
		return out, "", err
	case "remove_clue":
		out, err := e.RemoveClue(tpl, actor, req.ClueID)
		return out, "", err
	case "apply_board":
		if req.Board == nil {
			return nil, "", fmt.Errorf("%w: board is required", errBadRequest)
		}
		out, err := e.ApplyBoard(tpl, actor, *req.Board)
		return out, "", err
	case "reset_statuses":
		if s.templateLive(tpl.ID) {
			return nil, "", template.ErrTemplateLive
		}
		out := template.ResetStatuses(tpl)
		out.UpdatedAt = s.Clock.Now()
		out.UpdatedBy = actor
		return out, "", nil
	}
	return nil, "", fmt.Errorf("%w: unknown op %q", errBadRequest, req.Op)
}

func (s *Server) handleEditTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, id, ok := s.ownedTemplate(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, created, err := s.applyEdit(tpl, id.ID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Repo.SaveTemplate(r.Context(), out); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, editResponse{templateResponse: s.templateBody(out), CreatedID: created})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, _, ok := s.ownedTemplate(w, r)
	if !ok {
		return
	}
	if s.templateLive(tpl.ID) {
		s.writeError(w, r, template.ErrTemplateLive)
		return
	}
	if err := s.Repo.DeleteTemplate(r.Context(), tpl.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	tpl, err := template.Import(data, id.ID, s.Clock.Now(), s.NewID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Repo.SaveTemplate(r.Context(), tpl); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.templateBody(tpl))
}

func (s *Server) handleExportTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, _, ok := s.ownedTemplate(w, r)
	if !ok {
		return
	}
	data, err := template.Export(tpl)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", template.ExportFilename(tpl.ID)))
	_, _ = w.Write(data)
}

type generateRequest struct {
	Topic  string `json:"topic"`
	Prompt string `json:"prompt"`
}

// handleGenerateBoard replaces the template's board with a generated one.
func (s *Server) handleGenerateBoard(w http.ResponseWriter, r *http.Request) {
	tpl, id, ok := s.ownedTemplate(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		s.writeError(w, r, fmt.Errorf("%w: topic is required", errBadRequest))
		return
	}
	if s.templateLive(tpl.ID) {
		s.writeError(w, r, template.ErrTemplateLive)
		return
	}
	board, err := s.Generator.GenerateBoard(r.Context(), req.Topic, tpl.Settings)
	if err != nil {
		s.logger.WithError(err).WithField("template_id", tpl.ID).Warn("board generation failed")
		s.writeError(w, r, err)
		return
	}
	out, err := s.editor.ApplyBoard(tpl, id.ID, board)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Repo.SaveTemplate(r.Context(), out); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.templateBody(out))
}

// handleGenerateVisual illustrates a clue, by default from its own prompt.
func (s *Server) handleGenerateVisual(w http.ResponseWriter, r *http.Request) {
	tpl, id, ok := s.ownedTemplate(w, r)
	if !ok {
		return
	}
	clue, found := tpl.Clue(r.PathValue("clueId"))
	if !found {
		s.writeError(w, r, template.ErrClueNotFound)
		return
	}
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = clue.Prompt
	}
	if s.templateLive(tpl.ID) {
		s.writeError(w, r, template.ErrTemplateLive)
		return
	}
	visual, err := s.Generator.GenerateVisual(r.Context(), prompt)
	if err != nil {
		s.logger.WithError(err).WithField("clue_id", clue.ID).Warn("visual generation failed")
		s.writeError(w, r, err)
		return
	}
	out, err := s.editor.SetClueMedia(tpl, id.ID, clue.ID, visual.DataURL(), visual.MediaType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Repo.SaveTemplate(r.Context(), out); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.templateBody(out))
}
