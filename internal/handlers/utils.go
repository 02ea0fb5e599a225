// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/jason-s-yu/trivia/internal/generate"
	"github.com/jason-s-yu/trivia/internal/persist"
	"github.com/jason-s-yu/trivia/internal/template"
)

var (
	errBadRequest = errors.New("bad request")
	errForbidden  = errors.New("forbidden")
)

// maxBodyBytes bounds request bodies, imports included.
const maxBodyBytes = 4 << 20

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// requestToken finds the bearer token in the Authorization header, the
// auth_token cookie, or the token query parameter (browsers cannot set headers
// on websocket upgrades).
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if tok := extractCookieToken(r.Header.Get("Cookie"), authCookie); tok != "" {
		return tok
	}
	return r.URL.Query().Get("token")
}

func decodeJSON(r *http.Request, v interface{}) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string           `json:"error"`
	Kind   string           `json:"kind,omitempty"`
	Issues []template.Issue `json:"issues,omitempty"`
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	var verr *template.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, errBadRequest), errors.Is(err, game.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, persist.ErrNotFound), errors.Is(err, template.ErrCategoryNotFound), errors.Is(err, template.ErrClueNotFound):
		return http.StatusNotFound
	case errors.Is(err, template.ErrTemplateLive):
		return http.StatusConflict
	case errors.Is(err, generate.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	switch generate.KindOf(err) {
	case generate.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case generate.KindOverloaded:
		return http.StatusServiceUnavailable
	case generate.KindMalformedOutput:
		return http.StatusUnprocessableEntity
	case generate.KindPolicyBlocked:
		return http.StatusUnavailableForLegalReasons
	case generate.KindBusy:
		return http.StatusConflict
	case generate.KindUnauthorized:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError sends a typed error body. Internal failures are logged and not
// echoed to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), Kind: string(generate.KindOf(err))}
	var verr *template.ValidationError
	if errors.As(err, &verr) {
		body.Issues = verr.Issues
	}
	if status == http.StatusBadGateway {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("content provider rejected our credentials")
	}
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}
