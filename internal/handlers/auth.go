// internal/handlers/auth.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/trivia/internal/auth"
)

const authCookie = "auth_token"

// identify returns the caller's identity, or auth.ErrInvalidToken.
func (s *Server) identify(r *http.Request) (auth.Identity, error) {
	tok := requestToken(r)
	if tok == "" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return s.Auth.Verify(tok)
}

// requireUser writes 401 and returns false when the caller has no identity.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, err := s.identify(r)
	if err != nil {
		s.writeError(w, r, err)
		return auth.Identity{}, false
	}
	return id, true
}

type guestRequest struct {
	Username string `json:"username"`
}

type authResponse struct {
	Token string        `json:"token"`
	User  auth.Identity `json:"user"`
}

// handleGuest issues a guest identity and sets it as the auth cookie. Guest
// documents are kept on the local store only.
func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	guest := auth.NewGuest(req.Username)
	tok, err := s.Auth.Issue(guest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    tok,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.WithField("user_id", guest.ID).Info("guest identity issued")
	writeJSON(w, http.StatusCreated, authResponse{Token: tok, User: guest})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, id)
}
