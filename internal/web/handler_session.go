package web

import (
	"net/http"
	"strings"

	"github.com/vbonduro/shelfinv/internal/domain"
)

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{}
	if s.session != nil {
		if user, ok := s.session.User(); ok {
			resp.Authenticated = true
			resp.User = &user
		}
	}
	respond(w, http.StatusOK, resp)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		respond(w, http.StatusNotFound, errorResponse{Error: "sessions are disabled"})
		return
	}

	var req signInRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		badRequest(w, "username and password required")
		return
	}

	user, err := s.session.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, sessionResponse{Authenticated: true, User: &user})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if s.session != nil {
		if err := s.session.SignOut(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
