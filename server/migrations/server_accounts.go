package migrations

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/titpetric/cmsmigrate/credentials"
)

// Authorize returns the URL starting the OAuth handoff for an account
func (s *Server) Authorize(w http.ResponseWriter, r *http.Request) {
	state := credentials.NewState()
	s.respond(w, http.StatusOK, map[string]string{
		"account": chi.URLParam(r, "account"),
		"state":   state,
		"url":     s.oauth.AuthCodeURL(state),
	})
}

// Connect exchanges an authorization code and stores the account credential
func (s *Server) Connect(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.Code == "" {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "missing authorization code"})
		return
	}

	cred, err := s.creds.Connect(r.Context(), chi.URLParam(r, "account"), s.oauth.Exchange(request.Code))
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"account":    cred.AccountID,
		"expires_at": cred.ExpiresAt,
	})
}

// Disconnect removes the credential of an account
func (s *Server) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.creds.Disconnect(r.Context(), chi.URLParam(r, "account")); err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusNoContent, nil)
}

// Bind links a workspace to a project of a connected account
func (s *Server) Bind(w http.ResponseWriter, r *http.Request) {
	binding := &credentials.Binding{}
	if err := json.NewDecoder(r.Body).Decode(binding); err != nil {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid binding"})
		return
	}
	binding.WorkspaceID = chi.URLParam(r, "workspace")
	if err := s.creds.Bind(r.Context(), binding); err != nil {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.respond(w, http.StatusNoContent, nil)
}

// Unbind removes a workspace binding, also when the account is disconnected
func (s *Server) Unbind(w http.ResponseWriter, r *http.Request) {
	if err := s.creds.UnbindWorkspace(r.Context(), chi.URLParam(r, "workspace")); err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusNoContent, nil)
}
