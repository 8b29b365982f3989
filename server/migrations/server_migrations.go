package migrations

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/titpetric/cmsmigrate/internal"
	"github.com/titpetric/cmsmigrate/migrate"
)

// ApplyTimeout bounds a whole apply run, which outlives the request
const ApplyTimeout = 10 * time.Minute

type (
	pendingResponse struct {
		Workspace string               `json:"workspace"`
		Pending   []migrate.Definition `json:"pending"`
	}

	applyResponse struct {
		Workspace string               `json:"workspace"`
		Group     migrate.Group        `json:"group"`
		Applied   []migrate.Definition `json:"applied"`
	}

	pendingVersion struct {
		Group   migrate.Group `json:"group"`
		Version string        `json:"version"`
		Name    string        `json:"name"`
	}
)

// Pending ensures prerequisites and exposure, then lists pending versions
func (s *Server) Pending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workspace := chi.URLParam(r, "workspace")

	target, err := s.backend.Workspace(ctx, workspace)
	if err == nil {
		err = target.Prepare(ctx)
	}
	if err != nil {
		s.error(w, r, err)
		return
	}

	defs, err := s.backend.Pending(ctx, workspace)
	if err != nil {
		s.error(w, r, err)
		return
	}
	result := make([]pendingVersion, len(defs))
	for k, def := range defs {
		result[k] = pendingVersion{Group: def.Group, Version: def.Version, Name: def.Name}
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"workspace": workspace,
		"pending":   result,
	})
}

// Preview lists pending migrations with SQL without writing anything
func (s *Server) Preview(w http.ResponseWriter, r *http.Request) {
	workspace := chi.URLParam(r, "workspace")
	defs, err := s.backend.Preview(r.Context(), workspace)
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, pendingResponse{Workspace: workspace, Pending: defs})
}

// Apply applies all pending migrations of a schema group
func (s *Server) Apply(w http.ResponseWriter, r *http.Request) {
	// a disconnecting client must not abort a run between a migration and its response
	ctx, cancel := internal.DetachedContext(r.Context(), ApplyTimeout)
	defer cancel()
	workspace := chi.URLParam(r, "workspace")
	group := migrate.Group(chi.URLParam(r, "group"))

	applied, err := s.backend.ApplyAll(ctx, workspace, group)
	if err != nil {
		s.error(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, applyResponse{Workspace: workspace, Group: group, Applied: applied})
}
