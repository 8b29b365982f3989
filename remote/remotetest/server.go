// Package remotetest provides an in-memory management API for tests.
package remotetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

var (
	existsMatcher = regexp.MustCompile(`information_schema\.tables where table_schema = '(\w+)'`)
	selectMatcher = regexp.MustCompile(`^select version from "(\w+)"\.schema_migrations`)
	createMatcher = regexp.MustCompile(`create table if not exists "(\w+)"\.schema_migrations`)
	insertMatcher = regexp.MustCompile(`insert into "(\w+)"\.schema_migrations \(version, name\) values \('(\d{14})'`)
	deleteMatcher = regexp.MustCompile(`delete from "(\w+)"\.schema_migrations where version = '(\d{14})'`)
)

// Server is a fake management API. Tracking tables and exposed schemas
// are simulated; migration bodies are recorded but not interpreted.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	tokens   map[string]bool
	refresh  map[string]bool
	issued   int
	projects map[string]*Project
}

// Project is the simulated state of one project
type Project struct {
	mu      sync.Mutex
	schemas string
	tables  map[string]bool
	applied map[string]map[string]bool
	queries []string
	tokens  []string
	patches int
	failOn  string
}

// NewServer starts a fake management API
func NewServer() *Server {
	s := &Server{
		tokens:   make(map[string]bool),
		refresh:  make(map[string]bool),
		projects: make(map[string]*Project),
	}

	r := chi.NewRouter()
	r.Post("/v1/oauth/token", s.token)
	r.Route("/v1/projects/{ref}", func(r chi.Router) {
		r.Use(s.authorize)
		r.Post("/database/query", s.query)
		r.Get("/postgrest", s.postgrest)
		r.Patch("/postgrest", s.updatePostgrest)
	})
	s.Server = httptest.NewServer(r)
	return s
}

// AllowToken accepts token as a bearer credential
func (s *Server) AllowToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = true
}

// RevokeToken rejects token from now on
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// TokenURL is the OAuth token endpoint
func (s *Server) TokenURL() string {
	return s.URL + "/v1/oauth/token"
}

// Issued returns how many token pairs were issued
func (s *Server) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

// token issues an allowed token pair for any authorization code except
// "invalid", or for a previously issued refresh token
func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if code := r.PostForm.Get("code"); code == "" || code == "invalid" {
			respond(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
	case "refresh_token":
		if !s.refresh[r.PostForm.Get("refresh_token")] {
			respond(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
	default:
		respond(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	s.issued++
	access, refresh := fmt.Sprintf("access-%d", s.issued), fmt.Sprintf("refresh-%d", s.issued)
	s.tokens[access] = true
	s.refresh[refresh] = true
	respond(w, http.StatusOK, map[string]interface{}{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    3600,
	})
}

// AddProject creates a project with the given exposed schemas
func (s *Server) AddProject(ref, schemas string) *Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	project := &Project{
		schemas: schemas,
		tables:  make(map[string]bool),
		applied: make(map[string]map[string]bool),
	}
	s.projects[ref] = project
	return project
}

func (s *Server) project(r *http.Request) *Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects[chi.URLParam(r, "ref")]
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		s.mu.Lock()
		ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			respond(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		if s.project(r) == nil {
			respond(w, http.StatusNotFound, map[string]string{"message": "project not found"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	rows, status, message := s.project(r).run(req.Query, bearer(r))
	if status != http.StatusCreated {
		respond(w, status, map[string]string{"message": message})
		return
	}
	respond(w, status, rows)
}

func (s *Server) postgrest(w http.ResponseWriter, r *http.Request) {
	project := s.project(r)
	project.mu.Lock()
	defer project.mu.Unlock()
	respond(w, http.StatusOK, map[string]interface{}{
		"db_schema": project.schemas,
		"max_rows":  1000,
	})
}

func (s *Server) updatePostgrest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DBSchema string `json:"db_schema"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	project := s.project(r)
	project.mu.Lock()
	defer project.mu.Unlock()
	project.schemas = req.DBSchema
	project.patches++
	respond(w, http.StatusOK, map[string]interface{}{"db_schema": project.schemas})
}

// run executes a query against the simulated state; a write either
// applies completely or not at all
func (p *Project) run(query, token string) ([]map[string]interface{}, int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, query)
	p.tokens = append(p.tokens, token)

	rows := []map[string]interface{}{}
	switch {
	case query == "select 1":
		return append(rows, map[string]interface{}{"?column?": 1}), http.StatusCreated, ""
	case existsMatcher.MatchString(query):
		group := existsMatcher.FindStringSubmatch(query)[1]
		if p.tables[group] {
			rows = append(rows, map[string]interface{}{"table_name": "schema_migrations"})
		}
		return rows, http.StatusCreated, ""
	case selectMatcher.MatchString(query):
		group := selectMatcher.FindStringSubmatch(query)[1]
		if !p.tables[group] {
			return nil, http.StatusBadRequest, "relation does not exist"
		}
		for _, version := range p.versions(group) {
			rows = append(rows, map[string]interface{}{"version": version})
		}
		return rows, http.StatusCreated, ""
	}

	if p.failOn != "" && strings.Contains(query, p.failOn) {
		return nil, http.StatusBadRequest, "ERROR: syntax error at or near \"" + p.failOn + "\""
	}
	for _, match := range insertMatcher.FindAllStringSubmatch(query, -1) {
		if p.applied[match[1]][match[2]] {
			return nil, http.StatusBadRequest, "duplicate key value violates unique constraint"
		}
	}

	for _, match := range createMatcher.FindAllStringSubmatch(query, -1) {
		p.tables[match[1]] = true
	}
	for _, match := range insertMatcher.FindAllStringSubmatch(query, -1) {
		if p.applied[match[1]] == nil {
			p.applied[match[1]] = make(map[string]bool)
		}
		p.applied[match[1]][match[2]] = true
	}
	for _, match := range deleteMatcher.FindAllStringSubmatch(query, -1) {
		delete(p.applied[match[1]], match[2])
	}
	return rows, http.StatusCreated, ""
}

func (p *Project) versions(group string) []string {
	result := []string{}
	for version := range p.applied[group] {
		result = append(result, version)
	}
	sort.Strings(result)
	return result
}

// FailOn makes every write containing substring fail
func (p *Project) FailOn(substring string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOn = substring
}

// Schemas returns the exposed schema list
func (p *Project) Schemas() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.schemas
}

// Patches returns how many times the exposed schemas were written
func (p *Project) Patches() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.patches
}

// HasTable returns true if the tracking table of group exists
func (p *Project) HasTable(group string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tables[group]
}

// Applied returns the recorded versions of group
func (p *Project) Applied(group string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.versions(group)
}

// Queries returns every query received, in order
func (p *Project) Queries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.queries...)
}

// TokenFor returns the bearer token of the last query containing substring
func (p *Project) TokenFor(substring string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.queries) - 1; i >= 0; i-- {
		if strings.Contains(p.queries[i], substring) {
			return p.tokens[i]
		}
	}
	return ""
}

// Writes returns the number of queries which weren't reads
func (p *Project) Writes() int {
	count := 0
	for _, query := range p.Queries() {
		if query == "select 1" || existsMatcher.MatchString(query) || selectMatcher.MatchString(query) {
			continue
		}
		count++
	}
	return count
}

// Count returns the number of queries containing substring
func (p *Project) Count(substring string) int {
	count := 0
	for _, query := range p.Queries() {
		if strings.Contains(query, substring) {
			count++
		}
	}
	return count
}
