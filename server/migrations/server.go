package migrations

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/titpetric/cmsmigrate/credentials"
	"github.com/titpetric/cmsmigrate/internal"
	"github.com/titpetric/cmsmigrate/migrate"
	"github.com/titpetric/cmsmigrate/remote"
)

// Server exposes remote migration operations over HTTP
type Server struct {
	backend *remote.Backend
	creds   *credentials.Manager
	oauth   *credentials.OAuth
	log     logrus.FieldLogger

	serviceToken string
}

// NewServer creates a *Server
func NewServer(config *Config, backend *remote.Backend, creds *credentials.Manager, oauth *credentials.OAuth, log logrus.FieldLogger) *Server {
	return &Server{
		backend:      backend,
		creds:        creds,
		oauth:        oauth,
		log:          log,
		serviceToken: config.ServiceToken,
	}
}

// Handler returns the routed and instrumented http.Handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireService)
		r.Get("/accounts/{account}/authorize", s.Authorize)
		r.Post("/accounts/{account}/connect", s.Connect)
		r.Delete("/accounts/{account}", s.Disconnect)
	})

	r.Route("/workspaces/{workspace}", func(r chi.Router) {
		r.With(s.requireService).Put("/binding", s.Bind)
		r.With(s.requireService).Delete("/binding", s.Unbind)

		r.Group(func(r chi.Router) {
			r.Use(s.requireWorkspace)
			r.Get("/migrations/pending", s.Pending)
			r.Get("/migrations/preview", s.Preview)
			r.Post("/migrations/{group}/apply", s.Apply)
		})
	})
	return internal.WrapAll(r, s.log)
}

func bearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func tokenEquals(given, expected string) bool {
	if given == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(expected)) == 1
}

func (s *Server) requireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tokenEquals(bearer(r), s.serviceToken) {
			s.respond(w, http.StatusUnauthorized, errorResponse{Error: "invalid service token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireWorkspace accepts the workspace API key or the service token;
// the workspace must resolve to a binding
func (s *Server) requireWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspace := chi.URLParam(r, "workspace")
		binding, err := s.creds.Binding(r.Context(), workspace)
		if err != nil {
			s.error(w, r, err)
			return
		}
		token := bearer(r)
		if !tokenEquals(token, binding.APIKey) && !tokenEquals(token, s.serviceToken) {
			s.respond(w, http.StatusUnauthorized, errorResponse{Error: "invalid bearer token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Group   string `json:"group,omitempty"`
	Version string `json:"version,omitempty"`
	Name    string `json:"name,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.log.WithError(err).Warn("writing response")
		}
	}
}

func (s *Server) error(w http.ResponseWriter, r *http.Request, err error) {
	status, body := http.StatusInternalServerError, errorResponse{Error: err.Error()}

	var (
		notConnected *credentials.NotConnectedError
		refresh      *credentials.RefreshError
		auth         *migrate.AuthError
		conn         *migrate.ConnectionError
		exec         *migrate.ExecutionError
		applied      *migrate.AlreadyAppliedError
		ordering     *migrate.OrderingError
		apiErr       *remote.APIError
		grant        *oauth2.RetrieveError
	)
	switch {
	case errors.Cause(err) == migrate.ErrUnknownGroup:
		status = http.StatusNotFound
	case errors.As(err, &notConnected), errors.As(err, &refresh), errors.As(err, &auth), errors.As(err, &grant):
		status = http.StatusUnauthorized
	case errors.As(err, &exec):
		status = http.StatusUnprocessableEntity
		body.Group, body.Version, body.Name = string(exec.Group), exec.Version, exec.Name
	case errors.As(err, &applied):
		status = http.StatusConflict
		body.Group, body.Version = string(applied.Group), applied.Version
	case errors.As(err, &ordering):
		status = http.StatusConflict
		body.Group, body.Version = string(ordering.Group), ordering.Version
	case errors.As(err, &conn), errors.As(err, &apiErr):
		status = http.StatusBadGateway
	}

	log := s.log.WithError(err).WithField("path", r.URL.Path).WithField("remote_ip", internal.GetIPFromContext(r.Context()))
	if status >= 500 {
		log.Error("request failed")
		internal.CaptureError(r.Context(), err)
	} else {
		log.Warn("request failed")
	}
	s.respond(w, status, body)
}
