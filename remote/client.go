package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.elastic.co/apm/module/apmhttp"
	"golang.org/x/time/rate"

	"github.com/titpetric/cmsmigrate/migrate"
)

// DefaultBaseURL is the management API of the hosted platform
const DefaultBaseURL = "https://api.supabase.com"

type (
	// Client talks to the platform management API
	Client struct {
		baseURL string
		http    *http.Client
		limiter *rate.Limiter
	}

	// APIError is a non-success response from the management API
	APIError struct {
		Method     string
		Path       string
		StatusCode int
		Message    string
	}

	// PostgrestConfig is the REST exposure configuration of a project
	PostgrestConfig struct {
		DBSchema          string `json:"db_schema"`
		DBExtraSearchPath string `json:"db_extra_search_path,omitempty"`
		MaxRows           int    `json:"max_rows,omitempty"`
	}

	queryRequest struct {
		Query string `json:"query"`
	}
)

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// NewClient creates a *Client. A nil limiter disables client side rate limiting.
func NewClient(baseURL string, client *http.Client, limiter *rate.Limiter) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    apmhttp.WrapClient(client),
		limiter: limiter,
	}
}

func projectPath(ref string, parts ...string) string {
	return "/v1/projects/" + url.PathEscape(ref) + "/" + strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, token, method, path string, body, dest interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrapf(err, "%s %s", method, path)
		}
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.WithStack(err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &migrate.ConnectionError{Target: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	contents, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errors.Wrapf(err, "%s %s: reading response", method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(contents),
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return &migrate.AuthError{Target: c.baseURL, Err: apiErr}
		}
		return apiErr
	}

	if dest == nil || len(bytes.TrimSpace(contents)) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(contents, dest), "%s %s: decoding response", method, path)
}

func errorMessage(body []byte) string {
	var message struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &message); err == nil {
		if message.Message != "" {
			return message.Message
		}
		if message.Error != "" {
			return message.Error
		}
	}
	return strings.TrimSpace(string(body))
}

// Query runs SQL text against the project database and returns the result rows
func (c *Client) Query(ctx context.Context, token, ref, query string) ([]map[string]interface{}, error) {
	rows := []map[string]interface{}{}
	if err := c.do(ctx, token, http.MethodPost, projectPath(ref, "database", "query"), queryRequest{Query: query}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// PostgrestConfig reads the REST exposure configuration
func (c *Client) PostgrestConfig(ctx context.Context, token, ref string) (*PostgrestConfig, error) {
	config := &PostgrestConfig{}
	if err := c.do(ctx, token, http.MethodGet, projectPath(ref, "postgrest"), nil, config); err != nil {
		return nil, err
	}
	return config, nil
}

// UpdatePostgrestConfig writes the exposed schema list
func (c *Client) UpdatePostgrestConfig(ctx context.Context, token, ref, schemas string) error {
	body := map[string]string{"db_schema": schemas}
	return c.do(ctx, token, http.MethodPatch, projectPath(ref, "postgrest"), body, nil)
}
