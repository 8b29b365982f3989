package credentials

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenServer is a fake OAuth token endpoint
type tokenServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []url.Values
	status   int
	token    map[string]interface{}
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{
		status: http.StatusOK,
		token: map[string]interface{}{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"token_type":    "bearer",
			"expires_in":    3600,
		},
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ts.mu.Lock()
		ts.requests = append(ts.requests, r.PostForm)
		status, token := ts.status, ts.token
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(token)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) fail() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.status = http.StatusBadRequest
}

func (ts *tokenServer) Requests() []url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]url.Values{}, ts.requests...)
}

func (ts *tokenServer) OAuth() *OAuth {
	return NewOAuth(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		AuthURL:      ts.URL + "/authorize",
		TokenURL:     ts.URL + "/token",
		RedirectURL:  "https://cms.example.com/callback",
	}, ts.Client())
}

func TestOAuth_AuthCodeURL(t *testing.T) {
	oauth := newTokenServer(t).OAuth()

	state := NewState()
	assert.NotEmpty(t, state)
	assert.NotEqual(t, state, NewState())

	u, err := url.Parse(oauth.AuthCodeURL(state))
	require.NoError(t, err)
	assert.Equal(t, "/authorize", u.Path)
	assert.Equal(t, state, u.Query().Get("state"))
	assert.Equal(t, "client", u.Query().Get("client_id"))
	assert.Equal(t, "offline", u.Query().Get("access_type"))
}

func TestOAuth_Exchange(t *testing.T) {
	ts := newTokenServer(t)
	oauth := ts.OAuth()

	token, err := oauth.Exchange("code-1").Authorize(ctx())
	require.NoError(t, err)
	assert.Equal(t, "access-2", token.AccessToken)
	assert.Equal(t, "refresh-2", token.RefreshToken)

	requests := ts.Requests()
	require.NotEmpty(t, requests)
	last := requests[len(requests)-1]
	assert.Equal(t, "authorization_code", last.Get("grant_type"))
	assert.Equal(t, "code-1", last.Get("code"))

	_, err = oauth.Exchange("").Authorize(ctx())
	assert.Error(t, err)
}

func TestOAuth_Refresh(t *testing.T) {
	ts := newTokenServer(t)
	oauth := ts.OAuth()

	token, err := oauth.Refresh(ctx(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", token.AccessToken)

	requests := ts.Requests()
	last := requests[len(requests)-1]
	assert.Equal(t, "refresh_token", last.Get("grant_type"))
	assert.Equal(t, "refresh-1", last.Get("refresh_token"))

	_, err = oauth.Refresh(ctx(), "")
	assert.Error(t, err)

	ts.fail()
	_, err = oauth.Refresh(ctx(), "refresh-1")
	assert.Error(t, err)
}
