package credentials

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

type (
	// Config holds the OAuth client settings of the management platform
	Config struct {
		ClientID     string
		ClientSecret string
		AuthURL      string
		TokenURL     string
		RedirectURL  string
		Scopes       []string
	}

	// Authorizer performs the external authorization handoff
	Authorizer interface {
		Authorize(ctx context.Context) (*oauth2.Token, error)
	}

	// Refresher exchanges a refresh token for a new token pair
	Refresher interface {
		Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	}

	// OAuth implements the authorization code flow against the platform
	OAuth struct {
		config *oauth2.Config
		client *http.Client
	}

	// CodeExchange is an Authorizer for an authorization code returned by the redirect
	CodeExchange struct {
		oauth *OAuth
		code  string
	}
)

// NewOAuth creates an *OAuth; client is used for token requests
func NewOAuth(config Config, client *http.Client) *OAuth {
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.AuthURL,
				TokenURL: config.TokenURL,
			},
		},
		client: client,
	}
}

// NewState returns a random state parameter for the authorization redirect
func NewState() string {
	return uuid.NewString()
}

func (o *OAuth) context(ctx context.Context) context.Context {
	if o.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, o.client)
}

// AuthCodeURL returns the URL the user is redirected to
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange returns an Authorizer for code
func (o *OAuth) Exchange(code string) *CodeExchange {
	return &CodeExchange{oauth: o, code: code}
}

// Refresh exchanges refreshToken for a new token pair
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token")
	}
	source := o.config.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	return token, errors.WithStack(err)
}

// Authorize exchanges the authorization code for a token pair
func (c *CodeExchange) Authorize(ctx context.Context) (*oauth2.Token, error) {
	if c.code == "" {
		return nil, errors.New("no authorization code")
	}
	token, err := c.oauth.config.Exchange(c.oauth.context(ctx), c.code)
	return token, errors.WithStack(err)
}
