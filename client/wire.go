package client

import (
	"net/http"

	"github.com/google/wire"
	"golang.org/x/time/rate"

	"github.com/titpetric/cmsmigrate/remote"
)

// Options configure the management API client
type Options struct {
	BaseURL string

	// RequestsPerSecond is the client side rate limit, 0 disables it
	RequestsPerSecond float64
	Burst             int
}

// NewManagement produces the management API client
func NewManagement(options Options, client *http.Client) *remote.Client {
	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		burst := options.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), burst)
	}
	return remote.NewClient(options.BaseURL, client, limiter)
}

var Inject = wire.NewSet(
	NewManagement,
)
