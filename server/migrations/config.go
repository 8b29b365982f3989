package migrations

import (
	"github.com/titpetric/cmsmigrate/client"
	"github.com/titpetric/cmsmigrate/credentials"
)

// Config holds the hosted migration service settings
type Config struct {
	Listen string

	// ServiceToken authorizes account and binding management, and
	// migration calls for any workspace
	ServiceToken string

	Management client.Options
	OAuth      credentials.Config

	RedisAddr   string
	RedisPrefix string
}
