package migrations

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/titpetric/cmsmigrate/credentials"
)

// NewStore produces the credential store; redis when configured, memory otherwise
func NewStore(ctx context.Context, config *Config, log logrus.FieldLogger) (credentials.Store, func(), error) {
	if config.RedisAddr == "" {
		log.Warn("no redis address configured, credentials are kept in memory")
		store := credentials.NewMemoryStore()
		return store, func() { store.Close() }, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, errors.Wrapf(err, "connecting to redis %s", config.RedisAddr)
	}
	store := credentials.NewRedisStore(rdb, config.RedisPrefix)
	return store, func() { store.Close() }, nil
}

// NewOAuth produces the OAuth client of the management platform
func NewOAuth(config *Config, client *http.Client) *credentials.OAuth {
	return credentials.NewOAuth(config.OAuth, client)
}

// NewManager produces the credential lifecycle manager
func NewManager(store credentials.Store, oauth *credentials.OAuth, log logrus.FieldLogger) *credentials.Manager {
	return credentials.NewManager(store, oauth, log)
}
