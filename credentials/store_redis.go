package credentials

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps credentials and bindings as JSON values in redis
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = &RedisStore{}

// NewRedisStore creates a *RedisStore; keys are namespaced with prefix
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) credentialKey(accountID string) string {
	return s.prefix + "credential:" + accountID
}

func (s *RedisStore) bindingKey(workspaceID string) string {
	return s.prefix + "binding:" + workspaceID
}

func (s *RedisStore) get(ctx context.Context, key string, dest interface{}) error {
	value, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "redis get %s", key)
	}
	return errors.Wrapf(json.Unmarshal(value, dest), "decoding %s", key)
}

func (s *RedisStore) set(ctx context.Context, key string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	return errors.Wrapf(s.client.Set(ctx, key, encoded, 0).Err(), "redis set %s", key)
}

func (s *RedisStore) del(ctx context.Context, key string) error {
	return errors.Wrapf(s.client.Del(ctx, key).Err(), "redis del %s", key)
}

// Credential loads the credential for an account
func (s *RedisStore) Credential(ctx context.Context, accountID string) (*Credential, error) {
	cred := &Credential{}
	if err := s.get(ctx, s.credentialKey(accountID), cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// PutCredential stores cred, replacing the previous value atomically
func (s *RedisStore) PutCredential(ctx context.Context, cred *Credential) error {
	return s.set(ctx, s.credentialKey(cred.AccountID), cred)
}

// DeleteCredential removes the credential of an account
func (s *RedisStore) DeleteCredential(ctx context.Context, accountID string) error {
	return s.del(ctx, s.credentialKey(accountID))
}

// Binding loads a workspace binding
func (s *RedisStore) Binding(ctx context.Context, workspaceID string) (*Binding, error) {
	binding := &Binding{}
	if err := s.get(ctx, s.bindingKey(workspaceID), binding); err != nil {
		return nil, err
	}
	return binding, nil
}

// PutBinding stores a workspace binding
func (s *RedisStore) PutBinding(ctx context.Context, binding *Binding) error {
	return s.set(ctx, s.bindingKey(binding.WorkspaceID), binding)
}

// DeleteBinding removes a workspace binding
func (s *RedisStore) DeleteBinding(ctx context.Context, workspaceID string) error {
	return s.del(ctx, s.bindingKey(workspaceID))
}

// Close closes the redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
