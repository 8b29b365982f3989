package credentials

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store Store) {
	t.Helper()

	_, err := store.Credential(ctx(), "acc1")
	assert.Equal(t, ErrNotFound, err)
	_, err = store.Binding(ctx(), "ws1")
	assert.Equal(t, ErrNotFound, err)

	expires := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cred := &Credential{AccountID: "acc1", AccessToken: "a", RefreshToken: "r", ExpiresAt: expires}
	require.NoError(t, store.PutCredential(ctx(), cred))

	// stored values are copies
	cred.AccessToken = "changed"

	stored, err := store.Credential(ctx(), "acc1")
	require.NoError(t, err)
	assert.Equal(t, "a", stored.AccessToken)
	assert.True(t, expires.Equal(stored.ExpiresAt))

	require.NoError(t, store.PutBinding(ctx(), &Binding{WorkspaceID: "ws1", AccountID: "acc1", ProjectRef: "proj1"}))
	binding, err := store.Binding(ctx(), "ws1")
	require.NoError(t, err)
	assert.Equal(t, "proj1", binding.ProjectRef)

	require.NoError(t, store.DeleteCredential(ctx(), "acc1"))
	_, err = store.Credential(ctx(), "acc1")
	assert.Equal(t, ErrNotFound, err)

	// bindings outlive the credential
	_, err = store.Binding(ctx(), "ws1")
	require.NoError(t, err)

	require.NoError(t, store.DeleteBinding(ctx(), "ws1"))
	_, err = store.Binding(ctx(), "ws1")
	assert.Equal(t, ErrNotFound, err)

	require.NoError(t, store.DeleteBinding(ctx(), "ws1"))
	require.NoError(t, store.Close())
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	testStore(t, NewRedisStore(client, "cms:"))
}

func TestRedisStore_Prefix(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	store := NewRedisStore(client, "cms:")
	require.NoError(t, store.PutBinding(ctx(), &Binding{WorkspaceID: "ws1", AccountID: "acc1", ProjectRef: "proj1"}))
	assert.True(t, server.Exists("cms:binding:ws1"))
}
