package migrate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLock_AcquireRelease(t *testing.T) {
	lock := NewKeyedLock()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		release, err := lock.Acquire(ctx, "db/content")
		require.NoError(t, err, "acquire %d", i)
		release()
		// releasing twice is harmless
		release()
	}
}

func TestKeyedLock_Serializes(t *testing.T) {
	lock := NewKeyedLock()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maximum int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := lock.Acquire(ctx, "db/content")
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			mu.Lock()
			active++
			if active > maximum {
				maximum = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maximum)
}

func TestKeyedLock_IndependentKeys(t *testing.T) {
	lock := NewKeyedLock()
	ctx := context.Background()

	release, err := lock.Acquire(ctx, lockKey("db", "content"))
	require.NoError(t, err)
	defer release()

	other, err := lock.Acquire(ctx, lockKey("db", "comments"))
	require.NoError(t, err)
	other()
}

func TestKeyedLock_CancelledContext(t *testing.T) {
	lock := NewKeyedLock()

	release, err := lock.Acquire(context.Background(), "db/content")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = lock.Acquire(ctx, "db/content")
	assert.Error(t, err)

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = lock.Acquire(cancelled, "db/other")
	assert.Error(t, err)
}
