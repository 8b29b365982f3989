package migrate

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Locker provides mutual exclusion for runs against one (target, group)
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done.
	// The returned release function must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// KeyedLock is an in-process Locker, one slot per key
type KeyedLock struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewKeyedLock creates a *KeyedLock
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{
		slots: make(map[string]chan struct{}),
	}
}

func (l *KeyedLock) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	return slot
}

// Acquire waits for the slot of key
func (l *KeyedLock) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "acquire lock %s", key)
	}

	slot := l.slot(key)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "acquire lock %s", key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}

func lockKey(target string, group Group) string {
	return target + "/" + string(group)
}
