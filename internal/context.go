package internal

import (
	"context"
	"time"
)

// DetachedContext returns a context that keeps the values of ctx but is
// not cancelled with it. The result is bounded by timeout, if positive.
func DetachedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, timeout)
}
