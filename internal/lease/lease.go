// Package lease is a generic time-bounded mutual-exclusion grant:
// acquire(key, ttl) -> token | busy, release(key, token). The lease only
// reduces contention on hot keys; holders must not treat it as the sole
// correctness guarantee, since it can lapse early on a crash.
package lease

import (
	"context"
	"math/rand"
	"time"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
)

type Lease interface {
	// Acquire grants the key for ttl and returns an ownership token, or
	// domain.ErrBusy when another holder's grant is still live.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Release deletes the grant if token still owns it; a stale token is
	// silently ignored.
	Release(ctx context.Context, key, token string) error
}

const retryBase = 50 * time.Millisecond

// AcquireWithRetry retries a busy lease with jittered backoff until the wait
// budget runs out, then surfaces domain.ErrBusy to the caller.
func AcquireWithRetry(ctx context.Context, l Lease, key string, ttl, wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	for {
		token, err := l.Acquire(ctx, key, ttl)
		if err == nil {
			return token, nil
		}
		if err != domain.ErrBusy {
			return "", err
		}
		sleep := retryBase + time.Duration(rand.Int63n(int64(retryBase)))
		if time.Now().Add(sleep).After(deadline) {
			return "", domain.ErrBusy
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(sleep):
		}
	}
}
