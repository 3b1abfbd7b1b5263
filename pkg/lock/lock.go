// Package lock guarantees at most one in-flight run per Zap.
package lock

import (
	"context"
	"time"
)

// Locker serializes runs of the same Zap. Acquire returns false when another
// run already holds the lock; callers skip the run rather than queue.
// Long-running holders call Refresh before the TTL passes; it returns false
// once the lock has expired or changed hands.
type Locker interface {
	Acquire(ctx context.Context, zapID string, ttl time.Duration) (bool, error)
	Refresh(ctx context.Context, zapID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, zapID string) error
}
