package cmd

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/zapflow/zapflow/pkg/lock"
)

// NewLocker picks a run locker from the URL scheme. An empty URL gives the
// in-process locker, which is only safe with a single worker.
func NewLocker(lockURL, owner string) lock.Locker {
	if lockURL == "" {
		return lock.NewMemoryLocker()
	}

	if strings.HasPrefix(lockURL, "redis://") || strings.HasPrefix(lockURL, "rediss://") {
		opts, err := redis.ParseURL(lockURL)
		if err != nil {
			panic(fmt.Errorf("failed to parse redis lock URL: %w", err))
		}

		return lock.NewRedisLocker(redis.NewClient(opts), owner)
	}

	panic("Unsupported lock provider: " + lockURL)
}
