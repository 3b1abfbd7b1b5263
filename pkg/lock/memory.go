package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is the single-process locker used for development and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, zapID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()

	expiry, exists := l.held[zapID]
	if exists && expiry.After(now) {
		return false, nil
	}

	l.held[zapID] = now.Add(ttl)

	return true, nil
}

func (l *MemoryLocker) Refresh(_ context.Context, zapID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()

	expiry, exists := l.held[zapID]
	if !exists || !expiry.After(now) {
		return false, nil
	}

	l.held[zapID] = now.Add(ttl)

	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, zapID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.held, zapID)

	return nil
}
