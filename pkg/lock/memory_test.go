package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerAcquireRelease(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	ok, err := locker.Acquire(ctx, "zap-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second acquisition for the same Zap is denied.
	ok, err = locker.Acquire(ctx, "zap-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different Zap is unaffected.
	ok, err = locker.Acquire(ctx, "zap-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, locker.Release(ctx, "zap-1"))

	ok, err = locker.Acquire(ctx, "zap-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLockerRefreshExtendsTTL(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	now := time.Now()
	locker.clock = func() time.Time { return now }

	ok, err := locker.Acquire(ctx, "zap-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Refresh just before expiry keeps the lock held past the original TTL.
	locker.clock = func() time.Time { return now.Add(50 * time.Second) }

	ok, err = locker.Refresh(ctx, "zap-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	locker.clock = func() time.Time { return now.Add(100 * time.Second) }

	ok, err = locker.Acquire(ctx, "zap-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLockerRefreshAfterExpiryFails(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	now := time.Now()
	locker.clock = func() time.Time { return now }

	ok, err := locker.Acquire(ctx, "zap-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	locker.clock = func() time.Time { return now.Add(2 * time.Minute) }

	ok, err = locker.Refresh(ctx, "zap-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLockerTTLExpiry(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	now := time.Now()
	locker.clock = func() time.Time { return now }

	ok, err := locker.Acquire(ctx, "zap-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A crashed run's lock becomes reacquirable once the TTL passes.
	locker.clock = func() time.Time { return now.Add(2 * time.Minute) }

	ok, err = locker.Acquire(ctx, "zap-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
