package lock

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "zapflow:run-lock:"

// releaseScript deletes the lock only if this process still owns it, so a
// slow run whose TTL expired cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// refreshScript extends the TTL only while this process still owns the lock.
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker coordinates run ownership across worker processes using
// SET NX with a TTL. The TTL bounds how long a crashed worker can keep a
// Zap locked.
type RedisLocker struct {
	client redis.UniversalClient
	owner  string
}

func NewRedisLocker(client redis.UniversalClient, owner string) *RedisLocker {
	return &RedisLocker{client: client, owner: owner}
}

func (l *RedisLocker) Acquire(ctx context.Context, zapID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+zapID, l.owner, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (l *RedisLocker) Refresh(ctx context.Context, zapID string, ttl time.Duration) (bool, error) {
	extended, err := refreshScript.Run(ctx, l.client, []string{keyPrefix + zapID}, l.owner, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}

	return extended == 1, nil
}

func (l *RedisLocker) Release(ctx context.Context, zapID string) error {
	return releaseScript.Run(ctx, l.client, []string{keyPrefix + zapID}, l.owner).Err()
}
