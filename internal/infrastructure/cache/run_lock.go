package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// releaseScript deletes the lock only when the caller still holds it, so a
// lock that expired and was re-acquired elsewhere is never released by the
// previous holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RunLock is a cross-process mutex over Redis SET NX. Each acquisition
// stores a per-process holder token; release is check-and-delete on that
// token. The TTL bounds how long a crashed process can block other runs.
type RunLock struct {
	client *redis.Client

	mu      sync.Mutex
	holders map[string]string
}

func NewRunLock(client *redis.Client) *RunLock {
	return &RunLock{
		client:  client,
		holders: make(map[string]string),
	}
}

// Acquire takes the lock for key. It returns false without error when
// another process holds it.
func (l *RunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, errors.NewExternalError("redis", "run lock acquire failed").WithCause(err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.holders[key] = token
	l.mu.Unlock()
	return true, nil
}

// Release frees the lock when this process still holds it. Releasing a lock
// that expired or was never acquired is not an error.
func (l *RunLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.holders[key]
	delete(l.holders, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		return errors.NewExternalError("redis", "run lock release failed").WithCause(err)
	}
	return nil
}
