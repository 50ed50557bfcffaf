package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLock_SerializesAcrossProcesses(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := context.Background()

	// Two RunLock values stand in for two processes sharing one Redis.
	first := NewRunLock(client)
	second := NewRunLock(client)

	held, err := first.Acquire(ctx, "archive:run:u1:c1", time.Minute)
	require.NoError(t, err)
	assert.True(t, held)

	held, err = second.Acquire(ctx, "archive:run:u1:c1", time.Minute)
	require.NoError(t, err)
	assert.False(t, held, "a held lock is not re-acquirable")

	held, err = second.Acquire(ctx, "archive:run:u1:c2", time.Minute)
	require.NoError(t, err)
	assert.True(t, held, "an unrelated key is independent")

	require.NoError(t, first.Release(ctx, "archive:run:u1:c1"))

	held, err = second.Acquire(ctx, "archive:run:u1:c1", time.Minute)
	require.NoError(t, err)
	assert.True(t, held, "release frees the key for other processes")
}

func TestRunLock_ReleaseOfExpiredLockLeavesNewHolderAlone(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()

	first := NewRunLock(client)
	second := NewRunLock(client)

	held, err := first.Acquire(ctx, "archive:run:u1:c1", time.Second)
	require.NoError(t, err)
	require.True(t, held)

	mr.FastForward(2 * time.Second)

	held, err = second.Acquire(ctx, "archive:run:u1:c1", time.Minute)
	require.NoError(t, err)
	require.True(t, held, "expiry frees the key")

	// The stale holder's release must not evict the new holder.
	require.NoError(t, first.Release(ctx, "archive:run:u1:c1"))

	held, err = first.Acquire(ctx, "archive:run:u1:c1", time.Minute)
	require.NoError(t, err)
	assert.False(t, held, "the second process still holds the lock")
}

func TestRunLock_ReleaseWithoutAcquireIsNoop(t *testing.T) {
	client, _ := setupRedis(t)
	lock := NewRunLock(client)

	require.NoError(t, lock.Release(context.Background(), "archive:run:never:held"))
}

func TestRunLock_AcquireSurfacesRedisFailures(t *testing.T) {
	client, mr := setupRedis(t)
	lock := NewRunLock(client)
	mr.Close()

	_, err := lock.Acquire(context.Background(), "archive:run:u1:c1", time.Minute)
	require.Error(t, err)
}
