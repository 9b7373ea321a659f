package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	locker := NewRedisLocker(client)
	ctx := context.Background()
	key := JobLockKey("renewals:check")
	require.Equal(t, "lock:job:renewals:check", key)

	release, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key, time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, release(ctx))
	require.False(t, mr.Exists(key))

	again, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	// A stale release must not drop the new holder's lock.
	require.NoError(t, release(ctx))
	require.True(t, mr.Exists(key))
	require.NoError(t, again(ctx))
}

func TestRedisLockerExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	locker := NewRedisLocker(client)

	_, err := locker.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, err = locker.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
}
