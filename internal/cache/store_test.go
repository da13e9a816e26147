package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "test"), server
}

func TestSeenBefore(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()

	seen, err := store.SeenBefore(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = store.SeenBefore(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	require.True(t, seen)

	server.FastForward(2 * time.Hour)
	seen, err = store.SeenBefore(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, store.Forget(ctx, "evt_1"))
	seen, err = store.SeenBefore(ctx, "evt_1", time.Hour)
	require.NoError(t, err)
	require.False(t, seen)
}

func TestLockIsExclusive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	lock, err := store.Lock(ctx, "sync:p1", time.Minute)
	require.NoError(t, err)

	_, err = store.Lock(ctx, "sync:p1", time.Minute)
	require.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, lock.Release(ctx))
	again, err := store.Lock(ctx, "sync:p1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()

	stale, err := store.Lock(ctx, "sync:p2", time.Second)
	require.NoError(t, err)
	server.FastForward(2 * time.Second)

	current, err := store.Lock(ctx, "sync:p2", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	_, err = store.Lock(ctx, "sync:p2", time.Minute)
	require.ErrorIs(t, err, ErrLocked)
	require.NoError(t, current.Release(ctx))
}

func TestPutTake(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "state-abc", []byte("nonce"), time.Minute))
	value, ok, err := store.Take(ctx, "state-abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("nonce"), value)

	_, ok, err = store.Take(ctx, "state-abc")
	require.NoError(t, err)
	require.False(t, ok)
}
