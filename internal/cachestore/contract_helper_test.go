package cachestore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rohmanhakim/threadwatch/internal/cachestore"
	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type storeFactory func(t *testing.T, clock timeutil.Clock, sizeLimit int, refreshOnHit bool) cachestore.Store

func assertHit(t *testing.T, store cachestore.Store, key string, want string) {
	t.Helper()
	got, err := store.Get(context.Background(), key)
	require.NoError(t, err, "expected hit for %q", key)
	assert.Equal(t, want, string(got))
}

func assertMiss(t *testing.T, store cachestore.Store, key string) {
	t.Helper()
	_, err := store.Get(context.Background(), key)
	assert.ErrorIs(t, err, cachestore.ErrMiss, "expected miss for %q", key)
}

func set(t *testing.T, store cachestore.Store, key, value string, ttl time.Duration) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), key, []byte(value), ttl))
}

// runStoreContract exercises the behaviour every local backend shares.
func runStoreContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("absent key is a miss", func(t *testing.T) {
		store := newStore(t, timeutil.NewFakeClock(epoch), 10, true)
		assertMiss(t, store, "get:https://example.com")
	})

	t.Run("set then get returns value", func(t *testing.T) {
		store := newStore(t, timeutil.NewFakeClock(epoch), 10, true)
		set(t, store, "get:https://example.com", "<html></html>", time.Minute)
		assertHit(t, store, "get:https://example.com", "<html></html>")
	})

	t.Run("overwrite replaces value", func(t *testing.T) {
		store := newStore(t, timeutil.NewFakeClock(epoch), 10, true)
		set(t, store, "k", "v1", time.Minute)
		set(t, store, "k", "v2", time.Minute)

		assertHit(t, store, "k", "v2")
		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("ttl boundary", func(t *testing.T) {
		clock := timeutil.NewFakeClock(epoch)
		store := newStore(t, clock, 10, false)
		set(t, store, "k", "v", 10*time.Second)

		clock.Advance(10*time.Second - time.Millisecond)
		assertHit(t, store, "k", "v")

		clock.Advance(2 * time.Millisecond)
		assertMiss(t, store, "k")
	})

	t.Run("expired entry is evicted on access", func(t *testing.T) {
		clock := timeutil.NewFakeClock(epoch)
		store := newStore(t, clock, 10, false)
		set(t, store, "k", "v", time.Second)
		clock.Advance(time.Minute)

		assertMiss(t, store, "k")
		n, err := store.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		clock := timeutil.NewFakeClock(epoch)
		store := newStore(t, clock, 10, false)
		set(t, store, "k", "v", 0)

		clock.Advance(10000 * time.Hour)
		assertHit(t, store, "k", "v")
	})

	t.Run("negative ttl is rejected", func(t *testing.T) {
		store := newStore(t, timeutil.NewFakeClock(epoch), 10, true)
		err := store.Set(ctx, "k", []byte("v"), -time.Second)

		var storeErr *cachestore.StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, cachestore.ErrCauseInvalidArgument, storeErr.Cause)
	})

	t.Run("size limit evicts the oldest insert", func(t *testing.T) {
		store := newStore(t, timeutil.NewFakeClock(epoch), 2, true)
		set(t, store, "a", "1", time.Minute)
		set(t, store, "b", "2", time.Minute)
		set(t, store, "c", "3", time.Minute)

		assertMiss(t, store, "a")
		assertHit(t, store, "b", "2")
		assertHit(t, store, "c", "3")
	})

	t.Run("size never exceeds limit", func(t *testing.T) {
		store := newStore(t, timeutil.NewFakeClock(epoch), 3, true)
		for i := 0; i < 20; i++ {
			set(t, store, fmt.Sprintf("key-%d", i), "v", time.Minute)
			n, err := store.Len(ctx)
			require.NoError(t, err)
			assert.LessOrEqual(t, n, 3)
		}
	})

	t.Run("eviction picks least recently touched", func(t *testing.T) {
		store := newStore(t, timeutil.NewFakeClock(epoch), 2, true)
		set(t, store, "a", "1", time.Minute)
		set(t, store, "b", "2", time.Minute)
		assertHit(t, store, "a", "1")

		set(t, store, "c", "3", time.Minute)

		assertMiss(t, store, "b")
		assertHit(t, store, "a", "1")
		assertHit(t, store, "c", "3")
	})

	t.Run("hit refreshes lifetime when enabled", func(t *testing.T) {
		clock := timeutil.NewFakeClock(epoch)
		store := newStore(t, clock, 10, true)
		set(t, store, "k", "v", 10*time.Second)

		clock.Advance(8 * time.Second)
		assertHit(t, store, "k", "v")
		clock.Advance(8 * time.Second)
		assertHit(t, store, "k", "v")
	})

	t.Run("hit keeps lifetime when refresh disabled", func(t *testing.T) {
		clock := timeutil.NewFakeClock(epoch)
		store := newStore(t, clock, 10, false)
		set(t, store, "k", "v", 10*time.Second)

		clock.Advance(8 * time.Second)
		assertHit(t, store, "k", "v")
		clock.Advance(8 * time.Second)
		assertMiss(t, store, "k")
	})

	t.Run("empty value round trips", func(t *testing.T) {
		store := newStore(t, timeutil.NewFakeClock(epoch), 10, true)
		set(t, store, "k", "", time.Minute)

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
