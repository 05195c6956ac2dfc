package cachestore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/threadwatch/internal/cachestore"
	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T, clock timeutil.Clock, sizeLimit int, refreshOnHit bool) cachestore.Store {
	t.Helper()
	store, err := cachestore.NewMemoryStore(sizeLimit,
		cachestore.WithClock(clock),
		cachestore.WithRefreshOnHit(refreshOnHit),
	)
	require.NoError(t, err)
	return store
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, newMemoryStore)
}

func TestNewMemoryStore_RejectsZeroLimit(t *testing.T) {
	_, err := cachestore.NewMemoryStore(0)

	var storeErr *cachestore.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, cachestore.ErrCauseInvalidArgument, storeErr.Cause)
}

func TestMemoryStore_SetCopiesValue(t *testing.T) {
	store := newMemoryStore(t, timeutil.NewFakeClock(epoch), 10, true)
	value := []byte("original")

	require.NoError(t, store.Set(context.Background(), "k", value, 0))
	copy(value, "mutated!")

	assertHit(t, store, "k", "original")
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := newMemoryStore(t, timeutil.SystemClock{}, 50, true)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := string(rune('a' + (id+j)%26))
				_ = store.Set(ctx, key, []byte{byte(j)}, time.Minute)
				_, _ = store.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 26)
}
