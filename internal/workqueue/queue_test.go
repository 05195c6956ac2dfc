package workqueue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/threadwatch/internal/dedup"
	"github.com/rohmanhakim/threadwatch/internal/workqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thread struct {
	id    string
	title string
}

func (t thread) Identity() string { return "thread:" + t.id }

type comment struct {
	ID   int
	Body string
}

func get(t *testing.T, q *workqueue.Queue) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, err := q.Get(ctx)
	require.NoError(t, err)
	return item
}

func TestQueue_FIFOAndUnique(t *testing.T) {
	q := workqueue.New(nil)

	require.NoError(t, q.Put("a", "b", "a"))
	require.NoError(t, q.Put("b", "c"))
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, "a", get(t, q))
	assert.Equal(t, "b", get(t, q))
	assert.Equal(t, "c", get(t, q))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ReadmitAfterGet(t *testing.T) {
	q := workqueue.New(nil)

	require.NoError(t, q.Put("a"))
	assert.True(t, q.Contains("a"))
	assert.Equal(t, "a", get(t, q))
	assert.False(t, q.Contains("a"))

	require.NoError(t, q.Put("a"))
	assert.Equal(t, 1, q.Len())
}

func TestQueue_IdentityResolution(t *testing.T) {
	tests := []struct {
		name     string
		register func(q *workqueue.Queue)
		first    any
		second   any
		wantLen  int
	}{
		{
			name:    "Identifier items with equal identity collapse",
			first:   thread{id: "1", title: "first"},
			second:  thread{id: "1", title: "edited"},
			wantLen: 1,
		},
		{
			name: "registered converter wins",
			register: func(q *workqueue.Queue) {
				q.Register(comment{}, func(item any) (string, error) {
					return fmt.Sprintf("t1_%d", item.(comment).ID), nil
				})
			},
			first:   comment{ID: 7, Body: "a"},
			second:  comment{ID: 7, Body: "b"},
			wantLen: 1,
		},
		{
			name:    "unregistered types fall back to fmt.Sprint",
			first:   comment{ID: 7, Body: "a"},
			second:  comment{ID: 7, Body: "b"},
			wantLen: 2,
		},
		{
			name:    "string and Identifier share one key space",
			first:   "thread:1",
			second:  thread{id: "1"},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := workqueue.New(nil)
			if tt.register != nil {
				tt.register(q)
			}
			require.NoError(t, q.Put(tt.first, tt.second))
			assert.Equal(t, tt.wantLen, q.Len())
			assert.Equal(t, tt.first, get(t, q))
		})
	}
}

func TestQueue_ConverterFailureOnlyFailsThatItem(t *testing.T) {
	q := workqueue.New(nil)
	convErr := errors.New("no id")
	q.Register(comment{}, func(item any) (string, error) {
		if item.(comment).ID == 0 {
			return "", convErr
		}
		return fmt.Sprint(item.(comment).ID), nil
	})

	err := q.Put("a", comment{ID: 0}, comment{ID: 3}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, convErr)

	var identityErr *workqueue.IdentityError
	require.ErrorAs(t, err, &identityErr)
	assert.Equal(t, workqueue.ErrCauseConverterFailed, identityErr.Cause)

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, "a", get(t, q))
	assert.Equal(t, comment{ID: 3}, get(t, q))
}

func TestQueue_GateBlocksAdmissionAndDelivery(t *testing.T) {
	window, err := dedup.NewWindow(2)
	require.NoError(t, err)
	q := workqueue.New(window)

	window.Add("done")
	require.NoError(t, q.Put("done", "fresh", "later-done"))
	assert.Equal(t, 2, q.Len(), "gated items are not admitted")

	// handled elsewhere while waiting in the queue
	window.Add("fresh")
	assert.Equal(t, "later-done", get(t, q))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_GetBlocksUntilPut(t *testing.T) {
	q := workqueue.New(nil)

	got := make(chan any, 1)
	go func() {
		item, err := q.Get(context.Background())
		if err == nil {
			got <- item
		}
	}()

	select {
	case <-got:
		t.Fatal("Get returned before Put")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Put("x"))
	select {
	case item := <-got:
		assert.Equal(t, "x", item)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake up")
	}
}

func TestQueue_GetHonoursContext(t *testing.T) {
	q := workqueue.New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_CloseWakesGetters(t *testing.T) {
	q := workqueue.New(nil)

	const getters = 3
	errs := make(chan error, getters)
	for range getters {
		go func() {
			_, err := q.Get(context.Background())
			errs <- err
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()
	q.Close()

	for range getters {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, workqueue.ErrClosed)
		case <-time.After(time.Second):
			t.Fatal("getter not woken by Close")
		}
	}
	assert.ErrorIs(t, q.Put("x"), workqueue.ErrClosed)
}

func TestQueue_ConcurrentProducersSingleConsumer(t *testing.T) {
	q := workqueue.New(nil)

	const producers = 4
	const perProducer = 50
	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				// every producer offers the same ids
				assert.NoError(t, q.Put(fmt.Sprintf("item-%d", i)))
			}
		}()
	}

	seen := make(map[string]int)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			item, err := q.Get(ctx)
			cancel()
			if err != nil {
				return
			}
			seen[item.(string)]++
		}
	}()

	wg.Wait()
	<-done

	assert.Len(t, seen, perProducer)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_OfferCountsAdmitted(t *testing.T) {
	window, err := dedup.NewWindow(2)
	require.NoError(t, err)
	window.Add("seen")
	q := workqueue.New(window)

	admitted, err := q.Offer("a", "a", "seen", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, admitted)

	admitted, err = q.Offer("a", "c")
	require.NoError(t, err)
	assert.Equal(t, 1, admitted)
}
