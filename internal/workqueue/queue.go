package workqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/rohmanhakim/threadwatch/pkg/collections"
)

/*
Queue is a blocking FIFO of unique items.

  - Put admits an item only if no pending item shares its identity and the
    gate does not hold it
  - Get blocks until an item is available; items that entered the gate while
    queued are discarded
  - Close wakes every blocked Get

Identities are computed once, on Put. Blocking waits never hold the lock.
*/

// Gate reports identities that were already handled, normally a dedup window.
type Gate interface {
	Contains(id string) bool
}

type entry struct {
	id   string
	item any
}

type Queue struct {
	identities *identities
	gate       Gate

	mu      sync.Mutex
	pending collections.Set[string]
	items   *collections.FIFOQueue[entry]
	closed  bool

	// notify holds at most one wake-up; done is closed by Close.
	notify chan struct{}
	done   chan struct{}
}

// New creates a queue. gate may be nil.
func New(gate Gate) *Queue {
	return &Queue{
		identities: newIdentities(),
		gate:       gate,
		pending:    collections.NewSet[string](),
		items:      collections.NewFIFOQueue[entry](),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Register sets the identity converter for items of sample's concrete type.
func (q *Queue) Register(sample any, converter Converter) {
	q.identities.register(sample, converter)
}

// Identity returns the identity key of item.
func (q *Queue) Identity(item any) (string, error) {
	return q.identities.of(item)
}

// Put admits every item not already pending or gated. Items whose identity
// cannot be computed are skipped; their errors are joined and returned while
// the other items are still admitted.
func (q *Queue) Put(items ...any) error {
	_, err := q.Offer(items...)
	return err
}

// Offer is Put that also reports how many items were admitted.
func (q *Queue) Offer(items ...any) (int, error) {
	var errs []error
	admissible := make([]entry, 0, len(items))
	for _, item := range items {
		id, err := q.identities.of(item)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if q.gate != nil && q.gate.Contains(id) {
			continue
		}
		admissible = append(admissible, entry{id: id, item: item})
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, ErrClosed
	}
	admitted := 0
	for _, e := range admissible {
		if q.pending.Contains(e.id) {
			continue
		}
		q.pending.Add(e.id)
		q.items.Enqueue(e)
		admitted++
	}
	q.mu.Unlock()

	if admitted > 0 {
		q.signal()
	}
	return admitted, errors.Join(errs...)
}

// Get removes and returns the next item, blocking until one is available,
// ctx is done or the queue is closed.
func (q *Queue) Get(ctx context.Context) (any, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		e, ok := q.items.Dequeue()
		if ok {
			q.pending.Remove(e.id)
			more := q.items.Size() > 0
			q.mu.Unlock()

			if more {
				q.signal()
			}
			if q.gate != nil && q.gate.Contains(e.id) {
				continue
			}
			return e.item, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Contains reports whether an item with the same identity is pending.
func (q *Queue) Contains(item any) bool {
	id, err := q.identities.of(item)
	if err != nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Contains(id)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Size()
}

// Close is idempotent. Pending items are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
