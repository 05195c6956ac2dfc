package cachestore

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
)

type memoryEntry struct {
	key        string
	value      []byte
	insertedAt time.Time
	ttl        time.Duration
}

func (e *memoryEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.insertedAt) > e.ttl
}

// MemoryStore is the in-process backend: a size-bounded LRU with lazy TTL
// expiry. The list front is the most recently touched entry.
type MemoryStore struct {
	mu           sync.Mutex
	lru          *list.List
	entries      map[string]*list.Element
	sizeLimit    int
	refreshOnHit bool
	clock        timeutil.Clock
}

type MemoryOption func(*MemoryStore)

// WithClock replaces the system clock, mainly for tests.
func WithClock(clock timeutil.Clock) MemoryOption {
	return func(s *MemoryStore) {
		s.clock = clock
	}
}

// WithRefreshOnHit controls whether a hit restarts the entry's lifetime.
func WithRefreshOnHit(refresh bool) MemoryOption {
	return func(s *MemoryStore) {
		s.refreshOnHit = refresh
	}
}

func NewMemoryStore(sizeLimit int, opts ...MemoryOption) (*MemoryStore, error) {
	if sizeLimit < 1 {
		return nil, &StoreError{
			Message: fmt.Sprintf("size limit must be at least 1, got %d", sizeLimit),
			Cause:   ErrCauseInvalidArgument,
		}
	}
	s := &MemoryStore{
		lru:          list.New(),
		entries:      make(map[string]*list.Element),
		sizeLimit:    sizeLimit,
		refreshOnHit: true,
		clock:        timeutil.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the stored value. Callers must not modify the returned slice.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	element, ok := s.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	entry := element.Value.(*memoryEntry)
	if entry.expired(now) {
		s.removeElement(element)
		return nil, ErrMiss
	}

	s.lru.MoveToFront(element)
	if s.refreshOnHit {
		entry.insertedAt = now
	}
	return entry.value, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return &StoreError{Message: "ttl cannot be negative", Cause: ErrCauseInvalidArgument}
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if element, ok := s.entries[key]; ok {
		entry := element.Value.(*memoryEntry)
		entry.value = stored
		entry.ttl = ttl
		entry.insertedAt = now
		s.lru.MoveToFront(element)
		return nil
	}

	for s.lru.Len() >= s.sizeLimit {
		oldest := s.lru.Back()
		if oldest == nil {
			break
		}
		s.removeElement(oldest)
	}

	s.entries[key] = s.lru.PushFront(&memoryEntry{
		key:        key,
		value:      stored,
		insertedAt: now,
		ttl:        ttl,
	})
	return nil
}

func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len(), nil
}

// Close is a no-op for in-memory, but required by the interface.
func (s *MemoryStore) Close() error {
	return nil
}

// caller holds s.mu
func (s *MemoryStore) removeElement(element *list.Element) {
	entry := s.lru.Remove(element).(*memoryEntry)
	delete(s.entries, entry.key)
}
