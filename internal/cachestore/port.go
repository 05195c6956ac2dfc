package cachestore

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired. Remote
// backends also wrap I/O failures in ErrMiss so callers can degrade to a
// miss with a single errors.Is check.
var ErrMiss = errors.New("cache miss")

// Store is the port every cache backend implements. Values are opaque bytes;
// serialization is the caller's concern.
//
// A stored entry is visible while ttl == 0 or now - insertedAt <= ttl.
// Expired entries are never returned.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set inserts or replaces key. A ttl of 0 never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Len reports the number of stored entries, possibly including
	// expired entries that have not been evicted yet.
	Len(ctx context.Context) (int, error)
	Close() error
}

// IsMiss reports whether err means the value is not available from the cache.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
