package search

import (
	"context"
	"time"
)

// Provider is one search engine as seen by the Orchestrator.
type Provider interface {
	Name() string
	// Search returns at most limit result URLs. An empty result with a nil
	// error means the provider answered and found nothing.
	Search(ctx context.Context, query, site string, limit int) ([]string, error)
	// IsWorking is false while the provider is banned.
	IsWorking() bool
	// CurrentWaitTime is how long a call made now would block first.
	CurrentWaitTime() time.Duration
}

// Backend performs the raw query of one engine, without throttling.
// Returning an error matching ErrRateLimited bans the owning Engine.
type Backend interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, query string, limit int) ([]string, error)

func (f BackendFunc) Search(ctx context.Context, query string, limit int) ([]string, error) {
	return f(ctx, query, limit)
}
