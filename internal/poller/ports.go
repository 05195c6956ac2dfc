package poller

import "context"

// Fetcher produces the items of one source for one cycle.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]any, error)
}

type namedFetcher struct {
	name string
	fn   func(ctx context.Context) ([]any, error)
}

// NewNamedFetcher adapts a function to Fetcher.
func NewNamedFetcher(name string, fn func(ctx context.Context) ([]any, error)) Fetcher {
	return namedFetcher{name: name, fn: fn}
}

func (f namedFetcher) Name() string {
	return f.name
}

func (f namedFetcher) Fetch(ctx context.Context) ([]any, error) {
	return f.fn(ctx)
}

// Handler consumes one item. It is expected to mark the item done in the
// dedup window once handled.
type Handler interface {
	Handle(ctx context.Context, item any) error
}

type HandlerFunc func(ctx context.Context, item any) error

func (f HandlerFunc) Handle(ctx context.Context, item any) error {
	return f(ctx, item)
}

// Queue is the work queue between the poll loop and the consumer.
type Queue interface {
	Offer(items ...any) (int, error)
	Get(ctx context.Context) (any, error)
	Identity(item any) (string, error)
	Close()
}

// Rotator ages the dedup window once per cycle.
type Rotator interface {
	Rotate()
}
