package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/internal/search"
	"github.com/rohmanhakim/threadwatch/internal/source"
	"github.com/rohmanhakim/threadwatch/pkg/urlutil"
)

// Resolver looks up the page an item refers to, normally a
// *requestcache.RequestCache.
type Resolver interface {
	Search(ctx context.Context, query, site string) (string, bool, error)
}

// Marker remembers handled identities, normally the dedup window.
type Marker interface {
	Add(id string)
}

// Counter counts references per resolved URL, normally a *stats.Tracker.
type Counter interface {
	Increment(url string) int
}

/*
ItemHandler is the default consumer of source items.

  - resolved and not-found items are marked handled
  - items that fail for any reason other than every provider being
    unavailable are marked too, so they are not retried forever
  - when every provider is unavailable the item stays unmarked and is
    offered again on the next cycle
*/
type ItemHandler struct {
	metadataSink metadata.MetadataSink
	resolver     Resolver
	marker       Marker
	counter      Counter
	site         string

	handled atomic.Int64
	failed  atomic.Int64
}

func NewItemHandler(
	metadataSink metadata.MetadataSink,
	resolver Resolver,
	marker Marker,
	counter Counter,
	site string,
) *ItemHandler {
	return &ItemHandler{
		metadataSink: metadataSink,
		resolver:     resolver,
		marker:       marker,
		counter:      counter,
		site:         site,
	}
}

func (h *ItemHandler) Handle(ctx context.Context, item any) error {
	it, ok := asItem(item)
	if !ok {
		h.failed.Add(1)
		return fmt.Errorf("%w: %T", ErrUnsupportedItem, item)
	}
	h.handled.Add(1)

	query := it.Title
	if query == "" {
		query = it.URL
	}

	url, found, err := h.resolver.Search(ctx, query, h.site)
	switch {
	case err == nil && found:
		h.counter.Increment(urlutil.CanonicalString(url))
		h.metadataSink.RecordItem(it.ID, metadata.OutcomeResolved)
		h.marker.Add(it.ID)
		return nil
	case err == nil:
		h.metadataSink.RecordItem(it.ID, metadata.OutcomeNotFound)
		h.marker.Add(it.ID)
		return nil
	case errors.Is(err, search.ErrAllProvidersUnavailable), ctx.Err() != nil:
		h.metadataSink.RecordItem(it.ID, metadata.OutcomeDeferred)
		return nil
	default:
		h.failed.Add(1)
		h.metadataSink.RecordItem(it.ID, metadata.OutcomeFailed)
		h.marker.Add(it.ID)
		return &AppError{
			Message: fmt.Sprintf("search %q: %v", query, err),
			Cause:   ErrCauseItemSearchFailed,
			Err:     err,
		}
	}
}

// Handled is the number of items taken from the queue.
func (h *ItemHandler) Handled() int {
	return int(h.handled.Load())
}

// Failed is the number of items that ended in an error.
func (h *ItemHandler) Failed() int {
	return int(h.failed.Load())
}

func asItem(item any) (source.Item, bool) {
	switch v := item.(type) {
	case source.Item:
		return v, true
	case *source.Item:
		if v == nil {
			return source.Item{}, false
		}
		return *v, true
	default:
		return source.Item{}, false
	}
}
