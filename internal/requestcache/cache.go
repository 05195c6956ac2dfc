package requestcache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rohmanhakim/threadwatch/internal/cachestore"
	"github.com/rohmanhakim/threadwatch/internal/fetcher"
	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
	"golang.org/x/sync/singleflight"
)

/*
RequestCache memoizes page fetches and searches in front of a
cachestore.Store (cache-aside):

  - hit: return the stored value
  - miss: run the real operation, store the result, return it
  - empty search results are stored as a negative record
  - operation errors are returned and never stored
  - backend failures count as misses and are recorded

Concurrent misses for the same key share one underlying call.
*/

const (
	pageKeyPrefix   = "get:"
	searchKeyPrefix = "search:"
	siteKeySep      = "|site:"
)

// Searcher is the search side, normally a *search.Orchestrator.
type Searcher interface {
	Search(ctx context.Context, query, site string, limit int) ([]string, error)
}

type RequestCache struct {
	metadataSink metadata.MetadataSink
	store        cachestore.Store
	ttl          time.Duration
	pageFetcher  fetcher.Fetcher
	clock        timeutil.Clock

	mu       sync.RWMutex
	searcher Searcher

	group singleflight.Group
}

func New(
	metadataSink metadata.MetadataSink,
	store cachestore.Store,
	ttl time.Duration,
	pageFetcher fetcher.Fetcher,
) *RequestCache {
	return &RequestCache{
		metadataSink: metadataSink,
		store:        store,
		ttl:          ttl,
		pageFetcher:  pageFetcher,
		clock:        timeutil.SystemClock{},
	}
}

// SetSearcher attaches the search side. It is separate from New because
// scrape providers load their result pages through this cache.
func (c *RequestCache) SetSearcher(searcher Searcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searcher = searcher
}

func (c *RequestCache) SetClock(clock timeutil.Clock) {
	if clock != nil {
		c.clock = clock
	}
}

// PageKey is the cache key of a page fetch.
func PageKey(rawURL string) string {
	return pageKeyPrefix + rawURL
}

// SearchKey is the cache key of a search; the site hint is part of it.
func SearchKey(query, site string) string {
	if site == "" {
		return searchKeyPrefix + query
	}
	return searchKeyPrefix + query + siteKeySep + site
}

// FetchPage returns the body of rawURL, from the cache when possible.
func (c *RequestCache) FetchPage(ctx context.Context, rawURL string) ([]byte, error) {
	key := PageKey(rawURL)
	if body, ok := c.lookup(ctx, key); ok {
		return append([]byte(nil), body...), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		result, fetchErr := c.pageFetcher.Fetch(ctx, rawURL)
		if fetchErr != nil {
			return nil, fetchErr
		}
		body := result.Body()
		c.put(ctx, key, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	body := v.([]byte)
	return append([]byte(nil), body...), nil
}

type searchRecord struct {
	Found bool   `json:"found"`
	URL   string `json:"url,omitempty"`
}

// Search returns the first result for query. found is false when the
// providers answered but had no result; that answer is cached too.
func (c *RequestCache) Search(ctx context.Context, query, site string) (string, bool, error) {
	key := SearchKey(query, site)
	if raw, ok := c.lookup(ctx, key); ok {
		var record searchRecord
		if err := json.Unmarshal(raw, &record); err == nil {
			return record.URL, record.Found, nil
		}
		c.recordError("RequestCache.Search", metadata.CauseContentInvalid, "corrupt search record", key)
	}

	c.mu.RLock()
	searcher := c.searcher
	c.mu.RUnlock()
	if searcher == nil {
		return "", false, ErrNoSearcher
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		results, err := searcher.Search(ctx, query, site, 1)
		if err != nil {
			return searchRecord{}, err
		}
		record := searchRecord{}
		if len(results) > 0 {
			record = searchRecord{Found: true, URL: results[0]}
		}
		if raw, err := json.Marshal(record); err == nil {
			c.put(ctx, key, raw)
		}
		return record, nil
	})
	if err != nil {
		return "", false, err
	}
	record := v.(searchRecord)
	return record.URL, record.Found, nil
}

func (c *RequestCache) lookup(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.store.Get(ctx, key)
	if err == nil {
		c.metadataSink.RecordCacheLookup(key, true)
		return value, true
	}

	var storeErr *cachestore.StoreError
	if errors.As(err, &storeErr) {
		c.recordError("RequestCache.lookup", cachestore.MapStoreErrorToMetadataCause(storeErr), err.Error(), key)
	} else if !cachestore.IsMiss(err) {
		c.recordError("RequestCache.lookup", metadata.CauseUnknown, err.Error(), key)
	}
	c.metadataSink.RecordCacheLookup(key, false)
	return nil, false
}

// put stores value; a failed write only costs a future miss.
func (c *RequestCache) put(ctx context.Context, key string, value []byte) {
	if err := c.store.Set(ctx, key, value, c.ttl); err != nil {
		cause := metadata.CauseStorageFailure
		var storeErr *cachestore.StoreError
		if errors.As(err, &storeErr) {
			cause = cachestore.MapStoreErrorToMetadataCause(storeErr)
		}
		c.recordError("RequestCache.put", cause, err.Error(), key)
	}
}

func (c *RequestCache) recordError(action string, cause metadata.ErrorCause, details string, key string) {
	c.metadataSink.RecordError(
		c.clock.Now(),
		"requestcache",
		action,
		cause,
		details,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrCacheKey, key),
		},
	)
}
