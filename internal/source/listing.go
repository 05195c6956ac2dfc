package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/threadwatch/internal/config"
	"github.com/rohmanhakim/threadwatch/internal/fetcher"
	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/hashutil"
	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
	"github.com/rohmanhakim/threadwatch/pkg/urlutil"
)

// DefaultIDAttr holds the item id when the listing does not name one.
const DefaultIDAttr = "data-id"

/*
ListingFetcher turns one listing page into Items.

  - the page is fetched fresh every cycle, never from the cache
  - one Item per element matching the item selector
  - the link comes from the link selector inside the item, or the item itself
  - the id comes from the id attribute, else the BLAKE3 of the canonical link URL
  - items with neither id nor link are skipped
*/
type ListingFetcher struct {
	metadataSink metadata.MetadataSink
	pageFetcher  fetcher.Fetcher
	listing      config.Listing
	baseURL      *url.URL
	clock        timeutil.Clock
}

func NewListingFetcher(
	metadataSink metadata.MetadataSink,
	pageFetcher fetcher.Fetcher,
	listing config.Listing,
) (*ListingFetcher, error) {
	baseURL, err := url.Parse(listing.URL)
	if err != nil || baseURL.Host == "" {
		return nil, &SourceError{
			Message: fmt.Sprintf("listing url %q is not absolute", listing.URL),
			Cause:   ErrCauseInvalidListing,
			Err:     err,
		}
	}
	if strings.TrimSpace(listing.ItemSelector) == "" {
		return nil, &SourceError{
			Message: fmt.Sprintf("listing %q has no item selector", listing.URL),
			Cause:   ErrCauseInvalidListing,
		}
	}
	if listing.IDAttr == "" {
		listing.IDAttr = DefaultIDAttr
	}
	return &ListingFetcher{
		metadataSink: metadataSink,
		pageFetcher:  pageFetcher,
		listing:      listing,
		baseURL:      baseURL,
		clock:        timeutil.SystemClock{},
	}, nil
}

func (l *ListingFetcher) Name() string {
	return l.listing.URL
}

// Fetch returns the items as []any for the poller.
func (l *ListingFetcher) Fetch(ctx context.Context) ([]any, error) {
	items, err := l.Items(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out, nil
}

func (l *ListingFetcher) Items(ctx context.Context) ([]Item, error) {
	result, fetchErr := l.pageFetcher.Fetch(ctx, l.listing.URL)
	if fetchErr != nil {
		// the fetcher already recorded the failure
		return nil, &SourceError{
			Message:   fetchErr.Error(),
			Retryable: true,
			Cause:     ErrCauseFetchFailed,
			Err:       fetchErr,
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body()))
	if err != nil {
		sourceErr := &SourceError{
			Message: err.Error(),
			Cause:   ErrCauseParseFailed,
			Err:     err,
		}
		l.recordError(sourceErr)
		return nil, sourceErr
	}

	items := make([]Item, 0)
	doc.Find(l.listing.ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		if item, ok := l.extract(sel); ok {
			items = append(items, item)
		}
	})
	return items, nil
}

func (l *ListingFetcher) extract(sel *goquery.Selection) (Item, bool) {
	link := sel
	if l.listing.LinkSelector != "" {
		link = sel.Find(l.listing.LinkSelector).First()
	}

	var itemURL string
	if href, ok := link.Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			itemURL = l.baseURL.ResolveReference(ref).String()
		}
	}

	id, _ := sel.Attr(l.listing.IDAttr)
	id = strings.TrimSpace(id)
	if id == "" {
		if itemURL == "" {
			return Item{}, false
		}
		id = hashutil.Blake3String(urlutil.CanonicalString(itemURL))
	}

	title := strings.Join(strings.Fields(link.Text()), " ")
	return Item{
		ID:     id,
		URL:    itemURL,
		Title:  title,
		Source: l.listing.URL,
	}, true
}

func (l *ListingFetcher) recordError(err *SourceError) {
	l.metadataSink.RecordError(
		l.clock.Now(),
		"source",
		"ListingFetcher.Items",
		mapSourceErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, l.listing.URL),
		},
	)
}
