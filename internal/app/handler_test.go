package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/threadwatch/internal/app"
	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/internal/search"
	"github.com/rohmanhakim/threadwatch/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	url   string
	found bool
	err   error

	mu      sync.Mutex
	queries []string
	sites   []string
}

func (f *fakeResolver) Search(_ context.Context, query, site string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.sites = append(f.sites, site)
	return f.url, f.found, f.err
}

type fakeMarker struct {
	ids []string
}

func (f *fakeMarker) Add(id string) {
	f.ids = append(f.ids, id)
}

type fakeCounter struct {
	counts map[string]int
}

func (f *fakeCounter) Increment(url string) int {
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[url]++
	return f.counts[url]
}

// itemSink keeps item outcomes and the final run summary.
type itemSink struct {
	metadata.NoopSink

	mu       sync.Mutex
	outcomes map[string][]metadata.ItemOutcome
	cycles   int
	final    []int
}

func newItemSink() *itemSink {
	return &itemSink{outcomes: make(map[string][]metadata.ItemOutcome)}
}

func (s *itemSink) RecordItem(identity string, outcome metadata.ItemOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[identity] = append(s.outcomes[identity], outcome)
}

func (s *itemSink) RecordCycle(int, int, int, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
}

func (s *itemSink) cyclesRecorded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

func (s *itemSink) RecordFinalRunStats(cycles int, items int, totalErrors int, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.final = []int{cycles, items, totalErrors}
}

func (s *itemSink) outcome(identity string) []metadata.ItemOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]metadata.ItemOutcome(nil), s.outcomes[identity]...)
}

func (s *itemSink) recorded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.outcomes {
		n += len(o)
	}
	return n
}

func (s *itemSink) finalStats() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final
}

func TestItemHandler_Outcomes(t *testing.T) {
	item := source.Item{ID: "t3_abc", URL: "https://forum.example/t/abc", Title: "Looking for a story"}
	rateLimited := &search.AggregateError{Errors: []error{search.ErrRateLimited}}

	tests := []struct {
		name        string
		resolver    *fakeResolver
		wantOutcome metadata.ItemOutcome
		wantMarked  bool
		wantCounted bool
		wantErr     bool
	}{
		{
			name:        "resolved",
			resolver:    &fakeResolver{url: "https://archive.example/works/1", found: true},
			wantOutcome: metadata.OutcomeResolved,
			wantMarked:  true,
			wantCounted: true,
		},
		{
			name:        "not found",
			resolver:    &fakeResolver{},
			wantOutcome: metadata.OutcomeNotFound,
			wantMarked:  true,
		},
		{
			name:        "every provider unavailable",
			resolver:    &fakeResolver{err: rateLimited},
			wantOutcome: metadata.OutcomeDeferred,
		},
		{
			name:        "definitive failure",
			resolver:    &fakeResolver{err: errors.New("result page unparsable")},
			wantOutcome: metadata.OutcomeFailed,
			wantMarked:  true,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newItemSink()
			marker := &fakeMarker{}
			counter := &fakeCounter{}
			h := app.NewItemHandler(sink, tt.resolver, marker, counter, "archive.example")

			err := h.Handle(context.Background(), item)

			if tt.wantErr {
				var appErr *app.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, app.ErrCauseItemSearchFailed, appErr.Cause)
				assert.Equal(t, 1, h.Failed())
			} else {
				require.NoError(t, err)
				assert.Zero(t, h.Failed())
			}
			assert.Equal(t, []metadata.ItemOutcome{tt.wantOutcome}, sink.outcome(item.ID))
			if tt.wantMarked {
				assert.Equal(t, []string{item.ID}, marker.ids)
			} else {
				assert.Empty(t, marker.ids)
			}
			if tt.wantCounted {
				assert.Equal(t, 1, counter.counts[tt.resolver.url])
			} else {
				assert.Empty(t, counter.counts)
			}
			assert.Equal(t, []string{item.Title}, tt.resolver.queries)
			assert.Equal(t, []string{"archive.example"}, tt.resolver.sites)
			assert.Equal(t, 1, h.Handled())
		})
	}
}

func TestItemHandler_CancelledContextDefers(t *testing.T) {
	sink := newItemSink()
	marker := &fakeMarker{}
	h := app.NewItemHandler(sink, &fakeResolver{err: context.Canceled}, marker, &fakeCounter{}, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.Handle(ctx, source.Item{ID: "c1", Title: "x"})

	require.NoError(t, err)
	assert.Empty(t, marker.ids)
	assert.Equal(t, []metadata.ItemOutcome{metadata.OutcomeDeferred}, sink.outcome("c1"))
}

func TestItemHandler_FallsBackToURLQuery(t *testing.T) {
	resolver := &fakeResolver{}
	h := app.NewItemHandler(newItemSink(), resolver, &fakeMarker{}, &fakeCounter{}, "")

	require.NoError(t, h.Handle(context.Background(), &source.Item{ID: "c1", URL: "https://forum.example/c/1"}))

	assert.Equal(t, []string{"https://forum.example/c/1"}, resolver.queries)
}

func TestItemHandler_UnsupportedItem(t *testing.T) {
	tests := []any{"plain string", 42, (*source.Item)(nil)}

	for _, item := range tests {
		t.Run(fmt.Sprintf("%T", item), func(t *testing.T) {
			resolver := &fakeResolver{}
			h := app.NewItemHandler(newItemSink(), resolver, &fakeMarker{}, &fakeCounter{}, "")

			err := h.Handle(context.Background(), item)

			assert.ErrorIs(t, err, app.ErrUnsupportedItem)
			assert.Empty(t, resolver.queries)
			assert.Equal(t, 1, h.Failed())
			assert.Zero(t, h.Handled())
		})
	}
}

func TestItemHandler_CountsCanonicalURL(t *testing.T) {
	counter := &fakeCounter{}
	resolver := &fakeResolver{url: "HTTPS://Archive.example/works/1/?utm_source=search#chapter-3", found: true}
	h := app.NewItemHandler(newItemSink(), resolver, &fakeMarker{}, counter, "")

	require.NoError(t, h.Handle(context.Background(), source.Item{ID: "a", Title: "x"}))
	require.NoError(t, h.Handle(context.Background(), source.Item{ID: "b", Title: "y"}))

	assert.Equal(t, map[string]int{"https://archive.example/works/1": 2}, counter.counts)
}
