package search

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
)

/*
Orchestrator fails over between providers:

 1. skip banned providers
 2. try the remaining ones ordered by current wait time, registration order
    breaking ties
 3. return the first non-empty result
 4. rate-limited and failing providers are recorded and skipped

Order is recomputed before every attempt since waits change while a call
blocks. Each provider is tried at most once per query.
*/
type Orchestrator struct {
	metadataSink metadata.MetadataSink
	providers    []Provider
	clock        timeutil.Clock
}

func NewOrchestrator(metadataSink metadata.MetadataSink, providers ...Provider) *Orchestrator {
	return &Orchestrator{
		metadataSink: metadataSink,
		providers:    providers,
		clock:        timeutil.SystemClock{},
	}
}

func (o *Orchestrator) SetClock(clock timeutil.Clock) {
	if clock != nil {
		o.clock = clock
	}
}

func (o *Orchestrator) Providers() []Provider {
	out := make([]Provider, len(o.providers))
	copy(out, o.providers)
	return out
}

type candidate struct {
	index int
	wait  time.Duration
}

// Search returns (nil, nil) when at least one provider answered and none
// found anything. When no provider could answer it returns an
// *AggregateError matching ErrAllProvidersUnavailable.
func (o *Orchestrator) Search(ctx context.Context, query, site string, limit int) ([]string, error) {
	tried := make([]bool, len(o.providers))
	var providerErrs []error
	answered := false

	for {
		next, ok := o.nextCandidate(tried)
		if !ok {
			break
		}
		tried[next] = true
		provider := o.providers[next]

		startTime := o.clock.Now()
		results, err := provider.Search(ctx, query, site, limit)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			o.recordProviderFailure(provider, query, err)
			providerErrs = append(providerErrs, &ProviderError{Provider: provider.Name(), Err: err})
			continue
		}
		o.metadataSink.RecordSearch(provider.Name(), query, len(results), o.clock.Now().Sub(startTime))

		if len(results) > 0 {
			return results, nil
		}
		answered = true
	}

	if answered {
		return nil, nil
	}

	for i, provider := range o.providers {
		if !tried[i] {
			providerErrs = append(providerErrs, &ProviderError{Provider: provider.Name(), Err: ErrRateLimited})
		}
	}
	return nil, &AggregateError{Errors: providerErrs}
}

// nextCandidate picks the untried working provider with the lowest wait.
func (o *Orchestrator) nextCandidate(tried []bool) (int, bool) {
	candidates := make([]candidate, 0, len(o.providers))
	for i, provider := range o.providers {
		if tried[i] || !provider.IsWorking() {
			continue
		}
		candidates = append(candidates, candidate{index: i, wait: provider.CurrentWaitTime()})
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].wait < candidates[j].wait
	})
	return candidates[0].index, true
}

func (o *Orchestrator) recordProviderFailure(provider Provider, query string, err error) {
	if errors.Is(err, ErrRateLimited) {
		type banReporter interface {
			BannedUntil() time.Time
		}
		if reporter, ok := provider.(banReporter); ok {
			o.metadataSink.RecordProviderBan(provider.Name(), reporter.BannedUntil())
		}
	}
	o.metadataSink.RecordError(
		o.clock.Now(),
		"search",
		"Orchestrator.Search",
		mapSearchErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrProvider, provider.Name()),
			metadata.NewAttr(metadata.AttrQuery, query),
		},
	)
}
