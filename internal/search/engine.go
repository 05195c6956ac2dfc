package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rohmanhakim/threadwatch/pkg/limiter"
	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
)

// DefaultSiteTag is inserted between the query and the site hint.
const DefaultSiteTag = " site:"

// Engine wraps a Backend with a throttle, a ban and optional jitter and
// site tagging. It is safe for concurrent use; waits happen outside the lock.
type Engine struct {
	name    string
	backend Backend
	clock   timeutil.Clock
	jitter  time.Duration
	siteTag string

	mu       sync.Mutex
	throttle limiter.ThrottleState
	ban      limiter.BanState
	rng      *rand.Rand
}

type EngineOption func(*Engine)

// WithJitter adds a random wait in [0, max) before every call.
func WithJitter(max time.Duration) EngineOption {
	return func(e *Engine) {
		e.jitter = max
	}
}

// WithSiteTag appends tag+site to the query when a site hint is given.
// Without it the hint is ignored.
func WithSiteTag(tag string) EngineOption {
	return func(e *Engine) {
		e.siteTag = tag
	}
}

func WithClock(clock timeutil.Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func WithRandomSeed(seed int64) EngineOption {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewSource(seed))
	}
}

func NewEngine(
	name string,
	backend Backend,
	throttle limiter.ThrottleState,
	banTime time.Duration,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		name:     name,
		backend:  backend,
		clock:    timeutil.SystemClock{},
		throttle: throttle,
		ban:      limiter.NewBanState(banTime),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string {
	return e.name
}

func (e *Engine) IsWorking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.ban.Banned(e.clock.Now())
}

// CurrentWaitTime is the larger of the throttle wait and the remaining ban.
func (e *Engine) CurrentWaitTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	return timeutil.MaxDuration([]time.Duration{e.throttle.Wait(now), e.ban.Remaining(now), 0})
}

// BannedUntil is the zero time when the engine was never banned.
func (e *Engine) BannedUntil() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ban.BannedUntil()
}

func (e *Engine) Search(ctx context.Context, query, site string, limit int) ([]string, error) {
	e.mu.Lock()
	now := e.clock.Now()
	if e.ban.Banned(now) {
		until := e.ban.BannedUntil()
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s banned until %s", ErrRateLimited, e.name, until.Format(time.RFC3339))
	}
	wait := e.throttle.Wait(now) + timeutil.ComputeJitter(e.jitter, e.rng)
	// reserve the slot so concurrent callers queue behind this one
	e.throttle.MarkCalled(now.Add(wait))
	e.mu.Unlock()

	if err := e.clock.Sleep(ctx, wait); err != nil {
		return nil, err
	}

	if site != "" && e.siteTag != "" {
		query = query + e.siteTag + site
	}
	results, err := e.backend.Search(ctx, query, limit)

	e.mu.Lock()
	defer e.mu.Unlock()
	now = e.clock.Now()
	// a later caller may already hold a reservation past now
	if now.After(e.throttle.LastCallAt()) {
		e.throttle.MarkCalled(now)
	}
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.ban.Ban(now)
		}
		return nil, err
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
