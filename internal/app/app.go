package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rohmanhakim/threadwatch/internal/cachestore"
	"github.com/rohmanhakim/threadwatch/internal/config"
	"github.com/rohmanhakim/threadwatch/internal/dedup"
	"github.com/rohmanhakim/threadwatch/internal/fetcher"
	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/internal/poller"
	"github.com/rohmanhakim/threadwatch/internal/requestcache"
	"github.com/rohmanhakim/threadwatch/internal/search"
	"github.com/rohmanhakim/threadwatch/internal/source"
	"github.com/rohmanhakim/threadwatch/internal/stats"
	"github.com/rohmanhakim/threadwatch/internal/workqueue"
	"github.com/rohmanhakim/threadwatch/pkg/limiter"
	"github.com/rohmanhakim/threadwatch/pkg/retry"
	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
)

/*
App owns the lifecycle of one watcher process.

Responsibilities:
  - Build every component from Config, bottom-up
  - Run the poller until the context is cancelled
  - Flush the dedup window and the stats tracker on Close
  - Record the final run summary

App is the only place that knows concrete component types; the components
themselves only see the narrow interfaces they consume.
*/
type App struct {
	cfg          config.Config
	metadataSink metadata.MetadataSink
	clock        timeutil.Clock

	store        cachestore.Store
	pageFetcher  *fetcher.PageFetcher
	cache        *requestcache.RequestCache
	orchestrator *search.Orchestrator
	window       *dedup.PersistentWindow
	queue        *workqueue.Queue
	tracker      *stats.Tracker
	handler      *ItemHandler
	poller       *poller.Poller

	startedAt time.Time
	closeOnce sync.Once
	closeErr  error
}

type Option func(*options)

type options struct {
	clock      timeutil.Clock
	httpClient *http.Client
	tick       time.Duration
}

// WithClock replaces the system clock in every time-dependent component.
func WithClock(clock timeutil.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithHTTPClient replaces the client used for listing and provider pages.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithPollTick sets how often the poller checks for cancellation while
// waiting between cycles.
func WithPollTick(tick time.Duration) Option {
	return func(o *options) {
		o.tick = tick
	}
}

func New(
	ctx context.Context,
	cfg config.Config,
	metadataSink metadata.MetadataSink,
	opts ...Option,
) (*App, error) {
	o := options{clock: timeutil.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = timeutil.SystemClock{}
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.Timeout()}
	}

	store, err := cachestore.Open(ctx, cachestore.Options{
		Backend:         cfg.CacheBackend(),
		SizeLimit:       cfg.CacheSizeLimit(),
		RefreshOnHit:    cfg.CacheRefreshOnHit(),
		Clock:           o.clock,
		ValkeyAddress:   cfg.ValkeyAddress(),
		ValkeyPassword:  cfg.ValkeyPassword(),
		ValkeyDB:        cfg.ValkeyDB(),
		ValkeyKeyPrefix: cfg.ValkeyKeyPrefix(),
		MaxKeyLength:    cfg.CacheMaxKeyLength(),
		SQLitePath:      cfg.SQLitePath(),
	})
	if err != nil {
		return nil, &AppError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseStoreOpenFailed,
			Err:       err,
		}
	}

	a := &App{
		cfg:          cfg,
		metadataSink: metadataSink,
		clock:        o.clock,
		store:        store,
		startedAt:    o.clock.Now(),
	}
	if err := a.build(o); err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(o options) error {
	cfg := a.cfg

	hostLimiter := limiter.NewConcurrentRateLimiter(a.clock)
	hostLimiter.SetBaseDelay(cfg.BaseDelay())
	hostLimiter.SetJitter(cfg.Jitter())
	hostLimiter.SetRandomSeed(cfg.RandomSeed())
	backoffParam := timeutil.NewBackoffParam(
		cfg.BackoffInitialDuration(),
		cfg.BackoffMultiplier(),
		cfg.BackoffMaxDuration(),
	)
	hostLimiter.SetBackoffParam(backoffParam)

	retryParam := retry.NewRetryParam(
		cfg.BaseDelay(),
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		backoffParam,
	)
	a.pageFetcher = fetcher.NewPageFetcher(
		a.metadataSink,
		o.httpClient,
		hostLimiter,
		retryParam,
		cfg.UserAgent(),
		a.clock,
	)

	a.cache = requestcache.New(a.metadataSink, a.store, cfg.CacheTTL(), a.pageFetcher)
	a.cache.SetClock(a.clock)

	providers := make([]search.Provider, 0, len(cfg.Providers()))
	for i, p := range cfg.Providers() {
		scraper, err := search.NewScrapeProvider(p.URLTemplate, p.ResultSelector, p.ResultAttr, a.cache)
		if err != nil {
			return &AppError{
				Message: fmt.Sprintf("provider %q: %v", p.Name, err),
				Cause:   ErrCauseProviderInvalid,
				Err:     err,
			}
		}
		engineOpts := []search.EngineOption{
			search.WithJitter(p.Jitter),
			search.WithClock(a.clock),
			search.WithRandomSeed(cfg.RandomSeed() + int64(i)),
		}
		if p.SiteTag {
			engineOpts = append(engineOpts, search.WithSiteTag(search.DefaultSiteTag))
		}
		providers = append(providers, search.NewEngine(
			p.Name,
			scraper,
			limiter.NewThrottleStateFromRate(p.Requests, p.Timeframe),
			p.BanTime,
			engineOpts...,
		))
	}
	a.orchestrator = search.NewOrchestrator(a.metadataSink, providers...)
	a.orchestrator.SetClock(a.clock)
	a.cache.SetSearcher(a.orchestrator)

	window, err := dedup.OpenPersistentWindow(
		a.metadataSink,
		cfg.StateFile(),
		cfg.DedupDepth(),
		cfg.SnapshotEvery(),
		cfg.DryRun(),
	)
	if err != nil {
		return &AppError{
			Message: err.Error(),
			Cause:   ErrCauseWindowOpenFailed,
			Err:     err,
		}
	}
	a.window = window
	a.queue = workqueue.New(window)

	a.tracker = stats.Open(a.metadataSink, cfg.StatsFile(), cfg.StatsAutosaveEvery(), cfg.DryRun())
	a.handler = NewItemHandler(a.metadataSink, a.cache, a.window, a.tracker, cfg.SearchSite())

	a.poller = poller.New(a.metadataSink, a.queue, a.window, a.handler, cfg.PollInterval())
	a.poller.SetClock(a.clock)
	if o.tick > 0 {
		a.poller.SetTick(o.tick)
	}
	for _, listing := range cfg.Listings() {
		lf, err := source.NewListingFetcher(a.metadataSink, a.pageFetcher, listing)
		if err != nil {
			return &AppError{
				Message: fmt.Sprintf("listing %q: %v", listing.URL, err),
				Cause:   ErrCauseListingInvalid,
				Err:     err,
			}
		}
		a.poller.RegisterFetcher(lf)
	}
	return nil
}

// Run polls until ctx is cancelled. Cancellation is a normal exit.
func (a *App) Run(ctx context.Context) error {
	err := a.poller.Run(ctx)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Close stops the poller, saves the dedup window and the stats and closes
// the cache store. It is safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if err := a.poller.Shutdown(a.cfg.ShutdownTimeout()); err != nil {
			errs = append(errs, a.recordError("Close", &AppError{
				Message: err.Error(),
				Cause:   ErrCauseShutdownIncomplete,
				Err:     err,
			}))
		}
		if err := a.window.Close(); err != nil {
			errs = append(errs, a.recordError("Close", &AppError{
				Message:   fmt.Sprintf("dedup window %s: %v", a.window.Path(), err),
				Retryable: true,
				Cause:     ErrCauseStateSaveFailed,
				Err:       err,
			}))
		}
		if err := a.tracker.Save(); err != nil {
			errs = append(errs, a.recordError("Close", &AppError{
				Message:   fmt.Sprintf("stats: %v", err),
				Retryable: true,
				Cause:     ErrCauseStateSaveFailed,
				Err:       err,
			}))
		}
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}

		if finalizer, ok := a.metadataSink.(metadata.RunFinalizer); ok {
			finalizer.RecordFinalRunStats(
				a.poller.Cycles(),
				a.handler.Handled(),
				a.handler.Failed(),
				a.clock.Now().Sub(a.startedAt),
			)
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

func (a *App) Orchestrator() *search.Orchestrator {
	return a.orchestrator
}

func (a *App) Cache() *requestcache.RequestCache {
	return a.cache
}

func (a *App) Window() *dedup.PersistentWindow {
	return a.window
}

func (a *App) Stats() *stats.Tracker {
	return a.tracker
}

func (a *App) Poller() *poller.Poller {
	return a.poller
}

func (a *App) recordError(action string, err *AppError) error {
	a.metadataSink.RecordError(
		a.clock.Now(),
		"app",
		action,
		mapAppErrorToMetadataCause(err),
		err.Error(),
		nil,
	)
	return err
}
