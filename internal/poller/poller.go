package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/internal/workqueue"
	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
)

/*
Poller runs two goroutines:

  - the poll loop runs every registered fetcher in order, offers their items
    to the queue, rotates the dedup window and waits for the next cycle
  - the consumer takes items from the queue one at a time and hands them to
    the handler

Fetcher and handler failures (panics included) are recorded and never stop
either loop. Shutdown is cooperative: loops check the running flag at their
boundaries, and a handler call in progress is allowed to finish.
*/

// DefaultTick is the granularity of the wait between cycles.
const DefaultTick = time.Second

type Poller struct {
	metadataSink metadata.MetadataSink
	queue        Queue
	rotator      Rotator
	handler      Handler
	interval     time.Duration
	tick         time.Duration
	clock        timeutil.Clock

	mu       sync.Mutex
	fetchers []Fetcher

	running atomic.Bool
	cycle   atomic.Int64
	wg      sync.WaitGroup
}

func New(
	metadataSink metadata.MetadataSink,
	queue Queue,
	rotator Rotator,
	handler Handler,
	interval time.Duration,
) *Poller {
	return &Poller{
		metadataSink: metadataSink,
		queue:        queue,
		rotator:      rotator,
		handler:      handler,
		interval:     interval,
		tick:         DefaultTick,
		clock:        timeutil.SystemClock{},
	}
}

func (p *Poller) SetClock(clock timeutil.Clock) {
	if clock != nil {
		p.clock = clock
	}
}

// SetTick sets how often the wait between cycles checks for shutdown.
func (p *Poller) SetTick(tick time.Duration) {
	if tick > 0 {
		p.tick = tick
	}
}

// RegisterFetcher appends f; fetchers run in registration order.
func (p *Poller) RegisterFetcher(f Fetcher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchers = append(p.fetchers, f)
}

func (p *Poller) Running() bool {
	return p.running.Load()
}

// Cycles is the number of completed fetch cycles.
func (p *Poller) Cycles() int {
	return int(p.cycle.Load())
}

// Start launches the poll loop and the consumer and returns immediately.
func (p *Poller) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	p.wg.Add(2)
	go p.pollLoop(ctx)
	go p.consumeLoop(ctx)
	return nil
}

// Run starts the poller and blocks until both loops have stopped, either
// through ctx or Shutdown.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	p.wg.Wait()
	p.running.Store(false)
	return ctx.Err()
}

// Shutdown stops both loops, closes the queue and waits up to timeout for
// them to return.
func (p *Poller) Shutdown(timeout time.Duration) error {
	p.running.Store(false)
	p.queue.Close()

	stopped := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// RunCycle runs every fetcher once, offers the items and rotates the window.
// It returns how many items were fetched and admitted.
func (p *Poller) RunCycle(ctx context.Context) (int, int) {
	startTime := p.clock.Now()
	cycle := int(p.cycle.Add(1))

	p.mu.Lock()
	fetchers := make([]Fetcher, len(p.fetchers))
	copy(fetchers, p.fetchers)
	p.mu.Unlock()

	fetched, admitted := 0, 0
	for _, fetcher := range fetchers {
		if ctx.Err() != nil {
			break
		}
		items, err := p.safeFetch(ctx, fetcher)
		if err != nil {
			p.recordError("Poller.RunCycle", err, metadata.NewAttr(metadata.AttrFetcher, fetcher.Name()))
			continue
		}
		fetched += len(items)

		n, err := p.queue.Offer(items...)
		admitted += n
		if errors.Is(err, workqueue.ErrClosed) {
			break
		}
		if err != nil {
			p.recordError("Poller.RunCycle", &PollerError{
				Message:   err.Error(),
				Retryable: false,
				Cause:     ErrCauseAdmissionFailed,
				Err:       err,
			}, metadata.NewAttr(metadata.AttrFetcher, fetcher.Name()))
		}
	}

	p.rotator.Rotate()
	p.metadataSink.RecordCycle(cycle, fetched, admitted, p.clock.Now().Sub(startTime))
	return fetched, admitted
}

func (p *Poller) pollLoop(ctx context.Context) {
	defer p.wg.Done()
	for p.running.Load() && ctx.Err() == nil {
		p.RunCycle(ctx)
		if !p.pause(ctx) {
			return
		}
	}
}

// pause waits one interval in tick-sized slices. It returns false once the
// poller should stop.
func (p *Poller) pause(ctx context.Context) bool {
	remaining := p.interval
	for remaining > 0 {
		if !p.running.Load() {
			return false
		}
		step := min(p.tick, remaining)
		if err := p.clock.Sleep(ctx, step); err != nil {
			return false
		}
		remaining -= step
	}
	return p.running.Load() && ctx.Err() == nil
}

func (p *Poller) consumeLoop(ctx context.Context) {
	defer p.wg.Done()
	for p.running.Load() {
		item, err := p.queue.Get(ctx)
		if err != nil {
			if errors.Is(err, workqueue.ErrClosed) || ctx.Err() != nil {
				return
			}
			p.recordError("Poller.consumeLoop", err)
			continue
		}
		if err := p.dispatch(ctx, item); err != nil {
			p.recordError("Poller.consumeLoop", err, metadata.NewAttr(metadata.AttrIdentity, p.identity(item)))
		}
	}
}

func (p *Poller) safeFetch(ctx context.Context, fetcher Fetcher) (items []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = &PollerError{
				Message:   fmt.Sprintf("%s: %v", fetcher.Name(), r),
				Retryable: true,
				Cause:     ErrCauseFetcherPanic,
			}
		}
	}()
	items, err = fetcher.Fetch(ctx)
	if err != nil {
		return nil, &PollerError{
			Message:   fmt.Sprintf("%s: %v", fetcher.Name(), err),
			Retryable: true,
			Cause:     ErrCauseFetcherFailed,
			Err:       err,
		}
	}
	return items, nil
}

func (p *Poller) dispatch(ctx context.Context, item any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PollerError{
				Message:   fmt.Sprintf("%v", r),
				Retryable: false,
				Cause:     ErrCauseHandlerPanic,
			}
		}
	}()
	if handleErr := p.handler.Handle(ctx, item); handleErr != nil {
		return &PollerError{
			Message:   handleErr.Error(),
			Retryable: true,
			Cause:     ErrCauseHandlerFailed,
			Err:       handleErr,
		}
	}
	return nil
}

func (p *Poller) identity(item any) string {
	id, err := p.queue.Identity(item)
	if err != nil {
		return fmt.Sprintf("%T", item)
	}
	return id
}

func (p *Poller) recordError(action string, err error, attrs ...metadata.Attribute) {
	cause := metadata.CauseUnknown
	var pollerErr *PollerError
	if errors.As(err, &pollerErr) {
		cause = mapPollerErrorToMetadataCause(pollerErr)
	}
	if attrs == nil {
		attrs = []metadata.Attribute{}
	}
	p.metadataSink.RecordError(
		p.clock.Now(),
		"poller",
		action,
		cause,
		err.Error(),
		attrs,
	)
}
