package metadata

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

/*
Recorder writes structured events as zerolog lines.

Allowed values:
- Primitive values
- Timestamps
- URLs and cache keys (as values)
- Status codes
- Durations
- Identifiers (worker ID, item identity)

Metadata is write-only.
No component may read metadata to influence polling, caching or search decisions.

Ordering guarantees:
- Events are written synchronously in the order they are received.
- Ordering across goroutines is not guaranteed and is provided for
  debuggability, not causality.
*/
type Recorder struct {
	workerId string
	logger   zerolog.Logger
}

// NewRecorder writes JSON lines to w. An empty workerId gets a random UUID.
func NewRecorder(workerId string, w io.Writer) *Recorder {
	if workerId == "" {
		workerId = uuid.NewString()
	}
	if w == nil {
		w = os.Stderr
	}
	logger := zerolog.New(w).With().
		Timestamp().
		Str("worker", workerId).
		Logger()
	return &Recorder{
		workerId: workerId,
		logger:   logger,
	}
}

// NewConsoleRecorder writes human-readable lines, for interactive runs.
func NewConsoleRecorder(workerId string, w io.Writer) *Recorder {
	if w == nil {
		w = os.Stderr
	}
	return NewRecorder(workerId, zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
}

// SetLevel filters events below level. Call before the recorder is shared.
func (r *Recorder) SetLevel(level zerolog.Level) {
	r.logger = r.logger.Level(level)
}

func (r *Recorder) WorkerID() string {
	return r.workerId
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
	event := r.logger.Error().
		Str("event", "error").
		Time("observed_at", observedAt).
		Str("package", packageName).
		Str("action", action).
		Str("cause", cause.String()).
		Str("details", details)
	withAttrs(event, attrs).Send()
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
) {
	r.logger.Info().
		Str("event", "fetch").
		Str(string(AttrURL), fetchUrl).
		Int(string(AttrHTTPStatus), httpStatus).
		Dur("duration", duration).
		Str("content_type", contentType).
		Int("retry_count", retryCount).
		Send()
}

func (r *Recorder) RecordCacheLookup(key string, hit bool) {
	r.logger.Debug().
		Str("event", "cache_lookup").
		Str(string(AttrCacheKey), key).
		Bool("hit", hit).
		Send()
}

func (r *Recorder) RecordSearch(provider string, query string, results int, duration time.Duration) {
	r.logger.Info().
		Str("event", "search").
		Str(string(AttrProvider), provider).
		Str(string(AttrQuery), query).
		Int("results", results).
		Dur("duration", duration).
		Send()
}

func (r *Recorder) RecordProviderBan(provider string, until time.Time) {
	r.logger.Warn().
		Str("event", "provider_ban").
		Str(string(AttrProvider), provider).
		Time("until", until).
		Send()
}

func (r *Recorder) RecordCycle(cycle int, fetched int, admitted int, duration time.Duration) {
	r.logger.Info().
		Str("event", "cycle").
		Int("cycle", cycle).
		Int("fetched", fetched).
		Int("admitted", admitted).
		Dur("duration", duration).
		Send()
}

func (r *Recorder) RecordItem(identity string, outcome ItemOutcome) {
	r.logger.Info().
		Str("event", "item").
		Str(string(AttrIdentity), identity).
		Str("outcome", string(outcome)).
		Send()
}

/*
RecordFinalRunStats records the terminal summary of a run.

Contract:
  - MUST be called at most once per run, after the poller stopped.
  - The provided values MUST be derived from poller state,
    not accumulated via the recorder.
*/
func (r *Recorder) RecordFinalRunStats(cycles int, items int, totalErrors int, duration time.Duration) {
	stats := newRunStats(cycles, items, totalErrors, duration)
	r.logger.Info().
		Str("event", "run_stats").
		Int("cycles", stats.cycles).
		Int("items", stats.items).
		Int("total_errors", stats.totalErrors).
		Int64("duration_ms", stats.durationMs).
		Send()
}

func withAttrs(event *zerolog.Event, attrs []Attribute) *zerolog.Event {
	for _, attr := range attrs {
		event = event.Str(string(attr.Key), attr.Value)
	}
	return event
}
