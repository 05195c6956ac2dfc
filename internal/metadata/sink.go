package metadata

import "time"

// MetadataSink receives observational events. Implementations must not
// affect control flow; callers never read metadata back.
type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)

	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		contentType string,
		retryCount int,
	)

	RecordCacheLookup(key string, hit bool)
	RecordSearch(provider string, query string, results int, duration time.Duration)
	RecordProviderBan(provider string, until time.Time)
	RecordCycle(cycle int, fetched int, admitted int, duration time.Duration)
	RecordItem(identity string, outcome ItemOutcome)
}

// RunFinalizer records the terminal summary of a run.
type RunFinalizer interface {
	RecordFinalRunStats(cycles int, items int, totalErrors int, duration time.Duration)
}

// NoopSink discards every event.
type NoopSink struct{}

func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute) {}
func (NoopSink) RecordFetch(string, int, time.Duration, string, int)                    {}
func (NoopSink) RecordCacheLookup(string, bool)                                          {}
func (NoopSink) RecordSearch(string, string, int, time.Duration)                         {}
func (NoopSink) RecordProviderBan(string, time.Time)                                     {}
func (NoopSink) RecordCycle(int, int, int, time.Duration)                                {}
func (NoopSink) RecordItem(string, ItemOutcome)                                          {}
func (NoopSink) RecordFinalRunStats(int, int, int, time.Duration)                        {}
