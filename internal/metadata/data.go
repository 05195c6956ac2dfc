package metadata

import (
	"time"
)

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, reporting).

	Rules:
	 - ErrorCause MUST NOT influence control flow.
	 - ErrorCause MUST NOT be used for retry, continuation, or abort decisions.
	 - ErrorCause values MUST have stable, package-agnostic semantics.
	 - Packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown

  - The failure does not map cleanly to any known category.

# CauseNetworkFailure

  - Network transport or remote availability: timeouts, DNS failures,
    connection resets, an unreachable cache server.

# CausePolicyDisallow

  - A remote party refused service: HTTP 429/503 rate limiting, provider bans.

# CauseContentInvalid

  - Content was fetched but could not be used: non-text responses,
    unparsable result pages, corrupt snapshot lines.

# CauseStorageFailure

  - Persisting or loading local state failed: snapshot writes, cache
    backend writes, unreadable state files.

# CauseInvariantViolation

  - An internal consistency check failed: identity conversion errors,
    handler panics.

# CauseRetryFailure

  - Retries were exhausted or cancelled.
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CausePolicyDisallow
	CauseContentInvalid
	CauseStorageFailure
	CauseInvariantViolation
	CauseRetryFailure
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	case CauseRetryFailure:
		return "retry_failure"
	default:
		return "unknown"
	}
}

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrURL        AttributeKey = "url"
	AttrHost       AttributeKey = "host"
	AttrPath       AttributeKey = "path"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrProvider   AttributeKey = "provider"
	AttrQuery      AttributeKey = "query"
	AttrCacheKey   AttributeKey = "cache_key"
	AttrBackend    AttributeKey = "backend"
	AttrIdentity   AttributeKey = "identity"
	AttrFetcher    AttributeKey = "fetcher"
	AttrLine       AttributeKey = "line"
)

// ItemOutcome is how the handler finished with one work item.
type ItemOutcome string

const (
	OutcomeResolved ItemOutcome = "resolved"
	OutcomeNotFound ItemOutcome = "not_found"
	OutcomeDeferred ItemOutcome = "deferred"
	OutcomeFailed   ItemOutcome = "failed"
)

/*
runStats
  - Terminal summary of one run, recorded once at shutdown
  - Contains only aggregate counts and durations
  - Must not influence control flow
*/
type runStats struct {
	cycles      int
	items       int
	totalErrors int
	durationMs  int64
}

func newRunStats(cycles, items, totalErrors int, duration time.Duration) runStats {
	return runStats{
		cycles:      cycles,
		items:       items,
		totalErrors: totalErrors,
		durationMs:  duration.Milliseconds(),
	}
}
