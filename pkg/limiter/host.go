package limiter

import "time"

// HostTiming is the per-host bookkeeping of a ConcurrentRateLimiter.
type HostTiming struct {
	lastFetchAt  time.Time
	backoffDelay time.Duration
	backoffCount int
}

func (h HostTiming) LastFetchAt() time.Time { return h.lastFetchAt }

func (h HostTiming) BackoffDelay() time.Duration { return h.backoffDelay }

func (h HostTiming) BackoffCount() int { return h.backoffCount }

// Remaining is how long to wait at now before fetching again when the
// effective delay is the larger of base and the current backoff.
func (h HostTiming) Remaining(now time.Time, base time.Duration) time.Duration {
	delay := max(base, h.backoffDelay)
	if elapsed := now.Sub(h.lastFetchAt); elapsed < delay {
		return delay - elapsed
	}
	return 0
}
