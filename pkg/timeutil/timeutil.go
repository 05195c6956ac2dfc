package timeutil

import (
	"math/rand"
	"time"
)

// MaxDuration returns the largest value in durations, or 0 for an empty slice.
func MaxDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	highest := durations[0]
	for _, d := range durations[1:] {
		if d > highest {
			highest = d
		}
	}
	return highest
}

// ComputeJitter returns a pseudo-random duration in [0, max).
// A non-positive max yields 0. rng must not be shared across goroutines
// without external locking.
func ComputeJitter(max time.Duration, rng *rand.Rand) time.Duration {
	if max <= 0 || rng == nil {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

// ExponentialBackoffDelay is backoffParam.Step(backoffCount) plus up to
// jitter of random delay.
func ExponentialBackoffDelay(
	backoffCount int,
	jitter time.Duration,
	rng *rand.Rand,
	backoffParam BackoffParam,
) time.Duration {
	return backoffParam.Step(backoffCount) + ComputeJitter(jitter, rng)
}
