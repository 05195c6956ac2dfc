package timeutil

import (
	"math"
	"time"
)

// BackoffParam describes an exponential backoff: the first step waits
// initialDuration, every later step multiplies it, and maxDuration caps the
// result when positive.
type BackoffParam struct {
	initialDuration time.Duration
	multiplier      float64
	maxDuration     time.Duration
}

func NewBackoffParam(initialDuration time.Duration, multiplier float64, maxDuration time.Duration) BackoffParam {
	return BackoffParam{
		initialDuration: initialDuration,
		multiplier:      multiplier,
		maxDuration:     maxDuration,
	}
}

// Step returns the capped delay for the given step, without jitter. Steps
// below 1 are treated as 1.
func (b BackoffParam) Step(step int) time.Duration {
	if step < 1 {
		step = 1
	}
	delay := float64(b.initialDuration) * math.Pow(b.multiplier, float64(step-1))
	if limit := float64(b.maxDuration); limit > 0 && delay > limit {
		delay = limit
	}
	return time.Duration(delay)
}

func (b BackoffParam) InitialDuration() time.Duration { return b.initialDuration }

func (b BackoffParam) Multiplier() float64 { return b.multiplier }

func (b BackoffParam) MaxDuration() time.Duration { return b.maxDuration }
