package limiter

import "time"

// ThrottleState enforces a minimum interval between calls to one provider.
// It is not synchronized; the owner guards it.
type ThrottleState struct {
	minInterval time.Duration
	lastCallAt  time.Time
}

func NewThrottleState(minInterval time.Duration) ThrottleState {
	if minInterval < 0 {
		minInterval = 0
	}
	return ThrottleState{minInterval: minInterval}
}

// NewThrottleStateFromRate builds a throttle allowing requests calls per
// timeframe, spaced evenly.
func NewThrottleStateFromRate(requests int, timeframe time.Duration) ThrottleState {
	if requests <= 0 {
		return NewThrottleState(0)
	}
	return NewThrottleState(timeframe / time.Duration(requests))
}

// Wait returns how long a caller must wait at now before the next call.
func (t ThrottleState) Wait(now time.Time) time.Duration {
	if t.lastCallAt.IsZero() {
		return 0
	}
	remaining := t.minInterval - now.Sub(t.lastCallAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (t *ThrottleState) MarkCalled(now time.Time) {
	t.lastCallAt = now
}

func (t ThrottleState) MinInterval() time.Duration {
	return t.minInterval
}

func (t ThrottleState) LastCallAt() time.Time {
	return t.lastCallAt
}
