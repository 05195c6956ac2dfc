package limiter

import "time"

// BanState tracks a provider-imposed ban. Recovery is implicit: once now
// reaches bannedUntil the provider is usable again.
type BanState struct {
	banTime     time.Duration
	bannedUntil time.Time
}

func NewBanState(banTime time.Duration) BanState {
	return BanState{banTime: banTime}
}

// Ban marks the ban starting at now and returns the time it lifts.
func (b *BanState) Ban(now time.Time) time.Time {
	b.bannedUntil = now.Add(b.banTime)
	return b.bannedUntil
}

func (b BanState) Banned(now time.Time) bool {
	return now.Before(b.bannedUntil)
}

func (b BanState) Remaining(now time.Time) time.Duration {
	if !b.Banned(now) {
		return 0
	}
	return b.bannedUntil.Sub(now)
}

func (b BanState) BannedUntil() time.Time {
	return b.bannedUntil
}

func (b BanState) BanTime() time.Duration {
	return b.banTime
}
