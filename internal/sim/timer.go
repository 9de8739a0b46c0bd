package sim

import "time"

// IntervalTimer answers "has at least interval passed since the last time
// it passed?". Used for once-a-minute spawn replenishment and periodic
// player persistence.
type IntervalTimer struct {
	last     time.Time
	interval time.Duration
}

func NewIntervalTimer(interval time.Duration, now time.Time) *IntervalTimer {
	return &IntervalTimer{last: now, interval: interval}
}

// Exceeded reports whether the interval elapsed, and if so restarts it
// from now.
func (t *IntervalTimer) Exceeded(now time.Time) bool {
	if now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
