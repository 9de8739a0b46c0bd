package sim

import (
	"sync/atomic"
	"time"
)

// WorldClock converts elapsed wall-clock time into whole action points at
// a fixed rate, carrying the sub-AP millisecond remainder between calls.
// Over any sequence of Advance calls the emitted AP equals the total
// elapsed milliseconds divided by the rate; nothing is lost to rounding
// and nothing is double counted.
//
// Only the simulation goroutine calls Advance; UsedAP is read from
// diagnostics handlers on other goroutines, so the counter is atomic.
type WorldClock struct {
	msPerAP     int64
	start       time.Time
	last        time.Time
	remainderMs int64
	usedAP      atomic.Uint64
}

// DefaultMsPerAP paces the world at ten action points per second.
const DefaultMsPerAP = 100

func NewWorldClock(msPerAP int64, now time.Time) *WorldClock {
	if msPerAP <= 0 {
		msPerAP = DefaultMsPerAP
	}
	return &WorldClock{
		msPerAP: msPerAP,
		start:   now,
		last:    now,
	}
}

// Advance returns the whole action points accrued since the previous call
// (or construction, for the first call). Clock skew backwards yields zero.
func (c *WorldClock) Advance(now time.Time) int {
	elapsed := now.Sub(c.last).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	c.last = now

	total := c.remainderMs + elapsed
	ap := total / c.msPerAP
	c.remainderMs = total - ap*c.msPerAP
	c.usedAP.Add(uint64(ap))
	return int(ap)
}

// UsedAP reports the cumulative action points emitted since start. Safe
// to call from any goroutine.
func (c *WorldClock) UsedAP() uint64 {
	return c.usedAP.Load()
}

// Uptime reports how long the clock has been running.
func (c *WorldClock) Uptime(now time.Time) time.Duration {
	return now.Sub(c.start)
}

// MsPerAP exposes the conversion rate for diagnostics.
func (c *WorldClock) MsPerAP() int64 {
	return c.msPerAP
}
