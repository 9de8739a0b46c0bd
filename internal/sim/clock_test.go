package sim

import (
	"testing"
	"time"
)

func TestWorldClockCarriesRemainder(t *testing.T) {
	base := time.Unix(1000, 0)
	clock := NewWorldClock(4, base)

	// 3ms + 4ms + 5ms at 4ms per AP: the fractional milliseconds must
	// carry between calls instead of being rounded away.
	steps := []struct {
		advanceMs int64
		wantAP    int
	}{
		{3, 0},
		{4, 1},
		{5, 2},
	}

	now := base
	for i, step := range steps {
		now = now.Add(time.Duration(step.advanceMs) * time.Millisecond)
		if got := clock.Advance(now); got != step.wantAP {
			t.Fatalf("step %d: expected %d AP, got %d", i, step.wantAP, got)
		}
	}
	if got := clock.UsedAP(); got != 3 {
		t.Fatalf("expected 3 AP total for 12ms at 4ms/AP, got %d", got)
	}
}

func TestWorldClockConservesAPAcrossPartitions(t *testing.T) {
	base := time.Unix(1000, 0)
	total := 977 * time.Millisecond

	// However the elapsed time is sliced into Advance calls, the summed AP
	// must match a single call covering the same span.
	single := NewWorldClock(DefaultMsPerAP, base)
	want := single.Advance(base.Add(total))

	partitions := [][]time.Duration{
		{977 * time.Millisecond},
		{100 * time.Millisecond, 300 * time.Millisecond, 577 * time.Millisecond},
		{1 * time.Millisecond, 976 * time.Millisecond},
		{333 * time.Millisecond, 333 * time.Millisecond, 311 * time.Millisecond},
	}
	for i, slices := range partitions {
		clock := NewWorldClock(DefaultMsPerAP, base)
		now := base
		got := 0
		for _, d := range slices {
			now = now.Add(d)
			got += clock.Advance(now)
		}
		if got != want {
			t.Fatalf("partition %d: expected %d AP, got %d", i, want, got)
		}
	}
}

func TestWorldClockClampsBackwardSkew(t *testing.T) {
	base := time.Unix(1000, 0)
	clock := NewWorldClock(DefaultMsPerAP, base)

	if got := clock.Advance(base.Add(-time.Second)); got != 0 {
		t.Fatalf("expected 0 AP on backward clock skew, got %d", got)
	}
}

func TestIntervalTimerRestartsOnExceed(t *testing.T) {
	base := time.Unix(1000, 0)
	timer := NewIntervalTimer(time.Minute, base)

	if timer.Exceeded(base.Add(30 * time.Second)) {
		t.Fatalf("timer exceeded before the interval elapsed")
	}
	if !timer.Exceeded(base.Add(61 * time.Second)) {
		t.Fatalf("timer not exceeded after the interval elapsed")
	}
	if timer.Exceeded(base.Add(90 * time.Second)) {
		t.Fatalf("timer exceeded again without a fresh interval")
	}
}
