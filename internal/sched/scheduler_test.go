package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"emberhold/server/logging"
	schedlog "emberhold/server/logging/scheduler"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []logging.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event logging.Event) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *capturingPublisher) byType(typ logging.EventType) []logging.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []logging.Event
	for _, e := range p.events {
		if e.Type == typ {
			matched = append(matched, e)
		}
	}
	return matched
}

func TestRunOnceExecutesDueTasksInOrder(t *testing.T) {
	clock := newFakeClock(time.Unix(1000, 0))
	s := New(clock, nil, nil)

	var order []string
	s.AddOneshot(func() { order = append(order, "later") }, 50*time.Millisecond, "later")
	s.AddOneshot(func() { order = append(order, "sooner") }, 10*time.Millisecond, "sooner")

	clock.Advance(100 * time.Millisecond)
	s.RunOnce(0)

	if len(order) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(order))
	}
	if order[0] != "sooner" || order[1] != "later" {
		t.Fatalf("expected [sooner later], got %v", order)
	}
	if got := s.Pending(); got != 0 {
		t.Fatalf("expected empty queue after firing, got %d pending", got)
	}
}

func TestRunOnceSkipsTasksNotYetDue(t *testing.T) {
	clock := newFakeClock(time.Unix(1000, 0))
	s := New(clock, nil, nil)

	fired := false
	s.AddOneshot(func() { fired = true }, time.Minute, "future")

	clock.Advance(time.Second)
	s.RunOnce(0)

	if fired {
		t.Fatalf("task fired %s early", time.Minute-time.Second)
	}
	if got := s.Pending(); got != 1 {
		t.Fatalf("expected task still pending, got %d", got)
	}
}

func TestRecurringTaskReschedulesFromFiringTime(t *testing.T) {
	clock := newFakeClock(time.Unix(1000, 0))
	s := New(clock, nil, nil)

	count := 0
	s.AddRecurring(func() { count++ }, 100*time.Millisecond, "heartbeat", true)

	// The loop stalls well past several intervals; only one firing should
	// happen, and the next is one interval after the firing time.
	clock.Advance(time.Second)
	s.RunOnce(0)

	if count != 1 {
		t.Fatalf("expected exactly 1 firing after a stall, got %d", count)
	}
	next, ok := s.NextTaskTime()
	if !ok {
		t.Fatalf("recurring task missing from queue after firing")
	}
	want := clock.Now().Add(100 * time.Millisecond)
	if !next.Equal(want) {
		t.Fatalf("expected next firing at %v, got %v", want, next)
	}

	clock.Advance(100 * time.Millisecond)
	s.RunOnce(0)
	if count != 2 {
		t.Fatalf("expected second firing after one interval, got %d", count)
	}
}

func TestRecurringWithoutStartImmediatelyWaitsOneInterval(t *testing.T) {
	clock := newFakeClock(time.Unix(1000, 0))
	s := New(clock, nil, nil)

	count := 0
	s.AddRecurring(func() { count++ }, time.Minute, "slow", false)

	s.RunOnce(0)
	if count != 0 {
		t.Fatalf("task fired before its first interval elapsed")
	}

	clock.Advance(time.Minute)
	s.RunOnce(0)
	if count != 1 {
		t.Fatalf("expected first firing after one interval, got %d", count)
	}
}

func TestSignalUrgentWakesBlockedRunOnce(t *testing.T) {
	s := New(nil, nil, nil)

	done := make(chan struct{})
	go func() {
		s.RunOnce(5 * time.Second)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	s.SignalUrgent()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("RunOnce did not wake on urgent signal")
	}
}

func TestAddDuringWaitWakesRunOnce(t *testing.T) {
	s := New(nil, nil, nil)

	fired := make(chan struct{})
	go func() {
		// First pass consumes the wake nudge from AddOneshot and fires the
		// task; the channel close proves the wait was cut short.
		s.RunOnce(5 * time.Second)
		s.RunOnce(0)
		close(fired)
	}()

	time.Sleep(20 * time.Millisecond)
	s.AddOneshot(func() {}, 0, "urgent")

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("RunOnce did not wake for a newly added due task")
	}
}

func TestPanickingTaskIsContained(t *testing.T) {
	clock := newFakeClock(time.Unix(1000, 0))
	pub := &capturingPublisher{}
	s := New(clock, pub, nil)

	ran := false
	s.AddOneshot(func() { panic("boom") }, 0, "broken")
	s.AddOneshot(func() { ran = true }, 10*time.Millisecond, "healthy")

	clock.Advance(time.Second)
	s.RunOnce(0)

	if !ran {
		t.Fatalf("healthy task did not run after a sibling panicked")
	}
	failures := pub.byType(schedlog.EventTaskFailed)
	if len(failures) != 1 {
		t.Fatalf("expected 1 task_failed event, got %d", len(failures))
	}
	if failures[0].Actor.ID != "broken" {
		t.Fatalf("expected failure attributed to %q, got %q", "broken", failures[0].Actor.ID)
	}
}

func TestPanickingRecurringTaskIsRescheduled(t *testing.T) {
	clock := newFakeClock(time.Unix(1000, 0))
	pub := &capturingPublisher{}
	s := New(clock, pub, nil)

	count := 0
	s.AddRecurring(func() {
		count++
		panic("boom")
	}, 100*time.Millisecond, "flaky", true)

	clock.Advance(time.Millisecond)
	s.RunOnce(0)
	clock.Advance(200 * time.Millisecond)
	s.RunOnce(0)

	if count != 2 {
		t.Fatalf("expected flaky recurring task to keep firing, got %d firings", count)
	}
}
