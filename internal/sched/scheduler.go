package sched

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"emberhold/server/internal/telemetry"
	"emberhold/server/logging"
	schedlog "emberhold/server/logging/scheduler"
)

const (
	pendingTasksMetricKey = "sched_tasks_pending"
	firedTasksMetricKey   = "sched_tasks_fired_total"
	failedTasksMetricKey  = "sched_tasks_failed_total"
	urgentSignalMetricKey = "sched_urgent_signals_total"
)

// Scheduler runs one-shot and recurring tasks at their scheduled times.
// Tasks may be added from any goroutine; execution happens only inside
// RunOnce, which the owning loop calls from the simulation goroutine.
//
// The wake channel carries both "task added" and "urgent work available"
// nudges. It is buffered with capacity one so a signal arriving while no
// RunOnce is waiting is not lost; extra signals coalesce.
type Scheduler struct {
	mu    sync.Mutex
	tasks taskHeap

	wake      chan struct{}
	clock     logging.Clock
	publisher logging.Publisher
	metrics   telemetry.Metrics
}

// New constructs a scheduler. Clock defaults to the system clock and the
// publisher to a no-op when nil.
func New(clock logging.Clock, publisher logging.Publisher, metrics telemetry.Metrics) *Scheduler {
	if clock == nil {
		clock = logging.SystemClock{}
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Scheduler{
		wake:      make(chan struct{}, 1),
		clock:     clock,
		publisher: publisher,
		metrics:   metrics,
	}
}

// AddOneshot schedules fn to run once after delay. A zero delay means "as
// soon as the scheduler next runs". Negative delays are clamped to zero.
func (s *Scheduler) AddOneshot(fn func(), delay time.Duration, name string) {
	if fn == nil {
		return
	}
	if delay < 0 {
		delay = 0
	}
	s.push(NewTask(fn, s.clock.Now().Add(delay), 0, name))
	schedlog.TaskRegistered(context.Background(), s.publisher, name, 0)
}

// AddRecurring schedules fn to repeat every interval. With startImmediately
// the first firing is due at once; otherwise it is one interval out.
func (s *Scheduler) AddRecurring(fn func(), interval time.Duration, name string, startImmediately bool) {
	if fn == nil || interval <= 0 {
		return
	}
	first := s.clock.Now()
	if !startImmediately {
		first = first.Add(interval)
	}
	s.AddRecurringAt(fn, interval, first, name)
}

// AddRecurringAt schedules fn to repeat every interval with an explicit
// first execution time.
//
// Tasks cannot be cancelled once added; registrants that need cancellation
// guard the callable with their own flag.
func (s *Scheduler) AddRecurringAt(fn func(), interval time.Duration, firstAt time.Time, name string) {
	if fn == nil || interval <= 0 {
		return
	}
	s.push(NewTask(fn, firstAt, interval, name))
	schedlog.TaskRegistered(context.Background(), s.publisher, name, interval.Milliseconds())
}

// SignalUrgent wakes a blocked RunOnce immediately. Called when an external
// event (a player command arriving) should be handled before any timer
// elapses.
func (s *Scheduler) SignalUrgent() {
	if s.metrics != nil {
		s.metrics.Add(urgentSignalMetricKey, 1)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// RunOnce blocks until the earliest pending task is due, SignalUrgent is
// called, or maxTimeout elapses, then executes every task whose time has
// come. Tasks due at the same instant fire in heap order; relative order
// among ties is not guaranteed.
func (s *Scheduler) RunOnce(maxTimeout time.Duration) {
	if wait := s.nextWait(maxTimeout); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wake:
			if !timer.Stop() {
				<-timer.C
			}
		}
	} else {
		// Drain a pending nudge so it does not wake the next iteration
		// for nothing.
		select {
		case <-s.wake:
		default:
		}
	}
	s.executeDue()
}

// Pending reports the number of queued tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// NextTaskTime returns the earliest scheduled execution time, if any.
func (s *Scheduler) NextTaskTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return time.Time{}, false
	}
	return s.tasks[0].next, true
}

func (s *Scheduler) push(task *Task) {
	s.mu.Lock()
	heap.Push(&s.tasks, task)
	pending := len(s.tasks)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.Store(pendingTasksMetricKey, uint64(pending))
	}
	// A freshly added task may be due sooner than whatever RunOnce is
	// currently waiting on.
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) nextWait(maxTimeout time.Duration) time.Duration {
	if maxTimeout < 0 {
		maxTimeout = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return maxTimeout
	}
	until := s.tasks[0].next.Sub(s.clock.Now())
	if until < 0 {
		return 0
	}
	if until < maxTimeout {
		return until
	}
	return maxTimeout
}

func (s *Scheduler) executeDue() {
	for {
		now := s.clock.Now()
		s.mu.Lock()
		if len(s.tasks) == 0 || s.tasks[0].next.After(now) {
			pending := len(s.tasks)
			s.mu.Unlock()
			if s.metrics != nil {
				s.metrics.Store(pendingTasksMetricKey, uint64(pending))
			}
			return
		}
		task := heap.Pop(&s.tasks).(*Task)
		s.mu.Unlock()

		firedAt := s.clock.Now()
		s.runTask(task)

		if task.Recurring() {
			// Reschedule relative to the firing time, not the original
			// deadline, so a stalled loop does not replay missed firings
			// in a burst.
			task.next = firedAt.Add(task.interval)
			s.mu.Lock()
			heap.Push(&s.tasks, task)
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) runTask(task *Task) {
	defer func() {
		if r := recover(); r != nil {
			if s.metrics != nil {
				s.metrics.Add(failedTasksMetricKey, 1)
			}
			schedlog.TaskFailed(context.Background(), s.publisher, task.name, fmt.Sprint(r), task.Recurring())
		}
	}()
	if s.metrics != nil {
		s.metrics.Add(firedTasksMetricKey, 1)
	}
	task.fn()
}
