package sched

import "time"

// Task is an immutable unit of deferred work: a callable, the time it
// should next run, and an optional repeat interval. A zero interval marks
// the task as one-shot.
type Task struct {
	fn       func()
	next     time.Time
	interval time.Duration
	name     string
}

// NewTask builds a task firing at next. Interval zero means one-shot.
func NewTask(fn func(), next time.Time, interval time.Duration, name string) *Task {
	return &Task{fn: fn, next: next, interval: interval, name: name}
}

// Name returns the diagnostic name given at registration.
func (t *Task) Name() string {
	return t.name
}

// NextTime returns the task's scheduled execution time.
func (t *Task) NextTime() time.Time {
	return t.next
}

// Recurring reports whether the task reschedules itself after firing.
func (t *Task) Recurring() bool {
	return t.interval > 0
}

// taskHeap is a min-heap of tasks keyed by next execution time. The front
// of the heap is always the task due soonest.
type taskHeap []*Task

func (h taskHeap) Len() int {
	return len(h)
}

func (h taskHeap) Less(i, j int) bool {
	return h[i].next.Before(h[j].next)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*Task))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return task
}
