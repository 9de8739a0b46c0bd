package scheduler

import (
	"context"

	"emberhold/server/logging"
)

const (
	// EventTaskFailed is emitted when a scheduled task panics. Recurring
	// tasks are rescheduled regardless.
	EventTaskFailed logging.EventType = "scheduler.task_failed"
	// EventTaskRegistered is emitted when a task enters the queue.
	EventTaskRegistered logging.EventType = "scheduler.task_registered"
)

func TaskFailed(ctx context.Context, pub logging.Publisher, taskName, reason string, recurring bool) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTaskFailed,
		Actor:    logging.EntityRef{ID: taskName, Kind: logging.EntityKindTask},
		Severity: logging.SeverityError,
		Category: logging.CategoryScheduler,
		Payload:  map[string]any{"reason": reason, "recurring": recurring},
	})
}

func TaskRegistered(ctx context.Context, pub logging.Publisher, taskName string, intervalMillis int64) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTaskRegistered,
		Actor:    logging.EntityRef{ID: taskName, Kind: logging.EntityKindTask},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryScheduler,
		Payload:  map[string]int64{"intervalMillis": intervalMillis},
	})
}
