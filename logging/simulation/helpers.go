package simulation

import (
	"context"

	"emberhold/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when a tick exceeds its time budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventCommandDropped is emitted when an enqueue is rejected before it
	// reaches the simulation (queue backpressure, unknown actor).
	EventCommandDropped logging.EventType = "simulation.command_dropped"
	// EventCommandDiscarded is emitted when a queued command is thrown away
	// at drain time because the actor lacks the required action points.
	EventCommandDiscarded logging.EventType = "simulation.command_discarded"
	// EventCommandFailed is emitted when a command's execution returns an
	// error or panics.
	EventCommandFailed logging.EventType = "simulation.command_failed"
	// EventEntityFault is emitted when processing one entity panics; the
	// tick continues with the remaining entities.
	EventEntityFault logging.EventType = "simulation.entity_fault"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
}

func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

// CommandDropPayload describes a command rejected before queueing.
type CommandDropPayload struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
	Count  uint64 `json:"count,omitempty"`
}

func CommandDropped(ctx context.Context, pub logging.Publisher, tick uint64, actorID string, payload CommandDropPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandDropped,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: actorID, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

// CommandDiscardPayload describes a command dropped at drain time.
type CommandDiscardPayload struct {
	Kind      string `json:"kind"`
	Cost      int    `json:"cost"`
	Available int    `json:"available"`
}

func CommandDiscarded(ctx context.Context, pub logging.Publisher, tick uint64, actorID string, payload CommandDiscardPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandDiscarded,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: actorID, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

func CommandFailed(ctx context.Context, pub logging.Publisher, tick uint64, actorID, kind, reason string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandFailed,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: actorID, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  map[string]string{"kind": kind, "reason": reason},
	})
}

func EntityFault(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, reason string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEntityFault,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityError,
		Category: logging.CategorySimulation,
		Payload:  map[string]string{"reason": reason},
	})
}
