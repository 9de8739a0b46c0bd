package sim

import (
	"emberhold/server/internal/state"
	"emberhold/server/internal/world"
)

// Reject reasons reported to clients when a command never reaches the
// queue.
const (
	// CommandRejectQueueLimit indicates the command was dropped by
	// per-lane backpressure; the client may retry.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectUnknownActor indicates the target player is not in the
	// world.
	CommandRejectUnknownActor = "unknown_actor"
	// CommandRejectInvalidAction indicates a malformed or unsupported
	// command.
	CommandRejectInvalidAction = "invalid_action"
)

// Command is a player intent staged for execution during that player's
// tick slice. Implementations carry their own parameters; the queue treats
// them as opaque.
type Command interface {
	// Kind names the command for logging and metrics.
	Kind() string
	// Cost is the minimum action points the player must hold when the
	// command is drained. A command that cannot afford its cost at drain
	// time is discarded, not retried.
	Cost() int
	// Execute runs the command on the simulation goroutine.
	Execute(w *world.World, p *state.PlayerState) error
}

// TracedCommand is implemented by commands carrying a wire trace ID; the
// ID ends up on failure events for cross-referencing client logs.
type TracedCommand interface {
	Command
	TraceID() string
}
