// Package intake stages decoded client commands into the simulation,
// attaching trace IDs and translating queue outcomes into wire reject
// reasons.
package intake

import (
	"github.com/rs/xid"

	"emberhold/server/internal/net/proto"
	"emberhold/server/internal/sim"
)

// Enqueuer is the slice of the simulation loop the intake needs.
type Enqueuer interface {
	Enqueue(playerID string, cmd sim.Command, immediate bool) (bool, string)
}

// CommandContext carries the collaborators for staging one command.
type CommandContext struct {
	Enqueuer  Enqueuer
	HasPlayer func(string) bool
	Tick      func() uint64
}

// Staged describes a successfully queued command.
type Staged struct {
	CommandID string
	Kind      string
	Immediate bool
	Tick      uint64
}

type tracedCommand struct {
	sim.Command
	id string
}

func (t tracedCommand) TraceID() string {
	return t.id
}

// StageClientCommand validates and queues one client message. The reason
// string is empty exactly when ok is true.
func StageClientCommand(ctx CommandContext, playerID string, msg proto.ClientMessage) (Staged, bool, string) {
	var zero Staged

	cmd, immediate, ok := proto.DecodeCommand(msg)
	if !ok {
		return zero, false, sim.CommandRejectInvalidAction
	}

	if ctx.HasPlayer != nil && !ctx.HasPlayer(playerID) {
		return zero, false, sim.CommandRejectUnknownActor
	}

	traced := tracedCommand{Command: cmd, id: xid.New().String()}

	if ctx.Enqueuer == nil {
		return zero, false, sim.CommandRejectQueueLimit
	}
	if ok, reason := ctx.Enqueuer.Enqueue(playerID, traced, immediate); !ok {
		return zero, false, reason
	}

	staged := Staged{
		CommandID: traced.id,
		Kind:      cmd.Kind(),
		Immediate: immediate,
	}
	if ctx.Tick != nil {
		staged.Tick = ctx.Tick()
	}
	return staged, true, ""
}
