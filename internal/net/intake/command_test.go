package intake

import (
	"testing"

	"emberhold/server/internal/net/proto"
	"emberhold/server/internal/sim"
)

type fakeEnqueuer struct {
	accepted  bool
	reason    string
	immediate bool
}

func (f *fakeEnqueuer) Enqueue(playerID string, cmd sim.Command, immediate bool) (bool, string) {
	f.immediate = immediate
	return f.accepted, f.reason
}

func stageContext(enq *fakeEnqueuer, hasPlayer bool) CommandContext {
	return CommandContext{
		Enqueuer:  enq,
		HasPlayer: func(string) bool { return hasPlayer },
		Tick:      func() uint64 { return 42 },
	}
}

func TestStageClientCommandAssignsTraceID(t *testing.T) {
	enq := &fakeEnqueuer{accepted: true}
	staged, ok, reason := StageClientCommand(stageContext(enq, true), "p1", proto.ClientMessage{
		Type: proto.ClientTypeMove, DX: 1,
	})
	if !ok {
		t.Fatalf("staging rejected: %s", reason)
	}
	if staged.CommandID == "" {
		t.Fatalf("staged command missing trace id")
	}
	if staged.Kind != "move" {
		t.Fatalf("expected kind move, got %s", staged.Kind)
	}
	if staged.Tick != 42 {
		t.Fatalf("expected tick 42, got %d", staged.Tick)
	}
	if enq.immediate {
		t.Fatalf("move should ride the normal lane")
	}
}

func TestStageClientCommandRoutesAbortToImmediateLane(t *testing.T) {
	enq := &fakeEnqueuer{accepted: true}
	staged, ok, _ := StageClientCommand(stageContext(enq, true), "p1", proto.ClientMessage{
		Type: proto.ClientTypeAbort,
	})
	if !ok {
		t.Fatalf("abort rejected")
	}
	if !enq.immediate || !staged.Immediate {
		t.Fatalf("abort did not ride the immediate lane")
	}
}

func TestStageClientCommandRejections(t *testing.T) {
	tests := []struct {
		name       string
		msg        proto.ClientMessage
		hasPlayer  bool
		enqAccept  bool
		enqReason  string
		wantReason string
	}{
		{
			name:       "unknown message type",
			msg:        proto.ClientMessage{Type: "dance"},
			hasPlayer:  true,
			wantReason: sim.CommandRejectInvalidAction,
		},
		{
			name:       "zero movement vector",
			msg:        proto.ClientMessage{Type: proto.ClientTypeMove},
			hasPlayer:  true,
			wantReason: sim.CommandRejectInvalidAction,
		},
		{
			name:       "unknown action name",
			msg:        proto.ClientMessage{Type: proto.ClientTypeAction, Action: "fly"},
			hasPlayer:  true,
			wantReason: sim.CommandRejectInvalidAction,
		},
		{
			name:       "heartbeat is not a command",
			msg:        proto.ClientMessage{Type: proto.ClientTypeHeartbeat},
			hasPlayer:  true,
			wantReason: sim.CommandRejectInvalidAction,
		},
		{
			name:       "player not in world",
			msg:        proto.ClientMessage{Type: proto.ClientTypeMove, DX: 1},
			hasPlayer:  false,
			wantReason: sim.CommandRejectUnknownActor,
		},
		{
			name:       "queue backpressure",
			msg:        proto.ClientMessage{Type: proto.ClientTypeMove, DX: 1},
			hasPlayer:  true,
			enqAccept:  false,
			enqReason:  sim.CommandRejectQueueLimit,
			wantReason: sim.CommandRejectQueueLimit,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enq := &fakeEnqueuer{accepted: tc.enqAccept, reason: tc.enqReason}
			_, ok, reason := StageClientCommand(stageContext(enq, tc.hasPlayer), "p1", tc.msg)
			if ok {
				t.Fatalf("expected rejection")
			}
			if reason != tc.wantReason {
				t.Fatalf("expected reason %q, got %q", tc.wantReason, reason)
			}
		})
	}
}

func TestStagedCommandsGetDistinctTraceIDs(t *testing.T) {
	enq := &fakeEnqueuer{accepted: true}
	first, _, _ := StageClientCommand(stageContext(enq, true), "p1", proto.ClientMessage{Type: proto.ClientTypeMove, DX: 1})
	second, _, _ := StageClientCommand(stageContext(enq, true), "p1", proto.ClientMessage{Type: proto.ClientTypeMove, DY: 1})
	if first.CommandID == second.CommandID {
		t.Fatalf("trace ids collided: %s", first.CommandID)
	}
}
