package proto

import (
	"fmt"
	"math"

	"emberhold/server/internal/sim"
	"emberhold/server/internal/state"
	"emberhold/server/internal/world"
)

// Action point costs per command kind. Game rules may tune these; the
// simulation core only enforces them at drain time.
const (
	costMove   = 2
	costFace   = 1
	costSay    = 1
	costAction = 5
)

const moveStep = 16.0

const maxSayLength = 240

var validFacings = map[string]bool{
	"north": true,
	"south": true,
	"east":  true,
	"west":  true,
}

// Named long actions a client may start. The completion effects are
// placeholder game rules; the core cares about the pacing.
var actionCosts = map[string]int{
	"mine":  40,
	"craft": 60,
	"rest":  20,
}

// MoveCommand shifts the player one step along the requested vector.
type MoveCommand struct {
	DX, DY float64
}

func (MoveCommand) Kind() string { return "move" }
func (MoveCommand) Cost() int    { return costMove }

func (c MoveCommand) Execute(w *world.World, p *state.PlayerState) error {
	length := math.Hypot(c.DX, c.DY)
	if length == 0 {
		return fmt.Errorf("zero movement vector")
	}
	p.Pos.X += c.DX / length * moveStep
	p.Pos.Y += c.DY / length * moveStep
	return nil
}

// FaceCommand turns the player toward a cardinal direction.
type FaceCommand struct {
	Facing string
}

func (FaceCommand) Kind() string { return "face" }
func (FaceCommand) Cost() int    { return costFace }

func (c FaceCommand) Execute(w *world.World, p *state.PlayerState) error {
	if !validFacings[c.Facing] {
		return fmt.Errorf("unknown facing %q", c.Facing)
	}
	p.Facing = c.Facing
	return nil
}

// SayCommand queues a chat line for the next state broadcast.
type SayCommand struct {
	Text string
}

func (SayCommand) Kind() string { return "say" }
func (SayCommand) Cost() int    { return costSay }

func (c SayCommand) Execute(w *world.World, p *state.PlayerState) error {
	if c.Text == "" {
		return fmt.Errorf("empty chat line")
	}
	w.AppendChat(world.ChatEntry{PlayerID: p.ID, Name: p.Name, Text: c.Text})
	return nil
}

// ActionCommand starts a named long-running action. The cost charged at
// drain time covers starting; the remaining AP burns down across ticks.
type ActionCommand struct {
	Name string
}

func (ActionCommand) Kind() string { return "action" }
func (ActionCommand) Cost() int    { return costAction }

func (c ActionCommand) Execute(w *world.World, p *state.PlayerState) error {
	remaining, ok := actionCosts[c.Name]
	if !ok {
		return fmt.Errorf("unknown action %q", c.Name)
	}
	p.StartAction(&state.LongAction{Kind: c.Name, Remaining: remaining})
	return nil
}

// AbortCommand cancels the in-progress long action. It rides the
// immediate lane so it is not stuck behind queued moves.
type AbortCommand struct{}

func (AbortCommand) Kind() string { return "abort" }
func (AbortCommand) Cost() int    { return 0 }

func (AbortCommand) Execute(w *world.World, p *state.PlayerState) error {
	p.AbortAction()
	return nil
}

// DecodeCommand maps a client message onto a simulation command and the
// lane it should ride. Heartbeats are connection metadata, not commands;
// they return ok=false here and are handled by the session directly.
func DecodeCommand(msg ClientMessage) (cmd sim.Command, immediate bool, ok bool) {
	switch msg.Type {
	case ClientTypeMove:
		if msg.DX == 0 && msg.DY == 0 {
			return nil, false, false
		}
		return MoveCommand{DX: msg.DX, DY: msg.DY}, false, true
	case ClientTypeFace:
		if !validFacings[msg.Facing] {
			return nil, false, false
		}
		return FaceCommand{Facing: msg.Facing}, false, true
	case ClientTypeSay:
		if msg.Text == "" || len(msg.Text) > maxSayLength {
			return nil, false, false
		}
		return SayCommand{Text: msg.Text}, false, true
	case ClientTypeAction:
		if _, known := actionCosts[msg.Action]; !known {
			return nil, false, false
		}
		return ActionCommand{Name: msg.Action}, false, true
	case ClientTypeAbort:
		return AbortCommand{}, true, true
	default:
		return nil, false, false
	}
}
