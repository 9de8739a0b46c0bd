package state

import (
	"sync"
	"time"
)

// Disconnect reasons recorded when a player leaves the world.
const (
	DepartReasonQuit        = "quit"
	DepartReasonIdleTimeout = "idle_timeout"
	DepartReasonConnection  = "connection_lost"
)

// LongAction tracks an in-progress multi-tick action (crafting, channeled
// casts). The simulation burns the remaining cost down each tick and
// invokes the completion callback when it reaches zero.
type LongAction struct {
	Kind       string
	Remaining  int
	OnComplete func(p *PlayerState)
	OnAbort    func(p *PlayerState)
}

// PlayerState wraps Actor with connection and session metadata.
type PlayerState struct {
	Actor

	LastAction  time.Time
	OnlineSince time.Time

	Action *LongAction

	// Departure is flagged from network goroutines (disconnects) while
	// the simulation goroutine reads it mid-pass, so it sits behind its
	// own lock. Removal still happens only at the end of a player pass,
	// never mid-iteration.
	departMu     sync.Mutex
	departed     bool
	departReason string
}

// Touch records player activity for the idle-timeout check.
func (p *PlayerState) Touch(now time.Time) {
	p.LastAction = now
}

// IdleFor returns how long the player has been without activity.
func (p *PlayerState) IdleFor(now time.Time) time.Duration {
	if p.LastAction.IsZero() {
		return 0
	}
	return now.Sub(p.LastAction)
}

// Depart marks the player for removal after the current pass. The first
// reason wins.
func (p *PlayerState) Depart(reason string) {
	p.departMu.Lock()
	defer p.departMu.Unlock()
	if p.departed {
		return
	}
	p.departed = true
	p.departReason = reason
}

// Departed reports whether the player is flagged for removal.
func (p *PlayerState) Departed() bool {
	p.departMu.Lock()
	defer p.departMu.Unlock()
	return p.departed
}

// DepartReason returns the reason recorded by the first Depart call.
func (p *PlayerState) DepartReason() string {
	p.departMu.Lock()
	defer p.departMu.Unlock()
	return p.departReason
}

// StartAction replaces any in-progress long action.
func (p *PlayerState) StartAction(action *LongAction) {
	if p.Action != nil && p.Action.OnAbort != nil {
		p.Action.OnAbort(p)
	}
	p.Action = action
}

// AbortAction cancels the in-progress long action, if any.
func (p *PlayerState) AbortAction() bool {
	if p.Action == nil {
		return false
	}
	action := p.Action
	p.Action = nil
	if action.OnAbort != nil {
		action.OnAbort(p)
	}
	return true
}

// AdvanceAction burns elapsed AP into the in-progress action, firing the
// completion callback once the cost is paid. Returns true if an action
// completed this tick.
func (p *PlayerState) AdvanceAction(ap int) bool {
	if p.Action == nil || ap <= 0 {
		return false
	}
	p.Action.Remaining -= ap
	if p.Action.Remaining > 0 {
		return false
	}
	action := p.Action
	p.Action = nil
	if action.OnComplete != nil {
		action.OnComplete(p)
	}
	return true
}

// PlayerSnapshot is the persisted and broadcast view of a player.
type PlayerSnapshot struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Pos           Position `json:"pos"`
	Facing        string   `json:"facing,omitempty"`
	Health        int      `json:"health"`
	MaxHealth     int      `json:"maxHealth"`
	ActionPoints  int      `json:"actionPoints"`
	FightPoints   int      `json:"fightPoints"`
	OnlineSeconds int64    `json:"onlineSeconds"`
}

// Snapshot copies the player into its serializable form.
func (p *PlayerState) Snapshot(now time.Time) PlayerSnapshot {
	online := int64(0)
	if !p.OnlineSince.IsZero() {
		online = int64(now.Sub(p.OnlineSince).Seconds())
	}
	return PlayerSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		Pos:           p.Pos,
		Facing:        p.Facing,
		Health:        p.Health,
		MaxHealth:     p.MaxHealth,
		ActionPoints:  p.ActionPoints,
		FightPoints:   p.FightPoints,
		OnlineSeconds: online,
	}
}
