package state

import "math"

const (
	// MaxActionPoints caps the action points an actor can bank. Idle
	// actors do not accumulate unbounded turns.
	MaxActionPoints = 1000
	// MaxFightPoints caps banked fight points.
	MaxFightPoints = 1000
)

// Position is a location on the world plane.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the euclidean distance to other.
func (p Position) DistanceTo(other Position) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Actor captures the shared state for any simulated entity. Entity state
// is mutated only by the simulation goroutine; no locking here.
type Actor struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Pos       Position `json:"pos"`
	Facing    string   `json:"facing,omitempty"`
	Health    int      `json:"health"`
	MaxHealth int      `json:"maxHealth"`

	ActionPoints int `json:"actionPoints"`
	FightPoints  int `json:"fightPoints"`
}

// GrantActionPoints adds ap up to the bank cap.
func (a *Actor) GrantActionPoints(ap int) {
	if ap <= 0 {
		return
	}
	a.ActionPoints += ap
	if a.ActionPoints > MaxActionPoints {
		a.ActionPoints = MaxActionPoints
	}
}

// GrantFightPoints adds fp up to the bank cap.
func (a *Actor) GrantFightPoints(fp int) {
	if fp <= 0 {
		return
	}
	a.FightPoints += fp
	if a.FightPoints > MaxFightPoints {
		a.FightPoints = MaxFightPoints
	}
}

// ConsumeActionPoints deducts n action points, reporting false when the
// actor cannot afford them.
func (a *Actor) ConsumeActionPoints(n int) bool {
	if n < 0 || a.ActionPoints < n {
		return false
	}
	a.ActionPoints -= n
	return true
}

// Alive reports whether the actor still has health.
func (a *Actor) Alive() bool {
	return a.Health > 0
}

// ApplyHealthDelta adjusts health, clamping to [0, MaxHealth]. Returns
// true when the value changed.
func (a *Actor) ApplyHealthDelta(delta int) bool {
	next := a.Health + delta
	if next < 0 {
		next = 0
	}
	if a.MaxHealth > 0 && next > a.MaxHealth {
		next = a.MaxHealth
	}
	if next == a.Health {
		return false
	}
	a.Health = next
	return true
}
