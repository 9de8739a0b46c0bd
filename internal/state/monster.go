package state

// MonsterState wraps Actor with spawn bookkeeping and route following.
type MonsterState struct {
	Actor

	// SpawnID ties the monster back to the spawn point that produced it
	// so replenishment can keep population counts accurate.
	SpawnID string

	Route      []Position
	RouteIndex int

	// Dead marks the monster for removal after the current monster pass
	// completes; the container is never mutated mid-iteration.
	Dead bool
}

// OnRoute reports whether the monster is actively following waypoints.
// Monsters on a route keep running AI even with no player nearby, so a
// patrol does not freeze mid-path when its observer walks away.
func (m *MonsterState) OnRoute() bool {
	return len(m.Route) > 0 && m.RouteIndex < len(m.Route)
}

// NextWaypoint returns the current route target.
func (m *MonsterState) NextWaypoint() (Position, bool) {
	if !m.OnRoute() {
		return Position{}, false
	}
	return m.Route[m.RouteIndex], true
}

// AdvanceRoute moves to the next waypoint, clearing the route at the end.
func (m *MonsterState) AdvanceRoute() {
	if !m.OnRoute() {
		return
	}
	m.RouteIndex++
	if m.RouteIndex >= len(m.Route) {
		m.Route = nil
		m.RouteIndex = 0
	}
}

// NPCState wraps Actor with the script hook identity.
type NPCState struct {
	Actor

	// Script names the behavior script bound to this NPC; the script
	// runtime itself lives outside the simulation core.
	Script string
}
