package world

import "emberhold/server/internal/state"

// MonsterFactory produces a fresh monster for a spawn point.
type MonsterFactory func(sp *SpawnPoint, ordinal int) *state.MonsterState

// SpawnPoint keeps a region populated with a target number of monsters.
// Replenishment runs on the simulation goroutine, on the cadence the
// monster driver chooses.
type SpawnPoint struct {
	ID      string
	Pos     state.Position
	Target  int
	Factory MonsterFactory

	alive   int
	spawned int
}

// Alive reports the current population attributed to this spawn point.
func (sp *SpawnPoint) Alive() int {
	return sp.alive
}

// AddSpawnPoint registers a spawn point with the world.
func (w *World) AddSpawnPoint(sp *SpawnPoint) {
	if sp == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.spawns = append(w.spawns, sp)
}

// ReplenishSpawns tops every spawn point back up to its target population
// and returns how many monsters were created.
func (w *World) ReplenishSpawns() int {
	w.mu.Lock()
	var pending []*state.MonsterState
	for _, sp := range w.spawns {
		if sp.Factory == nil {
			continue
		}
		for need := sp.Target - sp.alive; need > 0; need-- {
			sp.spawned++
			m := sp.Factory(sp, sp.spawned)
			if m == nil {
				break
			}
			if m.SpawnID == "" {
				m.SpawnID = sp.ID
			}
			pending = append(pending, m)
		}
	}
	w.mu.Unlock()

	for _, m := range pending {
		w.AddMonster(m)
	}
	return len(pending)
}
