// Package world owns the authoritative entity containers. Membership
// changes arrive from network goroutines (join, disconnect) and from the
// simulation goroutine (deaths, timeouts), so the containers sit behind a
// mutex; the entity state inside them is touched only by the simulation
// goroutine.
package world

import (
	"sort"
	"sync"

	"emberhold/server/internal/state"
)

type World struct {
	mu       sync.Mutex
	players  map[string]*state.PlayerState
	monsters []*state.MonsterState
	npcs     []*state.NPCState
	spawns   []*SpawnPoint
	chat     []ChatEntry
}

func New() *World {
	return &World{
		players: make(map[string]*state.PlayerState),
	}
}

// AddPlayer registers a player; returns false when the ID is taken.
func (w *World) AddPlayer(p *state.PlayerState) bool {
	if p == nil || p.ID == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.players[p.ID]; exists {
		return false
	}
	w.players[p.ID] = p
	return true
}

// RemovePlayer drops the player from the container.
func (w *World) RemovePlayer(id string) (*state.PlayerState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if ok {
		delete(w.players, id)
	}
	return p, ok
}

// Player looks up a player by ID.
func (w *World) Player(id string) (*state.PlayerState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	return p, ok
}

// Players returns the players in stable ID order. The slice is a copy;
// iterating callers may mutate membership afterwards without invalidating
// their loop.
func (w *World) Players() []*state.PlayerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	players := make([]*state.PlayerState, 0, len(w.players))
	for _, p := range w.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players
}

// PlayerCount reports the number of connected players.
func (w *World) PlayerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.players)
}

// AddMonster registers a monster and updates its spawn's population.
func (w *World) AddMonster(m *state.MonsterState) {
	if m == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.monsters = append(w.monsters, m)
	if m.SpawnID != "" {
		for _, sp := range w.spawns {
			if sp.ID == m.SpawnID {
				sp.alive++
				break
			}
		}
	}
}

// Monsters returns a copy of the monster list for iteration.
func (w *World) Monsters() []*state.MonsterState {
	w.mu.Lock()
	defer w.mu.Unlock()
	monsters := make([]*state.MonsterState, len(w.monsters))
	copy(monsters, w.monsters)
	return monsters
}

// RemoveDeadMonsters drops every monster marked dead and returns them.
// Called after a full monster pass, never during one.
func (w *World) RemoveDeadMonsters() []*state.MonsterState {
	w.mu.Lock()
	defer w.mu.Unlock()
	var removed []*state.MonsterState
	kept := w.monsters[:0]
	for _, m := range w.monsters {
		if m.Dead {
			removed = append(removed, m)
			if m.SpawnID != "" {
				for _, sp := range w.spawns {
					if sp.ID == m.SpawnID && sp.alive > 0 {
						sp.alive--
						break
					}
				}
			}
			continue
		}
		kept = append(kept, m)
	}
	w.monsters = kept
	return removed
}

// AddNPC registers an NPC.
func (w *World) AddNPC(n *state.NPCState) {
	if n == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.npcs = append(w.npcs, n)
}

// NPCs returns a copy of the NPC list for iteration.
func (w *World) NPCs() []*state.NPCState {
	w.mu.Lock()
	defer w.mu.Unlock()
	npcs := make([]*state.NPCState, len(w.npcs))
	copy(npcs, w.npcs)
	return npcs
}

// PlayerWithin reports whether any connected player is inside radius of
// pos. Used to gate monster AI and NPC scripts to observed areas.
func (w *World) PlayerWithin(pos state.Position, radius float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.players {
		if p.Departed() {
			continue
		}
		if p.Pos.DistanceTo(pos) <= radius {
			return true
		}
	}
	return false
}
