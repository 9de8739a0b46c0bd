package world

import (
	"fmt"
	"testing"

	"emberhold/server/internal/state"
)

func testPlayer(id string, pos state.Position) *state.PlayerState {
	return &state.PlayerState{Actor: state.Actor{ID: id, Pos: pos, Health: 100, MaxHealth: 100}}
}

func TestAddPlayerRejectsDuplicates(t *testing.T) {
	w := New()
	if !w.AddPlayer(testPlayer("p1", state.Position{})) {
		t.Fatalf("first add rejected")
	}
	if w.AddPlayer(testPlayer("p1", state.Position{})) {
		t.Fatalf("duplicate id accepted")
	}
	if got := w.PlayerCount(); got != 1 {
		t.Fatalf("expected 1 player, got %d", got)
	}
}

func TestPlayersReturnsStableOrder(t *testing.T) {
	w := New()
	for _, id := range []string{"p3", "p1", "p2"} {
		w.AddPlayer(testPlayer(id, state.Position{}))
	}
	players := w.Players()
	for i, want := range []string{"p1", "p2", "p3"} {
		if players[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, players[i].ID)
		}
	}
}

func TestPlayerWithinIgnoresDepartedPlayers(t *testing.T) {
	w := New()
	p := testPlayer("p1", state.Position{X: 10, Y: 10})
	w.AddPlayer(p)

	if !w.PlayerWithin(state.Position{X: 0, Y: 0}, 50) {
		t.Fatalf("expected player within radius")
	}
	p.Depart(state.DepartReasonQuit)
	if w.PlayerWithin(state.Position{X: 0, Y: 0}, 50) {
		t.Fatalf("departed player still counts as an observer")
	}
}

func TestPlayerWithinRespectsRadius(t *testing.T) {
	w := New()
	w.AddPlayer(testPlayer("p1", state.Position{X: 300, Y: 400}))

	if !w.PlayerWithin(state.Position{}, 500) {
		t.Fatalf("player at distance 500 should be inside radius 500")
	}
	if w.PlayerWithin(state.Position{}, 499) {
		t.Fatalf("player at distance 500 should be outside radius 499")
	}
}

func TestChatBufferDropsOldestOnOverflow(t *testing.T) {
	w := New()
	total := maxPendingChat + 10
	for i := 0; i < total; i++ {
		w.AppendChat(ChatEntry{PlayerID: "p1", Text: fmt.Sprintf("line-%d", i)})
	}

	chat := w.DrainChat()
	if len(chat) != maxPendingChat {
		t.Fatalf("expected %d buffered lines, got %d", maxPendingChat, len(chat))
	}
	if chat[0].Text != "line-10" {
		t.Fatalf("expected oldest lines dropped, first is %q", chat[0].Text)
	}
	if chat[len(chat)-1].Text != fmt.Sprintf("line-%d", total-1) {
		t.Fatalf("newest line missing, last is %q", chat[len(chat)-1].Text)
	}
}

func TestReplenishSpawnsTracksPopulation(t *testing.T) {
	w := New()
	w.AddSpawnPoint(&SpawnPoint{
		ID:     "den",
		Target: 2,
		Factory: func(sp *SpawnPoint, ordinal int) *state.MonsterState {
			return &state.MonsterState{Actor: state.Actor{
				ID: fmt.Sprintf("den-%d", ordinal), Health: 10, MaxHealth: 10,
			}}
		},
	})

	if got := w.ReplenishSpawns(); got != 2 {
		t.Fatalf("expected 2 spawned, got %d", got)
	}
	if got := w.ReplenishSpawns(); got != 0 {
		t.Fatalf("expected no spawns at target population, got %d", got)
	}

	// One death frees one slot.
	monsters := w.Monsters()
	monsters[0].Dead = true
	if got := len(w.RemoveDeadMonsters()); got != 1 {
		t.Fatalf("expected 1 dead monster removed, got %d", got)
	}
	if got := w.ReplenishSpawns(); got != 1 {
		t.Fatalf("expected 1 spawned after a death, got %d", got)
	}
}

func TestSpawnFactoryOrdinalsNeverRepeat(t *testing.T) {
	w := New()
	seen := map[string]bool{}
	w.AddSpawnPoint(&SpawnPoint{
		ID:     "den",
		Target: 1,
		Factory: func(sp *SpawnPoint, ordinal int) *state.MonsterState {
			id := fmt.Sprintf("den-%d", ordinal)
			if seen[id] {
				t.Fatalf("duplicate monster id %s", id)
			}
			seen[id] = true
			return &state.MonsterState{Actor: state.Actor{ID: id, Health: 10, MaxHealth: 10}}
		},
	})

	for i := 0; i < 3; i++ {
		w.ReplenishSpawns()
		for _, m := range w.Monsters() {
			m.Dead = true
		}
		w.RemoveDeadMonsters()
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct monsters over 3 cycles, got %d", len(seen))
	}
}
