package persist

import (
	"errors"
	"testing"

	"emberhold/server/internal/state"
)

func snapshot(id string, x, y float64) state.PlayerSnapshot {
	return state.PlayerSnapshot{
		ID:            id,
		Name:          id,
		Pos:           state.Position{X: x, Y: y},
		Facing:        "north",
		Health:        80,
		MaxHealth:     100,
		ActionPoints:  12,
		FightPoints:   7,
		OnlineSeconds: 360,
	}
}

func TestSaveAndLoadPlayer(t *testing.T) {
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	want := snapshot("p1", 10.5, -3.25)
	if err := store.SavePlayer(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.LoadPlayer("p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestSavePlayersUpserts(t *testing.T) {
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if err := store.SavePlayers([]state.PlayerSnapshot{
		snapshot("p1", 0, 0),
		snapshot("p2", 1, 1),
	}); err != nil {
		t.Fatalf("first batch: %v", err)
	}

	moved := snapshot("p1", 99, 99)
	if err := store.SavePlayers([]state.PlayerSnapshot{moved}); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	all, err := store.LoadPlayers()
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rows after upsert, got %d", len(all))
	}
	if all[0].ID != "p1" || all[0].Pos.X != 99 {
		t.Fatalf("upsert did not overwrite: %+v", all[0])
	}
}

func TestLoadMissingPlayerReturnsNotFound(t *testing.T) {
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if _, err := store.LoadPlayer("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveEmptyBatchIsNoop(t *testing.T) {
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if err := store.SavePlayers(nil); err != nil {
		t.Fatalf("empty batch errored: %v", err)
	}
}
