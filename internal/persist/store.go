// Package persist stores player snapshots in SQLite. Writes come from
// the simulation goroutine on logout and the persistence timer; reads
// happen at startup and from operator tooling.
package persist

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"emberhold/server/internal/state"
)

var ErrNotFound = errors.New("persist: player not found")

// Store is a SQLite-backed player snapshot store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return store, nil
}

// OpenInMemory opens a throwaway in-memory database, used by tests.
func OpenInMemory() (*Store, error) {
	return Open(":memory:")
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		facing TEXT NOT NULL DEFAULT '',
		health INTEGER NOT NULL,
		max_health INTEGER NOT NULL,
		action_points INTEGER NOT NULL,
		fight_points INTEGER NOT NULL,
		online_seconds INTEGER NOT NULL DEFAULT 0,
		last_saved DATETIME NOT NULL
	);`)
	return err
}

// SavePlayer upserts one snapshot.
func (s *Store) SavePlayer(snapshot state.PlayerSnapshot) error {
	return s.SavePlayers([]state.PlayerSnapshot{snapshot})
}

// SavePlayers upserts a batch of snapshots in one transaction. It
// implements the simulation's player persister.
func (s *Store) SavePlayers(snapshots []state.PlayerSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO players
		(id, name, x, y, facing, health, max_health, action_points, fight_points, online_seconds, last_saved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			x = excluded.x,
			y = excluded.y,
			facing = excluded.facing,
			health = excluded.health,
			max_health = excluded.max_health,
			action_points = excluded.action_points,
			fight_points = excluded.fight_points,
			online_seconds = excluded.online_seconds,
			last_saved = excluded.last_saved`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, snap := range snapshots {
		if _, err := stmt.Exec(
			snap.ID, snap.Name, snap.Pos.X, snap.Pos.Y, snap.Facing,
			snap.Health, snap.MaxHealth, snap.ActionPoints, snap.FightPoints,
			snap.OnlineSeconds, now,
		); err != nil {
			return fmt.Errorf("failed to save player %s: %w", snap.ID, err)
		}
	}
	return tx.Commit()
}

// LoadPlayer reads one snapshot by id.
func (s *Store) LoadPlayer(id string) (state.PlayerSnapshot, error) {
	var snap state.PlayerSnapshot
	row := s.db.QueryRow(`SELECT id, name, x, y, facing, health, max_health, action_points, fight_points, online_seconds
		FROM players WHERE id = ?`, id)
	err := row.Scan(
		&snap.ID, &snap.Name, &snap.Pos.X, &snap.Pos.Y, &snap.Facing,
		&snap.Health, &snap.MaxHealth, &snap.ActionPoints, &snap.FightPoints,
		&snap.OnlineSeconds,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return state.PlayerSnapshot{}, ErrNotFound
	}
	if err != nil {
		return state.PlayerSnapshot{}, fmt.Errorf("failed to load player %s: %w", id, err)
	}
	return snap, nil
}

// LoadPlayers reads every stored snapshot ordered by id.
func (s *Store) LoadPlayers() ([]state.PlayerSnapshot, error) {
	rows, err := s.db.Query(`SELECT id, name, x, y, facing, health, max_health, action_points, fight_points, online_seconds
		FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	var snapshots []state.PlayerSnapshot
	for rows.Next() {
		var snap state.PlayerSnapshot
		if err := rows.Scan(
			&snap.ID, &snap.Name, &snap.Pos.X, &snap.Pos.Y, &snap.Facing,
			&snap.Health, &snap.MaxHealth, &snap.ActionPoints, &snap.FightPoints,
			&snap.OnlineSeconds,
		); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// Checkpoint forces a WAL checkpoint, scheduled as a background task.
func (s *Store) Checkpoint() error {
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE);`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
