package server

import (
	"time"

	"emberhold/server/internal/sim"
	"emberhold/server/internal/telemetry"
)

// HubConfig wires the hub and the simulation loop it owns.
type HubConfig struct {
	Loop sim.LoopConfig

	// WriteWait bounds every websocket write.
	WriteWait time.Duration
	// HeartbeatInterval is advertised to clients via /diagnostics.
	HeartbeatInterval time.Duration

	Logger telemetry.Logger

	// Collaborators are the swappable game-rule callbacks; nil members
	// simply skip that behavior.
	Collaborators sim.Collaborators
}

// DefaultHubConfig mirrors production settings.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Loop:              sim.DefaultLoopConfig(),
		WriteWait:         10 * time.Second,
		HeartbeatInterval: 2 * time.Second,
	}
}
