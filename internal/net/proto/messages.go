// Package proto defines the JSON wire schema spoken over the websocket
// and decodes client messages into simulation commands.
package proto

import (
	"emberhold/server/internal/state"
	"emberhold/server/internal/world"
)

// ProtocolVersion is bumped on breaking wire changes.
const ProtocolVersion = 1

// ClientMessage is the envelope for everything a client sends.
type ClientMessage struct {
	Ver    int     `json:"ver,omitempty"`
	Type   string  `json:"type"`
	Seq    *uint64 `json:"seq,omitempty"`
	DX     float64 `json:"dx,omitempty"`
	DY     float64 `json:"dy,omitempty"`
	Action string  `json:"action,omitempty"`
	Facing string  `json:"facing,omitempty"`
	Text   string  `json:"text,omitempty"`
	SentAt int64   `json:"sentAt,omitempty"`
}

// Client message types.
const (
	ClientTypeMove      = "move"
	ClientTypeFace      = "face"
	ClientTypeSay       = "say"
	ClientTypeAction    = "action"
	ClientTypeAbort     = "abort"
	ClientTypeHeartbeat = "heartbeat"
)

// StateMessage carries a world snapshot to every subscriber.
type StateMessage struct {
	Ver        int                    `json:"ver"`
	Type       string                 `json:"type"`
	Players    []state.PlayerSnapshot `json:"players"`
	Chat       []world.ChatEntry      `json:"chat,omitempty"`
	ServerTime int64                  `json:"serverTime"`
	Tick       uint64                 `json:"tick"`
}

// JoinResponse answers a /join request.
type JoinResponse struct {
	Ver     int                    `json:"ver"`
	ID      string                 `json:"id"`
	Players []state.PlayerSnapshot `json:"players"`
}

// CommandAckMessage confirms a sequenced command was staged.
type CommandAckMessage struct {
	Ver       int    `json:"ver"`
	Type      string `json:"type"`
	Seq       uint64 `json:"seq"`
	CommandID string `json:"commandId,omitempty"`
	Tick      uint64 `json:"tick,omitempty"`
}

// CommandRejectMessage reports a command that never reached the queue.
type CommandRejectMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}

// HeartbeatMessage echoes a heartbeat with the measured round trip.
type HeartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}
