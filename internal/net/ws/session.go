package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"emberhold/server/internal/net/intake"
	"emberhold/server/internal/net/proto"
	"emberhold/server/internal/sim"
)

// serve runs the read loop for one player connection until the connection
// drops or a write fails.
func (h *Handler) serve(playerID string, conn *websocket.Conn) {
	sub, snapshot, ok := h.hub.Subscribe(playerID, conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown player")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	initial := proto.StateMessage{
		Ver:        proto.ProtocolVersion,
		Type:       "state",
		Players:    snapshot,
		ServerTime: time.Now().UnixMilli(),
		Tick:       h.hub.Loop().Tick(),
	}
	data, err := json.Marshal(initial)
	if err != nil {
		h.logger.Printf("failed to marshal initial state for %s: %v", playerID, err)
		h.hub.Disconnect(playerID)
		return
	}
	if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
		h.hub.Disconnect(playerID)
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(playerID)
			return
		}

		var msg proto.ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", playerID, err)
			continue
		}

		normalizedSeq := uint64(0)
		if msg.Seq != nil && *msg.Seq > 0 {
			normalizedSeq = *msg.Seq
		}

		writeJSON := func(payload any) bool {
			data, err := json.Marshal(payload)
			if err != nil {
				h.logger.Printf("failed to marshal response for %s: %v", playerID, err)
				return true
			}
			if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
				h.hub.Disconnect(playerID)
				return false
			}
			return true
		}

		sendDuplicateAck := func() bool {
			if normalizedSeq == 0 {
				return true
			}
			ack := proto.CommandAckMessage{Ver: proto.ProtocolVersion, Type: "commandAck", Seq: normalizedSeq}
			return writeJSON(ack)
		}

		sendCommandAck := func(staged intake.Staged) bool {
			if normalizedSeq == 0 {
				return true
			}
			ack := proto.CommandAckMessage{
				Ver:       proto.ProtocolVersion,
				Type:      "commandAck",
				Seq:       normalizedSeq,
				CommandID: staged.CommandID,
				Tick:      staged.Tick,
			}
			if !writeJSON(ack) {
				return false
			}
			sub.StoreLastCommandSeq(normalizedSeq)
			return true
		}

		sendCommandReject := func(reason string) bool {
			if normalizedSeq == 0 {
				return true
			}
			reject := proto.CommandRejectMessage{
				Ver:    proto.ProtocolVersion,
				Type:   "commandReject",
				Seq:    normalizedSeq,
				Reason: reason,
			}
			if reason == sim.CommandRejectQueueLimit {
				reject.Retry = true
			}
			return writeJSON(reject)
		}

		switch msg.Type {
		case proto.ClientTypeMove, proto.ClientTypeFace, proto.ClientTypeSay, proto.ClientTypeAction, proto.ClientTypeAbort:
			if normalizedSeq > 0 {
				if last := sub.LastCommandSeq(); last > 0 && normalizedSeq <= last {
					if !sendDuplicateAck() {
						return
					}
					continue
				}
			}
			staged, ok, reason := h.hub.StageCommand(playerID, msg)
			if normalizedSeq > 0 {
				if ok {
					if !sendCommandAck(staged) {
						return
					}
				} else if !sendCommandReject(reason) {
					return
				}
			}
			if !ok {
				switch reason {
				case sim.CommandRejectInvalidAction:
					h.logger.Printf("invalid %s message from %s", msg.Type, playerID)
				case sim.CommandRejectUnknownActor:
					h.logger.Printf("%s ignored for unknown player %s", msg.Type, playerID)
				}
			}
		case proto.ClientTypeHeartbeat:
			now := time.Now()
			rtt, ok := h.hub.UpdateHeartbeat(playerID, now, msg.SentAt)
			if !ok {
				continue
			}

			ack := proto.HeartbeatMessage{
				Ver:        proto.ProtocolVersion,
				Type:       "heartbeat",
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt.Milliseconds(),
			}
			if !writeJSON(ack) {
				return
			}
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, playerID)
		}
	}
}
