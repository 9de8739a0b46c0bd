package lifecycle

import (
	"context"

	"emberhold/server/logging"
)

const (
	EventPlayerJoined       logging.EventType = "lifecycle.player_joined"
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
	EventPlayerIdleTimeout  logging.EventType = "lifecycle.player_idle_timeout"
	EventMonsterRemoved     logging.EventType = "lifecycle.monster_removed"
)

func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, playerID string) {
	publish(ctx, pub, EventPlayerJoined, tick, playerID, logging.SeverityInfo, nil)
}

func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, playerID, reason string) {
	publish(ctx, pub, EventPlayerDisconnected, tick, playerID, logging.SeverityInfo, map[string]string{"reason": reason})
}

func PlayerIdleTimeout(ctx context.Context, pub logging.Publisher, tick uint64, playerID string, idleSeconds int64) {
	publish(ctx, pub, EventPlayerIdleTimeout, tick, playerID, logging.SeverityInfo, map[string]int64{"idleSeconds": idleSeconds})
}

func MonsterRemoved(ctx context.Context, pub logging.Publisher, tick uint64, monsterID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMonsterRemoved,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: monsterID, Kind: logging.EntityKindMonster},
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
	})
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, tick uint64, playerID string, sev logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer},
		Severity: sev,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}
