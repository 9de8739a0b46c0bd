// Package server bridges the network edge to the simulation: it owns the
// subscriber registry, allocates players, stages commands into the loop,
// and fans world snapshots back out to connected clients.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"emberhold/server/internal/net/intake"
	"emberhold/server/internal/net/proto"
	"emberhold/server/internal/sched"
	"emberhold/server/internal/sim"
	"emberhold/server/internal/state"
	"emberhold/server/internal/telemetry"
	"emberhold/server/internal/world"
	"emberhold/server/logging"
	lifecyclelog "emberhold/server/logging/lifecycle"
)

// Subscriber serializes websocket writes for one connection and carries
// the connection-side liveness state. Heartbeats live here, not on the
// player: liveness must not count as game activity.
type Subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex

	writeWait time.Duration

	lastSeq       atomic.Uint64
	lastHeartbeat atomic.Int64
	lastRTTMillis atomic.Int64
}

// WriteMessage writes under the subscriber lock with the configured
// deadline.
func (s *Subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	return s.conn.WriteMessage(messageType, data)
}

// LastCommandSeq reports the highest acknowledged client sequence.
func (s *Subscriber) LastCommandSeq() uint64 {
	return s.lastSeq.Load()
}

// StoreLastCommandSeq records an acknowledged client sequence.
func (s *Subscriber) StoreLastCommandSeq(seq uint64) {
	s.lastSeq.Store(seq)
}

// Hub owns the subscriber registry and the simulation loop.
type Hub struct {
	cfg       HubConfig
	loop      *sim.Loop
	scheduler *sched.Scheduler
	publisher logging.Publisher
	metrics   *logging.Metrics
	clock     logging.Clock
	logger    telemetry.Logger

	mu          sync.Mutex
	subscribers map[string]*Subscriber

	// Network goroutines must not read live PlayerState while the
	// simulation mutates it, so join and subscribe responses come from
	// this cache. The simulation goroutine refreshes it every tick;
	// Join appends the new player so pre-first-tick reads include them.
	snapMu      sync.Mutex
	playerSnaps []state.PlayerSnapshot

	nextID    atomic.Uint64
	startedAt time.Time
}

// NewHub constructs the hub together with the world, scheduler, and loop
// it drives.
func NewHub(cfg HubConfig, publisher logging.Publisher, metrics *logging.Metrics, clock logging.Clock) *Hub {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if clock == nil {
		clock = logging.SystemClock{}
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	h := &Hub{
		cfg:         cfg,
		publisher:   publisher,
		metrics:     metrics,
		clock:       clock,
		logger:      logger,
		subscribers: make(map[string]*Subscriber),
		startedAt:   clock.Now(),
	}

	h.scheduler = sched.New(clock, publisher, telemetry.WrapMetrics(metrics))
	deps := sim.Deps{
		Metrics:   metrics,
		Clock:     clock,
		Publisher: publisher,
	}
	hooks := sim.LoopHooks{
		AfterTick:       h.afterTick,
		OnPlayerRemoved: h.onPlayerRemoved,
	}
	h.loop = sim.NewLoop(world.New(), h.scheduler, cfg.Loop, cfg.Collaborators, hooks, deps)
	return h
}

// Loop exposes the simulation loop for world seeding.
func (h *Hub) Loop() *sim.Loop {
	return h.loop
}

// Scheduler exposes background task registration.
func (h *Hub) Scheduler() *sched.Scheduler {
	return h.scheduler
}

// RunSimulation drives the loop until stop closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	h.loop.Run(stop)
}

// Join allocates a player, registers it with the simulation, and returns
// the join snapshot.
func (h *Hub) Join() (proto.JoinResponse, error) {
	id := h.nextID.Add(1)
	playerID := fmt.Sprintf("player-%d", id)
	now := h.clock.Now()

	player := &state.PlayerState{
		Actor: state.Actor{
			ID:        playerID,
			Name:      playerID,
			Pos:       state.Position{X: 80, Y: 80},
			Health:    100,
			MaxHealth: 100,
		},
		LastAction:  now,
		OnlineSince: now,
	}

	// Snapshot before registration: once the player is in the world the
	// simulation goroutine owns the entity state.
	snap := player.Snapshot(now)
	if _, ok := h.loop.RegisterPlayer(player); !ok {
		return proto.JoinResponse{}, fmt.Errorf("player id %s already registered", playerID)
	}
	if persister := h.cfg.Collaborators.Persister; persister != nil {
		if err := persister.SavePlayers([]state.PlayerSnapshot{snap}); err != nil {
			h.logger.Printf("initial persist for %s failed: %v", playerID, err)
		}
	}
	lifecyclelog.PlayerJoined(context.Background(), h.publisher, h.loop.Tick(), playerID)
	h.scheduler.SignalUrgent()

	return proto.JoinResponse{
		Ver:     proto.ProtocolVersion,
		ID:      playerID,
		Players: h.appendSnapshot(snap),
	}, nil
}

// Subscribe attaches a websocket connection to a joined player. An
// existing subscriber for the same player is displaced.
func (h *Hub) Subscribe(playerID string, conn *websocket.Conn) (*Subscriber, []state.PlayerSnapshot, bool) {
	if _, ok := h.loop.World().Player(playerID); !ok {
		return nil, nil, false
	}

	sub := &Subscriber{conn: conn, writeWait: h.cfg.WriteWait}
	sub.lastHeartbeat.Store(h.clock.Now().UnixMilli())

	h.mu.Lock()
	existing := h.subscribers[playerID]
	h.subscribers[playerID] = sub
	h.mu.Unlock()
	if existing != nil {
		existing.conn.Close()
	}

	return sub, h.cachedSnapshots(), true
}

// Disconnect detaches the subscriber and flags the player for removal.
// The simulation goroutine finalizes the removal on its next pass.
func (h *Hub) Disconnect(playerID string) {
	h.mu.Lock()
	sub, ok := h.subscribers[playerID]
	if ok {
		delete(h.subscribers, playerID)
	}
	h.mu.Unlock()
	if ok {
		sub.conn.Close()
	}
	h.loop.MarkDeparted(playerID, state.DepartReasonConnection)
}

// StageCommand validates and queues one client message for the player.
func (h *Hub) StageCommand(playerID string, msg proto.ClientMessage) (intake.Staged, bool, string) {
	ctx := intake.CommandContext{
		Enqueuer: h.loop,
		HasPlayer: func(id string) bool {
			_, ok := h.loop.World().Player(id)
			return ok
		},
		Tick: h.loop.Tick,
	}
	return intake.StageClientCommand(ctx, playerID, msg)
}

// UpdateHeartbeat records connection liveness and returns the measured
// round trip for the echo frame.
func (h *Hub) UpdateHeartbeat(playerID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	sub, ok := h.subscribers[playerID]
	h.mu.Unlock()
	if !ok {
		return 0, false
	}
	sub.lastHeartbeat.Store(receivedAt.UnixMilli())

	if clientSent > 0 {
		rtt := receivedAt.Sub(time.UnixMilli(clientSent))
		if rtt >= 0 && rtt < time.Minute {
			sub.lastRTTMillis.Store(rtt.Milliseconds())
		}
	}
	return time.Duration(sub.lastRTTMillis.Load()) * time.Millisecond, true
}

func (h *Hub) afterTick(result sim.TickResult) {
	players := h.snapshotPlayers(result.Now)
	h.snapMu.Lock()
	h.playerSnaps = players
	h.snapMu.Unlock()
	h.BroadcastState(players, h.loop.World().DrainChat(), result.Tick)
}

func (h *Hub) onPlayerRemoved(snapshot state.PlayerSnapshot, reason string) {
	h.mu.Lock()
	sub, ok := h.subscribers[snapshot.ID]
	if ok {
		delete(h.subscribers, snapshot.ID)
	}
	h.mu.Unlock()
	if ok {
		sub.conn.Close()
	}
}

// BroadcastState fans a snapshot out to every subscriber. A failed write
// disconnects that subscriber.
func (h *Hub) BroadcastState(players []state.PlayerSnapshot, chat []world.ChatEntry, tick uint64) {
	msg := proto.StateMessage{
		Ver:        proto.ProtocolVersion,
		Type:       "state",
		Players:    players,
		Chat:       chat,
		ServerTime: h.clock.Now().UnixMilli(),
		Tick:       tick,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("failed to marshal state message: %v", err)
		return
	}

	h.mu.Lock()
	subs := make(map[string]*Subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	for id, sub := range subs {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("failed to send update to %s: %v", id, err)
			h.Disconnect(id)
		}
	}
}

// snapshotPlayers reads live entity state; only the simulation goroutine
// may call it. Everything else goes through the cache.
func (h *Hub) snapshotPlayers(now time.Time) []state.PlayerSnapshot {
	players := h.loop.World().Players()
	snapshots := make([]state.PlayerSnapshot, 0, len(players))
	for _, p := range players {
		snapshots = append(snapshots, p.Snapshot(now))
	}
	return snapshots
}

func (h *Hub) cachedSnapshots() []state.PlayerSnapshot {
	h.snapMu.Lock()
	defer h.snapMu.Unlock()
	out := make([]state.PlayerSnapshot, len(h.playerSnaps))
	copy(out, h.playerSnaps)
	return out
}

func (h *Hub) appendSnapshot(snap state.PlayerSnapshot) []state.PlayerSnapshot {
	h.snapMu.Lock()
	defer h.snapMu.Unlock()
	h.playerSnaps = append(h.playerSnaps, snap)
	out := make([]state.PlayerSnapshot, len(h.playerSnaps))
	copy(out, h.playerSnaps)
	return out
}

// DiagnosticsPlayer is the per-connection slice of a diagnostics report.
type DiagnosticsPlayer struct {
	ID            string `json:"id"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
}

// DiagnosticsSnapshot summarizes hub and simulation state for operators.
type DiagnosticsSnapshot struct {
	Status          string              `json:"status"`
	ServerTime      int64               `json:"serverTime"`
	UptimeSeconds   int64               `json:"uptimeSeconds"`
	Tick            uint64              `json:"tick"`
	UsedAP          uint64              `json:"usedAp"`
	Players         []DiagnosticsPlayer `json:"players"`
	PendingTasks    int                 `json:"pendingTasks"`
	HeartbeatMillis int64               `json:"heartbeatMillis"`
	Telemetry       map[string]uint64   `json:"telemetry,omitempty"`
}

// Diagnostics builds the current diagnostics snapshot.
func (h *Hub) Diagnostics() DiagnosticsSnapshot {
	now := h.clock.Now()

	h.mu.Lock()
	players := make([]DiagnosticsPlayer, 0, len(h.subscribers))
	for id, sub := range h.subscribers {
		players = append(players, DiagnosticsPlayer{
			ID:            id,
			LastHeartbeat: sub.lastHeartbeat.Load(),
			RTTMillis:     sub.lastRTTMillis.Load(),
		})
	}
	h.mu.Unlock()

	return DiagnosticsSnapshot{
		Status:          "ok",
		ServerTime:      now.UnixMilli(),
		UptimeSeconds:   int64(now.Sub(h.startedAt).Seconds()),
		Tick:            h.loop.Tick(),
		UsedAP:          h.loop.UsedAP(),
		Players:         players,
		PendingTasks:    h.scheduler.Pending(),
		HeartbeatMillis: h.cfg.HeartbeatInterval.Milliseconds(),
		Telemetry:       h.metrics.TelemetrySnapshot(),
	}
}
