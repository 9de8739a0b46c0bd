package sim

import (
	"context"
	"sync/atomic"
	"time"

	"emberhold/server/internal/sched"
	"emberhold/server/internal/state"
	"emberhold/server/internal/world"
	simlog "emberhold/server/logging/simulation"
)

// LoopConfig tunes the time-slicing and the per-category drivers.
type LoopConfig struct {
	// MsPerAP is the wall-clock cost of one action point.
	MsPerAP int64
	// MaxSchedulerWait bounds how long one iteration may sleep inside the
	// scheduler; it is the loop's pacing interval when nothing is due.
	MaxSchedulerWait time.Duration
	// IdleTimeout disconnects players with no activity for this long.
	// Zero disables the check.
	IdleTimeout time.Duration
	// PersistInterval is the cadence of periodic player persistence.
	PersistInterval time.Duration
	// SpawnInterval is the cadence of spawn-point replenishment.
	SpawnInterval time.Duration
	// ActivityRange gates monster AI and NPC scripts to areas a player
	// can observe.
	ActivityRange float64
	// LaneLimit caps each command-queue lane per player.
	LaneLimit int
	// TickBudget is the soft time budget for one full tick; overruns are
	// published, not enforced.
	TickBudget time.Duration
}

// DefaultLoopConfig mirrors the production pacing.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MsPerAP:          DefaultMsPerAP,
		MaxSchedulerWait: 50 * time.Millisecond,
		IdleTimeout:      10 * time.Minute,
		PersistInterval:  30 * time.Second,
		SpawnInterval:    time.Minute,
		ActivityRange:    400,
		LaneLimit:        DefaultLaneLimit,
		TickBudget:       100 * time.Millisecond,
	}
}

// LoopHooks let the hub react to tick completion without the simulation
// depending on the network layer.
type LoopHooks struct {
	AfterTick       func(TickResult)
	OnPlayerRemoved PlayerObserver
}

// TickResult summarizes one completed tick.
type TickResult struct {
	Tick           uint64
	AP             int
	Now            time.Time
	Duration       time.Duration
	Budget         time.Duration
	RemovedPlayers []state.PlayerSnapshot
}

// Collaborators carries the externally supplied behavior callbacks.
type Collaborators struct {
	MonsterAI MonsterAI
	NPCScript NPCScript
	Persister PlayerPersister
}

// Loop is the single-goroutine driver that turns elapsed wall-clock time
// into entity ticks and lets the scheduler run due background tasks.
// Exactly one goroutine calls Run (or Step); everything else talks to the
// loop through Enqueue, RegisterPlayer, and the scheduler.
type Loop struct {
	cfg   LoopConfig
	hooks LoopHooks
	deps  Deps

	world     *world.World
	clock     *WorldClock
	scheduler *sched.Scheduler

	players  *playersDriver
	monsters *monstersDriver
	npcs     *npcsDriver

	tick atomic.Uint64
}

func NewLoop(w *world.World, scheduler *sched.Scheduler, cfg LoopConfig, collab Collaborators, hooks LoopHooks, deps Deps) *Loop {
	if cfg.MsPerAP <= 0 {
		cfg.MsPerAP = DefaultMsPerAP
	}
	if cfg.MaxSchedulerWait <= 0 {
		cfg.MaxSchedulerWait = 50 * time.Millisecond
	}
	if cfg.TickBudget <= 0 {
		cfg.TickBudget = time.Duration(cfg.MsPerAP) * time.Millisecond
	}
	now := deps.clock().Now()
	l := &Loop{
		cfg:       cfg,
		hooks:     hooks,
		deps:      deps,
		world:     w,
		clock:     NewWorldClock(cfg.MsPerAP, now),
		scheduler: scheduler,
	}
	l.players = newPlayersDriver(w, deps, collab.Persister, hooks.OnPlayerRemoved, cfg.IdleTimeout, cfg.PersistInterval, now)
	l.monsters = newMonstersDriver(w, deps, collab.MonsterAI, cfg.ActivityRange, cfg.SpawnInterval, now)
	l.npcs = newNPCsDriver(w, deps, collab.NPCScript, cfg.ActivityRange)
	return l
}

// World exposes the entity containers.
func (l *Loop) World() *world.World {
	return l.world
}

// Scheduler exposes task registration to subsystems.
func (l *Loop) Scheduler() *sched.Scheduler {
	return l.scheduler
}

// Tick reports the last completed tick number.
func (l *Loop) Tick() uint64 {
	return l.tick.Load()
}

// UsedAP reports cumulative action points emitted by the world clock.
func (l *Loop) UsedAP() uint64 {
	return l.clock.UsedAP()
}

// RegisterPlayer creates the player's command queue and adds the player
// to the world. Callable from network goroutines.
func (l *Loop) RegisterPlayer(p *state.PlayerState) (*CommandQueue, bool) {
	if !l.world.AddPlayer(p) {
		return nil, false
	}
	return l.players.attachQueue(p.ID, l.cfg.LaneLimit), true
}

// MarkDeparted flags a player for removal on the next player pass.
// Callable from network goroutines; the actual removal stays on the
// simulation goroutine.
func (l *Loop) MarkDeparted(playerID, reason string) bool {
	p, ok := l.world.Player(playerID)
	if !ok {
		return false
	}
	p.Depart(reason)
	l.scheduler.SignalUrgent()
	return true
}

// Enqueue stages a command for the player, waking the scheduler so a
// sleeping loop reacts immediately. Returns a reject reason on failure.
func (l *Loop) Enqueue(playerID string, cmd Command, immediate bool) (bool, string) {
	q, ok := l.players.queue(playerID)
	if !ok {
		return false, CommandRejectUnknownActor
	}
	var (
		accepted  bool
		reason    string
		dropCount uint64
	)
	if immediate {
		accepted, reason, dropCount = q.ReceiveImmediate(cmd)
	} else {
		accepted, reason, dropCount = q.Receive(cmd)
	}
	if !accepted {
		l.reportDrop(playerID, cmd, reason, dropCount)
		return false, reason
	}
	l.scheduler.SignalUrgent()
	return true, ""
}

// Run drives the loop until stop closes. Pacing comes from the bounded
// scheduler wait, not a ticker: the loop sleeps inside RunOnce and wakes
// early for due tasks and urgent signals.
func (l *Loop) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		l.Step(l.deps.clock().Now())
		l.scheduler.RunOnce(l.cfg.MaxSchedulerWait)
	}
}

// Step performs at most one tick. Entity processing runs only when at
// least one whole action point accrued; the caller invokes the scheduler
// separately so background tasks progress regardless of the AP gate.
func (l *Loop) Step(now time.Time) (TickResult, bool) {
	ap := l.clock.Advance(now)
	if ap < 1 {
		return TickResult{}, false
	}

	tick := l.tick.Add(1)
	start := l.deps.clock().Now()

	// Fixed category order: player commands resolve before AI reacts to
	// them, and AI before ambient scripts.
	removed := l.players.check(tick, ap, now)
	l.monsters.check(tick, ap, now)
	l.npcs.check(tick, ap)

	duration := l.deps.clock().Now().Sub(start)
	if duration > l.cfg.TickBudget {
		simlog.TickBudgetOverrun(context.Background(), l.deps.publisher(), tick, simlog.TickBudgetOverrunPayload{
			DurationMillis: duration.Milliseconds(),
			BudgetMillis:   l.cfg.TickBudget.Milliseconds(),
			Ratio:          float64(duration) / float64(l.cfg.TickBudget),
		})
	}

	result := TickResult{
		Tick:           tick,
		AP:             ap,
		Now:            now,
		Duration:       duration,
		Budget:         l.cfg.TickBudget,
		RemovedPlayers: removed,
	}
	if l.hooks.AfterTick != nil {
		l.hooks.AfterTick(result)
	}
	return result, true
}

func (l *Loop) reportDrop(playerID string, cmd Command, reason string, count uint64) {
	kind := "unknown"
	if cmd != nil {
		kind = cmd.Kind()
	}
	simlog.CommandDropped(context.Background(), l.deps.publisher(), l.Tick(), playerID, simlog.CommandDropPayload{
		Kind:   kind,
		Reason: reason,
		Count:  count,
	})
	// Sampled fallback log so a flooding client is visible without one
	// line per dropped command.
	if reason == CommandRejectQueueLimit && count > 0 && count&(count-1) == 0 {
		l.deps.logger().Printf("[backpressure] dropping command actor=%s kind=%s count=%d", playerID, kind, count)
	}
}
