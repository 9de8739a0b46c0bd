package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"emberhold/server/internal/state"
	"emberhold/server/internal/world"
	"emberhold/server/logging"
	lifecyclelog "emberhold/server/logging/lifecycle"
	simlog "emberhold/server/logging/simulation"
)

const (
	playersOnlineMetricKey     = "sim_players_online"
	commandsExecutedMetricKey  = "sim_commands_executed_total"
	commandsDiscardedMetricKey = "sim_commands_discarded_total"
	commandsFailedMetricKey    = "sim_commands_failed_total"
	playersPersistedMetricKey  = "sim_players_persisted_total"
)

// PlayerPersister stores player snapshots. The simulation calls it on a
// fixed cadence and at logout; failures are logged and retried on the
// next cadence, never propagated into the tick.
type PlayerPersister interface {
	SavePlayers(snapshots []state.PlayerSnapshot) error
}

// PlayerObserver is notified after a departed player has been fully
// removed from the world.
type PlayerObserver func(snapshot state.PlayerSnapshot, reason string)

type playersDriver struct {
	world     *world.World
	deps      Deps
	persister PlayerPersister
	observer  PlayerObserver

	idleTimeout  time.Duration
	persistTimer *IntervalTimer

	mu     sync.Mutex
	queues map[string]*CommandQueue
}

func newPlayersDriver(w *world.World, deps Deps, persister PlayerPersister, observer PlayerObserver, idleTimeout, persistInterval time.Duration, now time.Time) *playersDriver {
	return &playersDriver{
		world:        w,
		deps:         deps,
		persister:    persister,
		observer:     observer,
		idleTimeout:  idleTimeout,
		persistTimer: NewIntervalTimer(persistInterval, now),
		queues:       make(map[string]*CommandQueue),
	}
}

func (d *playersDriver) attachQueue(playerID string, laneLimit int) *CommandQueue {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q, ok := d.queues[playerID]; ok {
		return q
	}
	q := NewCommandQueue(laneLimit)
	d.queues[playerID] = q
	return q
}

func (d *playersDriver) queue(playerID string) (*CommandQueue, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[playerID]
	return q, ok
}

func (d *playersDriver) detachQueue(playerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.queues, playerID)
}

// check runs one player pass: timeouts, AP grants, command drains, long
// action progress, periodic persistence, then removal of players who
// departed during the pass.
func (d *playersDriver) check(tick uint64, ap int, now time.Time) []state.PlayerSnapshot {
	players := d.world.Players()
	for _, p := range players {
		d.checkOne(tick, ap, now, p)
	}

	if d.persister != nil && d.persistTimer.Exceeded(now) {
		d.persistAll(players, now)
	}

	removed := d.finalizeDepartures(tick, now, players)

	if d.deps.Metrics != nil {
		d.deps.Metrics.TelemetryStore(playersOnlineMetricKey, uint64(d.world.PlayerCount()))
	}
	return removed
}

func (d *playersDriver) checkOne(tick uint64, ap int, now time.Time, p *state.PlayerState) {
	defer func() {
		if r := recover(); r != nil {
			simlog.EntityFault(context.Background(), d.deps.publisher(), tick,
				logging.EntityRef{ID: p.ID, Kind: logging.EntityKindPlayer}, fmt.Sprint(r))
		}
	}()

	if p.Departed() {
		return
	}

	if d.idleTimeout > 0 && p.IdleFor(now) > d.idleTimeout {
		lifecyclelog.PlayerIdleTimeout(context.Background(), d.deps.publisher(), tick, p.ID, int64(p.IdleFor(now).Seconds()))
		p.Depart(state.DepartReasonIdleTimeout)
		return
	}

	p.GrantActionPoints(ap)
	p.GrantFightPoints(ap)

	d.drainLane(tick, now, p, d.takeImmediate(p.ID))
	d.drainLane(tick, now, p, d.takeNormal(p.ID))

	p.AdvanceAction(ap)
}

func (d *playersDriver) takeImmediate(playerID string) func() (Command, bool) {
	q, ok := d.queue(playerID)
	if !ok {
		return func() (Command, bool) { return nil, false }
	}
	return q.TakeImmediate
}

func (d *playersDriver) takeNormal(playerID string) func() (Command, bool) {
	q, ok := d.queue(playerID)
	if !ok {
		return func() (Command, bool) { return nil, false }
	}
	return q.TakeNormal
}

func (d *playersDriver) drainLane(tick uint64, now time.Time, p *state.PlayerState, take func() (Command, bool)) {
	for {
		cmd, ok := take()
		if !ok {
			return
		}
		d.executeCommand(tick, now, p, cmd)
		if p.Departed() {
			return
		}
	}
}

// executeCommand applies one command. A command whose AP precondition is
// unmet is discarded rather than re-queued: AP accrues per tick, and a
// stale command must not execute out of temporal order later. Failures
// are contained here; the drain continues with the next command.
func (d *playersDriver) executeCommand(tick uint64, now time.Time, p *state.PlayerState, cmd Command) {
	cost := cmd.Cost()
	if p.ActionPoints < cost {
		if d.deps.Metrics != nil {
			d.deps.Metrics.TelemetryAdd(commandsDiscardedMetricKey, 1)
		}
		simlog.CommandDiscarded(context.Background(), d.deps.publisher(), tick, p.ID, simlog.CommandDiscardPayload{
			Kind:      cmd.Kind(),
			Cost:      cost,
			Available: p.ActionPoints,
		})
		return
	}

	p.ConsumeActionPoints(cost)
	p.Touch(now)

	defer func() {
		if r := recover(); r != nil {
			if d.deps.Metrics != nil {
				d.deps.Metrics.TelemetryAdd(commandsFailedMetricKey, 1)
			}
			simlog.CommandFailed(context.Background(), d.deps.publisher(), tick, p.ID, cmd.Kind(), fmt.Sprint(r))
		}
	}()

	if err := cmd.Execute(d.world, p); err != nil {
		if d.deps.Metrics != nil {
			d.deps.Metrics.TelemetryAdd(commandsFailedMetricKey, 1)
		}
		simlog.CommandFailed(context.Background(), d.deps.publisher(), tick, p.ID, cmd.Kind(), err.Error())
		return
	}
	if d.deps.Metrics != nil {
		d.deps.Metrics.TelemetryAdd(commandsExecutedMetricKey, 1)
	}
}

func (d *playersDriver) persistAll(players []*state.PlayerState, now time.Time) {
	snapshots := make([]state.PlayerSnapshot, 0, len(players))
	for _, p := range players {
		snapshots = append(snapshots, p.Snapshot(now))
	}
	if len(snapshots) == 0 {
		return
	}
	if err := d.persister.SavePlayers(snapshots); err != nil {
		d.deps.logger().Printf("periodic player persistence failed: %v", err)
		return
	}
	if d.deps.Metrics != nil {
		d.deps.Metrics.TelemetryAdd(playersPersistedMetricKey, uint64(len(snapshots)))
	}
}

// finalizeDepartures removes players marked during the pass. Removal
// happens only after the full iteration so container mutation never races
// the loop above.
func (d *playersDriver) finalizeDepartures(tick uint64, now time.Time, players []*state.PlayerState) []state.PlayerSnapshot {
	var removed []state.PlayerSnapshot
	for _, p := range players {
		if !p.Departed() {
			continue
		}
		if _, ok := d.world.RemovePlayer(p.ID); !ok {
			continue
		}
		d.detachQueue(p.ID)
		snapshot := p.Snapshot(now)
		removed = append(removed, snapshot)

		if d.persister != nil {
			if err := d.persister.SavePlayers([]state.PlayerSnapshot{snapshot}); err != nil {
				d.deps.logger().Printf("logout persistence failed for %s: %v", p.ID, err)
			}
		}
		reason := p.DepartReason()
		lifecyclelog.PlayerDisconnected(context.Background(), d.deps.publisher(), tick, p.ID, reason)
		if d.observer != nil {
			d.observer(snapshot, reason)
		}
	}
	return removed
}
