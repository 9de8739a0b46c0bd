package sim

import (
	"context"
	"fmt"
	"time"

	"emberhold/server/internal/state"
	"emberhold/server/internal/world"
	"emberhold/server/logging"
	lifecyclelog "emberhold/server/logging/lifecycle"
	simlog "emberhold/server/logging/simulation"
)

const (
	monstersAliveMetricKey   = "sim_monsters_alive"
	monstersSpawnedMetricKey = "sim_monsters_spawned_total"
	monsterAISkipMetricKey   = "sim_monster_ai_skipped_total"
)

// MonsterAI drives one monster for one tick. Invoked only on the
// simulation goroutine, and only for monsters a player could observe.
type MonsterAI func(w *world.World, m *state.MonsterState, ap int)

type monstersDriver struct {
	world *world.World
	deps  Deps
	ai    MonsterAI

	activityRange float64
	spawnTimer    *IntervalTimer
}

func newMonstersDriver(w *world.World, deps Deps, ai MonsterAI, activityRange float64, spawnInterval time.Duration, now time.Time) *monstersDriver {
	return &monstersDriver{
		world:         w,
		deps:          deps,
		ai:            ai,
		activityRange: activityRange,
		spawnTimer:    NewIntervalTimer(spawnInterval, now),
	}
}

// check runs one monster pass: AP grants, spawn replenishment on its own
// cadence, AI for observed monsters, then deferred removal of the dead.
func (d *monstersDriver) check(tick uint64, ap int, now time.Time) {
	if d.spawnTimer.Exceeded(now) {
		spawned := d.world.ReplenishSpawns()
		if spawned > 0 && d.deps.Metrics != nil {
			d.deps.Metrics.TelemetryAdd(monstersSpawnedMetricKey, uint64(spawned))
		}
	}

	monsters := d.world.Monsters()
	for _, m := range monsters {
		d.checkOne(tick, ap, m)
	}

	for _, m := range d.world.RemoveDeadMonsters() {
		lifecyclelog.MonsterRemoved(context.Background(), d.deps.publisher(), tick, m.ID)
	}

	if d.deps.Metrics != nil {
		d.deps.Metrics.TelemetryStore(monstersAliveMetricKey, uint64(len(d.world.Monsters())))
	}
}

func (d *monstersDriver) checkOne(tick uint64, ap int, m *state.MonsterState) {
	defer func() {
		if r := recover(); r != nil {
			simlog.EntityFault(context.Background(), d.deps.publisher(), tick,
				logging.EntityRef{ID: m.ID, Kind: logging.EntityKindMonster}, fmt.Sprint(r))
		}
	}()

	if m.Dead {
		return
	}

	m.GrantActionPoints(ap)
	m.GrantFightPoints(ap)

	if !m.Alive() {
		m.Dead = true
		return
	}

	// AI for monsters nobody can observe is skipped outright, not
	// throttled. Route followers keep moving so patrols survive losing
	// their audience.
	if !m.OnRoute() && !d.world.PlayerWithin(m.Pos, d.activityRange) {
		if d.deps.Metrics != nil {
			d.deps.Metrics.TelemetryAdd(monsterAISkipMetricKey, 1)
		}
		return
	}

	if d.ai != nil {
		d.ai(d.world, m, ap)
	}
}
