package sim

import (
	"context"
	"fmt"

	"emberhold/server/internal/state"
	"emberhold/server/internal/world"
	"emberhold/server/logging"
	simlog "emberhold/server/logging/simulation"
)

// NPCScript drives one NPC for one tick. Script internals live outside
// the simulation core; this core only decides when to call them.
type NPCScript func(w *world.World, n *state.NPCState, ap int)

type npcsDriver struct {
	world         *world.World
	deps          Deps
	script        NPCScript
	activityRange float64
}

func newNPCsDriver(w *world.World, deps Deps, script NPCScript, activityRange float64) *npcsDriver {
	return &npcsDriver{
		world:         w,
		deps:          deps,
		script:        script,
		activityRange: activityRange,
	}
}

// check grants AP to every NPC and invokes scripts only where a player is
// close enough to notice.
func (d *npcsDriver) check(tick uint64, ap int) {
	for _, n := range d.world.NPCs() {
		d.checkOne(tick, ap, n)
	}
}

func (d *npcsDriver) checkOne(tick uint64, ap int, n *state.NPCState) {
	defer func() {
		if r := recover(); r != nil {
			simlog.EntityFault(context.Background(), d.deps.publisher(), tick,
				logging.EntityRef{ID: n.ID, Kind: logging.EntityKindNPC}, fmt.Sprint(r))
		}
	}()

	n.GrantActionPoints(ap)
	n.GrantFightPoints(ap)

	if d.script == nil || !d.world.PlayerWithin(n.Pos, d.activityRange) {
		return
	}
	d.script(d.world, n, ap)
}
