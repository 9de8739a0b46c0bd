package sim

import "sync"

// DefaultLaneLimit bounds each queue lane. A player backlogged past this
// is flooding; further commands are rejected with CommandRejectQueueLimit.
const DefaultLaneLimit = 32

// CommandQueue holds the staged commands for one player. Network
// goroutines append; only the simulation goroutine removes. The immediate
// lane exists for latency-critical commands (aborting a channeled action)
// that must not wait behind queued movement.
//
// The mutex guards enqueue/dequeue only; no game logic runs while it is
// held.
type CommandQueue struct {
	mu        sync.Mutex
	immediate []Command
	normal    []Command
	laneLimit int
	dropTotal uint64
}

func NewCommandQueue(laneLimit int) *CommandQueue {
	if laneLimit <= 0 {
		laneLimit = DefaultLaneLimit
	}
	return &CommandQueue{laneLimit: laneLimit}
}

// Receive appends to the normal lane. Safe from any goroutine.
func (q *CommandQueue) Receive(cmd Command) (bool, string, uint64) {
	return q.receive(cmd, false)
}

// ReceiveImmediate appends to the immediate lane. Safe from any goroutine.
func (q *CommandQueue) ReceiveImmediate(cmd Command) (bool, string, uint64) {
	return q.receive(cmd, true)
}

func (q *CommandQueue) receive(cmd Command, immediate bool) (bool, string, uint64) {
	if cmd == nil {
		return false, CommandRejectInvalidAction, 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	lane := &q.normal
	if immediate {
		lane = &q.immediate
	}
	if len(*lane) >= q.laneLimit {
		q.dropTotal++
		return false, CommandRejectQueueLimit, q.dropTotal
	}
	*lane = append(*lane, cmd)
	return true, "", 0
}

// TakeImmediate pops the oldest immediate-lane command. Simulation
// goroutine only.
func (q *CommandQueue) TakeImmediate() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return pop(&q.immediate)
}

// TakeNormal pops the oldest normal-lane command. Simulation goroutine
// only. Callers drain the immediate lane fully first.
func (q *CommandQueue) TakeNormal() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return pop(&q.normal)
}

// Pending reports lane depths for diagnostics.
func (q *CommandQueue) Pending() (immediate, normal int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.immediate), len(q.normal)
}

func pop(lane *[]Command) (Command, bool) {
	if len(*lane) == 0 {
		return nil, false
	}
	cmd := (*lane)[0]
	(*lane)[0] = nil
	*lane = (*lane)[1:]
	return cmd, true
}
