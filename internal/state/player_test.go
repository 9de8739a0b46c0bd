package state

import (
	"sync"
	"testing"
	"time"
)

func TestGrantActionPointsCapsAtMax(t *testing.T) {
	a := &Actor{}
	a.GrantActionPoints(MaxActionPoints + 500)
	if a.ActionPoints != MaxActionPoints {
		t.Fatalf("expected cap at %d, got %d", MaxActionPoints, a.ActionPoints)
	}
	a.GrantActionPoints(-10)
	if a.ActionPoints != MaxActionPoints {
		t.Fatalf("negative grant changed the balance to %d", a.ActionPoints)
	}
}

func TestConsumeActionPointsRequiresBalance(t *testing.T) {
	a := &Actor{ActionPoints: 10}
	if a.ConsumeActionPoints(11) {
		t.Fatalf("consumed more than the balance")
	}
	if !a.ConsumeActionPoints(10) {
		t.Fatalf("failed to consume an affordable cost")
	}
	if a.ActionPoints != 0 {
		t.Fatalf("expected 0 remaining, got %d", a.ActionPoints)
	}
}

func TestApplyHealthDeltaClamps(t *testing.T) {
	a := &Actor{Health: 50, MaxHealth: 100}
	if !a.ApplyHealthDelta(-80) {
		t.Fatalf("expected a change")
	}
	if a.Health != 0 {
		t.Fatalf("expected clamp at 0, got %d", a.Health)
	}
	a.ApplyHealthDelta(500)
	if a.Health != 100 {
		t.Fatalf("expected clamp at max health, got %d", a.Health)
	}
}

func TestDepartIsIdempotent(t *testing.T) {
	p := &PlayerState{}
	p.Depart(DepartReasonQuit)
	p.Depart(DepartReasonIdleTimeout)
	if !p.Departed() {
		t.Fatalf("player not flagged after Depart")
	}
	if p.DepartReason() != DepartReasonQuit {
		t.Fatalf("second Depart overwrote reason: %s", p.DepartReason())
	}
}

func TestDepartIsSafeFromConcurrentGoroutines(t *testing.T) {
	p := &PlayerState{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Depart(DepartReasonConnection)
				p.Departed()
				p.DepartReason()
			}
		}()
	}
	wg.Wait()
	if p.DepartReason() != DepartReasonConnection {
		t.Fatalf("unexpected reason %q", p.DepartReason())
	}
}

func TestAdvanceActionBurnsDownAndCompletes(t *testing.T) {
	completed := false
	p := &PlayerState{}
	p.StartAction(&LongAction{Kind: "mine", Remaining: 25, OnComplete: func(*PlayerState) {
		completed = true
	}})

	if p.AdvanceAction(10) {
		t.Fatalf("action completed with 15 remaining")
	}
	if !p.AdvanceAction(20) {
		t.Fatalf("action did not complete once the cost was paid")
	}
	if !completed {
		t.Fatalf("completion callback not invoked")
	}
	if p.Action != nil {
		t.Fatalf("completed action still attached")
	}
}

func TestStartActionAbortsPrevious(t *testing.T) {
	aborted := false
	p := &PlayerState{}
	p.StartAction(&LongAction{Kind: "mine", Remaining: 100, OnAbort: func(*PlayerState) {
		aborted = true
	}})
	p.StartAction(&LongAction{Kind: "craft", Remaining: 50})

	if !aborted {
		t.Fatalf("replacing an action did not abort it")
	}
	if p.Action.Kind != "craft" {
		t.Fatalf("expected craft in progress, got %s", p.Action.Kind)
	}
}

func TestAbortActionInvokesCallback(t *testing.T) {
	aborted := false
	p := &PlayerState{}
	if p.AbortAction() {
		t.Fatalf("abort reported success with nothing in progress")
	}
	p.StartAction(&LongAction{Kind: "rest", Remaining: 10, OnAbort: func(*PlayerState) {
		aborted = true
	}})
	if !p.AbortAction() {
		t.Fatalf("abort failed with an action in progress")
	}
	if !aborted {
		t.Fatalf("abort callback not invoked")
	}
}

func TestIdleForZeroWithoutActivity(t *testing.T) {
	p := &PlayerState{}
	if got := p.IdleFor(time.Now()); got != 0 {
		t.Fatalf("expected 0 idle before any activity, got %s", got)
	}
	base := time.Unix(1000, 0)
	p.Touch(base)
	if got := p.IdleFor(base.Add(time.Minute)); got != time.Minute {
		t.Fatalf("expected 1m idle, got %s", got)
	}
}

func TestMonsterRouteAdvancesAndClears(t *testing.T) {
	m := &MonsterState{Route: []Position{{X: 1}, {X: 2}}}
	if !m.OnRoute() {
		t.Fatalf("expected monster on route")
	}
	wp, _ := m.NextWaypoint()
	if wp.X != 1 {
		t.Fatalf("expected first waypoint, got %v", wp)
	}
	m.AdvanceRoute()
	wp, _ = m.NextWaypoint()
	if wp.X != 2 {
		t.Fatalf("expected second waypoint, got %v", wp)
	}
	m.AdvanceRoute()
	if m.OnRoute() {
		t.Fatalf("route not cleared at the end")
	}
}
