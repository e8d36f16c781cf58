package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/signalsfoundry/universe-simulator/model"
	"github.com/signalsfoundry/universe-simulator/timectrl"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// recordingStrategy moves a location one unit along X per call and
// records the elapsed times it was given.
type recordingStrategy struct {
	delay time.Duration
	panic bool

	mu      sync.Mutex
	elapsed []time.Duration
}

func (r *recordingStrategy) Kind() string             { return "recording" }
func (r *recordingStrategy) StepDelay() time.Duration { return r.delay }

func (r *recordingStrategy) Move(loc *model.Location, elapsed time.Duration) {
	r.mu.Lock()
	r.elapsed = append(r.elapsed, elapsed)
	r.mu.Unlock()
	loc.Coordinates.X++
	if r.panic {
		panic("strategy exploded")
	}
}

func (r *recordingStrategy) moves() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.elapsed...)
}

type fakeRecorder struct {
	failures atomic.Int64
	moves    atomic.Int64
}

func (f *fakeRecorder) SetLocationCounts(int, int)                 {}
func (f *fakeRecorder) ObserveMoveBatch(size int, _ time.Duration) { f.moves.Add(int64(size)) }
func (f *fakeRecorder) IncCallbackFailures()                       { f.failures.Add(1) }

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(s string) {
	e.mu.Lock()
	e.events = append(e.events, s)
	e.mu.Unlock()
}

func (e *eventLog) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

type movementFunc func(loc *model.Location, old model.Vec3)

func (f movementFunc) InvokeMovement(loc *model.Location, old model.Vec3) { f(loc, old) }

type proximityFunc func(loc *model.Location)

func (f proximityFunc) InvokeProximity(loc *model.Location) { f(loc) }

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitForSleepers(t *testing.T, clock *timectrl.ManualClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := clock.BlockUntil(ctx, n); err != nil {
		t.Fatalf("scheduler never parked on the clock: %v", err)
	}
}

func TestRun_AssignsSmallestUnusedID(t *testing.T) {
	s := New()

	a := s.Run(model.NewLocation(0, model.Vec3{}))
	b := s.Run(model.NewLocation(3, model.Vec3{}))
	c := s.Run(model.NewLocation(0, model.Vec3{}))
	d := s.Run(model.NewLocation(0, model.Vec3{}))
	e := s.Run(model.NewLocation(0, model.Vec3{}))

	got := []int{a.ID, b.ID, c.ID, d.ID, e.ID}
	want := []int{1, 3, 2, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}

	s.Run(a)
	if n := len(s.Locations()); n != 5 {
		t.Fatalf("re-running the same location should not duplicate it, got %d tracked", n)
	}
	if !s.HasLocation(3) || s.HasLocation(6) {
		t.Fatalf("HasLocation mismatch")
	}
	if s.Location(4) != d {
		t.Fatalf("Location(4) should return the tracked instance")
	}
	if s.Run(nil) != nil {
		t.Fatalf("Run(nil) should return nil")
	}
}

func TestScheduler_MovesAfterStepDelay(t *testing.T) {
	clock := timectrl.NewManualClock(epoch)
	s := New(WithClock(clock))
	strat := &recordingStrategy{delay: time.Second}
	loc := s.Run(&model.Location{Strategy: strat})

	s.Start()
	defer s.Stop()

	waitForSleepers(t, clock, 1)
	if len(strat.moves()) != 0 {
		t.Fatalf("location moved before its step delay elapsed")
	}

	clock.Advance(time.Second)
	eventually(t, func() bool { return len(strat.moves()) == 1 }, "first move")
	if got := strat.moves()[0]; got != time.Second {
		t.Fatalf("elapsed = %v, want 1s", got)
	}

	waitForSleepers(t, clock, 1)
	clock.Advance(1500 * time.Millisecond)
	eventually(t, func() bool { return len(strat.moves()) == 2 }, "second move")
	if got := strat.moves()[1]; got != 1500*time.Millisecond {
		t.Fatalf("elapsed = %v, want 1.5s", got)
	}

	var x float64
	s.SafelyRun(func() { x = loc.Coordinates.X })
	if x != 2 {
		t.Fatalf("x = %v, want 2", x)
	}
}

func TestScheduler_MovementBeforeProximity(t *testing.T) {
	clock := timectrl.NewManualClock(epoch)
	s := New(WithClock(clock))
	var log eventLog

	for i := 1; i <= 2; i++ {
		loc := &model.Location{ID: i, Strategy: &recordingStrategy{delay: time.Second}}
		id := i
		loc.MovementCallbacks = []model.MovementCallback{movementFunc(func(*model.Location, model.Vec3) {
			log.add(fmt.Sprintf("move:%d", id))
		})}
		loc.ProximityCallbacks = []model.ProximityCallback{proximityFunc(func(*model.Location) {
			log.add(fmt.Sprintf("prox:%d", id))
		})}
		s.Run(loc)
	}
	parked := &model.Location{ID: 3, Strategy: &recordingStrategy{delay: time.Hour}}
	parked.ProximityCallbacks = []model.ProximityCallback{proximityFunc(func(*model.Location) {
		log.add("prox:3")
	})}
	s.Run(parked)

	s.Start()
	defer s.Stop()

	waitForSleepers(t, clock, 1)
	clock.Advance(time.Second)
	eventually(t, func() bool { return len(log.snapshot()) >= 5 }, "callbacks")

	events := log.snapshot()[:5]
	if events[0] != "move:1" || events[1] != "move:2" {
		t.Fatalf("movement callbacks should run first, got %v", events)
	}
	seen := map[string]bool{}
	for _, e := range events[2:] {
		seen[e] = true
	}
	for _, want := range []string{"prox:1", "prox:2", "prox:3"} {
		if !seen[want] {
			t.Fatalf("missing %s in %v; proximity runs over every tracked location", want, events)
		}
	}
}

func TestScheduler_RecoversPanickingStrategy(t *testing.T) {
	clock := timectrl.NewManualClock(epoch)
	rec := &fakeRecorder{}
	s := New(WithClock(clock), WithMetrics(rec))
	strat := &recordingStrategy{delay: time.Second, panic: true}
	s.Run(&model.Location{Strategy: strat})

	s.Start()
	defer s.Stop()

	for i := 1; i <= 2; i++ {
		waitForSleepers(t, clock, 1)
		clock.Advance(time.Second)
		want := i
		eventually(t, func() bool { return rec.failures.Load() == int64(want) }, "recovered failure")
	}
	if len(strat.moves()) != 2 {
		t.Fatalf("panicking location should stay scheduled, moved %d times", len(strat.moves()))
	}
	if !s.HasLocation(1) {
		t.Fatalf("location should still be tracked")
	}
}

func TestScheduler_NonPositiveDelayRunsContinuously(t *testing.T) {
	s := New()
	strat := &recordingStrategy{delay: -1}
	s.Run(&model.Location{Strategy: strat})

	s.Start()
	eventually(t, func() bool { return len(strat.moves()) >= 10 }, "continuous moves")
	s.Stop()

	after := len(strat.moves())
	time.Sleep(20 * time.Millisecond)
	if len(strat.moves()) != after {
		t.Fatalf("location moved after Stop returned")
	}
}

func TestScheduler_StopWakesIdleLoops(t *testing.T) {
	s := New()
	s.Start()
	if !s.Running() {
		t.Fatalf("expected Running after Start")
	}
	s.Start()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Stop did not return with idle loops")
	}
	if s.Running() {
		t.Fatalf("expected not Running after Stop")
	}
	s.Stop()
}

func TestScheduler_StopInterruptsLongSleep(t *testing.T) {
	s := New()
	s.Run(&model.Location{Strategy: &recordingStrategy{delay: time.Hour}})
	s.Start()
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	s.Stop()
	if time.Since(start) > time.Second {
		t.Fatalf("Stop waited out the scheduler sleep")
	}
}

func TestScheduler_Clear(t *testing.T) {
	s := New()
	s.Run(model.NewLocation(0, model.Vec3{}))
	s.Run(model.NewLocation(0, model.Vec3{}))
	s.Clear()
	if n := len(s.Locations()); n != 0 {
		t.Fatalf("expected no locations after Clear, got %d", n)
	}
	if loc := s.Run(model.NewLocation(0, model.Vec3{})); loc.ID != 1 {
		t.Fatalf("ids should restart after Clear, got %d", loc.ID)
	}
}

func TestScheduler_ClearDuringBatchSkipsRemainingMembers(t *testing.T) {
	clock := timectrl.NewManualClock(epoch)
	rec := &fakeRecorder{}
	s := New(WithClock(clock), WithMetrics(rec))

	clearing := &model.Location{ID: 1, Strategy: &recordingStrategy{delay: time.Second}}
	clearing.MovementCallbacks = []model.MovementCallback{movementFunc(func(*model.Location, model.Vec3) {
		s.Clear()
	})}
	later := &recordingStrategy{delay: time.Second}
	s.Run(clearing)
	s.Run(&model.Location{ID: 2, Strategy: later})

	s.Start()
	defer s.Stop()

	waitForSleepers(t, clock, 1)
	clock.Advance(time.Second)
	eventually(t, func() bool { return rec.moves.Load() > 0 }, "move batch")

	if n := len(later.moves()); n != 0 {
		t.Fatalf("location cleared mid-batch was moved %d times", n)
	}
	var stale int
	s.SafelyRun(func() { stale = len(s.lastMoved) })
	if stale != 0 {
		t.Fatalf("cleared locations left %d move timestamps behind", stale)
	}
	if n := len(s.Locations()); n != 0 {
		t.Fatalf("expected no locations after Clear, got %d", n)
	}
}
