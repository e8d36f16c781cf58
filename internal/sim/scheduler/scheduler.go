// Package scheduler advances tracked locations according to their movement
// strategies.
//
// A Scheduler keeps every location in exactly one of two sets. The schedule
// set holds locations waiting for their next move; the run set holds
// locations that are due and queued for the mover. Two goroutines cooperate
// over the sets: the scheduler loop migrates due locations into the run set
// and sleeps for the smallest pending step delay, and the mover loop moves
// each queued location, invokes its callbacks and hands it back.
//
// The schedule lock is always acquired before the run lock.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/model"
	"github.com/signalsfoundry/universe-simulator/timectrl"
)

// Recorder receives scheduler metrics. *observability.SchedulerCollector
// satisfies it.
type Recorder interface {
	SetLocationCounts(scheduled, running int)
	ObserveMoveBatch(size int, d time.Duration)
	IncCallbackFailures()
}

// Option customises Scheduler construction.
type Option func(*Scheduler)

// WithClock sets the clock used for due-time and elapsed-time computation.
func WithClock(c timectrl.SimClock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) { s.log = logging.OrNoop(l) }
}

// WithMetrics wires a metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(s *Scheduler) { s.metrics = r }
}

// WithTracer sets the tracer used for mover pass spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Scheduler tracks locations and moves them on their own cadence.
type Scheduler struct {
	clock   timectrl.SimClock
	log     logging.Logger
	metrics Recorder
	tracer  trace.Tracer

	scheduleMu   sync.Mutex
	scheduleCond *sync.Cond
	schedule     []*model.Location // guarded by scheduleMu

	runMu   sync.Mutex
	runCond *sync.Cond
	run     []*model.Location // guarded by runMu

	// lastMoved maps location ids to the time they last moved. Guarded by
	// holding both locks.
	lastMoved map[int]time.Time

	lifecycle sync.Mutex
	stop      chan struct{}
	wg        sync.WaitGroup
	terminate atomic.Bool
	running   atomic.Bool
}

// New returns a stopped scheduler with no tracked locations.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:     timectrl.Wall(),
		log:       logging.Noop(),
		tracer:    noop.NewTracerProvider().Tracer(""),
		lastMoved: make(map[int]time.Time),
	}
	s.scheduleCond = sync.NewCond(&s.scheduleMu)
	s.runCond = sync.NewCond(&s.runMu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run registers loc for periodic movement and returns it. A location
// without an id gets the smallest positive id not used by any tracked
// location. Ids are not checked for uniqueness otherwise; registering the
// same pointer twice is a no-op.
func (s *Scheduler) Run(loc *model.Location) *model.Location {
	if loc == nil {
		return nil
	}
	s.scheduleMu.Lock()
	defer s.scheduleMu.Unlock()
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if slices.Contains(s.schedule, loc) || slices.Contains(s.run, loc) {
		return loc
	}
	if loc.ID == 0 {
		loc.ID = s.nextIDLocked()
	}
	s.schedule = append(s.schedule, loc)
	s.scheduleCond.Signal()
	s.reportCountsLocked()

	s.log.Debug(context.Background(), "location scheduled", logging.Int("location_id", loc.ID))
	return loc
}

func (s *Scheduler) nextIDLocked() int {
	used := make(map[int]struct{}, len(s.schedule)+len(s.run))
	for _, l := range s.schedule {
		used[l.ID] = struct{}{}
	}
	for _, l := range s.run {
		used[l.ID] = struct{}{}
	}
	id := 1
	for {
		if _, taken := used[id]; !taken {
			return id
		}
		id++
	}
}

// Locations returns every tracked location across both sets. The slice is
// a copy; the locations are the tracked instances and must only be
// mutated through SafelyRun.
func (s *Scheduler) Locations() []*model.Location {
	s.scheduleMu.Lock()
	defer s.scheduleMu.Unlock()
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.locationsLocked()
}

func (s *Scheduler) locationsLocked() []*model.Location {
	out := make([]*model.Location, 0, len(s.schedule)+len(s.run))
	out = append(out, s.schedule...)
	return append(out, s.run...)
}

// Location returns the first tracked location with id, or nil.
func (s *Scheduler) Location(id int) *model.Location {
	s.scheduleMu.Lock()
	defer s.scheduleMu.Unlock()
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.locationLocked(id)
}

func (s *Scheduler) locationLocked(id int) *model.Location {
	for _, l := range s.schedule {
		if l.ID == id {
			return l
		}
	}
	for _, l := range s.run {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// HasLocation reports whether a location with id is tracked.
func (s *Scheduler) HasLocation(id int) bool {
	return s.Location(id) != nil
}

// SafelyRun invokes fn with both scheduler locks held. fn must not call
// back into the scheduler.
func (s *Scheduler) SafelyRun(fn func()) {
	s.scheduleMu.Lock()
	defer s.scheduleMu.Unlock()
	s.runMu.Lock()
	defer s.runMu.Unlock()
	fn()
}

// Clear drops every tracked location.
func (s *Scheduler) Clear() {
	s.scheduleMu.Lock()
	defer s.scheduleMu.Unlock()
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.schedule = nil
	s.run = nil
	clear(s.lastMoved)
	s.reportCountsLocked()
}

// Start launches the scheduler and mover loops. It is a no-op while the
// loops are already running.
func (s *Scheduler) Start() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.stop != nil {
		return
	}
	s.terminate.Store(false)
	stop := make(chan struct{})
	s.stop = stop
	s.wg.Add(2)
	go s.scheduleLoop(stop)
	go s.moveLoop()
	s.running.Store(true)
	s.log.Info(context.Background(), "location scheduler started")
}

// Stop signals both loops to exit, wakes them and waits until they have
// returned. No location is moved after Stop returns. Stop must not be
// called from a strategy or callback.
func (s *Scheduler) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.stop == nil {
		return
	}
	s.terminate.Store(true)
	close(s.stop)

	s.scheduleMu.Lock()
	s.scheduleCond.Broadcast()
	s.scheduleMu.Unlock()
	s.runMu.Lock()
	s.runCond.Broadcast()
	s.runMu.Unlock()

	s.wg.Wait()
	s.stop = nil
	s.running.Store(false)
	s.log.Info(context.Background(), "location scheduler stopped")
}

// Running reports whether the loops are running.
func (s *Scheduler) Running() bool { return s.running.Load() }

func (s *Scheduler) scheduleLoop(stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		s.scheduleMu.Lock()
		for len(s.schedule) == 0 && !s.terminate.Load() {
			s.scheduleCond.Wait()
		}
		if s.terminate.Load() {
			s.scheduleMu.Unlock()
			return
		}

		s.runMu.Lock()
		now := s.clock.Now()
		var due []*model.Location
		for _, loc := range s.schedule {
			last, seen := s.lastMoved[loc.ID]
			if !seen {
				last = now
				s.lastMoved[loc.ID] = now
			}
			if now.Sub(last) >= loc.StepDelay() {
				due = append(due, loc)
			}
		}
		for _, loc := range due {
			s.schedule = removeLocation(s.schedule, loc)
			s.run = append(s.run, loc)
		}
		if len(due) > 0 {
			s.runCond.Signal()
		}
		remaining := len(s.schedule)
		var delay time.Duration
		if remaining > 0 {
			// Recomputed over both sets: a location finishing its move
			// while we sleep may carry a shorter delay.
			delay = minStepDelay(s.locationsLocked())
		}
		s.reportCountsLocked()
		s.runMu.Unlock()
		s.scheduleMu.Unlock()

		if remaining == 0 {
			continue
		}
		if delay <= 0 {
			select {
			case <-stop:
				return
			default:
				runtime.Gosched()
				continue
			}
		}
		select {
		case <-s.clock.After(delay):
		case <-stop:
			return
		}
	}
}

func (s *Scheduler) moveLoop() {
	defer s.wg.Done()
	for {
		s.runMu.Lock()
		for len(s.run) == 0 && !s.terminate.Load() {
			s.runCond.Wait()
		}
		if s.terminate.Load() {
			s.runMu.Unlock()
			return
		}
		batch := slices.Clone(s.run)
		s.runMu.Unlock()

		s.moveBatch(batch)
	}
}

// moveBatch moves each location, then runs proximity callbacks over the
// whole tracked set, then returns the batch to the schedule set.
func (s *Scheduler) moveBatch(batch []*model.Location) {
	started := time.Now()
	ctx, span := s.tracer.Start(context.Background(), "scheduler.move_batch",
		trace.WithAttributes(attribute.Int("batch.size", len(batch))))
	defer span.End()

	for _, loc := range batch {
		var (
			old, moved model.Vec3
			callbacks  []model.MovementCallback
			dropped    bool
		)
		s.SafelyRun(func() {
			last, seen := s.lastMoved[loc.ID]
			if !seen || !slices.Contains(s.run, loc) {
				// Cleared by an earlier member of this batch.
				dropped = true
				return
			}
			old = loc.Coordinates
			now := s.clock.Now()
			elapsed := now.Sub(last)
			if loc.Strategy != nil {
				s.guard(ctx, loc, "move", func() { loc.Strategy.Move(loc, elapsed) })
			}
			s.lastMoved[loc.ID] = now
			moved = loc.Coordinates
			callbacks = slices.Clone(loc.MovementCallbacks)
		})
		if dropped {
			continue
		}
		s.log.Debug(ctx, "location moved",
			logging.Int("location_id", loc.ID),
			logging.Any("coordinates", moved))

		for _, cb := range callbacks {
			s.guard(ctx, loc, "movement_callback", func() { cb.InvokeMovement(loc, old) })
		}
	}

	type proximity struct {
		loc       *model.Location
		callbacks []model.ProximityCallback
	}
	var checks []proximity
	s.SafelyRun(func() {
		for _, loc := range s.locationsLocked() {
			if len(loc.ProximityCallbacks) > 0 {
				checks = append(checks, proximity{loc: loc, callbacks: slices.Clone(loc.ProximityCallbacks)})
			}
		}
	})
	for _, c := range checks {
		for _, cb := range c.callbacks {
			s.guard(ctx, c.loc, "proximity_callback", func() { cb.InvokeProximity(c.loc) })
		}
	}

	s.scheduleMu.Lock()
	s.runMu.Lock()
	requeued := 0
	for _, loc := range batch {
		if !slices.Contains(s.run, loc) {
			// Cleared while moving.
			continue
		}
		s.run = removeLocation(s.run, loc)
		s.schedule = append(s.schedule, loc)
		requeued++
	}
	if requeued > 0 {
		s.scheduleCond.Signal()
	}
	s.reportCountsLocked()
	s.runMu.Unlock()
	s.scheduleMu.Unlock()

	if s.metrics != nil {
		s.metrics.ObserveMoveBatch(len(batch), time.Since(started))
	}
}

// guard runs fn, converting a panic into a logged and counted failure so
// one bad strategy or callback cannot halt the mover.
func (s *Scheduler) guard(ctx context.Context, loc *model.Location, stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(ctx, "location update failed",
				logging.Int("location_id", loc.ID),
				logging.String("stage", stage),
				logging.String("panic", fmt.Sprint(r)))
			if s.metrics != nil {
				s.metrics.IncCallbackFailures()
			}
		}
	}()
	fn()
}

func (s *Scheduler) reportCountsLocked() {
	if s.metrics != nil {
		s.metrics.SetLocationCounts(len(s.schedule), len(s.run))
	}
}

func minStepDelay(locs []*model.Location) time.Duration {
	if len(locs) == 0 {
		return 0
	}
	min := locs[0].StepDelay()
	for _, loc := range locs[1:] {
		if d := loc.StepDelay(); d < min {
			min = d
		}
	}
	return min
}

func removeLocation(set []*model.Location, loc *model.Location) []*model.Location {
	if i := slices.Index(set, loc); i >= 0 {
		return slices.Delete(set, i, i+1)
	}
	return set
}
