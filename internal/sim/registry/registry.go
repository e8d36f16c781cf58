// Package registry tracks manufactured entities and drives the attack,
// mining and construction command cycles over them.
//
// Every collection is guarded by one registry-wide lock. The three cycles
// take that lock for a whole pass, so passes never overlap each other or
// any entity mutation made through the registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/signalsfoundry/universe-simulator/core"
	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/model"
	"github.com/signalsfoundry/universe-simulator/timectrl"
)

var (
	// ErrInvalidEntity indicates an entity failed structural validation.
	ErrInvalidEntity = model.ErrInvalidEntity
	// ErrDuplicateID indicates the id is already taken within the entity's kind.
	ErrDuplicateID = errors.New("entity id already taken")
	// ErrDuplicateReference indicates the exact entity is already tracked.
	ErrDuplicateReference = errors.New("entity already tracked")
	// ErrUnsupportedKind indicates Create was given something other than a
	// ship, station or fleet.
	ErrUnsupportedKind = errors.New("unsupported entity kind")
	// ErrTransferRejected indicates transfer preconditions did not hold.
	// Neither entity was changed.
	ErrTransferRejected = errors.New("resource transfer rejected")
	// ErrTransferAborted indicates a transfer step failed after the
	// preconditions passed. Any partial step was rolled back.
	ErrTransferAborted = errors.New("resource transfer aborted")
)

// Default poll intervals of the three cycles.
const (
	DefaultAttackInterval       = 500 * time.Millisecond
	DefaultMiningInterval       = 500 * time.Millisecond
	DefaultConstructionInterval = time.Second
)

// Recorder receives registry metrics. *observability.RegistryCollector
// satisfies it.
type Recorder interface {
	SetEntityCounts(ships, stations, fleets, graveyard, loot int)
	SetCommandCount(kind string, n int)
	ObserveCycle(kind string, d time.Duration)
	IncCommandFailures(kind string)
	AddShipsDestroyed(n int)
}

// ConstructionHandler is invoked, outside the registry lock, for every
// entity admitted after its construction completed.
type ConstructionHandler func(ctx context.Context, e model.Entity)

// Option customises Registry construction.
type Option func(*Registry)

// WithClock sets the clock driving cycle cadence and construction timing.
func WithClock(c timectrl.SimClock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the registry's logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Registry) { r.log = logging.OrNoop(l) }
}

// WithMetrics wires a metrics recorder.
func WithMetrics(m Recorder) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithTracer sets the tracer used for cycle spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithPollIntervals overrides the sleep between passes of each cycle.
// Non-positive values keep the default.
func WithPollIntervals(attack, mining, construction time.Duration) Option {
	return func(r *Registry) {
		if attack > 0 {
			r.attackInterval = attack
		}
		if mining > 0 {
			r.miningInterval = mining
		}
		if construction > 0 {
			r.constructionInterval = construction
		}
	}
}

// WithConstructionHandler registers the callback for finished constructions.
func WithConstructionHandler(h ConstructionHandler) Option {
	return func(r *Registry) { r.onConstructed = h }
}

// Filter selects entities in Find. Zero-valued fields match everything;
// set fields are ANDed.
type Filter struct {
	ID     string
	Parent string
	UserID string
	// LocationID, when non-zero, restricts the result to the first entity
	// whose location has this id.
	LocationID int
	Kind       model.Kind

	IncludeGraveyard bool
	IncludeLoot      bool
}

func (f Filter) match(e model.Entity) bool {
	if f.ID != "" && e.GetID() != f.ID {
		return false
	}
	if f.Parent != "" && e.GetParent() != f.Parent {
		return false
	}
	if f.UserID != "" && e.GetUserID() != f.UserID {
		return false
	}
	if f.Kind != "" && e.GetKind() != f.Kind {
		return false
	}
	if f.LocationID != 0 {
		loc := e.GetLocation()
		if loc == nil || loc.ID != f.LocationID {
			return false
		}
	}
	return true
}

// Registry is an in-memory, thread-safe store of ships, stations, fleets,
// destroyed ships and loot, plus the commands scheduled against them.
type Registry struct {
	clock   timectrl.SimClock
	log     logging.Logger
	metrics Recorder
	tracer  trace.Tracer

	attackInterval       time.Duration
	miningInterval       time.Duration
	constructionInterval time.Duration
	onConstructed        ConstructionHandler

	mu sync.RWMutex

	ships     []*model.Ship
	stations  []*model.Station
	fleets    []*model.Fleet
	graveyard []*model.Ship
	loot      map[string]*model.Loot

	attacks       map[string]*core.AttackCommand
	minings       map[string]*core.MiningCommand
	constructions map[string]*core.ConstructionCommand

	lifecycle sync.Mutex
	stop      chan struct{}
	wg        sync.WaitGroup
	running   atomic.Bool
}

// New returns an empty registry whose cycles are not yet running.
func New(opts ...Option) *Registry {
	r := &Registry{
		clock:                timectrl.Wall(),
		log:                  logging.Noop(),
		tracer:               noop.NewTracerProvider().Tracer(""),
		attackInterval:       DefaultAttackInterval,
		miningInterval:       DefaultMiningInterval,
		constructionInterval: DefaultConstructionInterval,
		loot:                 make(map[string]*model.Loot),
		attacks:              make(map[string]*core.AttackCommand),
		minings:              make(map[string]*core.MiningCommand),
		constructions:        make(map[string]*core.ConstructionCommand),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create validates e and starts tracking it. A ship with no hit points
// left goes straight to the graveyard.
func (r *Registry) Create(e model.Entity) (model.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.createLocked(e); err != nil {
		return nil, err
	}
	r.log.Debug(context.Background(), "entity created",
		logging.String("kind", string(e.GetKind())),
		logging.String("entity_id", e.GetID()))
	return e, nil
}

func (r *Registry) createLocked(e model.Entity) error {
	switch v := e.(type) {
	case *model.Ship:
		if v == nil {
			return fmt.Errorf("%w: nil ship", ErrInvalidEntity)
		}
		live := slices.Contains(r.ships, v)
		if live || slices.Contains(r.graveyard, v) {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, v)
		}
		if r.shipLocked(v.ID, true) != nil {
			return fmt.Errorf("%w: ship %q", ErrDuplicateID, v.ID)
		}
		if err := v.Validate(); err != nil {
			return err
		}
		if v.Alive() {
			r.ships = append(r.ships, v)
		} else {
			r.graveyard = append(r.graveyard, v)
		}
	case *model.Station:
		if v == nil {
			return fmt.Errorf("%w: nil station", ErrInvalidEntity)
		}
		if slices.Contains(r.stations, v) {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, v)
		}
		if r.stationLocked(v.ID) != nil {
			return fmt.Errorf("%w: station %q", ErrDuplicateID, v.ID)
		}
		if err := v.Validate(); err != nil {
			return err
		}
		r.stations = append(r.stations, v)
	case *model.Fleet:
		if v == nil {
			return fmt.Errorf("%w: nil fleet", ErrInvalidEntity)
		}
		if slices.Contains(r.fleets, v) {
			return fmt.Errorf("%w: fleet %q", ErrDuplicateReference, v.ID)
		}
		if r.fleetLocked(v.ID) != nil {
			return fmt.Errorf("%w: fleet %q", ErrDuplicateID, v.ID)
		}
		if err := v.Validate(); err != nil {
			return err
		}
		r.fleets = append(r.fleets, v)
	case nil:
		return fmt.Errorf("%w: nil entity", ErrInvalidEntity)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, e.GetKind())
	}
	r.reportEntitiesLocked()
	return nil
}

func (r *Registry) shipLocked(id string, includeGraveyard bool) *model.Ship {
	for _, s := range r.ships {
		if s.ID == id {
			return s
		}
	}
	if includeGraveyard {
		for _, s := range r.graveyard {
			if s.ID == id {
				return s
			}
		}
	}
	return nil
}

func (r *Registry) stationLocked(id string) *model.Station {
	for _, s := range r.stations {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (r *Registry) fleetLocked(id string) *model.Fleet {
	for _, f := range r.fleets {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Find returns the tracked entities matching f, in Children order followed
// by the graveyard and then loot when requested.
func (r *Registry) Find(f Filter) []model.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := r.childrenLocked()
	if f.IncludeGraveyard {
		for _, s := range r.graveyard {
			search = append(search, s)
		}
	}
	if f.IncludeLoot {
		for _, l := range r.lootLocked() {
			search = append(search, l)
		}
	}

	var out []model.Entity
	for _, e := range search {
		if !f.match(e) {
			continue
		}
		out = append(out, e)
		if f.LocationID != 0 {
			break
		}
	}
	return out
}

// Children returns live ships, then stations, then fleets. The returned
// entities are the tracked instances; mutate them only inside SafelyRun.
func (r *Registry) Children() []model.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.childrenLocked()
}

func (r *Registry) childrenLocked() []model.Entity {
	out := make([]model.Entity, 0, len(r.ships)+len(r.stations)+len(r.fleets))
	for _, s := range r.ships {
		out = append(out, s)
	}
	for _, s := range r.stations {
		out = append(out, s)
	}
	for _, f := range r.fleets {
		out = append(out, f)
	}
	return out
}

// Ships returns the live ships.
func (r *Registry) Ships() []*model.Ship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ships)
}

// Stations returns the tracked stations.
func (r *Registry) Stations() []*model.Station {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.stations)
}

// Fleets returns the tracked fleets.
func (r *Registry) Fleets() []*model.Fleet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.fleets)
}

// Graveyard returns destroyed ships in the order they were destroyed.
func (r *Registry) Graveyard() []*model.Ship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.graveyard)
}

// Loot returns the loot records ordered by id.
func (r *Registry) Loot() []*model.Loot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lootLocked()
}

func (r *Registry) lootLocked() []*model.Loot {
	out := make([]*model.Loot, 0, len(r.loot))
	for _, id := range slices.Sorted(maps.Keys(r.loot)) {
		out = append(out, r.loot[id])
	}
	return out
}

// HasChild reports whether a live ship, station or fleet has id.
func (r *Registry) HasChild(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.shipLocked(id, false) != nil || r.stationLocked(id) != nil || r.fleetLocked(id) != nil
}

// TransferResource moves quantity of resourceID from one holder to another
// atomically with respect to every other registry operation. On success it
// returns both holders. ErrTransferRejected means the preconditions failed
// and nothing changed; ErrTransferAborted means a step failed and was
// rolled back.
func (r *Registry) TransferResource(from, to model.ResourceHolder, resourceID string, quantity float64) (model.ResourceHolder, model.ResourceHolder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if from == nil || to == nil {
		return nil, nil, fmt.Errorf("%w: missing holder", ErrTransferRejected)
	}
	if !from.CanTransfer(to, resourceID, quantity) || !to.CanAccept(resourceID, quantity) {
		return nil, nil, fmt.Errorf("%w: %s %q cannot move %.2f %s to %s %q", ErrTransferRejected,
			from.GetKind(), from.GetID(), quantity, resourceID, to.GetKind(), to.GetID())
	}
	if err := to.AddResource(resourceID, quantity); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrTransferAborted, err)
	}
	if err := from.RemoveResource(resourceID, quantity); err != nil {
		if rbErr := to.RemoveResource(resourceID, quantity); rbErr != nil {
			r.log.Error(context.Background(), "transfer rollback failed",
				logging.String("entity_id", to.GetID()), logging.Err(rbErr))
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrTransferAborted, err)
	}
	return from, to, nil
}

// SetLoot stores l, replacing any loot with the same id. Loot with nothing
// left in it is deleted instead.
func (r *Registry) SetLoot(l *model.Loot) error {
	if l == nil {
		return fmt.Errorf("%w: nil loot", ErrInvalidEntity)
	}
	if err := l.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.TotalQuantity() <= model.CloseEnough {
		delete(r.loot, l.ID)
	} else {
		r.loot[l.ID] = l
	}
	r.reportEntitiesLocked()
	return nil
}

// SetConstructionHandler replaces the handler for finished constructions.
func (r *Registry) SetConstructionHandler(h ConstructionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onConstructed = h
}

// SafelyRun invokes fn with the registry lock held. Use it to mutate
// tracked entities without racing the cycles. fn must not call back into
// the registry.
func (r *Registry) SafelyRun(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// Clear drops every entity and command.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ships, r.stations, r.fleets, r.graveyard = nil, nil, nil, nil
	clear(r.loot)
	clear(r.attacks)
	clear(r.minings)
	clear(r.constructions)
	r.reportEntitiesLocked()
	r.reportCommandsLocked()
}

func (r *Registry) reportEntitiesLocked() {
	if r.metrics != nil {
		r.metrics.SetEntityCounts(len(r.ships), len(r.stations), len(r.fleets), len(r.graveyard), len(r.loot))
	}
}
