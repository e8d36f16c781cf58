// Package universe composes one location scheduler and one entity registry
// into a running simulation.
//
// Entities keep their own location. The scheduler moves a tracked copy and
// a movement callback mirrors each move back into the entity under the
// registry lock, so registry cycles never read coordinates the mover is
// writing. Locks are never nested: a callback holds no scheduler lock when
// it takes the registry lock, and the construction handler holds no
// registry lock when it registers with the scheduler.
package universe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/signalsfoundry/universe-simulator/core"
	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/internal/sim/registry"
	"github.com/signalsfoundry/universe-simulator/internal/sim/scheduler"
	"github.com/signalsfoundry/universe-simulator/model"
)

// State file names inside a state directory.
const (
	LocationsFile = "locations.jsonl"
	EntitiesFile  = "entities.jsonl"
)

// ErrNoState indicates a state directory holds no saved locations.
var ErrNoState = errors.New("no saved state")

// Snapshot summarises the simulation.
type Snapshot struct {
	Running       bool
	Locations     int
	Ships         int
	Stations      int
	Fleets        int
	Graveyard     int
	Loot          int
	Attacks       int
	Minings       int
	Constructions int
}

// Universe owns a scheduler and a registry.
type Universe struct {
	sched *scheduler.Scheduler
	reg   *registry.Registry
	log   logging.Logger

	// mu serialises lifecycle and persistence.
	mu sync.Mutex
}

// New wires sched and reg together. It installs the registry's
// construction handler so finished products start moving.
func New(sched *scheduler.Scheduler, reg *registry.Registry, log logging.Logger) *Universe {
	u := &Universe{sched: sched, reg: reg, log: logging.OrNoop(log)}
	reg.SetConstructionHandler(func(ctx context.Context, e model.Entity) {
		u.track(ctx, e)
	})
	return u
}

// Scheduler returns the location scheduler.
func (u *Universe) Scheduler() *scheduler.Scheduler { return u.sched }

// Registry returns the entity registry.
func (u *Universe) Registry() *registry.Registry { return u.reg }

// CreateEntity creates e in the registry and schedules its location.
func (u *Universe) CreateEntity(ctx context.Context, e model.Entity) (model.Entity, error) {
	created, err := u.reg.Create(e)
	if err != nil {
		return nil, err
	}
	u.track(ctx, created)
	return created, nil
}

// track schedules a copy of e's location and binds it back to e. The copy
// moves through its own strategy instance; a strategy following another
// location is re-resolved against the scheduler's tracked set.
func (u *Universe) track(ctx context.Context, e model.Entity) {
	var tracked *model.Location
	u.reg.SafelyRun(func() {
		if loc := e.GetLocation(); loc != nil {
			tracked = loc.Clone()
			tracked.Strategy = core.CloneStrategy(loc.Strategy)
		}
	})
	if tracked == nil {
		return
	}
	if r, ok := tracked.Strategy.(core.Resolver); ok {
		r.Resolve(u.sched.Location)
	}
	u.sched.Run(tracked)
	u.bind(e, tracked)
	u.log.Debug(ctx, "entity tracked",
		logging.String("entity_id", e.GetID()),
		logging.Int("location_id", tracked.ID))
}

// bind attaches the mirroring callback to tracked and copies its id and
// coordinates into e's location.
func (u *Universe) bind(e model.Entity, tracked *model.Location) {
	cb := &mirror{reg: u.reg, entity: e}
	var id int
	var coords, orientation model.Vec3
	u.sched.SafelyRun(func() {
		tracked.MovementCallbacks = append(tracked.MovementCallbacks, cb)
		id, coords, orientation = tracked.ID, tracked.Coordinates, tracked.Orientation
	})
	u.reg.SafelyRun(func() {
		if loc := e.GetLocation(); loc != nil {
			loc.ID = id
			loc.Coordinates = coords
			loc.Orientation = orientation
		}
	})
}

// mirror copies a tracked location's position into its entity.
type mirror struct {
	reg    *registry.Registry
	entity model.Entity
}

func (m *mirror) InvokeMovement(loc *model.Location, _ model.Vec3) {
	coords, orientation := loc.Coordinates, loc.Orientation
	m.reg.SafelyRun(func() {
		if own := m.entity.GetLocation(); own != nil {
			own.Coordinates = coords
			own.Orientation = orientation
		}
	})
}

// Start launches the scheduler and the registry cycles.
func (u *Universe) Start() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sched.Start()
	u.reg.Start()
}

// Stop halts the registry cycles, then the scheduler, waiting for both.
func (u *Universe) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reg.Terminate()
	u.sched.Stop()
}

// Running reports whether both the scheduler and the registry run.
func (u *Universe) Running() bool {
	return u.sched.Running() && u.reg.Running()
}

// Snapshot returns current counts.
func (u *Universe) Snapshot() Snapshot {
	return Snapshot{
		Running:       u.Running(),
		Locations:     len(u.sched.Locations()),
		Ships:         len(u.reg.Ships()),
		Stations:      len(u.reg.Stations()),
		Fleets:        len(u.reg.Fleets()),
		Graveyard:     len(u.reg.Graveyard()),
		Loot:          len(u.reg.Loot()),
		Attacks:       len(u.reg.Commands(registry.CommandAttack)),
		Minings:       len(u.reg.Commands(registry.CommandMining)),
		Constructions: len(u.reg.Commands(registry.CommandConstruction)),
	}
}

// SaveState writes both streams into dir. Each file is written to a
// temporary name and renamed into place.
func (u *Universe) SaveState(ctx context.Context, dir string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if err := writeAtomic(dir, LocationsFile, u.sched.SaveState); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if err := writeAtomic(dir, EntitiesFile, u.reg.SaveState); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	u.log.Info(ctx, "state saved", logging.String("dir", dir))
	return nil
}

func writeAtomic(dir, name string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}

// RestoreState loads locations and then entities from dir. Each restored
// entity is bound to the tracked location with its location id; entities
// whose location was not saved get a freshly scheduled one. A missing
// entities file is treated as empty. ErrNoState is returned when dir holds
// no locations file.
func (u *Universe) RestoreState(ctx context.Context, dir string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	lf, err := os.Open(filepath.Join(dir, LocationsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w in %s", ErrNoState, dir)
	}
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	defer lf.Close()
	if _, err := u.sched.RestoreState(lf); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	ef, err := os.Open(filepath.Join(dir, EntitiesFile))
	if errors.Is(err, fs.ErrNotExist) {
		u.log.Warn(ctx, "no entities file, restored locations only", logging.String("dir", dir))
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	defer ef.Close()
	entities, err := u.reg.RestoreState(ef)
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	for _, e := range entities {
		loc := e.GetLocation()
		if loc == nil {
			continue
		}
		if tracked := u.sched.Location(loc.ID); loc.ID != 0 && tracked != nil {
			u.bind(e, tracked)
			continue
		}
		u.track(ctx, e)
	}
	u.log.Info(ctx, "state restored",
		logging.String("dir", dir),
		logging.Int("entities", len(entities)))
	return nil
}
