package core

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/universe-simulator/model"
	"github.com/signalsfoundry/universe-simulator/timectrl"
)

// DefaultBuildTime is used when ConstructionArgs.BuildTime is unset.
const DefaultBuildTime = 20 * time.Second

// ConstructionID derives the id of a construction command.
func ConstructionID(stationID, entityID string) string {
	return stationID + "-" + entityID
}

// ConstructionArgs configures a construction command.
type ConstructionArgs struct {
	Station   *model.Station
	Entity    model.Entity
	BuildTime time.Duration
	Clock     timectrl.SimClock
	Hooks     Hooks
}

// ConstructionCommand builds an entity at a station over BuildTime. It
// manages its own completion: once done it runs its complete hooks,
// reports the product through Constructed and asks to be removed.
type ConstructionCommand struct {
	commandBase
	station   *model.Station
	entity    model.Entity
	buildTime time.Duration
	clock     timectrl.SimClock

	started   time.Time
	completed bool
}

// NewConstructionCommand validates args and builds a construction command.
// The product must sit within the station's construction distance.
func NewConstructionCommand(args ConstructionArgs) (*ConstructionCommand, error) {
	if args.Station == nil || args.Entity == nil {
		return nil, fmt.Errorf("%w: construction needs a station and an entity", ErrInvalidCommand)
	}
	if !args.Station.CanConstruct(args.Entity.GetLocation()) {
		return nil, fmt.Errorf("%w: %s cannot construct %q at that location",
			ErrInvalidCommand, args.Station, args.Entity.GetID())
	}
	buildTime := args.BuildTime
	if buildTime <= 0 {
		buildTime = DefaultBuildTime
	}
	clock := args.Clock
	if clock == nil {
		clock = timectrl.Wall()
	}
	return &ConstructionCommand{
		commandBase: commandBase{id: ConstructionID(args.Station.ID, args.Entity.GetID()), hooks: args.Hooks},
		station:     args.Station,
		entity:      args.Entity,
		buildTime:   buildTime,
		clock:       clock,
	}, nil
}

// Station returns the constructing station.
func (c *ConstructionCommand) Station() *model.Station { return c.station }

// Entity returns the entity under construction.
func (c *ConstructionCommand) Entity() model.Entity { return c.entity }

// ConstructionCycle advances construction. The first cycle starts the build
// clock; the cycle at or after BuildTime completes it.
func (c *ConstructionCommand) ConstructionCycle() {
	if c.completed {
		return
	}
	now := c.clock.Now()
	if c.started.IsZero() {
		c.started = now
	}
	if now.Sub(c.started) < c.buildTime {
		return
	}
	c.completed = true
	for _, hook := range c.Hooks(PhaseComplete) {
		hook(c)
	}
}

// Progress returns the completed fraction in [0, 1].
func (c *ConstructionCommand) Progress() float64 {
	if c.completed {
		return 1
	}
	if c.started.IsZero() {
		return 0
	}
	p := float64(c.clock.Now().Sub(c.started)) / float64(c.buildTime)
	if p > 1 {
		p = 1
	}
	return p
}

// Completed reports whether construction has finished.
func (c *ConstructionCommand) Completed() bool { return c.completed }

// Constructed returns the finished product, or nil while still building.
func (c *ConstructionCommand) Constructed() model.Entity {
	if !c.completed {
		return nil
	}
	return c.entity
}

// Remove is true once construction has completed.
func (c *ConstructionCommand) Remove() bool { return c.completed }
