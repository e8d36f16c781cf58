package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/universe-simulator/model"
)

// MiningID derives the id of the mining command for a ship and source.
func MiningID(shipID string, source *model.ResourceSource) string {
	return shipID + "-" + source.ID()
}

// MiningArgs configures a mining command.
type MiningArgs struct {
	Ship   *model.Ship
	Source *model.ResourceSource
	// Quantity overrides the ship's per-cycle mining quantity when positive.
	Quantity float64
	Hooks    Hooks
}

// MiningCommand makes a ship repeatedly extract from a resource source.
type MiningCommand struct {
	commandBase
	ship     *model.Ship
	source   *model.ResourceSource
	quantity float64
}

// NewMiningCommand validates args and builds a mining command.
func NewMiningCommand(args MiningArgs) (*MiningCommand, error) {
	if args.Ship == nil || args.Source == nil {
		return nil, fmt.Errorf("%w: mining needs a ship and a resource source", ErrInvalidCommand)
	}
	if args.Source.ResourceID == "" {
		return nil, fmt.Errorf("%w: resource source has no resource id", ErrInvalidCommand)
	}
	return &MiningCommand{
		commandBase: commandBase{id: MiningID(args.Ship.ID, args.Source), hooks: args.Hooks},
		ship:        args.Ship,
		source:      args.Source,
		quantity:    args.Quantity,
	}, nil
}

// Ship returns the mining ship.
func (c *MiningCommand) Ship() *model.Ship { return c.ship }

// Source returns the mined deposit.
func (c *MiningCommand) Source() *model.ResourceSource { return c.source }

// Quantity returns the amount extracted per mining step.
func (c *MiningCommand) Quantity() float64 {
	if c.quantity > 0 {
		return c.quantity
	}
	return c.ship.MiningQuantity
}

// Minable reports whether the ship can extract from the source this cycle.
func (c *MiningCommand) Minable() bool {
	s, src := c.ship, c.source
	if !s.Alive() || src.Depleted() || s.FreeCapacity() <= 0 {
		return false
	}
	if s.System != src.System || s.Location == nil || src.Location == nil {
		return false
	}
	return s.Location.DistanceTo(src.Location) <= s.MiningDistance
}

// Mine moves one step's worth of resource from the source into the hold.
func (c *MiningCommand) Mine() {
	want := math.Min(c.Quantity(), c.ship.FreeCapacity())
	got := c.source.Extract(want)
	if got <= 0 {
		return
	}
	if err := c.ship.AddResource(c.source.ResourceID, got); err != nil {
		// Put it back; the hold filled up between the check and the add.
		c.source.Quantity += got
	}
}

// Remove is true once the ship is destroyed, the source is depleted or the
// hold is full.
func (c *MiningCommand) Remove() bool {
	return !c.ship.Alive() || c.source.Depleted() || c.ship.FreeCapacity() <= model.CloseEnough
}
