package model

import "time"

// DefaultStepDelay is the step delay of a location without a strategy and
// of strategies constructed without a delay.
const DefaultStepDelay = time.Second

// MovementStrategy updates a location's position and orientation as time
// passes. StepDelay is the preferred interval between successive Move calls.
type MovementStrategy interface {
	Kind() string
	StepDelay() time.Duration
	Move(loc *Location, elapsed time.Duration)
}

// MovementCallback observes a location after it moved. old holds the
// coordinates prior to the move.
type MovementCallback interface {
	InvokeMovement(loc *Location, old Vec3)
}

// ProximityCallback is evaluated against every tracked location after each
// mover pass, regardless of which locations actually moved.
type ProximityCallback interface {
	InvokeProximity(loc *Location)
}

// Location is a point in the universe bound to a movement strategy.
//
// Locations tracked by a scheduler are mutated by its mover goroutine; any
// other writer must go through the scheduler's SafelyRun.
type Location struct {
	// ID is unique across a scheduler. Zero means unset; the scheduler
	// allocates the smallest unused positive id on Run.
	ID int

	// Parent is the name of the containing system, if any.
	Parent string

	Coordinates Vec3
	Orientation Vec3

	Strategy MovementStrategy

	MovementCallbacks  []MovementCallback
	ProximityCallbacks []ProximityCallback
}

// DefaultOrientation is applied to locations created without one.
var DefaultOrientation = Vec3{X: 1, Y: 0, Z: 0}

// NewLocation constructs a location at the given coordinates using the
// default orientation and no strategy.
func NewLocation(id int, coords Vec3) *Location {
	return &Location{
		ID:          id,
		Coordinates: coords,
		Orientation: DefaultOrientation,
	}
}

// StepDelay returns the bound strategy's step delay. A location without a
// strategy is at rest and uses DefaultStepDelay.
func (l *Location) StepDelay() time.Duration {
	if l == nil || l.Strategy == nil {
		return DefaultStepDelay
	}
	return l.Strategy.StepDelay()
}

// DistanceTo returns the distance between two locations' coordinates.
func (l *Location) DistanceTo(other *Location) float64 {
	return l.Coordinates.DistanceTo(other.Coordinates)
}

// Clone returns a shallow copy of the location. The strategy and callbacks
// are shared, the slices themselves are not.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	cp := *l
	cp.MovementCallbacks = append([]MovementCallback(nil), l.MovementCallbacks...)
	cp.ProximityCallbacks = append([]ProximityCallback(nil), l.ProximityCallbacks...)
	return &cp
}
