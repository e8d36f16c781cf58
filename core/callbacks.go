package core

import "github.com/signalsfoundry/universe-simulator/model"

// Callbacks are invoked from the scheduler's mover goroutine only, so their
// internal bookkeeping needs no locking of its own.

// MovementHandler receives a moved location and the coordinates it was last
// reported at.
type MovementHandler func(loc *model.Location, old model.Vec3)

// MovementCallback reports a location once it has travelled at least
// MinDistance since the previous report.
type MovementCallback struct {
	MinDistance float64
	Handler     MovementHandler

	anchor *model.Vec3
}

// NewMovementCallback returns a callback firing every minDistance units.
func NewMovementCallback(minDistance float64, handler MovementHandler) *MovementCallback {
	return &MovementCallback{MinDistance: minDistance, Handler: handler}
}

// InvokeMovement implements model.MovementCallback.
func (c *MovementCallback) InvokeMovement(loc *model.Location, old model.Vec3) {
	if c.anchor == nil {
		anchor := old
		c.anchor = &anchor
	}
	if loc.Coordinates.DistanceTo(*c.anchor) < c.MinDistance {
		return
	}
	prev := *c.anchor
	*c.anchor = loc.Coordinates
	if c.Handler != nil {
		c.Handler(loc, prev)
	}
}

// ProximityEvent selects when a ProximityCallback fires.
type ProximityEvent string

const (
	// ProximityAny fires on every evaluation while within range.
	ProximityAny ProximityEvent = "proximity"
	// ProximityEntered fires when the location moves into range.
	ProximityEntered ProximityEvent = "entered_proximity"
	// ProximityLeft fires when the location moves out of range.
	ProximityLeft ProximityEvent = "left_proximity"
)

// ProximityHandler receives the evaluated location and the location it was
// compared against.
type ProximityHandler func(loc, to *model.Location)

// ProximityCallback watches the distance between a location and To.
type ProximityCallback struct {
	To          *model.Location
	MaxDistance float64
	Event       ProximityEvent
	Handler     ProximityHandler

	inside bool
}

// NewProximityCallback returns a callback comparing against to.
func NewProximityCallback(to *model.Location, maxDistance float64, event ProximityEvent, handler ProximityHandler) *ProximityCallback {
	if event == "" {
		event = ProximityAny
	}
	return &ProximityCallback{To: to, MaxDistance: maxDistance, Event: event, Handler: handler}
}

// InvokeProximity implements model.ProximityCallback.
func (c *ProximityCallback) InvokeProximity(loc *model.Location) {
	if c.To == nil {
		return
	}
	near := loc.DistanceTo(c.To) <= c.MaxDistance
	wasInside := c.inside
	c.inside = near

	fire := false
	switch c.Event {
	case ProximityAny:
		fire = near
	case ProximityEntered:
		fire = near && !wasInside
	case ProximityLeft:
		fire = !near && wasInside
	}
	if fire && c.Handler != nil {
		c.Handler(loc, c.To)
	}
}
