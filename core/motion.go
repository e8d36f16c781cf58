package core

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/universe-simulator/model"
)

// Strategy kinds, used as the record tag when a strategy is persisted.
const (
	KindStopped   = "stopped"
	KindLinear    = "linear"
	KindRotate    = "rotate"
	KindFollow    = "follow"
	KindOrbital   = "orbital"
	KindComposite = "composite"
)

// DefaultStepDelay is used by strategies constructed without a delay.
const DefaultStepDelay = model.DefaultStepDelay

func stepDelayOr(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultStepDelay
	}
	return d
}

// Stopped leaves a location where it is.
type Stopped struct {
	Delay time.Duration `json:"step_delay"`
}

func (s *Stopped) Kind() string                        { return KindStopped }
func (s *Stopped) StepDelay() time.Duration            { return stepDelayOr(s.Delay) }
func (s *Stopped) Move(*model.Location, time.Duration) {}
func (s *Stopped) Clone() model.MovementStrategy       { cp := *s; return &cp }

// Linear moves a location along a fixed direction at a constant speed
// (units per second).
type Linear struct {
	Direction model.Vec3    `json:"direction"`
	Speed     float64       `json:"speed"`
	Delay     time.Duration `json:"step_delay"`
}

// NewLinear normalises direction and returns a linear strategy.
func NewLinear(direction model.Vec3, speed float64, delay time.Duration) *Linear {
	return &Linear{Direction: direction.Normalize(), Speed: speed, Delay: delay}
}

func (s *Linear) Kind() string                  { return KindLinear }
func (s *Linear) StepDelay() time.Duration      { return stepDelayOr(s.Delay) }
func (s *Linear) Clone() model.MovementStrategy { cp := *s; return &cp }

// Move advances the location by speed * elapsed along the direction.
func (s *Linear) Move(loc *model.Location, elapsed time.Duration) {
	dist := s.Speed * elapsed.Seconds()
	loc.Coordinates = loc.Coordinates.Add(s.Direction.Normalize().Scale(dist))
}

// Rotate spins a location's orientation about an axis at a constant
// angular speed (radians per second). Coordinates are not changed.
type Rotate struct {
	Axis  model.Vec3    `json:"axis"`
	Speed float64       `json:"speed"`
	Delay time.Duration `json:"step_delay"`
}

func (s *Rotate) Kind() string                  { return KindRotate }
func (s *Rotate) StepDelay() time.Duration      { return stepDelayOr(s.Delay) }
func (s *Rotate) Clone() model.MovementStrategy { cp := *s; return &cp }

// Move rotates the orientation by speed * elapsed radians.
func (s *Rotate) Move(loc *model.Location, elapsed time.Duration) {
	axis := s.Axis.Normalize()
	if axis.Norm() == 0 {
		return
	}
	angle := s.Speed * elapsed.Seconds()
	loc.Orientation = rotateAbout(loc.Orientation, axis, angle).Normalize()
}

// rotateAbout applies Rodrigues' rotation formula. axis must be a unit vector.
func rotateAbout(v, axis model.Vec3, angle float64) model.Vec3 {
	cos, sin := math.Cos(angle), math.Sin(angle)
	return v.Scale(cos).
		Add(axis.Cross(v).Scale(sin)).
		Add(axis.Scale(axis.Dot(v) * (1 - cos)))
}

// Follow keeps a location within Distance of a tracked location, closing
// the gap at up to Speed units per second.
type Follow struct {
	TrackedID int           `json:"tracked_location_id"`
	Distance  float64       `json:"distance"`
	Speed     float64       `json:"speed"`
	Delay     time.Duration `json:"step_delay"`

	tracked *model.Location
}

// NewFollow returns a strategy following tracked.
func NewFollow(tracked *model.Location, distance, speed float64, delay time.Duration) *Follow {
	f := &Follow{Distance: distance, Speed: speed, Delay: delay, tracked: tracked}
	if tracked != nil {
		f.TrackedID = tracked.ID
	}
	return f
}

func (s *Follow) Kind() string             { return KindFollow }
func (s *Follow) StepDelay() time.Duration { return stepDelayOr(s.Delay) }

// Clone returns an unresolved copy that keeps the tracked location id.
func (s *Follow) Clone() model.MovementStrategy {
	cp := *s
	if s.tracked != nil {
		cp.TrackedID = s.tracked.ID
	}
	cp.tracked = nil
	return &cp
}

// Tracked returns the followed location, nil until resolved.
func (s *Follow) Tracked() *model.Location { return s.tracked }

// Resolve binds the tracked location by id. Restored strategies only carry
// the id, so the owner of the location set resolves them after loading.
func (s *Follow) Resolve(lookup func(id int) *model.Location) {
	if s.tracked == nil && lookup != nil {
		s.tracked = lookup(s.TrackedID)
	}
}

// Move closes in on the tracked location.
func (s *Follow) Move(loc *model.Location, elapsed time.Duration) {
	if s.tracked == nil || s.tracked == loc {
		return
	}
	gap := s.tracked.Coordinates.Sub(loc.Coordinates)
	excess := gap.Norm() - s.Distance
	if excess <= 0 {
		return
	}
	step := math.Min(excess, s.Speed*elapsed.Seconds())
	loc.Coordinates = loc.Coordinates.Add(gap.Normalize().Scale(step))
}

// Orbital propagates a two-line element set with SGP4. Coordinates are the
// ECEF position in kilometres multiplied by Scale, measured at Epoch plus
// the simulation time accumulated so far.
type Orbital struct {
	TLE1  string        `json:"tle1"`
	TLE2  string        `json:"tle2"`
	Epoch time.Time     `json:"epoch"`
	Scale float64       `json:"scale"`
	Delay time.Duration `json:"step_delay"`

	Elapsed time.Duration `json:"elapsed"`

	sat   satellite.Satellite
	ready bool
}

// NewOrbital constructs an orbital strategy from TLE lines.
func NewOrbital(line1, line2 string, epoch time.Time, delay time.Duration) *Orbital {
	return &Orbital{TLE1: line1, TLE2: line2, Epoch: epoch.UTC(), Scale: 1, Delay: delay}
}

func (s *Orbital) Kind() string                  { return KindOrbital }
func (s *Orbital) StepDelay() time.Duration      { return stepDelayOr(s.Delay) }
func (s *Orbital) Clone() model.MovementStrategy { cp := *s; return &cp }

// Move propagates the satellite to its new simulation time.
func (s *Orbital) Move(loc *model.Location, elapsed time.Duration) {
	if !s.ready {
		s.sat = satellite.TLEToSat(s.TLE1, s.TLE2, satellite.GravityWGS72)
		s.ready = true
	}
	s.Elapsed += elapsed

	simTime := s.Epoch.Add(s.Elapsed)
	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	posECI, _ := satellite.Propagate(s.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	scale := s.Scale
	if scale == 0 {
		scale = 1
	}
	loc.Coordinates = model.Vec3{
		X: posECEF.X * scale,
		Y: posECEF.Y * scale,
		Z: posECEF.Z * scale,
	}
}

// Composite applies each child strategy in order.
type Composite struct {
	Strategies []model.MovementStrategy
}

func (s *Composite) Kind() string { return KindComposite }

// StepDelay is the smallest positive delay among the children.
func (s *Composite) StepDelay() time.Duration {
	var min time.Duration
	for _, child := range s.Strategies {
		if child == nil {
			continue
		}
		d := child.StepDelay()
		if d > 0 && (min == 0 || d < min) {
			min = d
		}
	}
	return stepDelayOr(min)
}

// Clone copies every child.
func (s *Composite) Clone() model.MovementStrategy {
	cp := &Composite{Strategies: make([]model.MovementStrategy, 0, len(s.Strategies))}
	for _, child := range s.Strategies {
		cp.Strategies = append(cp.Strategies, CloneStrategy(child))
	}
	return cp
}

// Move invokes every child with the same elapsed time.
func (s *Composite) Move(loc *model.Location, elapsed time.Duration) {
	for _, child := range s.Strategies {
		if child != nil {
			child.Move(loc, elapsed)
		}
	}
}

// Resolve forwards to children that need location lookups.
func (s *Composite) Resolve(lookup func(id int) *model.Location) {
	for _, child := range s.Strategies {
		if r, ok := child.(Resolver); ok {
			r.Resolve(lookup)
		}
	}
}

// Cloner is implemented by strategies that can be copied so that two
// locations never move through the same instance.
type Cloner interface {
	Clone() model.MovementStrategy
}

// CloneStrategy returns an independent copy of strategy. Strategies that
// do not implement Cloner are returned as is.
func CloneStrategy(strategy model.MovementStrategy) model.MovementStrategy {
	if c, ok := strategy.(Cloner); ok {
		return c.Clone()
	}
	return strategy
}

// Resolver is implemented by strategies that reference other locations.
type Resolver interface {
	Resolve(lookup func(id int) *model.Location)
}
