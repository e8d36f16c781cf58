package model

import (
	"math"
	"testing"
)

func TestVec3Arithmetic(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: 4, Y: 6, Z: 3}

	if got := a.Add(b); got != (Vec3{X: 5, Y: 8, Z: 6}) {
		t.Fatalf("Add = %v", got)
	}
	if got := b.Sub(a); got != (Vec3{X: 3, Y: 4, Z: 0}) {
		t.Fatalf("Sub = %v", got)
	}
	if got := a.DistanceTo(b); math.Abs(got-5) > CloseEnough {
		t.Fatalf("DistanceTo = %v, want 5", got)
	}
	if got := (Vec3{X: 1}).Cross(Vec3{Y: 1}); got != (Vec3{Z: 1}) {
		t.Fatalf("Cross = %v, want +Z", got)
	}
}

func TestVec3Normalize(t *testing.T) {
	n := Vec3{X: 3, Y: 4}.Normalize()
	if !n.IsNormalized() {
		t.Fatalf("Normalize produced %v with norm %v", n, n.Norm())
	}
	if zero := (Vec3{}).Normalize(); zero != (Vec3{}) {
		t.Fatalf("zero vector should stay zero, got %v", zero)
	}
}

func TestLocationClone(t *testing.T) {
	loc := NewLocation(7, Vec3{X: 1})
	loc.MovementCallbacks = []MovementCallback{nil}

	cp := loc.Clone()
	cp.Coordinates.X = 9
	cp.MovementCallbacks = append(cp.MovementCallbacks, nil)

	if loc.Coordinates.X != 1 || len(loc.MovementCallbacks) != 1 {
		t.Fatalf("clone must not alias the original: %+v", loc)
	}
	if cp.ID != 7 || cp.Orientation != DefaultOrientation {
		t.Fatalf("clone lost fields: %+v", cp)
	}
	if (*Location)(nil).Clone() != nil {
		t.Fatalf("Clone of nil should be nil")
	}
}
