package model

import (
	"errors"
	"testing"
)

func shipAt(id string, x float64) *Ship {
	return NewShip(id, "user1", ShipCorvette, "Athena", NewLocation(0, Vec3{X: x}))
}

func TestShipValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Ship)
	}{
		{"empty id", func(s *Ship) { s.ID = "" }},
		{"no user", func(s *Ship) { s.UserID = "" }},
		{"unknown type", func(s *Ship) { s.Type = "yacht" }},
		{"no location", func(s *Ship) { s.Location = nil }},
		{"negative cargo", func(s *Ship) { s.Resources["metal"] = -1 }},
		{"over capacity", func(s *Ship) { s.Resources["metal"] = s.CargoCapacity + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := shipAt("sh1", 0)
			tt.mutate(s)
			if err := s.Validate(); !errors.Is(err, ErrInvalidEntity) {
				t.Fatalf("expected ErrInvalidEntity, got %v", err)
			}
		})
	}

	dead := shipAt("sh1", 0)
	dead.HP = 0
	if err := dead.Validate(); err != nil {
		t.Fatalf("a destroyed ship is still valid: %v", err)
	}
}

func TestShipCargo(t *testing.T) {
	s := shipAt("sh1", 0)
	s.CargoCapacity = 10

	if err := s.AddResource("metal", 8); err != nil {
		t.Fatalf("AddResource: %v", err)
	}
	if err := s.AddResource("metal", 3); !errors.Is(err, ErrCargoFull) {
		t.Fatalf("expected ErrCargoFull, got %v", err)
	}
	if err := s.AddResource("metal", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if got := s.FreeCapacity(); got != 2 {
		t.Fatalf("FreeCapacity = %v, want 2", got)
	}
	if err := s.RemoveResource("metal", 9); !errors.Is(err, ErrInsufficientResource) {
		t.Fatalf("expected ErrInsufficientResource, got %v", err)
	}
	if err := s.RemoveResource("metal", 8); err != nil {
		t.Fatalf("RemoveResource: %v", err)
	}
	if !s.CargoEmpty() {
		t.Fatalf("hold should be empty, have %v", s.Resources)
	}
	if _, ok := s.Resources["metal"]; ok {
		t.Fatalf("exhausted entries should be deleted")
	}
}

func TestCanTransfer(t *testing.T) {
	from := shipAt("sh1", 0)
	from.Resources["metal"] = 5
	near := shipAt("sh2", 50)
	far := shipAt("sh3", 500)
	other := NewShip("sh4", "user1", ShipCorvette, "Zeus", NewLocation(0, Vec3{X: 10}))

	if !from.CanTransfer(near, "metal", 5) {
		t.Fatalf("transfer to a nearby ship should be allowed")
	}
	if from.CanTransfer(near, "metal", 6) {
		t.Fatalf("transfer of more than carried should be refused")
	}
	if from.CanTransfer(far, "metal", 1) {
		t.Fatalf("transfer beyond reach should be refused")
	}
	if from.CanTransfer(other, "metal", 1) {
		t.Fatalf("transfer across systems should be refused")
	}
	if from.CanTransfer(from, "metal", 1) {
		t.Fatalf("transfer to itself should be refused")
	}
	from.HP = 0
	if from.CanTransfer(near, "metal", 1) {
		t.Fatalf("a destroyed ship cannot transfer")
	}
}

func TestStation(t *testing.T) {
	st := NewStation("st1", "user1", StationManufacturing, "Athena", NewLocation(0, Vec3{}))
	if err := st.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !st.CanConstruct(NewLocation(0, Vec3{X: DefaultStationConstructionDistance})) {
		t.Fatalf("construction at the edge of reach should be allowed")
	}
	if st.CanConstruct(NewLocation(0, Vec3{X: DefaultStationConstructionDistance + 1})) {
		t.Fatalf("construction beyond reach should be refused")
	}
	if err := st.AddResource("metal", 10); err != nil {
		t.Fatalf("AddResource: %v", err)
	}
	if !st.CanTransfer(shipAt("sh1", 10), "metal", 10) {
		t.Fatalf("station should hand cargo to a nearby ship")
	}

	bad := NewStation("st2", "user1", "palace", "Athena", NewLocation(0, Vec3{}))
	if err := bad.Validate(); !errors.Is(err, ErrInvalidEntity) {
		t.Fatalf("expected ErrInvalidEntity, got %v", err)
	}
}

func TestFleetMembership(t *testing.T) {
	f := &Fleet{ID: "f1", UserID: "user1", System: "Athena"}
	s := shipAt("sh1", 0)
	f.AddShip(s)
	f.AddShip(s)
	if len(f.ShipIDs) != 1 || s.FleetID != "f1" {
		t.Fatalf("AddShip should link once: ids=%v fleet=%q", f.ShipIDs, s.FleetID)
	}
	f.RemoveShip("sh1")
	if len(f.ShipIDs) != 0 {
		t.Fatalf("RemoveShip left %v", f.ShipIDs)
	}
	if err := (&Fleet{ID: "f2"}).Validate(); !errors.Is(err, ErrInvalidEntity) {
		t.Fatalf("fleet without user should be invalid, got %v", err)
	}
}

func TestLootFromShip(t *testing.T) {
	s := shipAt("sh1", 0)
	s.Resources["metal"] = 7
	l := NewLootFromShip(s)

	if l.ID != "sh1-loot" || l.Quantity("metal") != 7 {
		t.Fatalf("loot = %+v", l)
	}
	if l.Location == s.Location || l.Location.Coordinates != s.Location.Coordinates {
		t.Fatalf("loot should hold a snapshot of the ship location")
	}
	if l.Location.Strategy != nil || len(l.Location.MovementCallbacks) != 0 {
		t.Fatalf("loot location should be at rest")
	}
	s.Location.Coordinates.X += 50
	if l.Location.Coordinates.X == s.Location.Coordinates.X {
		t.Fatalf("loot moved with the wreck")
	}
	s.Resources["metal"] = 1
	if l.Quantity("metal") != 7 {
		t.Fatalf("loot cargo must be a copy of the hold")
	}
	if l.CanAccept("metal", 1) {
		t.Fatalf("loot accepts nothing")
	}
	if err := l.AddResource("metal", 1); !errors.Is(err, ErrCargoFull) {
		t.Fatalf("expected ErrCargoFull, got %v", err)
	}
	collector := shipAt("sh2", 20)
	if !l.CanTransfer(collector, "metal", 7) {
		t.Fatalf("nearby ship should be able to collect loot")
	}
	if err := l.RemoveResource("metal", 7); err != nil || !l.CargoEmpty() {
		t.Fatalf("RemoveResource = %v, empty=%v", err, l.CargoEmpty())
	}
}

func TestResourceSourceExtract(t *testing.T) {
	src := &ResourceSource{EntityID: "ast1", ResourceID: "ore", Quantity: 15}
	if src.ID() != "ast1_ore" {
		t.Fatalf("ID = %q", src.ID())
	}
	if got := src.Extract(10); got != 10 {
		t.Fatalf("first Extract = %v", got)
	}
	if got := src.Extract(10); got != 5 || !src.Depleted() {
		t.Fatalf("second Extract = %v, depleted=%v", got, src.Depleted())
	}
	if got := src.Extract(10); got != 0 {
		t.Fatalf("Extract on a depleted source = %v", got)
	}
}
