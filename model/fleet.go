package model

import (
	"fmt"
	"slices"
)

// Fleet groups ships owned by one user inside one system.
type Fleet struct {
	ID      string
	UserID  string
	System  string
	ShipIDs []string

	Location *Location
}

func (f *Fleet) GetID() string          { return f.ID }
func (f *Fleet) GetKind() Kind          { return KindFleet }
func (f *Fleet) GetUserID() string      { return f.UserID }
func (f *Fleet) GetParent() string      { return f.System }
func (f *Fleet) GetLocation() *Location { return f.Location }

// Validate checks the fleet's structure. Fleets need not have a location.
func (f *Fleet) Validate() error {
	switch {
	case f.ID == "":
		return fmt.Errorf("%w: fleet id is empty", ErrInvalidEntity)
	case f.UserID == "":
		return fmt.Errorf("%w: fleet %q has no user", ErrInvalidEntity, f.ID)
	}
	for _, id := range f.ShipIDs {
		if id == "" {
			return fmt.Errorf("%w: fleet %q references an empty ship id", ErrInvalidEntity, f.ID)
		}
	}
	return nil
}

// AddShip adds a ship to the fleet, linking the ship back to it.
func (f *Fleet) AddShip(s *Ship) {
	if s == nil || slices.Contains(f.ShipIDs, s.ID) {
		return
	}
	f.ShipIDs = append(f.ShipIDs, s.ID)
	s.FleetID = f.ID
}

// RemoveShip drops a ship id from the fleet.
func (f *Fleet) RemoveShip(id string) {
	f.ShipIDs = slices.DeleteFunc(f.ShipIDs, func(s string) bool { return s == id })
}
