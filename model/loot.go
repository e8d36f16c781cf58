package model

import "fmt"

// LootCollectionDistance is how close a holder must be to pick loot up.
const LootCollectionDistance = 100

// LootID returns the id of the loot left behind by a destroyed ship.
func LootID(shipID string) string { return shipID + "-loot" }

// Loot is a bundle of resources floating at a fixed location, typically
// dropped by a destroyed ship.
type Loot struct {
	ID        string
	System    string
	Location  *Location
	Resources Cargo
}

// NewLootFromShip builds the loot record for a destroyed ship. The loot
// stays where the ship was destroyed: its location is a snapshot with no
// strategy or callbacks.
func NewLootFromShip(s *Ship) *Loot {
	var loc *Location
	if s.Location != nil {
		loc = s.Location.Clone()
		loc.Strategy = nil
		loc.MovementCallbacks = nil
		loc.ProximityCallbacks = nil
	}
	return &Loot{
		ID:        LootID(s.ID),
		System:    s.System,
		Location:  loc,
		Resources: s.Resources.Clone(),
	}
}

func (l *Loot) GetID() string          { return l.ID }
func (l *Loot) GetKind() Kind          { return KindLoot }
func (l *Loot) GetUserID() string      { return "" }
func (l *Loot) GetParent() string      { return l.System }
func (l *Loot) GetLocation() *Location { return l.Location }

// Validate checks the loot's structure.
func (l *Loot) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("%w: loot id is empty", ErrInvalidEntity)
	}
	if l.Resources.validate() != nil {
		return fmt.Errorf("%w: loot %q has invalid resources", ErrInvalidEntity, l.ID)
	}
	return nil
}

// TotalQuantity returns the sum of all resources in the loot.
func (l *Loot) TotalQuantity() float64 { return l.Resources.Total() }

// Quantity returns how much of resourceID the loot holds.
func (l *Loot) Quantity(resourceID string) float64 { return l.Resources[resourceID] }

// CargoEmpty reports whether the loot is exhausted.
func (l *Loot) CargoEmpty() bool { return l.Resources.Empty() }

// CanTransfer reports whether quantity of resourceID may be collected by to.
func (l *Loot) CanTransfer(to ResourceHolder, resourceID string, quantity float64) bool {
	if to == nil || quantity <= 0 || sameEntity(l, to) {
		return false
	}
	if l.Resources[resourceID] < quantity {
		return false
	}
	return withinReach(l, to, LootCollectionDistance)
}

// CanAccept is always false: resources cannot be dropped into loot.
func (l *Loot) CanAccept(string, float64) bool { return false }

// AddResource always fails for loot.
func (l *Loot) AddResource(resourceID string, quantity float64) error {
	return fmt.Errorf("%w: loot %q accepts no resources", ErrCargoFull, l.ID)
}

// RemoveResource takes quantity of resourceID out of the loot.
func (l *Loot) RemoveResource(resourceID string, quantity float64) error {
	if err := l.Resources.take(resourceID, quantity); err != nil {
		return fmt.Errorf("loot(%s): remove %.2f %s: %w", l.ID, quantity, resourceID, err)
	}
	return nil
}
