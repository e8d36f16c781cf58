package model

import (
	"errors"
	"maps"
)

var (
	// ErrInvalidEntity indicates an entity failed structural validation.
	ErrInvalidEntity = errors.New("invalid entity")
	// ErrCargoFull indicates a holder cannot accept more resources.
	ErrCargoFull = errors.New("cargo capacity exceeded")
	// ErrInsufficientResource indicates a holder does not carry enough of a resource.
	ErrInsufficientResource = errors.New("insufficient resource")
	// ErrInvalidQuantity indicates a non-positive transfer quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Kind names a concrete entity type. It doubles as the record tag in
// persisted state streams.
type Kind string

const (
	KindShip    Kind = "Ship"
	KindStation Kind = "Station"
	KindFleet   Kind = "Fleet"
	KindLoot    Kind = "Loot"
)

// Entity is implemented by every manufactured entity tracked by the registry.
type Entity interface {
	GetID() string
	GetKind() Kind
	GetUserID() string
	// GetParent returns the name of the containing system.
	GetParent() string
	GetLocation() *Location
	Validate() error
}

// ResourceHolder is an entity carrying cargo that can take part in
// resource transfers.
type ResourceHolder interface {
	Entity
	CanTransfer(to ResourceHolder, resourceID string, quantity float64) bool
	CanAccept(resourceID string, quantity float64) bool
	AddResource(resourceID string, quantity float64) error
	RemoveResource(resourceID string, quantity float64) error
	Quantity(resourceID string) float64
	CargoEmpty() bool
}

// Cargo maps resource ids to carried quantities.
type Cargo map[string]float64

// Total returns the sum of all carried quantities.
func (c Cargo) Total() float64 {
	var total float64
	for _, q := range c {
		total += q
	}
	return total
}

// Empty reports whether nothing is carried.
func (c Cargo) Empty() bool {
	return c.Total() <= 0
}

// Clone returns an independent copy of the cargo.
func (c Cargo) Clone() Cargo {
	if c == nil {
		return Cargo{}
	}
	return maps.Clone(c)
}

func (c Cargo) validate() error {
	for id, q := range c {
		if id == "" || q < 0 {
			return ErrInvalidEntity
		}
	}
	return nil
}

// take removes quantity of resourceID, deleting exhausted entries.
func (c Cargo) take(resourceID string, quantity float64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	have := c[resourceID]
	if have < quantity {
		return ErrInsufficientResource
	}
	if have-quantity <= CloseEnough {
		delete(c, resourceID)
		return nil
	}
	c[resourceID] = have - quantity
	return nil
}

// withinReach reports whether two entities share a system and sit no
// further apart than distance.
func withinReach(a, b Entity, distance float64) bool {
	if a == nil || b == nil {
		return false
	}
	if a.GetParent() != b.GetParent() {
		return false
	}
	la, lb := a.GetLocation(), b.GetLocation()
	if la == nil || lb == nil {
		return false
	}
	return la.DistanceTo(lb) <= distance
}

func sameEntity(a, b Entity) bool {
	return a.GetKind() == b.GetKind() && a.GetID() == b.GetID()
}
