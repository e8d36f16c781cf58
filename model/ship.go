package model

import "fmt"

// ShipType is the hull class of a ship.
type ShipType string

const (
	ShipFrigate       ShipType = "frigate"
	ShipTransport     ShipType = "transport"
	ShipEscort        ShipType = "escort"
	ShipDestroyer     ShipType = "destroyer"
	ShipBomber        ShipType = "bomber"
	ShipCorvette      ShipType = "corvette"
	ShipBattlecruiser ShipType = "battlecruiser"
	ShipExploration   ShipType = "exploration"
	ShipMining        ShipType = "mining"
)

var shipTypes = map[ShipType]bool{
	ShipFrigate: true, ShipTransport: true, ShipEscort: true, ShipDestroyer: true,
	ShipBomber: true, ShipCorvette: true, ShipBattlecruiser: true,
	ShipExploration: true, ShipMining: true,
}

// Ship defaults applied by NewShip.
const (
	DefaultShipHP               = 25
	DefaultShipCargoCapacity    = 100
	DefaultShipTransferDistance = 100
	DefaultShipAttackDistance   = 100
	DefaultShipDamage           = 2
	DefaultShipMiningDistance   = 100
	DefaultShipMiningQuantity   = 10
)

// Ship is a mobile, destructible entity.
type Ship struct {
	ID      string
	UserID  string
	Type    ShipType
	System  string
	FleetID string

	Location *Location

	HP    float64
	MaxHP float64

	Resources     Cargo
	CargoCapacity float64

	TransferDistance float64
	AttackDistance   float64
	Damage           float64
	MiningDistance   float64
	MiningQuantity   float64

	attackTarget string
	miningTarget string
}

// NewShip returns a ship with default combat, cargo and mining attributes.
func NewShip(id, userID string, typ ShipType, system string, loc *Location) *Ship {
	return &Ship{
		ID:               id,
		UserID:           userID,
		Type:             typ,
		System:           system,
		Location:         loc,
		HP:               DefaultShipHP,
		MaxHP:            DefaultShipHP,
		Resources:        Cargo{},
		CargoCapacity:    DefaultShipCargoCapacity,
		TransferDistance: DefaultShipTransferDistance,
		AttackDistance:   DefaultShipAttackDistance,
		Damage:           DefaultShipDamage,
		MiningDistance:   DefaultShipMiningDistance,
		MiningQuantity:   DefaultShipMiningQuantity,
	}
}

func (s *Ship) GetID() string          { return s.ID }
func (s *Ship) GetKind() Kind          { return KindShip }
func (s *Ship) GetUserID() string      { return s.UserID }
func (s *Ship) GetParent() string      { return s.System }
func (s *Ship) GetLocation() *Location { return s.Location }

func (s *Ship) String() string { return fmt.Sprintf("ship(%s)", s.ID) }

// Alive reports whether the ship still has hit points.
func (s *Ship) Alive() bool { return s.HP > 0 }

// Validate checks the ship's structure. Hit points are not checked: a ship
// with no hit points is still a valid (destroyed) ship.
func (s *Ship) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: ship id is empty", ErrInvalidEntity)
	case s.UserID == "":
		return fmt.Errorf("%w: ship %q has no user", ErrInvalidEntity, s.ID)
	case !shipTypes[s.Type]:
		return fmt.Errorf("%w: ship %q has unknown type %q", ErrInvalidEntity, s.ID, s.Type)
	case s.Location == nil:
		return fmt.Errorf("%w: ship %q has no location", ErrInvalidEntity, s.ID)
	case s.CargoCapacity < 0 || s.Resources.validate() != nil:
		return fmt.Errorf("%w: ship %q has invalid cargo", ErrInvalidEntity, s.ID)
	case s.Resources.Total() > s.CargoCapacity:
		return fmt.Errorf("%w: ship %q cargo exceeds capacity", ErrInvalidEntity, s.ID)
	}
	return nil
}

// StartAttacking marks the ship as attacking defender.
func (s *Ship) StartAttacking(defender *Ship) {
	if defender != nil {
		s.attackTarget = defender.ID
	}
}

// StopAttacking clears the attacking state.
func (s *Ship) StopAttacking() { s.attackTarget = "" }

// Attacking reports whether the ship is engaged in combat.
func (s *Ship) Attacking() bool { return s.attackTarget != "" }

// AttackTarget returns the id of the ship currently attacked, if any.
func (s *Ship) AttackTarget() string { return s.attackTarget }

// StartMining marks the ship as mining source.
func (s *Ship) StartMining(source *ResourceSource) {
	if source != nil {
		s.miningTarget = source.ID()
	}
}

// StopMining clears the mining state.
func (s *Ship) StopMining() { s.miningTarget = "" }

// Mining reports whether the ship is extracting resources.
func (s *Ship) Mining() bool { return s.miningTarget != "" }

// MiningTarget returns the id of the resource source being mined, if any.
func (s *Ship) MiningTarget() string { return s.miningTarget }

// Quantity returns how much of resourceID the ship carries.
func (s *Ship) Quantity(resourceID string) float64 { return s.Resources[resourceID] }

// CargoEmpty reports whether the ship carries nothing.
func (s *Ship) CargoEmpty() bool { return s.Resources.Empty() }

// FreeCapacity returns the remaining cargo space.
func (s *Ship) FreeCapacity() float64 {
	free := s.CargoCapacity - s.Resources.Total()
	if free < 0 {
		return 0
	}
	return free
}

// CanTransfer reports whether the ship may hand quantity of resourceID to to.
func (s *Ship) CanTransfer(to ResourceHolder, resourceID string, quantity float64) bool {
	if to == nil || quantity <= 0 || !s.Alive() || sameEntity(s, to) {
		return false
	}
	if s.Resources[resourceID] < quantity {
		return false
	}
	return withinReach(s, to, s.TransferDistance)
}

// CanAccept reports whether the ship has room for quantity more cargo.
func (s *Ship) CanAccept(resourceID string, quantity float64) bool {
	if resourceID == "" || quantity <= 0 || !s.Alive() {
		return false
	}
	return s.Resources.Total()+quantity <= s.CargoCapacity+CloseEnough
}

// AddResource loads quantity of resourceID into the hold.
func (s *Ship) AddResource(resourceID string, quantity float64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !s.CanAccept(resourceID, quantity) {
		return fmt.Errorf("%w: %s cannot take %.2f %s", ErrCargoFull, s, quantity, resourceID)
	}
	if s.Resources == nil {
		s.Resources = Cargo{}
	}
	s.Resources[resourceID] += quantity
	return nil
}

// RemoveResource unloads quantity of resourceID from the hold.
func (s *Ship) RemoveResource(resourceID string, quantity float64) error {
	if err := s.Resources.take(resourceID, quantity); err != nil {
		return fmt.Errorf("%s: remove %.2f %s: %w", s, quantity, resourceID, err)
	}
	return nil
}
