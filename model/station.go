package model

import "fmt"

// StationType is the role of a station.
type StationType string

const (
	StationDefense       StationType = "defense"
	StationOffense       StationType = "offense"
	StationMining        StationType = "mining"
	StationExploration   StationType = "exploration"
	StationScience       StationType = "science"
	StationTechnology    StationType = "technology"
	StationManufacturing StationType = "manufacturing"
	StationCommerce      StationType = "commerce"
)

var stationTypes = map[StationType]bool{
	StationDefense: true, StationOffense: true, StationMining: true,
	StationExploration: true, StationScience: true, StationTechnology: true,
	StationManufacturing: true, StationCommerce: true,
}

// Station defaults applied by NewStation.
const (
	DefaultStationCargoCapacity        = 10000
	DefaultStationTransferDistance     = 100
	DefaultStationConstructionDistance = 50
	DefaultStationDockingDistance      = 100
)

// Station is a stationary entity that stores cargo and constructs other
// entities.
type Station struct {
	ID     string
	UserID string
	Type   StationType
	System string

	Location *Location

	Resources     Cargo
	CargoCapacity float64

	TransferDistance     float64
	ConstructionDistance float64
	DockingDistance      float64
}

// NewStation returns a station with default cargo and reach attributes.
func NewStation(id, userID string, typ StationType, system string, loc *Location) *Station {
	return &Station{
		ID:                   id,
		UserID:               userID,
		Type:                 typ,
		System:               system,
		Location:             loc,
		Resources:            Cargo{},
		CargoCapacity:        DefaultStationCargoCapacity,
		TransferDistance:     DefaultStationTransferDistance,
		ConstructionDistance: DefaultStationConstructionDistance,
		DockingDistance:      DefaultStationDockingDistance,
	}
}

func (s *Station) GetID() string          { return s.ID }
func (s *Station) GetKind() Kind          { return KindStation }
func (s *Station) GetUserID() string      { return s.UserID }
func (s *Station) GetParent() string      { return s.System }
func (s *Station) GetLocation() *Location { return s.Location }

func (s *Station) String() string { return fmt.Sprintf("station(%s)", s.ID) }

// Validate checks the station's structure.
func (s *Station) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: station id is empty", ErrInvalidEntity)
	case s.UserID == "":
		return fmt.Errorf("%w: station %q has no user", ErrInvalidEntity, s.ID)
	case !stationTypes[s.Type]:
		return fmt.Errorf("%w: station %q has unknown type %q", ErrInvalidEntity, s.ID, s.Type)
	case s.Location == nil:
		return fmt.Errorf("%w: station %q has no location", ErrInvalidEntity, s.ID)
	case s.CargoCapacity < 0 || s.Resources.validate() != nil:
		return fmt.Errorf("%w: station %q has invalid cargo", ErrInvalidEntity, s.ID)
	case s.Resources.Total() > s.CargoCapacity:
		return fmt.Errorf("%w: station %q cargo exceeds capacity", ErrInvalidEntity, s.ID)
	}
	return nil
}

// Quantity returns how much of resourceID the station stores.
func (s *Station) Quantity(resourceID string) float64 { return s.Resources[resourceID] }

// CargoEmpty reports whether the station stores nothing.
func (s *Station) CargoEmpty() bool { return s.Resources.Empty() }

// CanTransfer reports whether the station may hand quantity of resourceID to to.
func (s *Station) CanTransfer(to ResourceHolder, resourceID string, quantity float64) bool {
	if to == nil || quantity <= 0 || sameEntity(s, to) {
		return false
	}
	if s.Resources[resourceID] < quantity {
		return false
	}
	return withinReach(s, to, s.TransferDistance)
}

// CanAccept reports whether the station has room for quantity more cargo.
func (s *Station) CanAccept(resourceID string, quantity float64) bool {
	if resourceID == "" || quantity <= 0 {
		return false
	}
	return s.Resources.Total()+quantity <= s.CargoCapacity+CloseEnough
}

// AddResource stores quantity of resourceID.
func (s *Station) AddResource(resourceID string, quantity float64) error {
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

// RemoveResource takes quantity of resourceID out of storage.
func (s *Station) RemoveResource(resourceID string, quantity float64) error {
	if err := s.Resources.take(resourceID, quantity); err != nil {
		return fmt.Errorf("%s: remove %.2f %s: %w", s, quantity, resourceID, err)
	}
	return nil
}

// CanConstruct reports whether the station may build at location loc.
func (s *Station) CanConstruct(loc *Location) bool {
	if s.Location == nil || loc == nil {
		return false
	}
	return s.Location.DistanceTo(loc) <= s.ConstructionDistance
}
