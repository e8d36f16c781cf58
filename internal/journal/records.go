package journal

import (
	"fmt"

	"github.com/signalsfoundry/universe-simulator/core"
	"github.com/signalsfoundry/universe-simulator/model"
)

// KindLocation tags location records.
const KindLocation = "Location"

// LocationRecord is the persisted form of a location. Callbacks are not
// persisted.
type LocationRecord struct {
	ID          int                  `json:"id"`
	Parent      string               `json:"parent,omitempty"`
	Coordinates model.Vec3           `json:"coordinates"`
	Orientation model.Vec3           `json:"orientation"`
	Strategy    core.EncodedStrategy `json:"movement_strategy"`
}

// EncodeLocation converts loc to its record.
func EncodeLocation(loc *model.Location) (LocationRecord, error) {
	if loc == nil {
		return LocationRecord{}, fmt.Errorf("%w: nil location", ErrMalformed)
	}
	strategy, err := core.EncodeStrategy(loc.Strategy)
	if err != nil {
		return LocationRecord{}, fmt.Errorf("location %d: %w", loc.ID, err)
	}
	return LocationRecord{
		ID:          loc.ID,
		Parent:      loc.Parent,
		Coordinates: loc.Coordinates,
		Orientation: loc.Orientation,
		Strategy:    strategy,
	}, nil
}

// Location rebuilds the location described by the record.
func (r LocationRecord) Location() (*model.Location, error) {
	strategy, err := core.DecodeStrategy(r.Strategy)
	if err != nil {
		return nil, fmt.Errorf("location %d: %w", r.ID, err)
	}
	return &model.Location{
		ID:          r.ID,
		Parent:      r.Parent,
		Coordinates: r.Coordinates,
		Orientation: r.Orientation,
		Strategy:    strategy,
	}, nil
}

// ShipRecord is the persisted form of a ship.
type ShipRecord struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	Type             model.ShipType `json:"type"`
	System           string         `json:"system"`
	FleetID          string         `json:"fleet_id,omitempty"`
	Location         LocationRecord `json:"location"`
	HP               float64        `json:"hp"`
	MaxHP            float64        `json:"max_hp"`
	Resources        model.Cargo    `json:"resources,omitempty"`
	CargoCapacity    float64        `json:"cargo_capacity"`
	TransferDistance float64        `json:"transfer_distance"`
	AttackDistance   float64        `json:"attack_distance"`
	Damage           float64        `json:"damage"`
	MiningDistance   float64        `json:"mining_distance"`
	MiningQuantity   float64        `json:"mining_quantity"`
}

// StationRecord is the persisted form of a station.
type StationRecord struct {
	ID                   string            `json:"id"`
	UserID               string            `json:"user_id"`
	Type                 model.StationType `json:"type"`
	System               string            `json:"system"`
	Location             LocationRecord    `json:"location"`
	Resources            model.Cargo       `json:"resources,omitempty"`
	CargoCapacity        float64           `json:"cargo_capacity"`
	TransferDistance     float64           `json:"transfer_distance"`
	ConstructionDistance float64           `json:"construction_distance"`
	DockingDistance      float64           `json:"docking_distance"`
}

// WriteEntity appends e to w tagged with its kind. Only ships and stations
// have a persisted form.
func WriteEntity(w *Writer, e model.Entity) error {
	loc, err := EncodeLocation(e.GetLocation())
	if err != nil {
		return err
	}
	switch v := e.(type) {
	case *model.Ship:
		return w.Write(string(model.KindShip), ShipRecord{
			ID: v.ID, UserID: v.UserID, Type: v.Type, System: v.System, FleetID: v.FleetID,
			Location: loc, HP: v.HP, MaxHP: v.MaxHP,
			Resources: v.Resources.Clone(), CargoCapacity: v.CargoCapacity,
			TransferDistance: v.TransferDistance, AttackDistance: v.AttackDistance,
			Damage: v.Damage, MiningDistance: v.MiningDistance, MiningQuantity: v.MiningQuantity,
		})
	case *model.Station:
		return w.Write(string(model.KindStation), StationRecord{
			ID: v.ID, UserID: v.UserID, Type: v.Type, System: v.System,
			Location: loc, Resources: v.Resources.Clone(), CargoCapacity: v.CargoCapacity,
			TransferDistance: v.TransferDistance, ConstructionDistance: v.ConstructionDistance,
			DockingDistance: v.DockingDistance,
		})
	default:
		return fmt.Errorf("no persisted form for %s %q", e.GetKind(), e.GetID())
	}
}

// ReadEntity decodes a ship or station record. ok is false for records of
// any other kind.
func ReadEntity(rec Record) (e model.Entity, ok bool, err error) {
	switch model.Kind(rec.Kind) {
	case model.KindShip:
		var r ShipRecord
		if err := rec.Decode(&r); err != nil {
			return nil, true, err
		}
		loc, err := r.Location.Location()
		if err != nil {
			return nil, true, err
		}
		return &model.Ship{
			ID: r.ID, UserID: r.UserID, Type: r.Type, System: r.System, FleetID: r.FleetID,
			Location: loc, HP: r.HP, MaxHP: r.MaxHP,
			Resources: r.Resources.Clone(), CargoCapacity: r.CargoCapacity,
			TransferDistance: r.TransferDistance, AttackDistance: r.AttackDistance,
			Damage: r.Damage, MiningDistance: r.MiningDistance, MiningQuantity: r.MiningQuantity,
		}, true, nil
	case model.KindStation:
		var r StationRecord
		if err := rec.Decode(&r); err != nil {
			return nil, true, err
		}
		loc, err := r.Location.Location()
		if err != nil {
			return nil, true, err
		}
		return &model.Station{
			ID: r.ID, UserID: r.UserID, Type: r.Type, System: r.System,
			Location: loc, Resources: r.Resources.Clone(), CargoCapacity: r.CargoCapacity,
			TransferDistance: r.TransferDistance, ConstructionDistance: r.ConstructionDistance,
			DockingDistance: r.DockingDistance,
		}, true, nil
	default:
		return nil, false, nil
	}
}
