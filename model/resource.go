package model

import "fmt"

// ResourceSource is a deposit of a single resource attached to a celestial
// entity (typically an asteroid) that ships can mine.
type ResourceSource struct {
	EntityID   string
	ResourceID string
	Quantity   float64
	System     string
	Location   *Location
}

// ID identifies the source by its entity and resource.
func (r *ResourceSource) ID() string {
	return fmt.Sprintf("%s_%s", r.EntityID, r.ResourceID)
}

// Depleted reports whether nothing is left to mine.
func (r *ResourceSource) Depleted() bool { return r.Quantity <= 0 }

// Extract removes up to quantity from the deposit and returns the amount
// actually taken.
func (r *ResourceSource) Extract(quantity float64) float64 {
	if quantity <= 0 || r.Depleted() {
		return 0
	}
	if quantity > r.Quantity {
		quantity = r.Quantity
	}
	r.Quantity -= quantity
	return quantity
}
