package domain

import (
	"context"
	"time"
)

// InventoryEntry is the on-hand quantity of one medication at one pharmacy
type InventoryEntry struct {
	PharmacyID   int64       `json:"pharmacyId"`
	MedicationID int64       `json:"medicationId"`
	Quantity     int         `json:"quantity"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	Medication   *Medication `json:"medication,omitempty"`
}

// InventoryRepository defines data access for stock levels
type InventoryRepository interface {
	// Upsert sets the quantity of the (pharmacy, medication) pair
	Upsert(ctx context.Context, entry *InventoryEntry) error
	// ListByPharmacy returns entries ordered by quantity descending, then medication id
	ListByPharmacy(ctx context.Context, pharmacyID int64) ([]*InventoryEntry, error)
	// Decrement removes qty units only if at least qty are on hand, else ErrInsufficientStock
	Decrement(ctx context.Context, pharmacyID, medicationID int64, qty int, at time.Time) error
	Increment(ctx context.Context, pharmacyID, medicationID int64, qty int, at time.Time) error
}
