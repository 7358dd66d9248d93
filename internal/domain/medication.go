package domain

import (
	"context"
	"time"
)

// Medication is a catalog entry, independent of any pharmacy
type Medication struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	GenericName string    `db:"generic_name" json:"genericName"`
	Category    string    `db:"category" json:"category"`
	Price       float64   `db:"price" json:"price"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// MedicationFilter narrows catalog searches. PharmacyID 0 means any pharmacy.
type MedicationFilter struct {
	Search     string
	Category   string
	InStock    bool
	PharmacyID int64
}

// MedicationRepository defines data access for the medication catalog
type MedicationRepository interface {
	Create(ctx context.Context, medication *Medication) error
	GetByID(ctx context.Context, id int64) (*Medication, error)
	Search(ctx context.Context, filter MedicationFilter) ([]*Medication, error)
}
