package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

// inventoryRow is an inventory entry joined with its medication
type inventoryRow struct {
	PharmacyID   int64     `db:"pharmacy_id"`
	MedicationID int64     `db:"medication_id"`
	Quantity     int       `db:"quantity"`
	UpdatedAt    time.Time `db:"updated_at"`
	Name         string    `db:"name"`
	GenericName  string    `db:"generic_name"`
	Category     string    `db:"category"`
	Price        float64   `db:"price"`
	Description  string    `db:"description"`
	CreatedAt    time.Time `db:"created_at"`
}

func (row inventoryRow) entry() *domain.InventoryEntry {
	return &domain.InventoryEntry{
		PharmacyID:   row.PharmacyID,
		MedicationID: row.MedicationID,
		Quantity:     row.Quantity,
		UpdatedAt:    row.UpdatedAt,
		Medication: &domain.Medication{
			ID:          row.MedicationID,
			Name:        row.Name,
			GenericName: row.GenericName,
			Category:    row.Category,
			Price:       row.Price,
			Description: row.Description,
			CreatedAt:   row.CreatedAt,
		},
	}
}

// InventoryRepository implements domain.InventoryRepository with sqlx
type InventoryRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *sqlx.DB, logger *slog.Logger) *InventoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &InventoryRepository{db: db, logger: logger}
}

// Upsert sets qty for (pharmacy, medication), creating the row if needed
func (r *InventoryRepository) Upsert(ctx context.Context, e *domain.InventoryEntry) error {
	query := `
		INSERT INTO inventory (pharmacy_id, medication_id, quantity, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (pharmacy_id, medication_id) DO UPDATE
		SET quantity = excluded.quantity, updated_at = excluded.updated_at
	`
	if _, err := exec(ctx, r.db, query, e.PharmacyID, e.MedicationID, e.Quantity, e.UpdatedAt); err != nil {
		r.logger.Error("failed to upsert inventory",
			slog.Int64("pharmacy_id", e.PharmacyID),
			slog.Int64("medication_id", e.MedicationID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to upsert inventory: %w", err)
	}
	return nil
}

// ListByPharmacy returns every stock row of a pharmacy with its medication attached.
func (r *InventoryRepository) ListByPharmacy(ctx context.Context, pharmacyID int64) ([]*domain.InventoryEntry, error) {
	query := `
		SELECT i.pharmacy_id, i.medication_id, i.quantity, i.updated_at,
		       m.name, m.generic_name, m.category, m.price, m.description, m.created_at
		FROM inventory i
		JOIN medications m ON m.id = i.medication_id
		WHERE i.pharmacy_id = ?
		ORDER BY i.quantity DESC, i.medication_id ASC
	`
	var rows []inventoryRow
	if err := selectAll(ctx, r.db, &rows, query, pharmacyID); err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}

	out := make([]*domain.InventoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entry())
	}
	return out, nil
}

// Decrement atomically subtracts qty units if enough stock exists
func (r *InventoryRepository) Decrement(ctx context.Context, pharmacyID, medicationID int64, qty int, at time.Time) error {
	query := `
		UPDATE inventory
		SET quantity = quantity - ?, updated_at = ?
		WHERE pharmacy_id = ? AND medication_id = ? AND quantity >= ?
	`
	rows, err := exec(ctx, r.db, query, qty, at, pharmacyID, medicationID, qty)
	if err != nil {
		return fmt.Errorf("failed to decrement inventory: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: medication %d at pharmacy %d", domain.ErrInsufficientStock, medicationID, pharmacyID)
	}
	return nil
}

// Increment adds qty units, creating the row if needed
func (r *InventoryRepository) Increment(ctx context.Context, pharmacyID, medicationID int64, qty int, at time.Time) error {
	query := `
		INSERT INTO inventory (pharmacy_id, medication_id, quantity, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (pharmacy_id, medication_id) DO UPDATE
		SET quantity = inventory.quantity + excluded.quantity, updated_at = excluded.updated_at
	`
	if _, err := exec(ctx, r.db, query, pharmacyID, medicationID, qty, at); err != nil {
		return fmt.Errorf("failed to increment inventory: %w", err)
	}
	return nil
}
