package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

const medicationColumns = `m.id, m.name, m.generic_name, m.category, m.price, m.description, m.created_at`

// MedicationRepository implements domain.MedicationRepository with sqlx
type MedicationRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewMedicationRepository creates a new medication repository
func NewMedicationRepository(db *sqlx.DB, logger *slog.Logger) *MedicationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &MedicationRepository{db: db, logger: logger}
}

func (r *MedicationRepository) Create(ctx context.Context, m *domain.Medication) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO medications (name, generic_name, category, price, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	if err := get(ctx, r.db, &m.ID, query, m.Name, m.GenericName, m.Category, m.Price, m.Description, m.CreatedAt); err != nil {
		r.logger.Error("failed to create medication",
			slog.String("name", m.Name),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create medication: %w", err)
	}
	return nil
}

func (r *MedicationRepository) GetByID(ctx context.Context, id int64) (*domain.Medication, error) {
	m := &domain.Medication{}
	query := `SELECT ` + medicationColumns + ` FROM medications m WHERE m.id = ?`
	if err := get(ctx, r.db, m, query, id); err != nil {
		return nil, wrapGet(notFound(err, fmt.Sprintf("medication %d", id)), "medication")
	}
	return m, nil
}

// Search matches name, generic name and description case-insensitively.
// InStock and PharmacyID restrict results through the inventory table.
func (r *MedicationRepository) Search(ctx context.Context, filter domain.MedicationFilter) ([]*domain.Medication, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		p := likePattern(s)
		where = append(where, "(LOWER(m.name) LIKE ? OR LOWER(m.generic_name) LIKE ? OR LOWER(m.description) LIKE ?)")
		args = append(args, p, p, p)
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		where = append(where, "LOWER(m.category) = ?")
		args = append(args, strings.ToLower(c))
	}
	if filter.InStock || filter.PharmacyID > 0 {
		sub := "EXISTS (SELECT 1 FROM inventory i WHERE i.medication_id = m.id"
		if filter.InStock {
			sub += " AND i.quantity > 0"
		}
		if filter.PharmacyID > 0 {
			sub += " AND i.pharmacy_id = ?"
			args = append(args, filter.PharmacyID)
		}
		where = append(where, sub+")")
	}

	query := `SELECT ` + medicationColumns + ` FROM medications m`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY m.name ASC, m.id ASC"

	out := []*domain.Medication{}
	if err := selectAll(ctx, r.db, &out, query, args...); err != nil {
		r.logger.Error("failed to search medications", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to search medications: %w", err)
	}
	return out, nil
}
