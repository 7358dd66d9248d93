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

const pharmacySelect = `
	SELECT p.id, p.name, p.address, p.phone, p.opening_hours, p.is_approved, p.status,
	       p.latitude, p.longitude, p.created_at, p.updated_at,
	       COALESCE((SELECT AVG(rv.rating) FROM reviews rv WHERE rv.pharmacy_id = p.id), 0) AS average_rating
	FROM pharmacies p
`

// PharmacyRepository implements domain.PharmacyRepository with sqlx
type PharmacyRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPharmacyRepository creates a new pharmacy repository
func NewPharmacyRepository(db *sqlx.DB, logger *slog.Logger) *PharmacyRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PharmacyRepository{db: db, logger: logger}
}

// Create inserts a pharmacy and fills in its id
func (r *PharmacyRepository) Create(ctx context.Context, p *domain.Pharmacy) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	if p.Status == "" {
		p.Status = domain.PharmacyPending
	}

	query := `
		INSERT INTO pharmacies (name, address, phone, opening_hours, is_approved, status, latitude, longitude, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := get(ctx, r.db, &p.ID, query,
		p.Name, p.Address, p.Phone, p.OpeningHours, p.IsApproved, p.Status,
		p.Latitude, p.Longitude, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create pharmacy",
			slog.String("name", p.Name),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create pharmacy: %w", err)
	}
	return nil
}

// GetByID retrieves a pharmacy with its average rating
func (r *PharmacyRepository) GetByID(ctx context.Context, id int64) (*domain.Pharmacy, error) {
	p := &domain.Pharmacy{}
	if err := get(ctx, r.db, p, pharmacySelect+` WHERE p.id = ?`, id); err != nil {
		return nil, wrapGet(notFound(err, fmt.Sprintf("pharmacy %d", id)), "pharmacy")
	}
	return p, nil
}

// List returns pharmacies ordered by name
func (r *PharmacyRepository) List(ctx context.Context, filter domain.PharmacyFilter) ([]*domain.Pharmacy, error) {
	var (
		where []string
		args  []any
	)
	if filter.ApprovedOnly {
		where = append(where, "p.is_approved = ?")
		args = append(args, true)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, "(LOWER(p.name) LIKE ? OR LOWER(p.address) LIKE ?)")
		args = append(args, likePattern(s), likePattern(s))
	}

	query := pharmacySelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.name ASC, p.id ASC"

	out := []*domain.Pharmacy{}
	if err := selectAll(ctx, r.db, &out, query, args...); err != nil {
		r.logger.Error("failed to list pharmacies", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list pharmacies: %w", err)
	}
	return out, nil
}

// SetApproval records an admin decision on a pharmacy
func (r *PharmacyRepository) SetApproval(ctx context.Context, id int64, status domain.PharmacyStatus, at time.Time) error {
	query := `UPDATE pharmacies SET is_approved = ?, status = ?, updated_at = ? WHERE id = ?`
	rows, err := exec(ctx, r.db, query, status == domain.PharmacyApproved, status, at, id)
	if err != nil {
		return fmt.Errorf("failed to update pharmacy approval: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: pharmacy %d", domain.ErrNotFound, id)
	}
	return nil
}

// ReviewRepository implements domain.ReviewRepository with sqlx
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO reviews (client_id, pharmacy_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`
	if err := get(ctx, r.db, &rv.ID, query, rv.ClientID, rv.PharmacyID, rv.Rating, rv.Comment, rv.CreatedAt); err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// ListByPharmacy returns the newest reviews first
func (r *ReviewRepository) ListByPharmacy(ctx context.Context, pharmacyID int64) ([]*domain.Review, error) {
	query := `
		SELECT rv.id, rv.client_id, rv.pharmacy_id, rv.rating, rv.comment, rv.created_at, u.full_name AS client_name
		FROM reviews rv
		JOIN clients c ON c.id = rv.client_id
		JOIN users u ON u.id = c.user_id
		WHERE rv.pharmacy_id = ?
		ORDER BY rv.created_at DESC, rv.id DESC
	`
	out := []*domain.Review{}
	if err := selectAll(ctx, r.db, &out, query, pharmacyID); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return out, nil
}
