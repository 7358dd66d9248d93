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

const reservationFrom = `
	FROM reservations r
	JOIN pharmacies p ON p.id = r.pharmacy_id
	JOIN medications m ON m.id = r.medication_id
	JOIN clients c ON c.id = r.client_id
`

const reservationSelect = `
	SELECT r.id, r.client_id, r.pharmacy_id, r.medication_id, r.patient_name, r.quantity, r.status,
	       r.total_amount, r.created_at, r.expires_at, r.updated_at,
	       p.name AS pharmacy_name, m.name AS medication_name, c.user_id AS client_user_id
` + reservationFrom

// ReservationRepository implements domain.ReservationRepository with sqlx
type ReservationRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *sqlx.DB, logger *slog.Logger) *ReservationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReservationRepository{db: db, logger: logger}
}

// Create inserts a reservation and fills in its id
func (r *ReservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	query := `
		INSERT INTO reservations (client_id, pharmacy_id, medication_id, patient_name, quantity, status,
		                          total_amount, created_at, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := get(ctx, r.db, &res.ID, query,
		res.ClientID, res.PharmacyID, res.MedicationID, res.PatientName, res.Quantity, res.Status,
		res.TotalAmount, res.CreatedAt, res.ExpiresAt, res.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create reservation",
			slog.Int64("client_id", res.ClientID),
			slog.Int64("pharmacy_id", res.PharmacyID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

// GetByID retrieves a reservation with pharmacy and medication names
func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	if err := get(ctx, r.db, res, reservationSelect+` WHERE r.id = ?`, id); err != nil {
		return nil, wrapGet(notFound(err, fmt.Sprintf("reservation %d", id)), "reservation")
	}
	return res, nil
}

func reservationWhere(f domain.ReservationFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.ClientUserID != "" {
		where = append(where, "c.user_id = ?")
		args = append(args, f.ClientUserID)
	}
	if f.PharmacyID > 0 {
		where = append(where, "r.pharmacy_id = ?")
		args = append(args, f.PharmacyID)
	}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, f.Status)
	}
	if f.Date != nil {
		d := f.Date.UTC()
		start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		where = append(where, "r.created_at >= ? AND r.created_at < ?")
		args = append(args, start, start.AddDate(0, 0, 1))
	}
	if !f.Since.IsZero() {
		where = append(where, "r.created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := likePattern(s)
		where = append(where, "(LOWER(r.patient_name) LIKE ? OR LOWER(m.name) LIKE ? OR LOWER(p.name) LIKE ?)")
		args = append(args, p, p, p)
	}

	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// List returns one page of matching reservations, newest first, and the total match count
func (r *ReservationRepository) List(ctx context.Context, filter domain.ReservationFilter) ([]*domain.Reservation, int, error) {
	where, args := reservationWhere(filter)

	var total int
	if err := get(ctx, r.db, &total, `SELECT COUNT(*) `+reservationFrom+where, args...); err != nil {
		r.logger.Error("failed to count reservations", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	query := reservationSelect + where + " ORDER BY r.created_at DESC, r.id ASC"
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.PageSize, (page-1)*filter.PageSize)
	}

	out := []*domain.Reservation{}
	if err := selectAll(ctx, r.db, &out, query, args...); err != nil {
		r.logger.Error("failed to list reservations", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list reservations: %w", err)
	}
	return out, total, nil
}

// Update writes the mutable fields while the stored status still equals from
func (r *ReservationRepository) Update(ctx context.Context, res *domain.Reservation, from domain.ReservationStatus) error {
	query := `
		UPDATE reservations
		SET patient_name = ?, quantity = ?, status = ?, total_amount = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	rows, err := exec(ctx, r.db, query,
		res.PatientName, res.Quantity, res.Status, res.TotalAmount, res.UpdatedAt, res.ID, from,
	)
	if err != nil {
		r.logger.Error("failed to update reservation",
			slog.Int64("id", res.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Either the row is gone or its status moved on underneath us
	var n int
	if err := get(ctx, r.db, &n, `SELECT COUNT(*) FROM reservations WHERE id = ?`, res.ID); err != nil {
		return fmt.Errorf("failed to check reservation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: reservation %d", domain.ErrNotFound, res.ID)
	}
	return fmt.Errorf("%w: reservation %d is no longer %s", domain.ErrInvalidTransition, res.ID, from)
}

// Delete removes a reservation permanently
func (r *ReservationRepository) Delete(ctx context.Context, id int64) error {
	rows, err := exec(ctx, r.db, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: reservation %d", domain.ErrNotFound, id)
	}
	return nil
}

// Stats counts matching reservations per status. Today counts those created in [dayStart, dayEnd).
func (r *ReservationRepository) Stats(ctx context.Context, filter domain.ReservationFilter, dayStart, dayEnd time.Time) (*domain.ReservationStats, error) {
	where, args := reservationWhere(filter)
	query := `
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN r.status = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
		       COALESCE(SUM(CASE WHEN r.status = 'confirmed' THEN 1 ELSE 0 END), 0) AS confirmed,
		       COALESCE(SUM(CASE WHEN r.status = 'cancelled' THEN 1 ELSE 0 END), 0) AS cancelled,
		       COALESCE(SUM(CASE WHEN r.status = 'fulfilled' THEN 1 ELSE 0 END), 0) AS fulfilled,
		       COALESCE(SUM(CASE WHEN r.created_at >= ? AND r.created_at < ? THEN 1 ELSE 0 END), 0) AS today
	` + reservationFrom + where

	stats := &domain.ReservationStats{}
	if err := get(ctx, r.db, stats, query, append([]any{dayStart, dayEnd}, args...)...); err != nil {
		return nil, fmt.Errorf("failed to compute reservation stats: %w", err)
	}
	return stats, nil
}

// ListDue returns open reservations whose expiry has passed
func (r *ReservationRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.Reservation, error) {
	query := reservationSelect + `
		WHERE r.status IN ('pending', 'confirmed') AND r.expires_at <= ?
		ORDER BY r.id ASC
	`
	out := []*domain.Reservation{}
	if err := selectAll(ctx, r.db, &out, query, now); err != nil {
		return nil, fmt.Errorf("failed to list due reservations: %w", err)
	}
	return out, nil
}
