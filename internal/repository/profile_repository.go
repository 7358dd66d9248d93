package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

// ProfileRepository implements domain.ProfileRepository over the
// clients, pharmacists and admins tables
type ProfileRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sqlx.DB, logger *slog.Logger) *ProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileRepository{db: db, logger: logger}
}

func (r *ProfileRepository) CreateClient(ctx context.Context, p *domain.ClientProfile) error {
	query := `INSERT INTO clients (user_id, is_premium) VALUES (?, ?) RETURNING id`
	if err := get(ctx, r.db, &p.ID, query, p.UserID, p.IsPremium); err != nil {
		r.logger.Error("failed to create client profile",
			slog.String("user_id", p.UserID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create client profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) CreatePharmacist(ctx context.Context, p *domain.PharmacistProfile) error {
	query := `INSERT INTO pharmacists (user_id, license_number, pharmacy_id) VALUES (?, ?, ?) RETURNING id`
	if err := get(ctx, r.db, &p.ID, query, p.UserID, p.LicenseNumber, p.PharmacyID); err != nil {
		r.logger.Error("failed to create pharmacist profile",
			slog.String("user_id", p.UserID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create pharmacist profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) CreateAdmin(ctx context.Context, p *domain.AdminProfile) error {
	query := `INSERT INTO admins (user_id) VALUES (?) RETURNING id`
	if err := get(ctx, r.db, &p.ID, query, p.UserID); err != nil {
		return fmt.Errorf("failed to create admin profile: %w", err)
	}
	return nil
}

// GetClientByUserID returns the client row of a user, or ErrNotFound
func (r *ProfileRepository) GetClientByUserID(ctx context.Context, userID string) (*domain.ClientProfile, error) {
	p := &domain.ClientProfile{}
	query := `SELECT id, user_id, is_premium FROM clients WHERE user_id = ?`
	if err := get(ctx, r.db, p, query, userID); err != nil {
		return nil, wrapGet(notFound(err, "client profile"), "client profile")
	}
	return p, nil
}

func (r *ProfileRepository) GetPharmacistByUserID(ctx context.Context, userID string) (*domain.PharmacistProfile, error) {
	p := &domain.PharmacistProfile{}
	query := `SELECT id, user_id, license_number, pharmacy_id FROM pharmacists WHERE user_id = ?`
	if err := get(ctx, r.db, p, query, userID); err != nil {
		return nil, wrapGet(notFound(err, "pharmacist profile"), "pharmacist profile")
	}
	return p, nil
}

func (r *ProfileRepository) GetAdminByUserID(ctx context.Context, userID string) (*domain.AdminProfile, error) {
	p := &domain.AdminProfile{}
	query := `SELECT id, user_id FROM admins WHERE user_id = ?`
	if err := get(ctx, r.db, p, query, userID); err != nil {
		return nil, wrapGet(notFound(err, "admin profile"), "admin profile")
	}
	return p, nil
}

// LinkPharmacy attaches a pharmacist to the pharmacy they work at
func (r *ProfileRepository) LinkPharmacy(ctx context.Context, pharmacistID, pharmacyID int64) error {
	rows, err := exec(ctx, r.db, `UPDATE pharmacists SET pharmacy_id = ? WHERE id = ?`, pharmacyID, pharmacistID)
	if err != nil {
		return fmt.Errorf("failed to link pharmacy: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: pharmacist %d", domain.ErrNotFound, pharmacistID)
	}
	return nil
}
