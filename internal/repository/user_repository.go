package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

const userColumns = `id, email, password_hash, full_name, role, address, phone, date_of_birth, created_at, updated_at`

// UserRepository implements domain.UserRepository with sqlx
type UserRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB, logger *slog.Logger) *UserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a user, assigning an id and timestamps when unset
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	query := `
		INSERT INTO users (id, email, password_hash, full_name, role, address, phone, date_of_birth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := exec(ctx, r.db, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.Role,
		user.Address,
		user.Phone,
		user.DateOfBirth,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrEmailTaken, user.Email)
		}
		r.logger.Error("failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user := &domain.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	if err := get(ctx, r.db, user, query, id); err != nil {
		err = notFound(err, "user "+id)
		if !isNotFound(err) {
			r.logger.Error("failed to get user by id",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, wrapGet(err, "user")
	}

	return user, nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user := &domain.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	if err := get(ctx, r.db, user, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return nil, wrapGet(notFound(err, "user"), "user by email")
	}

	return user, nil
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`

	rows, err := exec(ctx, r.db, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}

	return nil
}
