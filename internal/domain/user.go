package domain

import (
	"context"
	"time"
)

// Role is the access role carried by a user account.
type Role string

const (
	RoleClient     Role = "client"
	RolePharmacist Role = "pharmacist"
	RoleAdmin      Role = "admin"
)

var roleLevels = map[Role]int{
	RoleClient:     1,
	RolePharmacist: 2,
	RoleAdmin:      3,
}

// Level returns the rank of the role in the hierarchy, 0 for unknown roles.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// HasAtLeastRole reports whether role ranks at or above required.
func HasAtLeastRole(role, required Role) bool {
	return role.Level() >= required.Level()
}

// User represents an account
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"fullName"`
	Role         Role       `db:"role" json:"role"`
	Address      *string    `db:"address" json:"address,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	DateOfBirth  *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// ClientProfile is the role row of a patient account
type ClientProfile struct {
	ID        int64  `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"userId"`
	IsPremium bool   `db:"is_premium" json:"isPremium"`
}

// PharmacistProfile is the role row of a pharmacy staff account.
// PharmacyID stays nil until the pharmacist is linked to a pharmacy.
type PharmacistProfile struct {
	ID            int64  `db:"id" json:"id"`
	UserID        string `db:"user_id" json:"userId"`
	LicenseNumber string `db:"license_number" json:"licenseNumber"`
	PharmacyID    *int64 `db:"pharmacy_id" json:"pharmacyId,omitempty"`
}

// AdminProfile is the role row of an administrator
type AdminProfile struct {
	ID     int64  `db:"id" json:"id"`
	UserID string `db:"user_id" json:"userId"`
}

// Profile is a user together with the profile row matching its role.
// Exactly one of Client, Pharmacist and Admin is set.
type Profile struct {
	User       *User              `json:"user"`
	Client     *ClientProfile     `json:"client,omitempty"`
	Pharmacist *PharmacistProfile `json:"pharmacist,omitempty"`
	Admin      *AdminProfile      `json:"admin,omitempty"`
}

// PharmacyID returns the pharmacy a pharmacist profile is linked to, or 0.
func (p *Profile) PharmacyID() int64 {
	if p == nil || p.Pharmacist == nil || p.Pharmacist.PharmacyID == nil {
		return 0
	}
	return *p.Pharmacist.PharmacyID
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// ProfileRepository defines data access for the role profile tables
type ProfileRepository interface {
	CreateClient(ctx context.Context, profile *ClientProfile) error
	CreatePharmacist(ctx context.Context, profile *PharmacistProfile) error
	CreateAdmin(ctx context.Context, profile *AdminProfile) error
	GetClientByUserID(ctx context.Context, userID string) (*ClientProfile, error)
	GetPharmacistByUserID(ctx context.Context, userID string) (*PharmacistProfile, error)
	GetAdminByUserID(ctx context.Context, userID string) (*AdminProfile, error)
	LinkPharmacy(ctx context.Context, pharmacistID, pharmacyID int64) error
}

// Transactor runs fn inside a single database transaction. Repositories called
// with the context handed to fn take part in that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
