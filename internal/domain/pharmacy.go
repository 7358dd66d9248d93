package domain

import (
	"context"
	"time"
)

// PharmacyStatus tracks the admin approval workflow of a pharmacy
type PharmacyStatus string

const (
	PharmacyPending  PharmacyStatus = "pending"
	PharmacyApproved PharmacyStatus = "approved"
	PharmacyRejected PharmacyStatus = "rejected"
)

// Pharmacy is a partner pharmacy. AverageRating is derived from reviews.
type Pharmacy struct {
	ID            int64          `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Address       string         `db:"address" json:"address"`
	Phone         string         `db:"phone" json:"phone"`
	OpeningHours  string         `db:"opening_hours" json:"openingHours"`
	IsApproved    bool           `db:"is_approved" json:"isApproved"`
	Status        PharmacyStatus `db:"status" json:"status"`
	Latitude      *float64       `db:"latitude" json:"latitude,omitempty"`
	Longitude     *float64       `db:"longitude" json:"longitude,omitempty"`
	AverageRating float64        `db:"average_rating" json:"averageRating"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// PharmacyFilter narrows pharmacy listings
type PharmacyFilter struct {
	ApprovedOnly bool
	Search       string
}

// Review is a client rating of a pharmacy
type Review struct {
	ID         int64     `db:"id" json:"id"`
	ClientID   int64     `db:"client_id" json:"clientId"`
	PharmacyID int64     `db:"pharmacy_id" json:"pharmacyId"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    string    `db:"comment" json:"comment"`
	ClientName string    `db:"client_name" json:"clientName,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// PharmacyRepository defines data access for pharmacies
type PharmacyRepository interface {
	Create(ctx context.Context, pharmacy *Pharmacy) error
	GetByID(ctx context.Context, id int64) (*Pharmacy, error)
	List(ctx context.Context, filter PharmacyFilter) ([]*Pharmacy, error)
	SetApproval(ctx context.Context, id int64, status PharmacyStatus, at time.Time) error
}

// ReviewRepository defines data access for reviews
type ReviewRepository interface {
	Create(ctx context.Context, review *Review) error
	ListByPharmacy(ctx context.Context, pharmacyID int64) ([]*Review, error)
}
