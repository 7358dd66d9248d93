package domain

import (
	"context"
	"time"
)

// ReservationStatus is a state of the reservation lifecycle
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusFulfilled ReservationStatus = "fulfilled"
)

// DefaultReservationTTL is how long a reservation stays open when the caller
// does not set an expiry.
const DefaultReservationTTL = 24 * time.Hour

var transitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusFulfilled, StatusCancelled},
}

// Valid reports whether s is a known status
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusFulfilled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s ReservationStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusFulfilled
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Keeping the same status is always allowed.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	if s == next {
		return next.Valid()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reservation is a patient's hold on a medication at a pharmacy.
// PharmacyName, MedicationName and ClientUserID are read-side joins.
type Reservation struct {
	ID             int64             `db:"id" json:"id"`
	ClientID       int64             `db:"client_id" json:"clientId"`
	PharmacyID     int64             `db:"pharmacy_id" json:"pharmacyId"`
	MedicationID   int64             `db:"medication_id" json:"medicationId"`
	PatientName    string            `db:"patient_name" json:"patientName"`
	Quantity       int               `db:"quantity" json:"quantity"`
	Status         ReservationStatus `db:"status" json:"status"`
	TotalAmount    float64           `db:"total_amount" json:"totalAmount"`
	CreatedAt      time.Time         `db:"created_at" json:"createdAt"`
	ExpiresAt      time.Time         `db:"expires_at" json:"expiresAt"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updatedAt"`
	PharmacyName   string            `db:"pharmacy_name" json:"pharmacyName,omitempty"`
	MedicationName string            `db:"medication_name" json:"medicationName,omitempty"`
	ClientUserID   string            `db:"client_user_id" json:"clientUserId,omitempty"`
}

// Expired reports whether an open reservation has passed its expiry at now
func (r *Reservation) Expired(now time.Time) bool {
	return !r.Status.Terminal() && !now.Before(r.ExpiresAt)
}

// ReservationPatch carries the fields of a partial update. Nil fields are left untouched.
type ReservationPatch struct {
	PatientName *string            `json:"patientName,omitempty"`
	Quantity    *int               `json:"quantity,omitempty"`
	Status      *ReservationStatus `json:"status,omitempty"`
	TotalAmount *float64           `json:"totalAmount,omitempty"`
}

// Empty reports whether the patch sets nothing
func (p *ReservationPatch) Empty() bool {
	return p == nil || (p.PatientName == nil && p.Quantity == nil && p.Status == nil && p.TotalAmount == nil)
}

// ReservationFilter selects reservations. Zero values match everything.
// Date selects the UTC calendar day of created_at.
type ReservationFilter struct {
	ClientUserID string
	PharmacyID   int64
	Status       ReservationStatus
	Date         *time.Time
	Since        time.Time
	Search       string
	Page         int
	PageSize     int
}

// ReservationPage is one page of a listing
type ReservationPage struct {
	Reservations []*Reservation `json:"reservations"`
	Total        int            `json:"total"`
	Page         int            `json:"page"`
	PageSize     int            `json:"pageSize"`
	TotalPages   int            `json:"totalPages"`
	HasNext      bool           `json:"hasNext"`
	HasPrev      bool           `json:"hasPrev"`
}

// ReservationStats counts reservations per status
type ReservationStats struct {
	Total     int `db:"total" json:"total"`
	Pending   int `db:"pending" json:"pending"`
	Confirmed int `db:"confirmed" json:"confirmed"`
	Cancelled int `db:"cancelled" json:"cancelled"`
	Fulfilled int `db:"fulfilled" json:"fulfilled"`
	Today     int `db:"today" json:"today"`
}

// ReservationRepository defines data access for reservations
type ReservationRepository interface {
	Create(ctx context.Context, r *Reservation) error
	GetByID(ctx context.Context, id int64) (*Reservation, error)
	// List returns the requested page and the total number of matches.
	// A PageSize of 0 returns every match.
	List(ctx context.Context, filter ReservationFilter) ([]*Reservation, int, error)
	// Update writes the mutable fields of r only while the stored status is
	// still from. A status that moved on yields ErrInvalidTransition.
	Update(ctx context.Context, r *Reservation, from ReservationStatus) error
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context, filter ReservationFilter, dayStart, dayEnd time.Time) (*ReservationStats, error)
	// ListDue returns open reservations whose expiry is at or before now
	ListDue(ctx context.Context, now time.Time) ([]*Reservation, error)
}
