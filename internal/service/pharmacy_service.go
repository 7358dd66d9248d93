package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

// PharmacyService manages partner pharmacies, their approval and reviews
type PharmacyService struct {
	pharmacies domain.PharmacyRepository
	reviews    domain.ReviewRepository
	profiles   domain.ProfileRepository
	tx         domain.Transactor
	events     domain.EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewPharmacyService(
	pharmacies domain.PharmacyRepository,
	reviews domain.ReviewRepository,
	profiles domain.ProfileRepository,
	tx domain.Transactor,
	events domain.EventPublisher,
	logger *slog.Logger,
) *PharmacyService {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = domain.NopPublisher{}
	}
	return &PharmacyService{
		pharmacies: pharmacies,
		reviews:    reviews,
		profiles:   profiles,
		tx:         tx,
		events:     events,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreatePharmacyInput is the registration form of a pharmacy
type CreatePharmacyInput struct {
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	Phone        string   `json:"phone"`
	OpeningHours string   `json:"openingHours"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

func (s *PharmacyService) List(ctx context.Context, filter domain.PharmacyFilter) ([]*domain.Pharmacy, error) {
	return s.pharmacies.List(ctx, filter)
}

func (s *PharmacyService) Get(ctx context.Context, id int64) (*domain.Pharmacy, error) {
	return s.pharmacies.GetByID(ctx, id)
}

// Create registers a pending pharmacy. When a pharmacist without a pharmacy
// creates one, the pharmacist is linked to it.
func (s *PharmacyService) Create(ctx context.Context, in CreatePharmacyInput, callerUserID string, callerRole domain.Role) (*domain.Pharmacy, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: pharmacy name is required", domain.ErrValidation)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, fmt.Errorf("%w: latitude and longitude must be given together", domain.ErrValidation)
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90 || *in.Longitude < -180 || *in.Longitude > 180) {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrValidation)
	}
	if !domain.HasAtLeastRole(callerRole, domain.RolePharmacist) {
		return nil, fmt.Errorf("%w: only pharmacists and admins register pharmacies", domain.ErrForbidden)
	}

	p := &domain.Pharmacy{
		Name:         in.Name,
		Address:      in.Address,
		Phone:        in.Phone,
		OpeningHours: in.OpeningHours,
		Status:       domain.PharmacyPending,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		CreatedAt:    s.now(),
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.pharmacies.Create(ctx, p); err != nil {
			return err
		}
		if callerRole != domain.RolePharmacist {
			return nil
		}
		profile, err := s.profiles.GetPharmacistByUserID(ctx, callerUserID)
		if err != nil {
			return err
		}
		if profile.PharmacyID != nil {
			return nil
		}
		return s.profiles.LinkPharmacy(ctx, profile.ID, p.ID)
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, domain.NewChangeEvent(domain.TopicPharmacies, domain.EventInsert, nil, p, p.CreatedAt))
	s.logger.Info("pharmacy registered",
		slog.Int64("pharmacy_id", p.ID),
		slog.String("created_by", callerUserID),
	)
	return p, nil
}

// Approve marks a pharmacy approved so it shows up in public listings
func (s *PharmacyService) Approve(ctx context.Context, id int64) (*domain.Pharmacy, error) {
	return s.setApproval(ctx, id, domain.PharmacyApproved)
}

// Reject marks a pharmacy rejected
func (s *PharmacyService) Reject(ctx context.Context, id int64) (*domain.Pharmacy, error) {
	return s.setApproval(ctx, id, domain.PharmacyRejected)
}

func (s *PharmacyService) setApproval(ctx context.Context, id int64, status domain.PharmacyStatus) (*domain.Pharmacy, error) {
	before, err := s.pharmacies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.pharmacies.SetApproval(ctx, id, status, s.now()); err != nil {
		return nil, err
	}
	after, err := s.pharmacies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, domain.NewChangeEvent(domain.TopicPharmacies, domain.EventUpdate, before, after, after.UpdatedAt))
	s.logger.Info("pharmacy approval changed",
		slog.Int64("pharmacy_id", id),
		slog.String("status", string(status)),
	)
	return after, nil
}

// AddReview records a client's rating of a pharmacy
func (s *PharmacyService) AddReview(ctx context.Context, clientUserID string, pharmacyID int64, rating int, comment string) (*domain.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrValidation)
	}

	client, err := s.profiles.GetClientByUserID(ctx, clientUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", domain.ErrClientNotFound, clientUserID)
		}
		return nil, err
	}
	if _, err := s.pharmacies.GetByID(ctx, pharmacyID); err != nil {
		return nil, err
	}

	review := &domain.Review{
		ClientID:   client.ID,
		PharmacyID: pharmacyID,
		Rating:     rating,
		Comment:    strings.TrimSpace(comment),
		CreatedAt:  s.now(),
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// ListReviews returns the reviews of a pharmacy, newest first
func (s *PharmacyService) ListReviews(ctx context.Context, pharmacyID int64) ([]*domain.Review, error) {
	if _, err := s.pharmacies.GetByID(ctx, pharmacyID); err != nil {
		return nil, err
	}
	return s.reviews.ListByPharmacy(ctx, pharmacyID)
}
