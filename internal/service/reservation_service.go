package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/featureflags"
	"github.com/kekelo17/Swift-Meds-sub000/internal/observability/metrics"
	"github.com/kekelo17/Swift-Meds-sub000/internal/observability/tracing"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Bulk actions accepted by BulkUpdate
const (
	ActionDelete  = "delete"
	ActionUpdate  = "update"
	ActionConfirm = "confirm"
)

// Notifier records in-app notifications
type Notifier interface {
	Notify(ctx context.Context, userID, kind, message string) (*domain.Notification, error)
}

// ReservationService drives the reservation lifecycle
type ReservationService struct {
	reservations domain.ReservationRepository
	profiles     domain.ProfileRepository
	pharmacies   domain.PharmacyRepository
	medications  domain.MedicationRepository
	stock        *InventoryService
	notifier     Notifier
	tx           domain.Transactor
	events       domain.EventPublisher
	ttl          time.Duration
	stockHold    bool
	logger       *slog.Logger
	now          func() time.Time
}

// NewReservationService creates a new reservation service. A ttl of zero
// selects domain.DefaultReservationTTL.
func NewReservationService(
	reservations domain.ReservationRepository,
	profiles domain.ProfileRepository,
	pharmacies domain.PharmacyRepository,
	medications domain.MedicationRepository,
	stock *InventoryService,
	notifier Notifier,
	tx domain.Transactor,
	events domain.EventPublisher,
	ttl time.Duration,
	logger *slog.Logger,
) *ReservationService {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = domain.NopPublisher{}
	}
	if ttl <= 0 {
		ttl = domain.DefaultReservationTTL
	}
	return &ReservationService{
		reservations: reservations,
		profiles:     profiles,
		pharmacies:   pharmacies,
		medications:  medications,
		stock:        stock,
		notifier:     notifier,
		tx:           tx,
		events:       events,
		ttl:          ttl,
		stockHold:    featureflags.Enabled(featureflags.StockHold) && stock != nil,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateReservationInput describes a new reservation. Status is only honoured
// when CallerRole is pharmacist or above.
type CreateReservationInput struct {
	ClientUserID string                   `json:"clientUserId,omitempty"`
	PharmacyID   int64                    `json:"pharmacyId"`
	MedicationID int64                    `json:"medicationId"`
	PatientName  string                   `json:"patientName"`
	Quantity     int                      `json:"quantity"`
	Status       domain.ReservationStatus `json:"status,omitempty"`
	TotalAmount  *float64                 `json:"totalAmount,omitempty"`
	ExpiresAt    *time.Time               `json:"expiresAt,omitempty"`
	CallerRole   domain.Role              `json:"-"`
}

// BulkResult reports what a bulk action changed
type BulkResult struct {
	Affected     int                   `json:"affected"`
	Reservations []*domain.Reservation `json:"reservations"`
}

// Create validates and stores a new reservation
func (s *ReservationService) Create(ctx context.Context, in CreateReservationInput) (*domain.Reservation, error) {
	ctx, span := tracing.Start(ctx, "ReservationService.Create")
	defer span.End()

	in.PatientName = strings.TrimSpace(in.PatientName)
	switch {
	case in.Quantity <= 0:
		return nil, fmt.Errorf("%w: quantity must be greater than zero", domain.ErrValidation)
	case in.PatientName == "":
		return nil, fmt.Errorf("%w: patient name is required", domain.ErrValidation)
	case in.PharmacyID <= 0 || in.MedicationID <= 0:
		return nil, fmt.Errorf("%w: pharmacy and medication are required", domain.ErrValidation)
	case in.ClientUserID == "":
		return nil, fmt.Errorf("%w: client is required", domain.ErrValidation)
	case in.TotalAmount != nil && *in.TotalAmount < 0:
		return nil, fmt.Errorf("%w: total amount must not be negative", domain.ErrValidation)
	}

	status := domain.StatusPending
	if in.Status != "" {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, in.Status)
		}
		if domain.HasAtLeastRole(in.CallerRole, domain.RolePharmacist) && !in.Status.Terminal() {
			status = in.Status
		}
	}

	client, err := s.profiles.GetClientByUserID(ctx, in.ClientUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", domain.ErrClientNotFound, in.ClientUserID)
		}
		return nil, err
	}
	pharmacy, err := s.pharmacies.GetByID(ctx, in.PharmacyID)
	if err != nil {
		return nil, err
	}
	medication, err := s.medications.GetByID(ctx, in.MedicationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(now) {
			return nil, fmt.Errorf("%w: expiry must be in the future", domain.ErrValidation)
		}
		expiresAt = in.ExpiresAt.UTC()
	}
	total := roundCents(medication.Price * float64(in.Quantity))
	if in.TotalAmount != nil {
		total = *in.TotalAmount
	}

	r := &domain.Reservation{
		ClientID:     client.ID,
		PharmacyID:   pharmacy.ID,
		MedicationID: medication.ID,
		PatientName:  in.PatientName,
		Quantity:     in.Quantity,
		Status:       status,
		TotalAmount:  total,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
		UpdatedAt:    now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if s.stockHold {
			if err := s.stock.Hold(ctx, r.PharmacyID, r.MedicationID, r.Quantity); err != nil {
				return err
			}
		}
		return s.reservations.Create(ctx, r)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	r.PharmacyName = pharmacy.Name
	r.MedicationName = medication.Name
	r.ClientUserID = in.ClientUserID

	span.SetAttributes(attribute.Int64("reservation.id", r.ID))
	metrics.ObserveReservationCreated(string(r.Status))
	s.events.Publish(ctx, domain.NewChangeEvent(domain.TopicReservations, domain.EventInsert, nil, r, now))
	s.logger.Info("reservation created",
		slog.Int64("reservation_id", r.ID),
		slog.Int64("pharmacy_id", r.PharmacyID),
		slog.Int64("medication_id", r.MedicationID),
		slog.Int("quantity", r.Quantity),
		slog.String("status", string(r.Status)),
	)
	return r, nil
}

// Get returns one reservation
func (s *ReservationService) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	s.sweep(ctx)
	return s.reservations.GetByID(ctx, id)
}

// List returns one page of matching reservations, newest first
func (s *ReservationService) List(ctx context.Context, filter domain.ReservationFilter) (*domain.ReservationPage, error) {
	s.sweep(ctx)

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	items, total, err := s.reservations.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(filter.PageSize)))
	return &domain.ReservationPage{
		Reservations: items,
		Total:        total,
		Page:         filter.Page,
		PageSize:     filter.PageSize,
		TotalPages:   totalPages,
		HasNext:      filter.Page < totalPages,
		HasPrev:      filter.Page > 1,
	}, nil
}

// Stats counts matching reservations per status and those created today (UTC)
func (s *ReservationService) Stats(ctx context.Context, filter domain.ReservationFilter) (*domain.ReservationStats, error) {
	s.sweep(ctx)

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.reservations.Stats(ctx, filter, dayStart, dayStart.AddDate(0, 0, 1))
}

// Update applies the fields present in patch. An empty patch changes nothing.
func (s *ReservationService) Update(ctx context.Context, id int64, patch domain.ReservationPatch) (*domain.Reservation, error) {
	ctx, span := tracing.Start(ctx, "ReservationService.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("reservation.id", id))

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return current, nil
	}

	next := *current
	if patch.PatientName != nil {
		name := strings.TrimSpace(*patch.PatientName)
		if name == "" {
			return nil, fmt.Errorf("%w: patient name must not be empty", domain.ErrValidation)
		}
		next.PatientName = name
	}
	if patch.Quantity != nil {
		if *patch.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be greater than zero", domain.ErrValidation)
		}
		next.Quantity = *patch.Quantity
	}
	if patch.TotalAmount != nil {
		if *patch.TotalAmount < 0 {
			return nil, fmt.Errorf("%w: total amount must not be negative", domain.ErrValidation)
		}
		next.TotalAmount = *patch.TotalAmount
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, *patch.Status)
		}
		if !current.Status.CanTransitionTo(*patch.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, *patch.Status)
		}
		next.Status = *patch.Status
	}
	next.UpdatedAt = s.now()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.reservations.Update(ctx, &next, current.Status); err != nil {
			return err
		}
		return s.adjustStock(ctx, current, &next)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.afterUpdate(ctx, current, &next)
	return &next, nil
}

// adjustStock keeps held stock in line with an updated reservation
func (s *ReservationService) adjustStock(ctx context.Context, before, after *domain.Reservation) error {
	if !s.stockHold || before.Status.Terminal() {
		return nil
	}
	if after.Status == domain.StatusCancelled {
		return s.stock.Release(ctx, before.PharmacyID, before.MedicationID, before.Quantity)
	}
	switch delta := after.Quantity - before.Quantity; {
	case delta > 0:
		return s.stock.Hold(ctx, after.PharmacyID, after.MedicationID, delta)
	case delta < 0:
		return s.stock.Release(ctx, after.PharmacyID, after.MedicationID, -delta)
	}
	return nil
}

func (s *ReservationService) afterUpdate(ctx context.Context, before, after *domain.Reservation) {
	if before.Status != after.Status {
		metrics.ObserveTransition(string(before.Status), string(after.Status))
		s.logger.Info("reservation status changed",
			slog.Int64("reservation_id", after.ID),
			slog.String("from", string(before.Status)),
			slog.String("to", string(after.Status)),
		)
	}

	s.events.Publish(ctx, domain.NewChangeEvent(domain.TopicReservations, domain.EventUpdate, before, after, after.UpdatedAt))

	if after.Status == domain.StatusConfirmed && before.Status != domain.StatusConfirmed && s.notifier != nil {
		msg := fmt.Sprintf("Your reservation #%d for %s at %s has been confirmed", after.ID, after.MedicationName, after.PharmacyName)
		if _, err := s.notifier.Notify(ctx, after.ClientUserID, domain.NotificationReservationConfirmed, msg); err != nil {
			s.logger.Warn("failed to notify client of confirmation",
				slog.Int64("reservation_id", after.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Delete removes a reservation and gives back any stock it held
func (s *ReservationService) Delete(ctx context.Context, id int64) error {
	current, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.reservations.Delete(ctx, id); err != nil {
			return err
		}
		if s.stockHold && !current.Status.Terminal() {
			return s.stock.Release(ctx, current.PharmacyID, current.MedicationID, current.Quantity)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.events.Publish(ctx, domain.NewChangeEvent(domain.TopicReservations, domain.EventDelete, current, nil, s.now()))
	s.logger.Info("reservation deleted", slog.Int64("reservation_id", id))
	return nil
}

// BulkUpdate applies action to every id. Ids that do not exist, that visible
// rejects, or whose transition is not allowed are skipped. visible may be nil.
func (s *ReservationService) BulkUpdate(
	ctx context.Context,
	ids []int64,
	action string,
	patch *domain.ReservationPatch,
	visible func(*domain.Reservation) bool,
) (*BulkResult, error) {
	switch action {
	case ActionDelete, ActionConfirm:
	case ActionUpdate:
		if patch.Empty() {
			return nil, domain.ErrMissingUpdateData
		}
	default:
		return nil, fmt.Errorf("%w: unknown bulk action %q", domain.ErrValidation, action)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no reservation ids given", domain.ErrValidation)
	}

	result := &BulkResult{Reservations: []*domain.Reservation{}}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		r, err := s.applyBulk(ctx, id, action, patch, visible)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidTransition) {
				continue
			}
			return result, err
		}
		result.Affected++
		result.Reservations = append(result.Reservations, r)
	}

	s.logger.Info("bulk reservation action",
		slog.String("action", action),
		slog.Int("requested", len(ids)),
		slog.Int("affected", result.Affected),
	)
	return result, nil
}

func (s *ReservationService) applyBulk(
	ctx context.Context,
	id int64,
	action string,
	patch *domain.ReservationPatch,
	visible func(*domain.Reservation) bool,
) (*domain.Reservation, error) {
	current, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if visible != nil && !visible(current) {
		return nil, domain.ErrNotFound
	}

	switch action {
	case ActionDelete:
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return current, nil
	case ActionConfirm:
		confirmed := domain.StatusConfirmed
		return s.Update(ctx, id, domain.ReservationPatch{Status: &confirmed})
	default:
		return s.Update(ctx, id, *patch)
	}
}

// ExpireDue cancels every open reservation whose expiry has passed and
// returns how many were cancelled.
func (s *ReservationService) ExpireDue(ctx context.Context) (int, error) {
	due, err := s.reservations.ListDue(ctx, s.now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, r := range due {
		next := *r
		next.Status = domain.StatusCancelled
		next.UpdatedAt = s.now()

		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.reservations.Update(ctx, &next, r.Status); err != nil {
				return err
			}
			return s.adjustStock(ctx, r, &next)
		})
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidTransition) {
				continue
			}
			return expired, err
		}

		expired++
		s.afterUpdate(ctx, r, &next)
	}

	if expired > 0 {
		metrics.ObserveExpired(expired)
		s.logger.Info("expired reservations cancelled", slog.Int("count", expired))
	}
	return expired, nil
}

// sweep runs ExpireDue before reads, logging rather than failing the read
func (s *ReservationService) sweep(ctx context.Context) {
	if _, err := s.ExpireDue(ctx); err != nil {
		s.logger.Warn("lazy expiry sweep failed", slog.String("error", err.Error()))
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
