package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/observability/metrics"
)

// InventoryService keeps per-pharmacy stock levels
type InventoryService struct {
	inventory   domain.InventoryRepository
	pharmacies  domain.PharmacyRepository
	medications domain.MedicationRepository
	events      domain.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	inventory domain.InventoryRepository,
	pharmacies domain.PharmacyRepository,
	medications domain.MedicationRepository,
	events domain.EventPublisher,
	logger *slog.Logger,
) *InventoryService {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = domain.NopPublisher{}
	}
	return &InventoryService{
		inventory:   inventory,
		pharmacies:  pharmacies,
		medications: medications,
		events:      events,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// GetInventory lists the stock of a pharmacy, largest quantities first
func (s *InventoryService) GetInventory(ctx context.Context, pharmacyID int64) ([]*domain.InventoryEntry, error) {
	if _, err := s.pharmacies.GetByID(ctx, pharmacyID); err != nil {
		return nil, err
	}
	return s.inventory.ListByPharmacy(ctx, pharmacyID)
}

// SetQuantity overwrites the on-hand quantity of a medication at a pharmacy
func (s *InventoryService) SetQuantity(ctx context.Context, pharmacyID, medicationID int64, quantity int) (*domain.InventoryEntry, error) {
	if quantity < 0 {
		metrics.ObserveInventory("set", "rejected")
		return nil, fmt.Errorf("%w: quantity must not be negative, got %d", domain.ErrInvalidQuantity, quantity)
	}
	if _, err := s.pharmacies.GetByID(ctx, pharmacyID); err != nil {
		return nil, err
	}
	medication, err := s.medications.GetByID(ctx, medicationID)
	if err != nil {
		return nil, err
	}

	entry := &domain.InventoryEntry{
		PharmacyID:   pharmacyID,
		MedicationID: medicationID,
		Quantity:     quantity,
		UpdatedAt:    s.now(),
	}
	if err := s.inventory.Upsert(ctx, entry); err != nil {
		metrics.ObserveInventory("set", "error")
		return nil, err
	}
	entry.Medication = medication

	metrics.ObserveInventory("set", "ok")
	s.events.Publish(ctx, domain.NewChangeEvent(domain.TopicInventory, domain.EventUpdate, nil, entry, entry.UpdatedAt))
	s.logger.Info("inventory updated",
		slog.Int64("pharmacy_id", pharmacyID),
		slog.Int64("medication_id", medicationID),
		slog.Int("quantity", quantity),
	)
	return entry, nil
}

// Hold takes qty units out of stock, failing with ErrInsufficientStock
// rather than going below zero.
func (s *InventoryService) Hold(ctx context.Context, pharmacyID, medicationID int64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: hold quantity must be positive", domain.ErrInvalidQuantity)
	}
	err := s.inventory.Decrement(ctx, pharmacyID, medicationID, qty, s.now())
	switch {
	case err == nil:
		metrics.ObserveInventory("hold", "ok")
	case errors.Is(err, domain.ErrInsufficientStock):
		metrics.ObserveInventory("hold", "insufficient")
	default:
		metrics.ObserveInventory("hold", "error")
	}
	return err
}

// Release puts qty units back into stock
func (s *InventoryService) Release(ctx context.Context, pharmacyID, medicationID int64, qty int) error {
	if qty <= 0 {
		return nil
	}
	if err := s.inventory.Increment(ctx, pharmacyID, medicationID, qty, s.now()); err != nil {
		metrics.ObserveInventory("release", "error")
		return err
	}
	metrics.ObserveInventory("release", "ok")
	return nil
}
