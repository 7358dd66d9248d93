package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

// MedicationService serves the medication catalog
type MedicationService struct {
	medications domain.MedicationRepository
	pharmacies  domain.PharmacyRepository
	logger      *slog.Logger
	now         func() time.Time
}

func NewMedicationService(medications domain.MedicationRepository, pharmacies domain.PharmacyRepository, logger *slog.Logger) *MedicationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MedicationService{
		medications: medications,
		pharmacies:  pharmacies,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SearchResult is the answer of the combined catalog search
type SearchResult struct {
	Medications []*domain.Medication `json:"medications"`
	Pharmacies  []*domain.Pharmacy   `json:"pharmacies"`
}

func (s *MedicationService) Search(ctx context.Context, filter domain.MedicationFilter) ([]*domain.Medication, error) {
	return s.medications.Search(ctx, filter)
}

func (s *MedicationService) Get(ctx context.Context, id int64) (*domain.Medication, error) {
	return s.medications.GetByID(ctx, id)
}

// Create adds a medication to the catalog
func (s *MedicationService) Create(ctx context.Context, m *domain.Medication) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return fmt.Errorf("%w: medication name is required", domain.ErrValidation)
	}
	if m.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	}
	m.CreatedAt = s.now()

	if err := s.medications.Create(ctx, m); err != nil {
		return err
	}
	s.logger.Info("medication added", slog.Int64("medication_id", m.ID), slog.String("name", m.Name))
	return nil
}

// SearchAll matches q against medications and approved pharmacies
func (s *MedicationService) SearchAll(ctx context.Context, q string) (*SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return &SearchResult{Medications: []*domain.Medication{}, Pharmacies: []*domain.Pharmacy{}}, nil
	}

	meds, err := s.medications.Search(ctx, domain.MedicationFilter{Search: q})
	if err != nil {
		return nil, err
	}
	pharmacies, err := s.pharmacies.List(ctx, domain.PharmacyFilter{ApprovedOnly: true, Search: q})
	if err != nil {
		return nil, err
	}
	return &SearchResult{Medications: meds, Pharmacies: pharmacies}, nil
}
