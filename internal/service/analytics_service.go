package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

var analyticsPeriods = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// AnalyticsService aggregates reservation activity for dashboards
type AnalyticsService struct {
	reservations domain.ReservationRepository
	logger       *slog.Logger
	now          func() time.Time
}

// NewAnalyticsService builds the dashboard aggregator over the reservation store.
func NewAnalyticsService(reservations domain.ReservationRepository, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{
		reservations: reservations,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// PharmacyCount is the number of reservations at one pharmacy
type PharmacyCount struct {
	PharmacyID   int64  `json:"pharmacyId"`
	PharmacyName string `json:"pharmacyName"`
	Count        int    `json:"count"`
}

// DailyCount is the number of reservations created on one UTC day
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ReservationAnalytics summarises reservations created within a period
type ReservationAnalytics struct {
	Period     string          `json:"period"`
	Since      time.Time       `json:"since"`
	Total      int             `json:"total"`
	Revenue    float64         `json:"revenue"`
	ByStatus   map[string]int  `json:"byStatus"`
	ByPharmacy []PharmacyCount `json:"byPharmacy"`
	Daily      []DailyCount    `json:"daily"`
}

// Reservations aggregates reservations created in the last period (24h, 7d
// or 30d). scope narrows the rows the same way a listing would.
func (s *AnalyticsService) Reservations(ctx context.Context, period string, scope domain.ReservationFilter) (*ReservationAnalytics, error) {
	if period == "" {
		period = "7d"
	}
	window, ok := analyticsPeriods[period]
	if !ok {
		return nil, fmt.Errorf("%w: period must be one of 24h, 7d, 30d", domain.ErrValidation)
	}

	now := s.now()
	since := now.Add(-window)
	filter := domain.ReservationFilter{
		ClientUserID: scope.ClientUserID,
		PharmacyID:   scope.PharmacyID,
		Since:        since,
	}
	rows, total, err := s.reservations.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := &ReservationAnalytics{
		Period:   period,
		Since:    since,
		Total:    total,
		ByStatus: map[string]int{},
	}
	for _, st := range []domain.ReservationStatus{domain.StatusPending, domain.StatusConfirmed, domain.StatusCancelled, domain.StatusFulfilled} {
		out.ByStatus[string(st)] = 0
	}

	byPharmacy := map[int64]*PharmacyCount{}
	daily := map[string]int{}
	for _, r := range rows {
		out.ByStatus[string(r.Status)]++
		if r.Status == domain.StatusConfirmed || r.Status == domain.StatusFulfilled {
			out.Revenue += r.TotalAmount
		}

		pc, ok := byPharmacy[r.PharmacyID]
		if !ok {
			pc = &PharmacyCount{PharmacyID: r.PharmacyID, PharmacyName: r.PharmacyName}
			byPharmacy[r.PharmacyID] = pc
		}
		pc.Count++

		daily[r.CreatedAt.UTC().Format(time.DateOnly)]++
	}
	out.Revenue = roundCents(out.Revenue)

	out.ByPharmacy = make([]PharmacyCount, 0, len(byPharmacy))
	for _, pc := range byPharmacy {
		out.ByPharmacy = append(out.ByPharmacy, *pc)
	}
	sort.Slice(out.ByPharmacy, func(i, j int) bool {
		a, b := out.ByPharmacy[i], out.ByPharmacy[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.PharmacyID < b.PharmacyID
	})

	// zero-filled, oldest day first
	first := time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, time.UTC)
	for d := first; !d.After(now); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		out.Daily = append(out.Daily, DailyCount{Date: key, Count: daily[key]})
	}

	return out, nil
}
