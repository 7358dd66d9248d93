package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/testutil"
)

func TestReservationAnalytics(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	userID, _ := testutil.CreateClient(t, e.db, "jane@example.com")

	// one reservation outside the 24h window
	e.reservations.now = func() time.Time { return time.Now().UTC().Add(-3 * 24 * time.Hour) }
	e.reserve(t, userID, e.fx.Medications[0], 1)
	e.reservations.now = func() time.Time { return time.Now().UTC() }

	a := e.reserve(t, userID, e.fx.Medications[0], 2) // 5.00
	e.reserve(t, userID, e.fx.Medications[1], 1)
	if _, err := e.reservations.Update(ctx, a.ID, domain.ReservationPatch{Status: ptr(domain.StatusConfirmed)}); err != nil {
		t.Fatal(err)
	}

	day, err := e.analytics.Reservations(ctx, "24h", domain.ReservationFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if day.Total != 2 || day.ByStatus["confirmed"] != 1 || day.ByStatus["pending"] != 1 || day.ByStatus["fulfilled"] != 0 {
		t.Fatalf("unexpected 24h analytics %+v", day)
	}
	if day.Revenue != 5 {
		t.Errorf("expected revenue 5, got %v", day.Revenue)
	}
	if len(day.ByPharmacy) != 1 || day.ByPharmacy[0].Count != 2 || day.ByPharmacy[0].PharmacyName != "Central Pharmacy" {
		t.Errorf("unexpected per-pharmacy counts %+v", day.ByPharmacy)
	}

	week, err := e.analytics.Reservations(ctx, "7d", domain.ReservationFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if week.Total != 3 {
		t.Fatalf("expected 3 in 7d, got %d", week.Total)
	}
	if n := len(week.Daily); n != 8 {
		t.Fatalf("expected 8 daily buckets, got %d", n)
	}
	sum := 0
	for _, d := range week.Daily {
		sum += d.Count
	}
	if sum != week.Total {
		t.Errorf("daily buckets add up to %d, want %d", sum, week.Total)
	}

	scoped, err := e.analytics.Reservations(ctx, "30d", domain.ReservationFilter{PharmacyID: e.fx.Pharmacies[1]})
	if err != nil {
		t.Fatal(err)
	}
	if scoped.Total != 0 {
		t.Errorf("expected nothing at the second pharmacy, got %d", scoped.Total)
	}

	if _, err := e.analytics.Reservations(ctx, "1y", domain.ReservationFilter{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
