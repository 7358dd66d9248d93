package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/repository"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/auth"
	"github.com/kekelo17/Swift-Meds-sub000/internal/testutil"
)

// recorder is an EventPublisher that keeps every event
type recorder struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (r *recorder) Publish(_ context.Context, ev domain.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(topic string, kind domain.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Topic == topic && ev.EventType == kind {
			n++
		}
	}
	return n
}

type env struct {
	db     *sqlx.DB
	fx     testutil.Fixtures
	events *recorder

	auth          *AuthService
	inventory     *InventoryService
	reservations  *ReservationService
	pharmacies    *PharmacyService
	medications   *MedicationService
	notifications *NotificationService
	analytics     *AnalyticsService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.OpenDB(t)
	fx := testutil.Seed(t, db)
	events := &recorder{}

	store := repository.NewStore(db, nil)
	users := repository.NewUserRepository(db, nil)
	profiles := repository.NewProfileRepository(db, nil)
	pharmacyRepo := repository.NewPharmacyRepository(db, nil)
	medicationRepo := repository.NewMedicationRepository(db, nil)
	inventoryRepo := repository.NewInventoryRepository(db, nil)
	reservationRepo := repository.NewReservationRepository(db, nil)
	notificationRepo := repository.NewNotificationRepository(db)
	reviewRepo := repository.NewReviewRepository(db)

	e := &env{db: db, fx: fx, events: events}
	e.auth = NewAuthService(users, profiles, pharmacyRepo, store, auth.NewTokenManager("test-secret", ""), time.Hour, events, nil)
	e.inventory = NewInventoryService(inventoryRepo, pharmacyRepo, medicationRepo, events, nil)
	e.notifications = NewNotificationService(notificationRepo, events, nil)
	e.reservations = NewReservationService(reservationRepo, profiles, pharmacyRepo, medicationRepo,
		e.inventory, e.notifications, store, events, 0, nil)
	e.pharmacies = NewPharmacyService(pharmacyRepo, reviewRepo, profiles, store, events, nil)
	e.medications = NewMedicationService(medicationRepo, pharmacyRepo, nil)
	e.analytics = NewAnalyticsService(reservationRepo, nil)
	return e
}

// reserve creates a pending reservation for clientUserID or fails the test
func (e *env) reserve(t *testing.T, clientUserID string, medication int64, qty int) *domain.Reservation {
	t.Helper()
	r, err := e.reservations.Create(context.Background(), CreateReservationInput{
		ClientUserID: clientUserID,
		PharmacyID:   e.fx.Pharmacies[0],
		MedicationID: medication,
		PatientName:  "J. Doe",
		Quantity:     qty,
		CallerRole:   domain.RoleClient,
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	return r
}

func ptr[T any](v T) *T { return &v }
