package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/realtime"
	"github.com/kekelo17/Swift-Meds-sub000/internal/repository"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/auth"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/ratelimit"
	"github.com/kekelo17/Swift-Meds-sub000/internal/service"
	"github.com/kekelo17/Swift-Meds-sub000/internal/testutil"
)

type api struct {
	t       *testing.T
	handler http.Handler
	hub     *realtime.Hub
}

func newAPI(t *testing.T, limiter *ratelimit.Limiter) *api {
	t.Helper()
	db := testutil.OpenDB(t)
	testutil.Seed(t, db)
	hub := realtime.NewHub(realtime.DefaultBuffer, nil)

	store := repository.NewStore(db, nil)
	users := repository.NewUserRepository(db, nil)
	profiles := repository.NewProfileRepository(db, nil)
	pharmacyRepo := repository.NewPharmacyRepository(db, nil)
	medicationRepo := repository.NewMedicationRepository(db, nil)
	inventoryRepo := repository.NewInventoryRepository(db, nil)
	reservationRepo := repository.NewReservationRepository(db, nil)

	authService := service.NewAuthService(users, profiles, pharmacyRepo, store,
		auth.NewTokenManager("handler-test-secret", "swiftmeds"), time.Hour, hub, nil)
	inventory := service.NewInventoryService(inventoryRepo, pharmacyRepo, medicationRepo, hub, nil)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), hub, nil)

	deps := Dependencies{
		Auth: authService,
		Reservations: service.NewReservationService(reservationRepo, profiles, pharmacyRepo, medicationRepo,
			inventory, notifications, store, hub, 0, nil),
		Pharmacies:       service.NewPharmacyService(pharmacyRepo, repository.NewReviewRepository(db), profiles, store, hub, nil),
		Inventory:        inventory,
		Medications:      service.NewMedicationService(medicationRepo, pharmacyRepo, nil),
		Analytics:        service.NewAnalyticsService(reservationRepo, nil),
		Notifications:    notifications,
		Hub:              hub,
		Limiter:          limiter,
		Checks:           map[string]Pinger{"database": pingFunc(db.PingContext), "redis": nil},
		AllowAdminSignup: true,
	}
	return &api{t: t, handler: NewRouter(deps), hub: hub}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func (api *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	api.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			api.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (api *api) signup(email string, role domain.Role, extra map[string]any) string {
	api.t.Helper()
	body := map[string]any{"email": email, "password": "correct-horse", "fullName": "Test " + string(role), "role": role}
	for k, v := range extra {
		body[k] = v
	}
	rec := api.do("POST", "/api/auth/signup", "", body)
	if rec.Code != http.StatusCreated {
		api.t.Fatalf("signup %s: status %d: %s", email, rec.Code, rec.Body.String())
	}
	return decode[service.AuthResult](api.t, rec).Token
}

func TestReservationFlow(t *testing.T) {
	api := newAPI(t, nil)
	api.signup("jane@example.com", domain.RoleClient, nil)

	rec := api.do("POST", "/api/auth/signin", "", SigninRequest{Email: "jane@example.com", Password: "correct-horse"})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin: %d %s", rec.Code, rec.Body.String())
	}
	token := decode[service.AuthResult](t, rec).Token

	rec = api.do("POST", "/api/reservations", token, map[string]any{
		"pharmacyId": 1, "medicationId": 4, "patientName": "J. Doe", "quantity": 2,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[domain.Reservation](t, rec)
	if created.TotalAmount != 8.4 {
		t.Errorf("total = %v, want 8.4", created.TotalAmount)
	}

	rec = api.do("GET", "/api/reservations", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	page := decode[domain.ReservationPage](t, rec)
	if page.Total != 1 || len(page.Reservations) != 1 {
		t.Fatalf("page = %+v, want one reservation", page)
	}
	got := page.Reservations[0]
	if got.Status != domain.StatusPending || got.Quantity != 2 || got.PatientName != "J. Doe" {
		t.Errorf("listed reservation = %+v", got)
	}

	rec = api.do("PUT", fmt.Sprintf("/api/reservations/%d", created.ID), token, map[string]any{"status": "cancelled"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	if s := decode[domain.Reservation](t, rec).Status; s != domain.StatusCancelled {
		t.Errorf("status = %s, want cancelled", s)
	}
}

func TestClientCannotSeeOthersReservations(t *testing.T) {
	api := newAPI(t, nil)
	owner := api.signup("owner@example.com", domain.RoleClient, nil)
	other := api.signup("other@example.com", domain.RoleClient, nil)

	rec := api.do("POST", "/api/reservations", owner, map[string]any{
		"pharmacyId": 1, "medicationId": 1, "patientName": "Owner", "quantity": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	id := decode[domain.Reservation](t, rec).ID

	if rec := api.do("GET", fmt.Sprintf("/api/reservations/%d", id), other, nil); rec.Code != http.StatusForbidden {
		t.Errorf("other client get: %d, want 403", rec.Code)
	}
	if page := decode[domain.ReservationPage](t, api.do("GET", "/api/reservations", other, nil)); page.Total != 0 {
		t.Errorf("other client sees %d reservations", page.Total)
	}
	if rec := api.do("POST", "/api/reservations/bulk", other, BulkRequest{IDs: []int64{id}, Action: "confirm"}); rec.Code != http.StatusForbidden {
		t.Errorf("client bulk: %d, want 403", rec.Code)
	}
}

func TestReservationListQueryParams(t *testing.T) {
	api := newAPI(t, nil)
	token := api.signup("list@example.com", domain.RoleClient, nil)
	for i := 0; i < 3; i++ {
		rec := api.do("POST", "/api/reservations", token, map[string]any{
			"pharmacyId": 1, "medicationId": 1, "patientName": fmt.Sprintf("Patient %d", i), "quantity": 1,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
		}
	}

	tests := []struct {
		query        string
		wantTotal    int
		wantPageSize int
		wantRows     int
	}{
		{"limit=2", 3, 2, 2},
		{"pageSize=2", 3, 2, 2},
		{"pharmacy=2", 0, 10, 0},
		{"pharmacy=1&limit=1", 3, 1, 1},
		{"pharmacyId=2", 0, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := api.do("GET", "/api/reservations?"+tt.query, token, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			page := decode[domain.ReservationPage](t, rec)
			if page.Total != tt.wantTotal || page.PageSize != tt.wantPageSize || len(page.Reservations) != tt.wantRows {
				t.Errorf("total=%d pageSize=%d rows=%d, want %d/%d/%d",
					page.Total, page.PageSize, len(page.Reservations), tt.wantTotal, tt.wantPageSize, tt.wantRows)
			}
		})
	}

	if rec := api.do("GET", "/api/reservations?pharmacy=abc", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric pharmacy: %d, want 400", rec.Code)
	}
}

func TestPharmacyApproval(t *testing.T) {
	api := newAPI(t, nil)
	pharmacist := api.signup("ph@example.com", domain.RolePharmacist, map[string]any{
		"licenseNumber": "LIC-1", "pharmacyName": "Harbor Pharmacy", "pharmacyAddress": "9 Dock Rd",
	})
	admin := api.signup("root@example.com", domain.RoleAdmin, nil)

	list := decode[[]domain.Pharmacy](t, api.do("GET", "/api/pharmacies?approved=true", "", nil))
	if len(list) != 2 {
		t.Fatalf("approved before = %d, want 2", len(list))
	}

	if rec := api.do("PUT", "/api/pharmacies/3/approve", pharmacist, nil); rec.Code != http.StatusForbidden {
		t.Errorf("pharmacist approve: %d, want 403", rec.Code)
	}
	rec := api.do("PUT", "/api/pharmacies/3/approve", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rec.Code, rec.Body.String())
	}
	if p := decode[domain.Pharmacy](t, rec); !p.IsApproved || p.Status != domain.PharmacyApproved {
		t.Errorf("approved pharmacy = %+v", p)
	}

	list = decode[[]domain.Pharmacy](t, api.do("GET", "/api/pharmacies?approved=true", "", nil))
	found := false
	for _, p := range list {
		if p.Name == "Harbor Pharmacy" {
			found = true
		}
	}
	if !found {
		t.Errorf("approved list %+v misses Harbor Pharmacy", list)
	}

	rec = api.do("PUT", "/api/pharmacies/3/inventory/1", pharmacist, SetQuantityRequest{Quantity: ptr(7)})
	if rec.Code != http.StatusOK {
		t.Fatalf("set inventory: %d %s", rec.Code, rec.Body.String())
	}
	if rec := api.do("PUT", "/api/pharmacies/1/inventory/1", pharmacist, SetQuantityRequest{Quantity: ptr(7)}); rec.Code != http.StatusForbidden {
		t.Errorf("foreign pharmacy inventory: %d, want 403", rec.Code)
	}
}

func TestAuthenticationStatuses(t *testing.T) {
	api := newAPI(t, nil)
	token := api.signup("a@example.com", domain.RoleClient, nil)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"bad token", "Bearer not-a-jwt", http.StatusForbidden},
		{"valid token", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			api.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if rec := api.do("POST", "/api/auth/signout", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("signout: %d", rec.Code)
	}
	if rec := api.do("GET", "/api/auth/me", token, nil); rec.Code != http.StatusForbidden {
		t.Errorf("revoked token: %d, want 403", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	api := newAPI(t, nil)
	client := api.signup("c@example.com", domain.RoleClient, nil)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"validation", "POST", "/api/reservations", map[string]any{"pharmacyId": 1, "medicationId": 1, "patientName": "", "quantity": 1}, 400, "VALIDATION_ERROR"},
		{"not found", "GET", "/api/reservations/9999", nil, 404, "NOT_FOUND"},
		{"bad id", "GET", "/api/reservations/abc", nil, 400, "VALIDATION_ERROR"},
		{"wrong credentials", "POST", "/api/auth/signin", SigninRequest{Email: "c@example.com", Password: "nope-nope"}, 401, "INVALID_CREDENTIALS"},
		{"duplicate email", "POST", "/api/auth/signup", map[string]any{"email": "c@example.com", "password": "correct-horse", "fullName": "C"}, 409, "EMAIL_TAKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(tt.method, tt.path, client, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.wantErr {
				t.Errorf("code = %s, want %s", got, tt.wantErr)
			}
		})
	}
}

func TestSigninRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(1000, time.Minute)
	t.Cleanup(limiter.Stop)
	api := newAPI(t, limiter)

	var last int
	for i := 0; i < signinAttempts+1; i++ {
		last = api.do("POST", "/api/auth/signin", "", SigninRequest{Email: "x@example.com", Password: "whatever1"}).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status after %d attempts = %d, want 429", signinAttempts+1, last)
	}
}

func TestHealthAndDocs(t *testing.T) {
	api := newAPI(t, nil)

	if rec := api.do("GET", "/api/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health: %d", rec.Code)
	}
	rec := api.do("GET", "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ready: %d %s", rec.Code, rec.Body.String())
	}
	ready := decode[ReadinessResponse](t, rec)
	if ready.Checks["database"] != "ok" || ready.Checks["redis"] != "not configured" {
		t.Errorf("checks = %v", ready.Checks)
	}

	docs := decode[struct {
		Routes []Route `json:"routes"`
	}](t, api.do("GET", "/api/docs", "", nil))
	if len(docs.Routes) < 20 {
		t.Errorf("docs list %d routes", len(docs.Routes))
	}
}

func ptr[T any](v T) *T { return &v }
