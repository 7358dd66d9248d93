package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/realtime"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/audit"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/middleware"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/ratelimit"
	"github.com/kekelo17/Swift-Meds-sub000/internal/service"
)

const (
	signinAttempts = 5
	signinWindow   = time.Minute
)

// Dependencies are the collaborators the API needs
type Dependencies struct {
	Auth          *service.AuthService
	Reservations  *service.ReservationService
	Pharmacies    *service.PharmacyService
	Inventory     *service.InventoryService
	Medications   *service.MedicationService
	Analytics     *service.AnalyticsService
	Notifications *service.NotificationService
	Hub           *realtime.Hub

	// Limiter is optional; nil disables rate limiting
	Limiter          *ratelimit.Limiter
	AuditLog         *audit.Logger
	Checks           map[string]Pinger
	AllowedOrigins   []string
	AllowAdminSignup bool
	Logger           *slog.Logger
}

// Route describes one endpoint, served back from /api/docs
type Route struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Access string `json:"access"`

	handler http.Handler
}

type mw = func(http.Handler) http.Handler

func chain(h http.Handler, mws ...mw) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// NewRouter builds the API mux with per-route authentication and role checks
func NewRouter(deps Dependencies) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	auditLog := deps.AuditLog
	if auditLog == nil {
		auditLog = audit.NewLogger(log)
	}
	authz := security.NewAuthorizationService(log)

	authH := NewAuthHandler(deps.Auth, deps.AllowAdminSignup, auditLog, log)
	reservationH := NewReservationHandler(deps.Reservations, deps.Auth, authz, auditLog, log)
	pharmacyH := NewPharmacyHandler(deps.Pharmacies, deps.Auth, authz, auditLog, log)
	inventoryH := NewInventoryHandler(deps.Inventory, deps.Auth, authz, auditLog, log)
	medicationH := NewMedicationHandler(deps.Medications, deps.Auth, authz, log)
	analyticsH := NewAnalyticsHandler(deps.Analytics, deps.Auth, authz, log)
	notificationH := NewNotificationHandler(deps.Notifications, log)
	realtimeH := NewRealtimeHandler(deps.Hub, deps.AllowedOrigins, log)
	healthH := NewHealthHandler(deps.Checks, log)

	authed := middleware.Authenticate(deps.Auth, log, false)
	authedWS := middleware.Authenticate(deps.Auth, log, true)
	pharmacist := middleware.RequireRole(domain.RolePharmacist, auditLog)
	admin := middleware.RequireRole(domain.RoleAdmin, auditLog)

	var limit []mw
	var signin []mw
	if deps.Limiter != nil {
		limit = append(limit, middleware.RateLimitMiddleware(deps.Limiter, log))
		signin = append(signin, middleware.StrictRateLimit(deps.Limiter, signinAttempts, signinWindow))
	}
	public := func(h http.HandlerFunc) http.Handler { return chain(h, limit...) }
	private := func(h http.Handler, extra ...mw) http.Handler {
		mws := append([]mw{authed}, limit...)
		mws = append(mws, middleware.AuditMiddleware(auditLog))
		return chain(h, append(mws, extra...)...)
	}

	routes := []Route{
		{"POST", "/api/auth/signup", "public", public(authH.Signup)},
		{"POST", "/api/auth/signin", "public", chain(http.HandlerFunc(authH.Signin), signin...)},
		{"POST", "/api/auth/signout", "authenticated", private(http.HandlerFunc(authH.Signout))},
		{"GET", "/api/auth/me", "authenticated", private(http.HandlerFunc(authH.Me))},
		{"POST", "/api/auth/change-password", "authenticated", private(http.HandlerFunc(authH.ChangePassword))},

		{"GET", "/api/reservations", "authenticated", private(http.HandlerFunc(reservationH.List))},
		{"GET", "/api/reservations/stats", "authenticated", private(http.HandlerFunc(reservationH.Stats))},
		{"POST", "/api/reservations", "authenticated", private(http.HandlerFunc(reservationH.Create))},
		{"POST", "/api/reservations/bulk", "pharmacist", private(http.HandlerFunc(reservationH.Bulk), pharmacist)},
		{"GET", "/api/reservations/{id}", "owner", private(http.HandlerFunc(reservationH.Get))},
		{"PUT", "/api/reservations/{id}", "owner", private(http.HandlerFunc(reservationH.Update))},
		{"DELETE", "/api/reservations/{id}", "owner", private(http.HandlerFunc(reservationH.Delete))},

		{"GET", "/api/pharmacies", "public", public(pharmacyH.List)},
		{"POST", "/api/pharmacies", "pharmacist", private(http.HandlerFunc(pharmacyH.Create), pharmacist)},
		{"GET", "/api/pharmacies/{id}", "public", public(pharmacyH.Get)},
		{"PUT", "/api/pharmacies/{id}/approve", "admin", private(http.HandlerFunc(pharmacyH.Approve), admin)},
		{"PUT", "/api/pharmacies/{id}/reject", "admin", private(http.HandlerFunc(pharmacyH.Reject), admin)},
		{"GET", "/api/pharmacies/{id}/reviews", "public", public(pharmacyH.ListReviews)},
		{"POST", "/api/pharmacies/{id}/reviews", "client", private(http.HandlerFunc(pharmacyH.AddReview))},
		{"GET", "/api/pharmacies/{id}/inventory", "public", public(inventoryH.List)},
		{"PUT", "/api/pharmacies/{id}/inventory/{medicationId}", "pharmacist", private(http.HandlerFunc(inventoryH.Set), pharmacist)},

		{"GET", "/api/medications", "public", public(medicationH.List)},
		{"POST", "/api/medications", "admin", private(http.HandlerFunc(medicationH.Create), admin)},
		{"GET", "/api/medications/{id}", "public", public(medicationH.Get)},
		{"GET", "/api/search", "public", public(medicationH.Search)},

		{"GET", "/api/analytics/reservations", "pharmacist", private(http.HandlerFunc(analyticsH.Reservations), pharmacist)},

		{"GET", "/api/notifications", "authenticated", private(http.HandlerFunc(notificationH.List))},
		{"PUT", "/api/notifications/{id}/read", "authenticated", private(http.HandlerFunc(notificationH.MarkRead))},

		{"GET", "/api/realtime", "authenticated", authedWS(realtimeH)},

		{"GET", "/api/health", "public", http.HandlerFunc(healthH.Health)},
		{"GET", "/readyz", "public", http.HandlerFunc(healthH.Ready)},
	}

	mux := http.NewServeMux()
	for _, rt := range routes {
		mux.Handle(rt.Method+" "+rt.Path, rt.handler)
	}
	docs := append(routes, Route{Method: "GET", Path: "/api/docs", Access: "public"})
	mux.HandleFunc("GET /api/docs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"service": "swiftmeds", "routes": docs})
	})

	return chain(mux,
		middleware.SanitizeInputs(log),
		middleware.ValidateJSONContentType(log),
	)
}
