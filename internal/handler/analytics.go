package handler

import (
	"log/slog"
	"net/http"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security"
	"github.com/kekelo17/Swift-Meds-sub000/internal/service"
)

type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	profiles  ProfileResolver
	authz     *security.AuthorizationService
	logger    *slog.Logger
}

func NewAnalyticsHandler(analytics *service.AnalyticsService, profiles ProfileResolver, authz *security.AuthorizationService, logger *slog.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsHandler{analytics: analytics, profiles: profiles, authz: authz, logger: logger}
}

// Reservations handles GET /api/analytics/reservations?period=7d. Pharmacists
// see their own pharmacy only.
func (h *AnalyticsHandler) Reservations(w http.ResponseWriter, r *http.Request) {
	profile, err := currentProfile(r, h.profiles)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.authz.ValidatePermission(profile.User.Role, security.PermViewAnalytics); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var scope domain.ReservationFilter
	if err := h.authz.ScopeReservations(profile, &scope); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	out, err := h.analytics.Reservations(r.Context(), r.URL.Query().Get("period"), scope)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
