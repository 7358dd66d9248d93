package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/audit"
	"github.com/kekelo17/Swift-Meds-sub000/internal/service"
)

// ReservationHandler serves /api/reservations
type ReservationHandler struct {
	reservations *service.ReservationService
	profiles     ProfileResolver
	authz        *security.AuthorizationService
	auditLog     *audit.Logger
	logger       *slog.Logger
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(
	reservations *service.ReservationService,
	profiles ProfileResolver,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *ReservationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &ReservationHandler{
		reservations: reservations,
		profiles:     profiles,
		authz:        authz,
		auditLog:     auditLog,
		logger:       logger,
	}
}

// BulkRequest is the body of POST /api/reservations/bulk
type BulkRequest struct {
	IDs    []int64                  `json:"ids"`
	Action string                   `json:"action"`
	Data   *domain.ReservationPatch `json:"data,omitempty"`
}

// filterFromQuery reads search, status, pharmacy, date (YYYY-MM-DD), page
// and limit. pharmacyId and pageSize are accepted as older spellings.
func filterFromQuery(r *http.Request) (domain.ReservationFilter, error) {
	q := r.URL.Query()
	f := domain.ReservationFilter{
		Status: domain.ReservationStatus(q.Get("status")),
		Search: q.Get("search"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, f.Status)
	}
	if name, v := firstQuery(q, "pharmacy", "pharmacyId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("%w: %s must be a number", domain.ErrValidation, name)
		}
		f.PharmacyID = id
	}
	if v := q.Get("date"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return f, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrValidation)
		}
		f.Date = &d
	}
	var err error
	if f.Page, err = queryInt(r, "page"); err != nil {
		return f, err
	}
	name, _ := firstQuery(q, "limit", "pageSize")
	if f.PageSize, err = queryInt(r, name); err != nil {
		return f, err
	}
	return f, nil
}

// firstQuery returns the first of names present in q, and its value
func firstQuery(q url.Values, names ...string) (string, string) {
	for _, name := range names {
		if v := q.Get(name); v != "" {
			return name, v
		}
	}
	return names[0], ""
}

// scopedFilter builds the listing filter and narrows it to the caller
func (h *ReservationHandler) scopedFilter(r *http.Request) (domain.ReservationFilter, error) {
	f, err := filterFromQuery(r)
	if err != nil {
		return f, err
	}
	profile, err := currentProfile(r, h.profiles)
	if err != nil {
		return f, err
	}
	if err := h.authz.ScopeReservations(profile, &f); err != nil {
		return f, err
	}
	return f, nil
}

// List handles GET /api/reservations
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := h.scopedFilter(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	page, err := h.reservations.List(r.Context(), f)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Stats handles GET /api/reservations/stats
func (h *ReservationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	f, err := h.scopedFilter(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	stats, err := h.reservations.Stats(r.Context(), f)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Create handles POST /api/reservations. Clients always reserve for
// themselves; pharmacists and admins name the client.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	profile, err := currentProfile(r, h.profiles)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.authz.ValidatePermission(profile.User.Role, security.PermCreateReservation); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var in service.CreateReservationInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	in.CallerRole = profile.User.Role
	switch profile.User.Role {
	case domain.RoleClient:
		in.ClientUserID = profile.User.ID
	case domain.RolePharmacist:
		if err := h.authz.ValidatePharmacyAccess(profile, in.PharmacyID); err != nil {
			respondError(w, r, h.logger, err)
			return
		}
	}

	res, err := h.reservations.Create(r.Context(), in)
	if err != nil {
		h.auditLog.LogReservation(r.Context(), profile.User.ID, "create", "", "failure")
		respondError(w, r, h.logger, err)
		return
	}

	h.auditLog.LogReservation(r.Context(), profile.User.ID, "create", strconv.FormatInt(res.ID, 10), "success")
	writeJSON(w, http.StatusCreated, res)
}

// load fetches the reservation named in the path after checking the caller may see it
func (h *ReservationHandler) load(r *http.Request) (*domain.Profile, *domain.Reservation, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, nil, err
	}
	profile, err := currentProfile(r, h.profiles)
	if err != nil {
		return nil, nil, err
	}
	res, err := h.reservations.Get(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	if err := h.authz.ValidateReservationAccess(profile, res); err != nil {
		h.auditLog.LogDenied(r.Context(), profile.User.ID, err.Error())
		return nil, nil, err
	}
	return profile, res, nil
}

// Get handles GET /api/reservations/{id}
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, res, err := h.load(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Update handles PUT /api/reservations/{id}. Clients may only cancel.
func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	profile, res, err := h.load(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var patch domain.ReservationPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if profile.User.Role == domain.RoleClient {
		if patch.Quantity != nil || patch.TotalAmount != nil {
			respondError(w, r, h.logger, fmt.Errorf("%w: clients may only change the patient name or cancel", domain.ErrForbidden))
			return
		}
		if patch.Status != nil && *patch.Status != res.Status {
			if err := h.authz.ValidateStatusChange(profile.User.Role, *patch.Status); err != nil {
				respondError(w, r, h.logger, err)
				return
			}
		}
	}

	updated, err := h.reservations.Update(r.Context(), res.ID, patch)
	if err != nil {
		h.auditLog.LogReservation(r.Context(), profile.User.ID, "update", strconv.FormatInt(res.ID, 10), "failure")
		respondError(w, r, h.logger, err)
		return
	}

	h.auditLog.LogReservation(r.Context(), profile.User.ID, "update", strconv.FormatInt(res.ID, 10), string(updated.Status))
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/reservations/{id}
func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	profile, res, err := h.load(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.reservations.Delete(r.Context(), res.ID); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.auditLog.LogReservation(r.Context(), profile.User.ID, "delete", strconv.FormatInt(res.ID, 10), "success")
	w.WriteHeader(http.StatusNoContent)
}

// Bulk handles POST /api/reservations/bulk. Reservations outside the
// caller's pharmacy are skipped like missing ones.
func (h *ReservationHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	profile, err := currentProfile(r, h.profiles)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.authz.ValidatePermission(profile.User.Role, security.PermManageReservations); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req BulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	visible := func(res *domain.Reservation) bool {
		return h.authz.ValidateReservationAccess(profile, res) == nil
	}
	result, err := h.reservations.BulkUpdate(r.Context(), req.IDs, req.Action, req.Data, visible)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.auditLog.LogAction(r.Context(), profile.User.ID, "bulk_"+req.Action, "reservation", "", "success",
		fmt.Sprintf("affected=%d", result.Affected))
	writeJSON(w, http.StatusOK, result)
}
