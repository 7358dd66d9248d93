package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/audit"
	"github.com/kekelo17/Swift-Meds-sub000/internal/service"
)

// PharmacyHandler serves /api/pharmacies and their reviews
type PharmacyHandler struct {
	pharmacies *service.PharmacyService
	profiles   ProfileResolver
	authz      *security.AuthorizationService
	auditLog   *audit.Logger
	logger     *slog.Logger
}

func NewPharmacyHandler(
	pharmacies *service.PharmacyService,
	profiles ProfileResolver,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *PharmacyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &PharmacyHandler{
		pharmacies: pharmacies,
		profiles:   profiles,
		authz:      authz,
		auditLog:   auditLog,
		logger:     logger,
	}
}

// ReviewRequest is the body of POST /api/pharmacies/{id}/reviews
type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// List handles GET /api/pharmacies?approved=true&search=
func (h *PharmacyHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.PharmacyFilter{
		ApprovedOnly: queryBool(r, "approved"),
		Search:       r.URL.Query().Get("search"),
	}
	list, err := h.pharmacies.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/pharmacies/{id}
func (h *PharmacyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	p, err := h.pharmacies.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Create handles POST /api/pharmacies
func (h *PharmacyHandler) Create(w http.ResponseWriter, r *http.Request) {
	profile, err := currentProfile(r, h.profiles)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.authz.ValidatePermission(profile.User.Role, security.PermCreatePharmacy); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var in service.CreatePharmacyInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	p, err := h.pharmacies.Create(r.Context(), in, profile.User.ID, profile.User.Role)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.auditLog.LogPharmacy(r.Context(), profile.User.ID, "create", strconv.FormatInt(p.ID, 10), string(p.Status))
	writeJSON(w, http.StatusCreated, p)
}

// Approve handles PUT /api/pharmacies/{id}/approve
func (h *PharmacyHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "approve", h.pharmacies.Approve)
}

// Reject handles PUT /api/pharmacies/{id}/reject
func (h *PharmacyHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "reject", h.pharmacies.Reject)
}

func (h *PharmacyHandler) decide(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	apply func(ctx context.Context, id int64) (*domain.Pharmacy, error),
) {
	profile, err := currentProfile(r, h.profiles)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.authz.ValidatePermission(profile.User.Role, security.PermApprovePharmacy); err != nil {
		h.auditLog.LogDenied(r.Context(), profile.User.ID, action+" pharmacy")
		respondError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	p, err := apply(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.auditLog.LogPharmacy(r.Context(), profile.User.ID, action, strconv.FormatInt(id, 10), string(p.Status))
	writeJSON(w, http.StatusOK, p)
}

// ListReviews handles GET /api/pharmacies/{id}/reviews
func (h *PharmacyHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	reviews, err := h.pharmacies.ListReviews(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

// AddReview handles POST /api/pharmacies/{id}/reviews
func (h *PharmacyHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	profile, err := currentProfile(r, h.profiles)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.authz.ValidatePermission(profile.User.Role, security.PermWriteReview); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	review, err := h.pharmacies.AddReview(r.Context(), profile.User.ID, id, req.Rating, req.Comment)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}
