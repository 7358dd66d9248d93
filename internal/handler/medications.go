package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security"
	"github.com/kekelo17/Swift-Meds-sub000/internal/service"
)

// MedicationHandler serves the medication catalog and the combined search
type MedicationHandler struct {
	medications *service.MedicationService
	profiles    ProfileResolver
	authz       *security.AuthorizationService
	logger      *slog.Logger
}

func NewMedicationHandler(medications *service.MedicationService, profiles ProfileResolver, authz *security.AuthorizationService, logger *slog.Logger) *MedicationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MedicationHandler{medications: medications, profiles: profiles, authz: authz, logger: logger}
}

// List handles GET /api/medications?search=&category=&inStock=&pharmacy=
func (h *MedicationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.MedicationFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		InStock:  queryBool(r, "inStock"),
	}
	if v := q.Get("pharmacy"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "pharmacy must be a number")
			return
		}
		filter.PharmacyID = id
	}

	meds, err := h.medications.Search(r.Context(), filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meds)
}

// Get handles GET /api/medications/{id}
func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	m, err := h.medications.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Create handles POST /api/medications
func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	profile, err := currentProfile(r, h.profiles)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.authz.ValidatePermission(profile.User.Role, security.PermCreateMedication); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var m domain.Medication
	if err := decodeJSON(w, r, &m); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	m.ID = 0
	if err := h.medications.Create(r.Context(), &m); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// Search handles GET /api/search?q=
func (h *MedicationHandler) Search(w http.ResponseWriter, r *http.Request) {
	res, err := h.medications.SearchAll(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
