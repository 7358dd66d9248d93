package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kekelo17/Swift-Meds-sub000/internal/security"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/audit"
	"github.com/kekelo17/Swift-Meds-sub000/internal/service"
)

// InventoryHandler serves the stock of a pharmacy
type InventoryHandler struct {
	inventory *service.InventoryService
	profiles  ProfileResolver
	authz     *security.AuthorizationService
	auditLog  *audit.Logger
	logger    *slog.Logger
}

func NewInventoryHandler(
	inventory *service.InventoryService,
	profiles ProfileResolver,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *InventoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &InventoryHandler{
		inventory: inventory,
		profiles:  profiles,
		authz:     authz,
		auditLog:  auditLog,
		logger:    logger,
	}
}

// SetQuantityRequest is the body of PUT /api/pharmacies/{id}/inventory/{medicationId}
type SetQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// List handles GET /api/pharmacies/{id}/inventory
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	entries, err := h.inventory.GetInventory(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Set handles PUT /api/pharmacies/{id}/inventory/{medicationId}
func (h *InventoryHandler) Set(w http.ResponseWriter, r *http.Request) {
	pharmacyID, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	medicationID, err := pathID(r, "medicationId")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	profile, err := currentProfile(r, h.profiles)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.authz.ValidatePermission(profile.User.Role, security.PermManageInventory); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.authz.ValidatePharmacyAccess(profile, pharmacyID); err != nil {
		h.auditLog.LogDenied(r.Context(), profile.User.ID, err.Error())
		respondError(w, r, h.logger, err)
		return
	}

	var req SetQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "quantity is required")
		return
	}

	entry, err := h.inventory.SetQuantity(r.Context(), pharmacyID, medicationID, *req.Quantity)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.auditLog.LogAction(r.Context(), profile.User.ID, "set_quantity", "inventory",
		strconv.FormatInt(pharmacyID, 10)+"/"+strconv.FormatInt(medicationID, 10), "success", strconv.Itoa(entry.Quantity))
	writeJSON(w, http.StatusOK, entry)
}
