package handler

import (
	"log/slog"
	"net/http"

	"github.com/kekelo17/Swift-Meds-sub000/internal/security/middleware"
	"github.com/kekelo17/Swift-Meds-sub000/internal/service"
)

type NotificationHandler struct {
	notifications *service.NotificationService
	logger        *slog.Logger
}

func NewNotificationHandler(notifications *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// List handles GET /api/notifications?unread=true
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	list, err := h.notifications.List(r.Context(), claims.UserID, queryBool(r, "unread"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkRead handles PUT /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.notifications.MarkRead(r.Context(), claims.UserID, id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
