package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/audit"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/middleware"
	"github.com/kekelo17/Swift-Meds-sub000/internal/service"
)

// ProfileResolver loads the caller's user and role profile
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// currentProfile resolves the authenticated caller. The stored role wins over
// the role claimed in the token.
func currentProfile(r *http.Request, profiles ProfileResolver) (*domain.Profile, error) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		return nil, fmt.Errorf("%w: authentication required", domain.ErrUnauthorized)
	}
	return profiles.ResolveProfile(r.Context(), claims.UserID)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService      *service.AuthService
	allowAdminSignup bool
	auditLog         *audit.Logger
	logger           *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, allowAdminSignup bool, auditLog *audit.Logger, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &AuthHandler{
		authService:      authService,
		allowAdminSignup: allowAdminSignup,
		auditLog:         auditLog,
		logger:           logger,
	}
}

// SigninRequest is the body of POST /api/auth/signin
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest is the body of POST /api/auth/change-password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req service.SignupInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if req.Role == domain.RoleAdmin && !h.allowAdminSignup {
		respondError(w, r, h.logger, fmt.Errorf("%w: admin accounts cannot be self-registered", domain.ErrForbidden))
		return
	}

	result, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.auditLog.LogAction(r.Context(), result.User.ID, "signup", "user", result.User.ID, "success", string(result.User.Role))
	writeJSON(w, http.StatusCreated, result)
}

// Signin handles POST /api/auth/signin
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.authService.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.auditLog.LogAction(r.Context(), "", "signin", "user", req.Email, "failure", "")
		respondError(w, r, h.logger, err)
		return
	}

	h.auditLog.LogAction(r.Context(), result.User.ID, "signin", "user", result.User.ID, "success", "")
	writeJSON(w, http.StatusOK, result)
}

// Signout handles POST /api/auth/signout
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if err := h.authService.Signout(r.Context(), claims); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := currentProfile(r, h.authService)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.authService.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "change_password", "user", claims.UserID, "success", "")
	w.WriteHeader(http.StatusNoContent)
}
