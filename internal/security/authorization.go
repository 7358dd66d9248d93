package security

import (
	"fmt"
	"log/slog"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermCreateReservation  Permission = "create_reservation"
	PermManageReservations Permission = "manage_reservations"
	PermManageInventory    Permission = "manage_inventory"
	PermCreatePharmacy     Permission = "create_pharmacy"
	PermApprovePharmacy    Permission = "approve_pharmacy"
	PermCreateMedication   Permission = "create_medication"
	PermWriteReview        Permission = "write_review"
	PermViewAnalytics      Permission = "view_analytics"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermCreateReservation,
		PermManageReservations,
		PermManageInventory,
		PermCreatePharmacy,
		PermApprovePharmacy,
		PermCreateMedication,
		PermViewAnalytics,
	},
	domain.RolePharmacist: {
		PermCreateReservation,
		PermManageReservations,
		PermManageInventory,
		PermCreatePharmacy,
		PermViewAnalytics,
	},
	domain.RoleClient: {
		PermCreateReservation,
		PermWriteReview,
	},
}

// AuthorizationService handles role and ownership checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidatePermission returns domain.ErrForbidden unless role has permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("%w: %s role cannot %s", domain.ErrForbidden, role, permission)
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	return RolePermissions[role]
}
