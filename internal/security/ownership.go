package security

import (
	"fmt"
	"log/slog"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

// ValidateReservationAccess lets admins through, clients reach their own
// reservations and pharmacists the reservations of their pharmacy.
func (as *AuthorizationService) ValidateReservationAccess(p *domain.Profile, r *domain.Reservation) error {
	switch {
	case p == nil || p.User == nil:
		return fmt.Errorf("%w: no profile", domain.ErrForbidden)
	case p.User.Role == domain.RoleAdmin:
		return nil
	case p.User.Role == domain.RoleClient && r.ClientUserID == p.User.ID:
		return nil
	case p.User.Role == domain.RolePharmacist && p.PharmacyID() != 0 && r.PharmacyID == p.PharmacyID():
		return nil
	}

	as.logger.Warn("reservation access denied",
		slog.String("user_id", p.User.ID),
		slog.Int64("reservation_id", r.ID),
	)
	return fmt.Errorf("%w: reservation %d", domain.ErrForbidden, r.ID)
}

// ValidatePharmacyAccess lets admins and the pharmacists linked to the pharmacy through
func (as *AuthorizationService) ValidatePharmacyAccess(p *domain.Profile, pharmacyID int64) error {
	if p != nil && p.User != nil {
		if p.User.Role == domain.RoleAdmin {
			return nil
		}
		if p.User.Role == domain.RolePharmacist && p.PharmacyID() == pharmacyID {
			return nil
		}
	}
	return fmt.Errorf("%w: pharmacy %d", domain.ErrForbidden, pharmacyID)
}

// ValidateStatusChange restricts clients to cancelling their reservations
func (as *AuthorizationService) ValidateStatusChange(role domain.Role, status domain.ReservationStatus) error {
	if role == domain.RoleClient && status != domain.StatusCancelled {
		return fmt.Errorf("%w: clients may only cancel reservations", domain.ErrForbidden)
	}
	return nil
}

// ScopeReservations narrows a filter to what the profile may see
func (as *AuthorizationService) ScopeReservations(p *domain.Profile, f *domain.ReservationFilter) error {
	if p == nil || p.User == nil {
		return fmt.Errorf("%w: no profile", domain.ErrForbidden)
	}
	switch p.User.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleClient:
		f.ClientUserID = p.User.ID
		return nil
	case domain.RolePharmacist:
		if p.PharmacyID() == 0 {
			return fmt.Errorf("%w: pharmacist is not linked to a pharmacy", domain.ErrForbidden)
		}
		f.PharmacyID = p.PharmacyID()
		return nil
	}
	return fmt.Errorf("%w: unknown role %s", domain.ErrForbidden, p.User.Role)
}
