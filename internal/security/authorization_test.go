package security

import (
	"errors"
	"testing"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

func profile(role domain.Role, id string, pharmacyID int64) *domain.Profile {
	p := &domain.Profile{User: &domain.User{ID: id, Role: role}}
	if role == domain.RolePharmacist {
		p.Pharmacist = &domain.PharmacistProfile{UserID: id}
		if pharmacyID > 0 {
			p.Pharmacist.PharmacyID = &pharmacyID
		}
	}
	return p
}

func TestPermissions(t *testing.T) {
	as := NewAuthorizationService(nil)

	if !as.HasPermission(domain.RoleAdmin, PermApprovePharmacy) {
		t.Fatal("expected admin to approve pharmacies")
	}
	if as.HasPermission(domain.RolePharmacist, PermApprovePharmacy) {
		t.Fatal("expected pharmacist not to approve pharmacies")
	}
	if err := as.ValidatePermission(domain.RoleClient, PermManageInventory); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestReservationAccess(t *testing.T) {
	as := NewAuthorizationService(nil)
	r := &domain.Reservation{ID: 1, PharmacyID: 3, ClientUserID: "client-a"}

	allowed := []*domain.Profile{
		profile(domain.RoleAdmin, "admin", 0),
		profile(domain.RoleClient, "client-a", 0),
		profile(domain.RolePharmacist, "ph", 3),
	}
	for _, p := range allowed {
		if err := as.ValidateReservationAccess(p, r); err != nil {
			t.Fatalf("expected %s to access reservation, got %v", p.User.ID, err)
		}
	}

	denied := []*domain.Profile{
		profile(domain.RoleClient, "client-b", 0),
		profile(domain.RolePharmacist, "ph-other", 4),
		profile(domain.RolePharmacist, "ph-unlinked", 0),
		nil,
	}
	for _, p := range denied {
		if err := as.ValidateReservationAccess(p, r); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	}
}

func TestScopeReservations(t *testing.T) {
	as := NewAuthorizationService(nil)

	var f domain.ReservationFilter
	if err := as.ScopeReservations(profile(domain.RoleClient, "client-a", 0), &f); err != nil || f.ClientUserID != "client-a" {
		t.Fatalf("expected client scope, got %+v (%v)", f, err)
	}

	f = domain.ReservationFilter{ClientUserID: "someone"}
	if err := as.ScopeReservations(profile(domain.RolePharmacist, "ph", 9), &f); err != nil || f.PharmacyID != 9 {
		t.Fatalf("expected pharmacy scope, got %+v (%v)", f, err)
	}

	f = domain.ReservationFilter{}
	if err := as.ScopeReservations(profile(domain.RolePharmacist, "ph", 0), &f); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected unlinked pharmacist to be refused, got %v", err)
	}
}

func TestClientsMayOnlyCancel(t *testing.T) {
	as := NewAuthorizationService(nil)
	if err := as.ValidateStatusChange(domain.RoleClient, domain.StatusConfirmed); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := as.ValidateStatusChange(domain.RoleClient, domain.StatusCancelled); err != nil {
		t.Fatalf("expected cancel to be allowed, got %v", err)
	}
	if err := as.ValidateStatusChange(domain.RolePharmacist, domain.StatusFulfilled); err != nil {
		t.Fatalf("expected pharmacist transition to be allowed, got %v", err)
	}
}
