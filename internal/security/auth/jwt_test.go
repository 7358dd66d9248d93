package auth

import (
	"testing"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

func TestGenerateAndValidate(t *testing.T) {
	tm := NewTokenManager("secret", "swiftmeds")

	token, claims, err := tm.GenerateToken("user-1", "a@example.com", domain.RolePharmacist, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id for revocation")
	}

	got, err := tm.ValidateToken(token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if got.UserID != "user-1" || got.Role != domain.RolePharmacist || got.ID != claims.ID {
		t.Fatalf("unexpected claims: %+v", got)
	}
}

func TestValidateRejectsForeignAndExpiredTokens(t *testing.T) {
	tm := NewTokenManager("secret", "swiftmeds")
	other := NewTokenManager("other-secret", "swiftmeds")

	token, _, _ := other.GenerateToken("user-1", "a@example.com", domain.RoleClient, time.Hour)
	if _, err := tm.ValidateToken(token); err == nil {
		t.Fatal("expected token signed with another secret to fail")
	}

	past := time.Now().Add(-2 * time.Hour)
	tm.now = func() time.Time { return past }
	expired, _, _ := tm.GenerateToken("user-1", "a@example.com", domain.RoleClient, time.Hour)
	tm.now = time.Now
	if _, err := tm.ValidateToken(expired); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestExtractToken(t *testing.T) {
	if tok, err := ExtractToken("Bearer abc"); err != nil || tok != "abc" {
		t.Fatalf("expected abc, got %q (%v)", tok, err)
	}
	for _, h := range []string{"", "abc", "Basic abc", "Bearer ", "Bearer a b"} {
		if _, err := ExtractToken(h); err == nil {
			t.Fatalf("expected error for header %q", h)
		}
	}
}
