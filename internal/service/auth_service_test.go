package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/repository"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/auth"
	"github.com/kekelo17/Swift-Meds-sub000/internal/testutil"
)

type memUserRepo struct {
	byID    map[string]*domain.User
	byEmail map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]*domain.User{}, byEmail: map[string]*domain.User{}}
}

func (m *memUserRepo) Create(_ context.Context, u *domain.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return domain.ErrEmailTaken
	}
	if u.ID == "" {
		u.ID = "u-" + u.Email
	}
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u
	return nil
}
func (m *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}
func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}
func (m *memUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

type memProfileRepo struct {
	nextID      int64
	clients     map[string]*domain.ClientProfile
	pharmacists map[string]*domain.PharmacistProfile
	admins      map[string]*domain.AdminProfile
	failOn      string
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{
		clients:     map[string]*domain.ClientProfile{},
		pharmacists: map[string]*domain.PharmacistProfile{},
		admins:      map[string]*domain.AdminProfile{},
	}
}

func (m *memProfileRepo) fail(op string) error {
	if m.failOn == op {
		return fmt.Errorf("%s: boom", op)
	}
	m.nextID++
	return nil
}
func (m *memProfileRepo) CreateClient(_ context.Context, p *domain.ClientProfile) error {
	if err := m.fail("client"); err != nil {
		return err
	}
	p.ID = m.nextID
	m.clients[p.UserID] = p
	return nil
}
func (m *memProfileRepo) CreatePharmacist(_ context.Context, p *domain.PharmacistProfile) error {
	if err := m.fail("pharmacist"); err != nil {
		return err
	}
	p.ID = m.nextID
	m.pharmacists[p.UserID] = p
	return nil
}
func (m *memProfileRepo) CreateAdmin(_ context.Context, p *domain.AdminProfile) error {
	if err := m.fail("admin"); err != nil {
		return err
	}
	p.ID = m.nextID
	m.admins[p.UserID] = p
	return nil
}
func (m *memProfileRepo) GetClientByUserID(_ context.Context, userID string) (*domain.ClientProfile, error) {
	if p, ok := m.clients[userID]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}
func (m *memProfileRepo) GetPharmacistByUserID(_ context.Context, userID string) (*domain.PharmacistProfile, error) {
	if p, ok := m.pharmacists[userID]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}
func (m *memProfileRepo) GetAdminByUserID(_ context.Context, userID string) (*domain.AdminProfile, error) {
	if p, ok := m.admins[userID]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}
func (m *memProfileRepo) LinkPharmacy(_ context.Context, pharmacistID, pharmacyID int64) error {
	for _, p := range m.pharmacists {
		if p.ID == pharmacistID {
			p.PharmacyID = &pharmacyID
			return nil
		}
	}
	return domain.ErrNotFound
}

type inlineTx struct{}

func (inlineTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memRevocations struct {
	ids map[string]time.Duration
}

func (m *memRevocations) Revoke(_ context.Context, id string, ttl time.Duration) error {
	m.ids[id] = ttl
	return nil
}
func (m *memRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	_, ok := m.ids[id]
	return ok, nil
}

func newMemAuth() (*AuthService, *memUserRepo, *memProfileRepo) {
	users := newMemUserRepo()
	profiles := newMemProfileRepo()
	s := NewAuthService(users, profiles, nil, inlineTx{}, auth.NewTokenManager("secret", ""), time.Hour, nil, nil)
	return s, users, profiles
}

func TestSignupAndSignin(t *testing.T) {
	s, _, profiles := newMemAuth()
	ctx := context.Background()

	r, err := s.Signup(ctx, SignupInput{Email: " Alice@Example.com ", Password: "Password123", FullName: "Alice"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if r.User.ID == "" || r.Token == "" || r.TokenType != "Bearer" {
		t.Fatalf("expected user id and token, got %+v", r)
	}
	if r.User.Role != domain.RoleClient || r.User.Email != "alice@example.com" {
		t.Fatalf("expected normalized client account, got %+v", r.User)
	}
	if _, ok := profiles.clients[r.User.ID]; !ok {
		t.Fatal("expected client profile row")
	}
	if r.User.PasswordHash == "Password123" {
		t.Fatal("password stored in clear")
	}

	// duplicate email
	if _, err := s.Signup(ctx, SignupInput{Email: "alice@example.com", Password: "Password123", FullName: "Other"}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	in, err := s.Signin(ctx, "alice@example.com", "Password123")
	if err != nil {
		t.Fatalf("signin failed: %v", err)
	}
	claims, err := s.VerifyToken(ctx, in.Token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.UserID != r.User.ID || claims.Role != domain.RoleClient {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := s.Signin(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := s.Signin(ctx, "nobody@example.com", "Password123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	s, _, _ := newMemAuth()
	tests := []SignupInput{
		{Email: "", Password: "Password123", FullName: "A"},
		{Email: "not-an-email", Password: "Password123", FullName: "A"},
		{Email: "a@example.com", Password: "short", FullName: "A"},
		{Email: "a@example.com", Password: "Password123", FullName: " "},
		{Email: "a@example.com", Password: "Password123", FullName: "A", Role: "superuser"},
	}
	for _, in := range tests {
		if _, err := s.Signup(context.Background(), in); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%+v: expected ErrValidation, got %v", in, err)
		}
	}
}

func TestSignupProfileFailure(t *testing.T) {
	s, _, profiles := newMemAuth()
	profiles.failOn = "admin"

	_, err := s.Signup(context.Background(), SignupInput{Email: "root@example.com", Password: "Password123", FullName: "Root", Role: domain.RoleAdmin})
	if !errors.Is(err, domain.ErrSignupFailed) {
		t.Fatalf("expected ErrSignupFailed, got %v", err)
	}
}

func TestSignoutRevokesToken(t *testing.T) {
	s, _, _ := newMemAuth()
	remote := &memRevocations{ids: map[string]time.Duration{}}
	s.UseRevocationStore(remote)
	ctx := context.Background()

	r, err := s.Signup(ctx, SignupInput{Email: "bob@example.com", Password: "Password123", FullName: "Bob"})
	if err != nil {
		t.Fatal(err)
	}
	claims, err := s.VerifyToken(ctx, r.Token)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Signout(ctx, claims); err != nil {
		t.Fatalf("signout: %v", err)
	}
	if _, err := s.VerifyToken(ctx, r.Token); err == nil {
		t.Fatal("expected revoked token to fail verification")
	}
	if ttl, ok := remote.ids[claims.ID]; !ok || ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected revocation shared with ttl up to 1h, got %v (present=%v)", ttl, ok)
	}

	// another instance that only sees the shared store
	other, _, _ := newMemAuth()
	other.tokens = s.tokens
	other.UseRevocationStore(remote)
	if _, err := other.VerifyToken(ctx, r.Token); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected shared revocation to apply, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	s, _, _ := newMemAuth()
	ctx := context.Background()
	r, err := s.Signup(ctx, SignupInput{Email: "carol@example.com", Password: "Password123", FullName: "Carol"})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.ChangePassword(ctx, r.User.ID, "wrong", "NewPassword1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := s.ChangePassword(ctx, r.User.ID, "Password123", "short"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := s.ChangePassword(ctx, r.User.ID, "Password123", "NewPassword1"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := s.Signin(ctx, "carol@example.com", "NewPassword1"); err != nil {
		t.Fatalf("signin with new password: %v", err)
	}
}

func TestResolveProfile(t *testing.T) {
	s, users, _ := newMemAuth()
	ctx := context.Background()

	r, err := s.Signup(ctx, SignupInput{Email: "dan@example.com", Password: "Password123", FullName: "Dan", Role: domain.RolePharmacist, LicenseNumber: "LIC-1"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.ResolveProfile(ctx, r.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Pharmacist == nil || p.Pharmacist.LicenseNumber != "LIC-1" || p.Client != nil || p.Admin != nil {
		t.Fatalf("unexpected profile %+v", p)
	}

	if _, err := s.ResolveProfile(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}

	// a user row without its role row
	_ = users.Create(ctx, &domain.User{ID: "orphan", Email: "orphan@example.com", Role: domain.RoleAdmin})
	if _, err := s.ResolveProfile(ctx, "orphan"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing profile row, got %v", err)
	}
}

func TestSignupPharmacistCreatesPendingPharmacy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r, err := e.auth.Signup(ctx, SignupInput{
		Email:         "owner@example.com",
		Password:      "Password123",
		FullName:      "Owner",
		Role:          domain.RolePharmacist,
		LicenseNumber: "LIC-9",
		PharmacyName:  "Hilltop Pharmacy",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	p, err := e.auth.ResolveProfile(ctx, r.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	pharmacy, err := e.pharmacies.Get(ctx, p.PharmacyID())
	if err != nil {
		t.Fatalf("linked pharmacy: %v", err)
	}
	if pharmacy.Name != "Hilltop Pharmacy" || pharmacy.IsApproved || pharmacy.Status != domain.PharmacyPending {
		t.Fatalf("expected pending unapproved pharmacy, got %+v", pharmacy)
	}
	if e.events.count(domain.TopicPharmacies, domain.EventInsert) != 1 {
		t.Error("expected a pharmacy insert event")
	}
}

// failingProfiles fails the role row so the user insert has to roll back
type failingProfiles struct {
	*repository.ProfileRepository
}

func (failingProfiles) CreateClient(context.Context, *domain.ClientProfile) error {
	return errors.New("disk full")
}

func TestSignupRollsBack(t *testing.T) {
	db := testutil.OpenDB(t)
	users := repository.NewUserRepository(db, nil)
	profiles := failingProfiles{repository.NewProfileRepository(db, nil)}
	s := NewAuthService(users, profiles, repository.NewPharmacyRepository(db, nil), repository.NewStore(db, nil),
		auth.NewTokenManager("secret", ""), time.Hour, nil, nil)

	_, err := s.Signup(context.Background(), SignupInput{Email: "eve@example.com", Password: "Password123", FullName: "Eve"})
	if !errors.Is(err, domain.ErrSignupFailed) {
		t.Fatalf("expected ErrSignupFailed, got %v", err)
	}

	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM users`); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected user insert to be rolled back, found %d users", n)
	}
}
