package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/security/auth"
	"github.com/kekelo17/Swift-Meds-sub000/pkg/cache"
)

const minPasswordLength = 8

// RevocationStore shares revoked token ids between API instances
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthService handles accounts, tokens and role profiles
type AuthService struct {
	users      domain.UserRepository
	profiles   domain.ProfileRepository
	pharmacies domain.PharmacyRepository
	tx         domain.Transactor
	tokens     *auth.TokenManager
	tokenTTL   time.Duration
	revoked    *cache.Cache[struct{}]
	remote     RevocationStore
	events     domain.EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users domain.UserRepository,
	profiles domain.ProfileRepository,
	pharmacies domain.PharmacyRepository,
	tx domain.Transactor,
	tokens *auth.TokenManager,
	tokenTTL time.Duration,
	events domain.EventPublisher,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = domain.NopPublisher{}
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	return &AuthService{
		users:      users,
		profiles:   profiles,
		pharmacies: pharmacies,
		tx:         tx,
		tokens:     tokens,
		tokenTTL:   tokenTTL,
		revoked:    cache.New[struct{}](),
		events:     events,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// UseRevocationStore makes signouts visible to every instance sharing store
func (s *AuthService) UseRevocationStore(store RevocationStore) {
	s.remote = store
}

// SignupInput is the registration form. Pharmacy fields apply to pharmacists only.
type SignupInput struct {
	Email           string      `json:"email"`
	Password        string      `json:"password"`
	FullName        string      `json:"fullName"`
	Role            domain.Role `json:"role"`
	Address         *string     `json:"address,omitempty"`
	Phone           *string     `json:"phone,omitempty"`
	DateOfBirth     *time.Time  `json:"dateOfBirth,omitempty"`
	IsPremium       bool        `json:"isPremium,omitempty"`
	LicenseNumber   string      `json:"licenseNumber,omitempty"`
	PharmacyName    string      `json:"pharmacyName,omitempty"`
	PharmacyAddress string      `json:"pharmacyAddress,omitempty"`
	PharmacyPhone   string      `json:"pharmacyPhone,omitempty"`
}

// AuthResult is returned by Signup and Signin
type AuthResult struct {
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresIn int          `json:"expiresIn"` // seconds
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

func validateSignup(in *SignupInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Role == "" {
		in.Role = domain.RoleClient
	}

	if in.Email == "" || in.Password == "" || in.FullName == "" {
		return fmt.Errorf("%w: email, password and full name are required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email address", domain.ErrValidation)
	}
	if len(in.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}
	if !in.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", domain.ErrValidation, in.Role)
	}
	return nil
}

// Signup creates the user, its role profile and, for a pharmacist naming a
// pharmacy, a pending pharmacy linked to the profile. All rows are written in
// one transaction.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if err := validateSignup(&in); err != nil {
		return nil, err
	}

	if existing, err := s.users.GetByEmail(ctx, in.Email); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmailTaken, in.Email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", domain.ErrSignupFailed, err)
	}

	now := s.now()
	user := &domain.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		FullName:     in.FullName,
		Role:         in.Role,
		Address:      in.Address,
		Phone:        in.Phone,
		DateOfBirth:  in.DateOfBirth,
		CreatedAt:    now,
	}
	var pharmacy *domain.Pharmacy

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}

		switch in.Role {
		case domain.RoleClient:
			return s.profiles.CreateClient(ctx, &domain.ClientProfile{UserID: user.ID, IsPremium: in.IsPremium})
		case domain.RoleAdmin:
			return s.profiles.CreateAdmin(ctx, &domain.AdminProfile{UserID: user.ID})
		}

		profile := &domain.PharmacistProfile{UserID: user.ID, LicenseNumber: in.LicenseNumber}
		if err := s.profiles.CreatePharmacist(ctx, profile); err != nil {
			return err
		}
		if strings.TrimSpace(in.PharmacyName) == "" {
			return nil
		}

		pharmacy = &domain.Pharmacy{
			Name:      strings.TrimSpace(in.PharmacyName),
			Address:   in.PharmacyAddress,
			Phone:     in.PharmacyPhone,
			Status:    domain.PharmacyPending,
			CreatedAt: now,
		}
		if err := s.pharmacies.Create(ctx, pharmacy); err != nil {
			return err
		}
		return s.profiles.LinkPharmacy(ctx, profile.ID, pharmacy.ID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		s.logger.Error("signup failed",
			slog.String("email", in.Email),
			slog.String("role", string(in.Role)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrSignupFailed, err)
	}

	if pharmacy != nil {
		s.events.Publish(ctx, domain.NewChangeEvent(domain.TopicPharmacies, domain.EventInsert, nil, pharmacy, now))
	}

	s.logger.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return s.issue(user)
}

// Signin checks the password and returns a fresh token
func (s *AuthService) Signin(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("signin attempt with unknown email", slog.String("email", email))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("signin failed with wrong password", slog.String("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}

	s.logger.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, claims, err := s.tokens.GenerateToken(user.ID, user.Email, user.Role, s.tokenTTL)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, err
	}

	return &AuthResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(s.tokenTTL.Seconds()),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
		User:      user,
	}, nil
}

// Signout revokes the token until it would have expired anyway
func (s *AuthService) Signout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return fmt.Errorf("%w: token has no id", domain.ErrUnauthorized)
	}

	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}

	s.revoked.Set(claims.ID, struct{}{}, ttl)
	if s.remote != nil {
		if err := s.remote.Revoke(ctx, claims.ID, ttl); err != nil {
			s.logger.Warn("failed to share token revocation",
				slog.String("user_id", claims.UserID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("user signed out", slog.String("user_id", claims.UserID))
	return nil
}

// VerifyToken validates a token and rejects revoked ones
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	if _, ok := s.revoked.Get(claims.ID); ok {
		return nil, fmt.Errorf("%w: token revoked", domain.ErrForbidden)
	}
	if s.remote != nil {
		revoked, err := s.remote.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("revocation check unavailable", slog.String("error", err.Error()))
		} else if revoked {
			return nil, fmt.Errorf("%w: token revoked", domain.ErrForbidden)
		}
	}
	return claims, nil
}

// ChangePassword replaces the password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: new password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.String("error", err.Error()))
		return fmt.Errorf("failed to change password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.logger.Info("user changed password", slog.String("user_id", userID))
	return nil
}

// ResolveProfile loads the user and the profile row of its role. A missing
// profile row is reported as ErrNotFound.
func (s *AuthService) ResolveProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &domain.Profile{User: user}
	switch user.Role {
	case domain.RoleClient:
		profile.Client, err = s.profiles.GetClientByUserID(ctx, userID)
	case domain.RolePharmacist:
		profile.Pharmacist, err = s.profiles.GetPharmacistByUserID(ctx, userID)
	case domain.RoleAdmin:
		profile.Admin, err = s.profiles.GetAdminByUserID(ctx, userID)
	default:
		return nil, fmt.Errorf("%w: user %s has unknown role %q", domain.ErrNotFound, userID, user.Role)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no %s profile for user %s", domain.ErrNotFound, user.Role, userID)
		}
		return nil, err
	}
	return profile, nil
}
