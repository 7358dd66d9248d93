package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

// ErrMalformedHeader is returned for an Authorization header that is not "Bearer <token>"
var ErrMalformedHeader = errors.New("invalid authorization header")

// Claims identify the user behind a token. RegisteredClaims.ID is the token
// id used for revocation.
type Claims struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret string
	issuer string
	now    func() time.Time
}

func NewTokenManager(secret, issuer string) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "swiftmeds"
	}
	return &TokenManager{secret: secret, issuer: issuer, now: time.Now}
}

// GenerateToken signs an HS256 token for the user and returns it with its claims
func (tm *TokenManager) GenerateToken(userID, email string, role domain.Role, expiresIn time.Duration) (string, *Claims, error) {
	if userID == "" || role == "" {
		return "", nil, fmt.Errorf("user_id and role required")
	}
	now := tm.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", nil, fmt.Errorf("sign token failed: %w", err)
	}
	return signed, claims, nil
}

// ValidateToken checks signature, issuer and expiry
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	}, jwt.WithIssuer(tm.issuer), jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ExtractToken returns the token of a "Bearer <token>" header
func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrMalformedHeader
	}
	return parts[1], nil
}
