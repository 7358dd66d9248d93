package domain

import "errors"

// Sentinel errors shared by services, repositories and handlers. Callers wrap
// them with fmt.Errorf("%w: ...") and match with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrClientNotFound     = errors.New("client not found")
	ErrSignupFailed       = errors.New("signup failed")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrMissingUpdateData  = errors.New("missing update data")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
