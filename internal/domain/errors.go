package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrEmailTaken           = errors.New("email_taken")
	ErrUserNotFound         = errors.New("user_not_found")
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrInsufficientHolding  = errors.New("insufficient_holding")
	ErrInsufficientPosition = errors.New("insufficient_position")
	ErrConcurrencyConflict  = errors.New("concurrency_conflict")
	ErrStorage              = errors.New("storage_error")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
