package errors

import (
	"errors"
	"fmt"
)

// Common error types for the dashboard service
var (
	// Login errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateMismatch   = errors.New("state mismatch")
	ErrTokenExchange   = errors.New("token exchange failed")
	ErrInvalidSession  = errors.New("invalid session")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidRedirect = errors.New("invalid redirect target")

	// Upstream errors
	ErrGitHubAPI = errors.New("github api error")
	ErrStripeAPI = errors.New("stripe api error")

	// Billing errors
	ErrMissingSignature   = errors.New("missing signature")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrPaymentIncomplete  = errors.New("payment not completed")
	ErrMissingFields      = errors.New("missing required fields")
	ErrNoCustomerOnRecord = errors.New("no subscription found")

	// General errors
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
