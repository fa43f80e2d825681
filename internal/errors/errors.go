package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the auth core. Signature and format failures collapse
// into one sentinel so callers cannot build an oracle out of the distinction.
var (
	// Token errors
	ErrSignatureInvalid = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenRevoked     = errors.New("token revoked")
	ErrAudienceMismatch = errors.New("audience mismatch")
	ErrMissingTokenID   = errors.New("token missing jti claim")
	ErrWrongTokenKind   = errors.New("wrong token kind")

	// Refresh/revocation errors
	ErrAlreadyRevoked = errors.New("token already revoked")

	// Webhook signature errors
	ErrReplayRejected = errors.New("request timestamp outside tolerance")

	// Permission denials (business outcomes, not auth failures)
	ErrInsufficientScope = errors.New("insufficient scope")
	ErrInsufficientPlan  = errors.New("insufficient plan")

	// Client errors
	ErrUnknownClient       = errors.New("unknown client")
	ErrInvalidClientSecret = errors.New("invalid client secret")
	ErrInvalidScope        = errors.New("invalid scope")

	// Identity assertion errors
	ErrInvalidAssertion = errors.New("invalid identity assertion")

	// Infrastructure errors, retryable, distinct from auth failures
	ErrStoreUnavailable = errors.New("session store unavailable")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
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

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
