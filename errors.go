package portalauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/portalauth/profile"
)

var (
	// ErrValidation is returned for a malformed login submission before any
	// store is touched. The concrete error is a [*ValidationError].
	ErrValidation = errors.New("invalid login submission")
	// ErrRateLimited is returned when the account or source window is full.
	ErrRateLimited = errors.New("login rate limited")
	// ErrCSRFInvalid is returned for a missing, expired or mismatched CSRF token.
	ErrCSRFInvalid = errors.New("csrf token invalid")
	// ErrInvalidCredentials is the generic authentication failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned for an inactive or suspended account
	// when account state disclosure is enabled.
	ErrAccountInactive = errors.New("account not active")
	// ErrRoleMismatch is returned when the account exists under another role
	// and account state disclosure is enabled.
	ErrRoleMismatch = errors.New("account not active for role")
	// ErrNotAssigned reports a principal without a usable role profile.
	ErrNotAssigned = profile.ErrNotAssigned
	// ErrStoreUnavailable wraps every store deadline or transport failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrPrincipalNotFound is returned by a [CredentialStore] for an unknown
	// identifier. It never reaches a caller of [Engine.Login].
	ErrPrincipalNotFound = errors.New("principal not found")

	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionExpired         = errors.New("session expired")
	ErrAccessDenied           = errors.New("access denied")
	ErrSessionBindingMismatch = errors.New("session binding mismatch")

	// ErrEngineNotReady is returned by a zero or misbuilt engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidConfig wraps every [Config.Validate] failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrBuilderUsed is returned by a second [Builder.Build] call.
	ErrBuilderUsed = errors.New("builder already used")
)

// ValidationError names the submission field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// LoginError carries the state a failed login attempt stopped in.
// RetryAfter is set only for [ErrRateLimited].
type LoginError struct {
	State      LoginState
	Err        error
	RetryAfter time.Duration
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login stopped in %s: %v", e.State, e.Err)
}

func (e *LoginError) Unwrap() error { return e.Err }
