package portalauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/portalauth/profile"
)

// OutcomeCode is the closed set of caller-facing failure classes. Codes are
// safe to place in a redirect query string.
type OutcomeCode string

const (
	OutcomeOK                   OutcomeCode = ""
	OutcomeValidation           OutcomeCode = "validation"
	OutcomeRateLimited          OutcomeCode = "rate_limited"
	OutcomeCSRFInvalid          OutcomeCode = "csrf_invalid"
	OutcomeAuthenticationFailed OutcomeCode = "authentication_failed"
	OutcomeAccountInactive      OutcomeCode = "account_inactive"
	OutcomeNotAssigned          OutcomeCode = "not_assigned"
	OutcomeStoreUnavailable     OutcomeCode = "store_unavailable"
	OutcomeAccessDenied         OutcomeCode = "access_denied"
	OutcomeSessionExpired       OutcomeCode = "session_expired"
)

const (
	msgValidation      = "Please provide a valid role, email/username and password."
	msgRateLimited     = "Too many login attempts. Please try again later."
	msgCSRFInvalid     = "Security token validation failed."
	msgAuthFailed      = "Invalid email/username, password, or role."
	msgAccountInactive = "This account is not active for the selected role. Please contact an administrator."
	msgNotAssigned     = "You are not assigned to any department. Please contact an administrator."
	msgUnavailable     = "Database error. Please try again later."
	msgAccessDenied    = "Access denied. Please log in with appropriate credentials."
	msgSessionExpired  = "Your session has expired. Please log in again."
)

// Outcome is what a caller may show for an error. Message never contains
// internal detail.
type Outcome struct {
	Code       OutcomeCode
	Message    string
	Route      string
	RetryAfter time.Duration
}

// OutcomeFor classifies err. A nil error yields the zero Outcome; an error
// outside the known set classifies as store unavailable.
func OutcomeFor(err error) Outcome {
	if err == nil {
		return Outcome{}
	}

	var out Outcome
	switch {
	case errors.Is(err, ErrValidation):
		out = OutcomeForCode(OutcomeValidation)
	case errors.Is(err, ErrRateLimited):
		out = OutcomeForCode(OutcomeRateLimited)
	case errors.Is(err, ErrCSRFInvalid):
		out = OutcomeForCode(OutcomeCSRFInvalid)
	case errors.Is(err, ErrAccountInactive), errors.Is(err, ErrRoleMismatch):
		out = OutcomeForCode(OutcomeAccountInactive)
	case errors.Is(err, ErrInvalidCredentials):
		out = OutcomeForCode(OutcomeAuthenticationFailed)
	case errors.Is(err, ErrNotAssigned):
		out = OutcomeForCode(OutcomeNotAssigned)
	case errors.Is(err, ErrSessionExpired):
		out = OutcomeForCode(OutcomeSessionExpired)
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrSessionBindingMismatch):
		out = OutcomeForCode(OutcomeAccessDenied)
	default:
		out = OutcomeForCode(OutcomeStoreUnavailable)
	}

	var le *LoginError
	if errors.As(err, &le) && le.RetryAfter > 0 {
		out.RetryAfter = le.RetryAfter
	}
	return out
}

// OutcomeForCode returns the Outcome for a code read back from a redirect.
// An unknown code yields the zero Outcome.
func OutcomeForCode(code OutcomeCode) Outcome {
	out := Outcome{Code: code, Route: profile.RouteLogin}
	switch code {
	case OutcomeValidation:
		out.Message = msgValidation
	case OutcomeRateLimited:
		out.Message = msgRateLimited
	case OutcomeCSRFInvalid:
		out.Message = msgCSRFInvalid
	case OutcomeAuthenticationFailed:
		out.Message = msgAuthFailed
	case OutcomeAccountInactive:
		out.Message = msgAccountInactive
	case OutcomeNotAssigned:
		out.Message = msgNotAssigned
		out.Route = profile.RouteNotAssigned
	case OutcomeStoreUnavailable:
		out.Message = msgUnavailable
	case OutcomeAccessDenied:
		out.Message = msgAccessDenied
	case OutcomeSessionExpired:
		out.Message = msgSessionExpired
	default:
		return Outcome{}
	}
	return out
}
