package portalauth

import (
	"context"
	"slices"
	"time"

	"github.com/MrEthical07/portalauth/internal/flows"
	"github.com/MrEthical07/portalauth/profile"
	"github.com/MrEthical07/portalauth/session"
)

// Role is a principal's declared role. See [profile.Role].
type Role = profile.Role

const (
	RoleAdmin    = profile.RoleAdmin
	RoleLecturer = profile.RoleLecturer
	RoleStudent  = profile.RoleStudent
	RoleHOD      = profile.RoleHOD
	RoleTech     = profile.RoleTech
)

// Status is an account's lifecycle state as stored with the principal.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Principal is an authenticatable account. Credential is the stored
// credential string and is never logged or audited.
type Principal struct {
	ID         int64
	Username   string
	Email      string
	Credential string
	Role       Role
	Status     Status
	LastLogin  *time.Time
}

// CredentialStore is the principal query and update interface the engine
// depends on.
//
// PrincipalByIdentifier matches identifier against username or email for
// the given role and returns [ErrPrincipalNotFound] when nothing matches.
// Any other error is treated as a store failure.
type CredentialStore interface {
	PrincipalByIdentifier(ctx context.Context, identifier string, role Role) (Principal, error)
	UpdateCredential(ctx context.Context, principalID int64, credential string) error
	RecordLogin(ctx context.Context, principalID int64, at time.Time) error
}

// CredentialProber is implemented by credential stores that can look up an
// identifier under any role. The engine uses it to tell a role mismatch from
// an unknown account.
type CredentialProber interface {
	PrincipalByIdentifierAnyRole(ctx context.Context, identifier string) (Principal, error)
}

// LoginState is the state a login attempt reached.
type LoginState = flows.State

const (
	StateUnauthenticated         = flows.StateUnauthenticated
	StateCredentialsChecked      = flows.StateCredentialsChecked
	StateCredentialsRejected     = flows.StateCredentialsRejected
	StateRateLimited             = flows.StateRateLimited
	StateCSRFRejected            = flows.StateCSRFRejected
	StateProfileResolved         = flows.StateProfileResolved
	StateProfileResolutionFailed = flows.StateProfileResolutionFailed
	StateSessionEstablished      = flows.StateSessionEstablished
)

// LoginRequest is one login form submission.
type LoginRequest struct {
	Role       string
	Identifier string
	Secret     string
	CSRFToken  string
	RememberMe bool
}

// LoginResult reports a login attempt. Ticket, SessionID and Context are
// set only when State is [StateSessionEstablished]. CookieMaxAge is zero for
// a browser-session cookie.
type LoginResult struct {
	State        LoginState
	Ticket       string
	SessionID    string
	Route        string
	Context      *SecurityContext
	CookieMaxAge time.Duration
	Flags        []profile.Flag
}

// LoginPage carries what the login form needs. Ticket is empty when the
// caller's ticket still names a live pre-auth session.
type LoginPage struct {
	Ticket    string
	CSRFToken string
}

// SecurityContext is the authenticated session as seen by callers.
type SecurityContext struct {
	SessionID       string
	PrincipalID     int64
	Username        string
	Role            Role
	Profile         profile.RoleProfile
	CSRFToken       string
	CSRFIssuedAt    time.Time
	AuthenticatedAt time.Time
	ClientIP        string
	UserAgent       string
	RememberMe      bool
	ExpiresAt       time.Time
}

func securityContextFrom(rec *session.Record) *SecurityContext {
	sc := &SecurityContext{
		SessionID:       rec.ID,
		PrincipalID:     rec.PrincipalID,
		Username:        rec.Username,
		Role:            rec.Role,
		CSRFToken:       rec.CSRF.Token,
		CSRFIssuedAt:    rec.CSRF.IssuedAt,
		AuthenticatedAt: time.Unix(rec.AuthenticatedAt, 0),
		ClientIP:        rec.ClientIP,
		UserAgent:       rec.UserAgent,
		RememberMe:      rec.RememberMe,
		ExpiresAt:       time.Unix(rec.ExpiresAt, 0),
	}
	// A record written by a newer build may carry a variant this build
	// cannot decode; the session still authorises by role.
	if p, err := rec.Profile.Profile(); err == nil {
		sc.Profile = p
	}
	return sc
}

// RoleSet is the set of roles a resource admits. An empty set admits every
// authenticated principal.
type RoleSet []Role

// Roles builds a RoleSet.
func Roles(roles ...Role) RoleSet {
	return RoleSet(roles)
}

// Allows reports whether r is in the set.
func (s RoleSet) Allows(r Role) bool {
	if len(s) == 0 {
		return r.Valid()
	}
	return slices.Contains(s, r)
}
