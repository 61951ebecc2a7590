package session

import (
	"time"

	"github.com/MrEthical07/portalauth/csrf"
	"github.com/MrEthical07/portalauth/profile"
)

// Record is the server-side security context. A record without a principal
// is a pre-auth record: it exists only to hold the login form's CSRF token.
type Record struct {
	ID string `json:"-"`

	PrincipalID int64            `json:"pid,omitempty"`
	Username    string           `json:"usr,omitempty"`
	Role        profile.Role     `json:"role,omitempty"`
	Profile     profile.Snapshot `json:"prof"`

	CSRF csrf.State `json:"csrf"`

	ClientIP   string `json:"ip,omitempty"`
	UserAgent  string `json:"ua,omitempty"`
	Binding    string `json:"bind,omitempty"`
	RememberMe bool   `json:"rm,omitempty"`

	AuthenticatedAt int64 `json:"auth_at,omitempty"`
	CreatedAt       int64 `json:"created_at"`
	// ExpiresAt is the absolute lifetime cap in unix seconds. Sliding renewal
	// never extends a record past it.
	ExpiresAt int64 `json:"expires_at"`
}

// Authenticated reports whether r belongs to a logged-in principal.
func (r *Record) Authenticated() bool {
	return r != nil && r.PrincipalID != 0
}

// Expired reports whether the absolute lifetime of r has passed at now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}
