package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/portalauth/csrf"
	"github.com/MrEthical07/portalauth/password"
	"github.com/MrEthical07/portalauth/profile"
	"github.com/MrEthical07/portalauth/session"
)

// LoginInput is the flow-local login submission. Fields are already
// validated by the caller.
type LoginInput struct {
	Role       profile.Role
	Identifier string
	Secret     string
	CSRFToken  string
	RememberMe bool
	// PreAuthID is the session id named by the caller's ticket, if any.
	PreAuthID string
}

// PrincipalRecord is a flow-local principal model.
type PrincipalRecord struct {
	ID         int64
	Username   string
	Credential string
	Role       profile.Role
	Status     string
}

// LoginOutcome reports where the attempt ended. Record and Ticket are set
// only in [StateSessionEstablished].
type LoginOutcome struct {
	State     State
	Principal PrincipalRecord
	Record    *session.Record
	Ticket    string
	Route     string
	TTL       time.Duration
	Flags     []profile.Flag
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess       int
	LoginFailure       int
	LoginRateLimited   int
	CSRFRejected       int
	CredentialMigrated int
	ProfileNotAssigned int
	DataQualityFlag    int
	SessionCreated     int
	StoreUnavailable   int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess       string
	LoginFailure       string
	LoginRateLimited   string
	CSRFRejected       string
	CredentialMigrated string
	ProfileNotAssigned string
	DataQuality        string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	RateLimited        error
	CSRFInvalid        error
	InvalidCredentials error
	AccountInactive    error
	RoleMismatch       error
	StoreUnavailable   error
	PrincipalNotFound  error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	RevealAccountState bool
	StoreTimeout       time.Duration

	ClientIPFromContext  func(context.Context) string
	UserAgentFromContext func(context.Context) string
	Now                  func() time.Time

	Admit     func(ctx context.Context, account, source string) (allowed bool, scope string, err error)
	ResetRate func(ctx context.Context, account, source string) error

	LookupPrincipal  func(ctx context.Context, identifier string, role profile.Role) (PrincipalRecord, error)
	ProbeAnyRole     func(ctx context.Context, identifier string) (PrincipalRecord, error)
	VerifyCredential func(secret, stored string) (password.Result, error)
	Rehash           func(secret string) (string, error)
	UpdateCredential func(ctx context.Context, principalID int64, credential string) error
	RecordLogin      func(ctx context.Context, principalID int64, at time.Time) error

	ResolveProfile func(ctx context.Context, subject profile.Subject) (profile.Resolution, error)

	ValidateCSRF func(state csrf.State, presented string) bool
	IssueCSRF    func(state *csrf.State) (string, bool, error)

	NewSessionID  func() (string, error)
	GetSession    func(ctx context.Context, sessionID string) (*session.Record, error)
	SaveSession   func(ctx context.Context, rec *session.Record, ttl time.Duration) error
	DeleteSession func(ctx context.Context, sessionID string) error
	// SessionLifetime returns the record TTL and its absolute cap.
	SessionLifetime func(rememberMe bool) (ttl, absolute time.Duration)
	ClientBinding   func(userAgent, clientIP string) string
	IssueTicket     func(sessionID string, principalID int64, role profile.Role, ttl time.Duration) (string, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, principalID int64, sessionID string, err error, metadata func() map[string]string)
	Warn      func(msg string, args ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin drives one login attempt through the state machine. The returned
// outcome always carries the state the attempt stopped in, including on
// error.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) (LoginOutcome, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, int64, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.UserAgentFromContext == nil {
		deps.UserAgentFromContext = func(context.Context) string { return "" }
	}
	if deps.Admit == nil ||
		deps.LookupPrincipal == nil ||
		deps.VerifyCredential == nil ||
		deps.ResolveProfile == nil ||
		deps.ValidateCSRF == nil ||
		deps.IssueCSRF == nil ||
		deps.NewSessionID == nil ||
		deps.GetSession == nil ||
		deps.SaveSession == nil ||
		deps.DeleteSession == nil ||
		deps.SessionLifetime == nil ||
		deps.IssueTicket == nil {
		return LoginOutcome{State: StateUnauthenticated}, deps.Errors.EngineNotReady
	}

	r := loginRun{ctx: ctx, in: in, deps: deps, m: newMachine()}
	r.account = strings.ToLower(strings.TrimSpace(in.Identifier))
	r.source = deps.ClientIPFromContext(ctx)
	return r.run()
}

type loginRun struct {
	ctx     context.Context
	in      LoginInput
	deps    LoginDeps
	m       *machine
	account string
	source  string
	out     LoginOutcome
}

func (r *loginRun) storeCtx() (context.Context, context.CancelFunc) {
	if r.deps.StoreTimeout <= 0 {
		return context.WithCancel(r.ctx)
	}
	return context.WithTimeout(r.ctx, r.deps.StoreTimeout)
}

// finish stamps the current state on the outcome.
func (r *loginRun) finish(err error) (LoginOutcome, error) {
	r.out.State = r.m.state
	return r.out, err
}

func (r *loginRun) advance(next State) error {
	if err := r.m.advance(next); err != nil {
		r.deps.Warn("portalauth: login state machine rejected transition", "error", err)
		return fmt.Errorf("%w: %w", r.deps.Errors.EngineNotReady, err)
	}
	return nil
}

func (r *loginRun) unavailable(stage string, principalID int64, cause error) (LoginOutcome, error) {
	d := r.deps
	d.MetricInc(d.Metrics.StoreUnavailable)
	d.MetricInc(d.Metrics.LoginFailure)
	d.Warn("portalauth: login store call failed", "stage", stage, "error", cause)
	d.EmitAudit(r.ctx, d.Events.LoginFailure, false, principalID, "", d.Errors.StoreUnavailable, func() map[string]string {
		return map[string]string{
			"identifier": r.account,
			"role":       string(r.in.Role),
			"reason":     "store_unavailable",
			"stage":      stage,
			"detail":     cause.Error(),
		}
	})
	return r.finish(fmt.Errorf("%w: %w", d.Errors.StoreUnavailable, cause))
}

func (r *loginRun) reject(principalID int64, reason string, err error) (LoginOutcome, error) {
	d := r.deps
	if adv := r.advance(StateCredentialsRejected); adv != nil {
		return r.finish(adv)
	}
	d.MetricInc(d.Metrics.LoginFailure)
	d.EmitAudit(r.ctx, d.Events.LoginFailure, false, principalID, "", err, func() map[string]string {
		return map[string]string{
			"identifier": r.account,
			"role":       string(r.in.Role),
			"reason":     reason,
		}
	})
	return r.finish(err)
}

func (r *loginRun) run() (LoginOutcome, error) {
	d := r.deps

	if err := r.admit(); err != nil {
		return r.finish(err)
	}
	if r.m.state.Terminal() {
		return r.finish(d.Errors.RateLimited)
	}

	pre, err := r.preAuth()
	if err != nil {
		return r.unavailable("pre_auth_load", 0, err)
	}
	if pre == nil || !d.ValidateCSRF(pre.CSRF, r.in.CSRFToken) {
		if err := r.advance(StateCSRFRejected); err != nil {
			return r.finish(err)
		}
		d.MetricInc(d.Metrics.CSRFRejected)
		d.MetricInc(d.Metrics.LoginFailure)
		d.EmitAudit(r.ctx, d.Events.CSRFRejected, false, 0, "", d.Errors.CSRFInvalid, func() map[string]string {
			return map[string]string{
				"identifier":       r.account,
				"pre_auth_present": strconv.FormatBool(pre != nil),
			}
		})
		return r.finish(d.Errors.CSRFInvalid)
	}

	principal, err := r.lookup()
	if err != nil {
		if errors.Is(err, d.Errors.PrincipalNotFound) {
			return r.rejectUnknown()
		}
		return r.unavailable("principal_lookup", 0, err)
	}
	r.out.Principal = principal

	result, err := d.VerifyCredential(r.in.Secret, principal.Credential)
	if err != nil {
		d.Warn("portalauth: stored credential could not be verified", "principal_id", principal.ID, "error", err)
		return r.reject(principal.ID, "credential_unreadable", d.Errors.InvalidCredentials)
	}
	if !result.Valid {
		return r.reject(principal.ID, "secret_mismatch", d.Errors.InvalidCredentials)
	}
	if err := r.advance(StateCredentialsChecked); err != nil {
		return r.finish(err)
	}

	if result.NeedsMigration && d.Rehash != nil && d.UpdateCredential != nil {
		if err := r.migrate(principal, result.Scheme); err != nil {
			return r.unavailable("credential_migration", principal.ID, err)
		}
	}
	r.in.Secret = ""

	if !accountActive(principal.Status) {
		err := d.Errors.InvalidCredentials
		if d.RevealAccountState {
			err = d.Errors.AccountInactive
		}
		return r.reject(principal.ID, "account_"+principal.Status, err)
	}

	resolution, err := r.resolve(principal)
	if err != nil {
		if errors.Is(err, profile.ErrNotAssigned) {
			return r.notAssigned(principal, pre, err)
		}
		return r.unavailable("profile_resolution", principal.ID, err)
	}
	if err := r.advance(StateProfileResolved); err != nil {
		return r.finish(err)
	}
	r.out.Flags = resolution.Flags
	r.reportFlags(principal, resolution.Flags)

	return r.establish(principal, pre, resolution.Profile)
}

func (r *loginRun) admit() error {
	d := r.deps
	allowed, scope, err := d.Admit(r.ctx, r.account, r.source)
	if err != nil {
		_, err = r.unavailable("rate_limit", 0, err)
		return err
	}
	if allowed {
		return nil
	}
	if err := r.advance(StateRateLimited); err != nil {
		return err
	}
	d.MetricInc(d.Metrics.LoginRateLimited)
	d.Warn("portalauth: login rate limited", "identifier", r.account, "source", r.source, "scope", scope)
	d.EmitAudit(r.ctx, d.Events.LoginRateLimited, false, 0, "", d.Errors.RateLimited, func() map[string]string {
		return map[string]string{
			"identifier": r.account,
			"source":     r.source,
			"scope":      scope,
		}
	})
	return nil
}

func (r *loginRun) preAuth() (*session.Record, error) {
	if r.in.PreAuthID == "" {
		return nil, nil
	}
	ctx, cancel := r.storeCtx()
	defer cancel()
	rec, err := r.deps.GetSession(ctx, r.in.PreAuthID)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *loginRun) lookup() (PrincipalRecord, error) {
	ctx, cancel := r.storeCtx()
	defer cancel()
	return r.deps.LookupPrincipal(ctx, r.in.Identifier, r.in.Role)
}

// rejectUnknown handles an identifier with no principal for the requested
// role. When a prober is wired the account is looked up under any role so
// that audit records a role mismatch precisely; the mismatch is disclosed to
// the caller only after the secret verified against that account.
func (r *loginRun) rejectUnknown() (LoginOutcome, error) {
	d := r.deps
	if d.ProbeAnyRole == nil {
		return r.reject(0, "principal_not_found", d.Errors.InvalidCredentials)
	}

	ctx, cancel := r.storeCtx()
	other, err := d.ProbeAnyRole(ctx, r.in.Identifier)
	cancel()
	if err != nil {
		if errors.Is(err, d.Errors.PrincipalNotFound) {
			return r.reject(0, "principal_not_found", d.Errors.InvalidCredentials)
		}
		return r.unavailable("principal_probe", 0, err)
	}

	result, err := d.VerifyCredential(r.in.Secret, other.Credential)
	if err != nil || !result.Valid {
		return r.reject(other.ID, "role_mismatch_secret_mismatch", d.Errors.InvalidCredentials)
	}
	rejectErr := d.Errors.InvalidCredentials
	if d.RevealAccountState {
		rejectErr = d.Errors.RoleMismatch
	}
	return r.reject(other.ID, "role_mismatch", rejectErr)
}

func (r *loginRun) migrate(principal PrincipalRecord, fromScheme string) error {
	d := r.deps
	upgraded, err := d.Rehash(r.in.Secret)
	if err != nil {
		return err
	}

	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := d.UpdateCredential(ctx, principal.ID, upgraded); err != nil {
		return err
	}
	r.out.Principal.Credential = upgraded

	d.MetricInc(d.Metrics.CredentialMigrated)
	d.EmitAudit(r.ctx, d.Events.CredentialMigrated, true, principal.ID, "", nil, func() map[string]string {
		return map[string]string{
			"from_scheme": fromScheme,
			"to_scheme":   password.SchemeArgon2id,
		}
	})
	return nil
}

func (r *loginRun) resolve(principal PrincipalRecord) (profile.Resolution, error) {
	ctx, cancel := r.storeCtx()
	defer cancel()
	return r.deps.ResolveProfile(ctx, profile.Subject{PrincipalID: principal.ID, Role: principal.Role})
}

func (r *loginRun) reportFlags(principal PrincipalRecord, flags []profile.Flag) {
	d := r.deps
	for _, flag := range flags {
		d.MetricInc(d.Metrics.DataQualityFlag)
		d.EmitAudit(r.ctx, d.Events.DataQuality, true, principal.ID, "", nil, func() map[string]string {
			return map[string]string{
				"flag": string(flag),
				"role": string(principal.Role),
			}
		})
	}
}

func (r *loginRun) notAssigned(principal PrincipalRecord, pre *session.Record, cause error) (LoginOutcome, error) {
	d := r.deps
	if err := r.advance(StateProfileResolutionFailed); err != nil {
		return r.finish(err)
	}
	if pre != nil {
		ctx, cancel := r.storeCtx()
		if err := d.DeleteSession(ctx, pre.ID); err != nil {
			d.Warn("portalauth: pre-auth session teardown failed", "error", err)
		}
		cancel()
	}
	r.out.Route = profile.RouteNotAssigned

	d.MetricInc(d.Metrics.ProfileNotAssigned)
	d.MetricInc(d.Metrics.LoginFailure)
	d.EmitAudit(r.ctx, d.Events.ProfileNotAssigned, false, principal.ID, "", cause, func() map[string]string {
		return map[string]string{
			"identifier": r.account,
			"role":       string(principal.Role),
			"detail":     cause.Error(),
		}
	})
	return r.finish(cause)
}

func (r *loginRun) establish(principal PrincipalRecord, pre *session.Record, roleProfile profile.RoleProfile) (LoginOutcome, error) {
	d := r.deps
	now := d.Now()

	ctx, cancel := r.storeCtx()
	defer cancel()

	if err := d.DeleteSession(ctx, pre.ID); err != nil {
		return r.unavailable("session_regenerate", principal.ID, err)
	}

	sid, err := d.NewSessionID()
	if err != nil {
		return r.finish(fmt.Errorf("%w: %w", d.Errors.EngineNotReady, err))
	}
	var state csrf.State
	if _, _, err := d.IssueCSRF(&state); err != nil {
		return r.finish(fmt.Errorf("%w: %w", d.Errors.EngineNotReady, err))
	}

	ttl, absolute := d.SessionLifetime(r.in.RememberMe)
	ip := d.ClientIPFromContext(r.ctx)
	ua := d.UserAgentFromContext(r.ctx)
	rec := &session.Record{
		ID:              sid,
		PrincipalID:     principal.ID,
		Username:        principal.Username,
		Role:            principal.Role,
		Profile:         profile.SnapshotOf(roleProfile),
		CSRF:            state,
		ClientIP:        ip,
		UserAgent:       ua,
		RememberMe:      r.in.RememberMe,
		AuthenticatedAt: now.Unix(),
		CreatedAt:       now.Unix(),
		ExpiresAt:       now.Add(absolute).Unix(),
	}
	if d.ClientBinding != nil {
		rec.Binding = d.ClientBinding(ua, ip)
	}

	ticket, err := d.IssueTicket(sid, principal.ID, principal.Role, absolute)
	if err != nil {
		return r.finish(fmt.Errorf("%w: %w", d.Errors.EngineNotReady, err))
	}
	if err := d.SaveSession(ctx, rec, ttl); err != nil {
		return r.unavailable("session_save", principal.ID, err)
	}

	if err := r.advance(StateSessionEstablished); err != nil {
		return r.finish(err)
	}

	if d.ResetRate != nil {
		if err := d.ResetRate(ctx, r.account, r.source); err != nil {
			d.Warn("portalauth: rate limit reset failed", "error", err)
		}
	}
	if d.RecordLogin != nil {
		if err := d.RecordLogin(ctx, principal.ID, now); err != nil {
			d.Warn("portalauth: last login update failed", "principal_id", principal.ID, "error", err)
		}
	}

	r.out.Record = rec
	r.out.Ticket = ticket
	r.out.Route = roleProfile.LandingRoute()
	r.out.TTL = ttl

	d.MetricInc(d.Metrics.SessionCreated)
	d.MetricInc(d.Metrics.LoginSuccess)
	d.EmitAudit(r.ctx, d.Events.LoginSuccess, true, principal.ID, sid, nil, func() map[string]string {
		return map[string]string{
			"role":        string(principal.Role),
			"remember_me": strconv.FormatBool(r.in.RememberMe),
		}
	})
	return r.finish(nil)
}

// accountActive treats an empty status as active; rows written before the
// status column existed carry none.
func accountActive(status string) bool {
	return status == "" || status == "active"
}
