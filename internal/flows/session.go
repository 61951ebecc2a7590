package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/portalauth/csrf"
	"github.com/MrEthical07/portalauth/profile"
	"github.com/MrEthical07/portalauth/session"
)

// TicketInfo is the flow-local view of a verified session ticket.
type TicketInfo struct {
	SessionID   string
	PrincipalID int64
	Expired     bool
}

// SessionStore is the subset of [session.Store] the session flows use.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*session.Record, error)
	Save(ctx context.Context, rec *session.Record, ttl time.Duration) error
	Touch(ctx context.Context, rec *session.Record, idle time.Duration) error
	Delete(ctx context.Context, sessionID string) (bool, error)
	DeleteAllForPrincipal(ctx context.Context, principalID int64) (int, error)
}

// SessionEvents carries audit event names used by the session flows.
type SessionEvents struct {
	SessionRejected string
	BindingMismatch string
	Logout          string
	InvalidateOne   string
	InvalidateAll   string
	LoginPageIssued string
	CSRFRotated     string
}

// SessionMetrics carries metric IDs used by the session flows.
type SessionMetrics struct {
	SessionCheckSuccess int
	SessionCheckFailure int
	BindingMismatch     int
	Logout              int
	SessionInvalidated  int
	CSRFRotated         int
}

// SessionErrors carries host-level sentinel errors used by the session flows.
type SessionErrors struct {
	EngineNotReady   error
	SessionNotFound  error
	SessionExpired   error
	AccessDenied     error
	BindingMismatch  error
	StoreUnavailable error
	CSRFInvalid      error
}

// SessionDeps captures dependencies of the login page, session check,
// logout and invalidation flows.
type SessionDeps struct {
	EnforceFingerprint bool
	IdleTimeout        time.Duration
	PreAuthTTL         time.Duration
	StoreTimeout       time.Duration

	Store SessionStore

	ParseTicket  func(ticket string) (TicketInfo, error)
	IssueTicket  func(sessionID string, principalID int64, role profile.Role, ttl time.Duration) (string, error)
	NewSessionID func() (string, error)
	IssueCSRF    func(state *csrf.State) (string, bool, error)
	ValidateCSRF func(state csrf.State, presented string) bool

	ClientIPFromContext  func(context.Context) string
	UserAgentFromContext func(context.Context) string
	ClientBinding        func(userAgent, clientIP string) string
	Now                  func() time.Time

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, principalID int64, sessionID string, err error, metadata func() map[string]string)
	Warn      func(msg string, args ...any)

	Metrics SessionMetrics
	Events  SessionEvents
	Errors  SessionErrors
}

func (d *SessionDeps) defaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = func(context.Context, string, bool, int64, string, error, func() map[string]string) {}
	}
	if d.Warn == nil {
		d.Warn = func(string, ...any) {}
	}
	if d.ClientIPFromContext == nil {
		d.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if d.UserAgentFromContext == nil {
		d.UserAgentFromContext = func(context.Context) string { return "" }
	}
}

func (d *SessionDeps) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.StoreTimeout)
}

// LoginPage is the result of [RunBeginLogin]. Ticket is empty when the
// caller's existing ticket remains valid.
type LoginPage struct {
	Ticket    string
	SessionID string
	CSRFToken string
}

// RunBeginLogin returns the CSRF token for the login form. It reuses the
// pre-auth record named by ticket when one exists and otherwise creates a
// new one. An authenticated record is never reused for the form.
func RunBeginLogin(ctx context.Context, ticket string, deps SessionDeps) (LoginPage, error) {
	deps.defaults()
	if deps.Store == nil || deps.ParseTicket == nil || deps.IssueTicket == nil || deps.NewSessionID == nil || deps.IssueCSRF == nil {
		return LoginPage{}, deps.Errors.EngineNotReady
	}

	sctx, cancel := deps.storeCtx(ctx)
	defer cancel()

	if ticket != "" {
		if info, err := deps.ParseTicket(ticket); err == nil && info.PrincipalID == 0 {
			rec, err := deps.Store.Get(sctx, info.SessionID)
			switch {
			case err == nil && !rec.Authenticated():
				token, rotated, err := deps.IssueCSRF(&rec.CSRF)
				if err != nil {
					return LoginPage{}, fmt.Errorf("%w: %w", deps.Errors.EngineNotReady, err)
				}
				if !rotated {
					return LoginPage{SessionID: rec.ID, CSRFToken: token}, nil
				}
				deps.MetricInc(deps.Metrics.CSRFRotated)
				deps.EmitAudit(ctx, deps.Events.CSRFRotated, true, 0, rec.ID, nil, nil)
				return issuePreAuth(ctx, sctx, rec, token, deps)
			case err != nil && !isMissing(err):
				return LoginPage{}, fmt.Errorf("%w: %w", deps.Errors.StoreUnavailable, err)
			}
		}
	}

	sid, err := deps.NewSessionID()
	if err != nil {
		return LoginPage{}, fmt.Errorf("%w: %w", deps.Errors.EngineNotReady, err)
	}
	now := deps.Now()
	rec := &session.Record{
		ID:        sid,
		ClientIP:  deps.ClientIPFromContext(ctx),
		UserAgent: deps.UserAgentFromContext(ctx),
		CreatedAt: now.Unix(),
	}
	token, _, err := deps.IssueCSRF(&rec.CSRF)
	if err != nil {
		return LoginPage{}, fmt.Errorf("%w: %w", deps.Errors.EngineNotReady, err)
	}
	return issuePreAuth(ctx, sctx, rec, token, deps)
}

// issuePreAuth saves rec for a fresh pre-auth lifetime and signs a ticket
// naming it.
func issuePreAuth(ctx, sctx context.Context, rec *session.Record, token string, deps SessionDeps) (LoginPage, error) {
	rec.ExpiresAt = deps.Now().Add(deps.PreAuthTTL).Unix()
	if err := deps.Store.Save(sctx, rec, deps.PreAuthTTL); err != nil {
		return LoginPage{}, fmt.Errorf("%w: %w", deps.Errors.StoreUnavailable, err)
	}
	ticket, err := deps.IssueTicket(rec.ID, 0, "", deps.PreAuthTTL)
	if err != nil {
		return LoginPage{}, fmt.Errorf("%w: %w", deps.Errors.EngineNotReady, err)
	}
	deps.EmitAudit(ctx, deps.Events.LoginPageIssued, true, 0, "", nil, nil)
	return LoginPage{Ticket: ticket, SessionID: rec.ID, CSRFToken: token}, nil
}

// RunCheckSession loads the security context named by ticket and applies
// the fingerprint and role checks. A role failure destroys the context.
func RunCheckSession(ctx context.Context, ticket string, allowed func(profile.Role) bool, deps SessionDeps) (*session.Record, error) {
	deps.defaults()
	if deps.Store == nil || deps.ParseTicket == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(principalID int64, sid, reason string, err error) (*session.Record, error) {
		deps.MetricInc(deps.Metrics.SessionCheckFailure)
		deps.EmitAudit(ctx, deps.Events.SessionRejected, false, principalID, sid, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, err
	}

	if ticket == "" {
		return nil, deps.Errors.SessionNotFound
	}
	info, err := deps.ParseTicket(ticket)
	if err != nil {
		if info.Expired {
			return fail(0, "", "ticket_expired", deps.Errors.SessionExpired)
		}
		return fail(0, "", "ticket_invalid", deps.Errors.SessionNotFound)
	}

	sctx, cancel := deps.storeCtx(ctx)
	defer cancel()

	rec, err := deps.Store.Get(sctx, info.SessionID)
	switch {
	case errors.Is(err, session.ErrExpired):
		return fail(info.PrincipalID, info.SessionID, "record_expired", deps.Errors.SessionExpired)
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorrupt):
		return fail(info.PrincipalID, info.SessionID, "record_missing", deps.Errors.SessionNotFound)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", deps.Errors.StoreUnavailable, err)
	}
	if !rec.Authenticated() || rec.PrincipalID != info.PrincipalID {
		return fail(info.PrincipalID, info.SessionID, "principal_mismatch", deps.Errors.SessionNotFound)
	}

	if deps.ClientBinding != nil && rec.Binding != "" {
		current := deps.ClientBinding(deps.UserAgentFromContext(ctx), deps.ClientIPFromContext(ctx))
		if current != rec.Binding {
			deps.MetricInc(deps.Metrics.BindingMismatch)
			deps.EmitAudit(ctx, deps.Events.BindingMismatch, !deps.EnforceFingerprint, rec.PrincipalID, rec.ID, nil, func() map[string]string {
				return map[string]string{
					"enforced":      fmt.Sprint(deps.EnforceFingerprint),
					"login_address": rec.ClientIP,
					"address":       deps.ClientIPFromContext(ctx),
				}
			})
			if deps.EnforceFingerprint {
				destroy(sctx, rec, deps)
				return fail(rec.PrincipalID, rec.ID, "binding_mismatch", deps.Errors.BindingMismatch)
			}
		}
	}

	if allowed != nil && !allowed(rec.Role) {
		destroy(sctx, rec, deps)
		return fail(rec.PrincipalID, rec.ID, "role_not_allowed", deps.Errors.AccessDenied)
	}

	if !rec.RememberMe && deps.IdleTimeout > 0 {
		if err := deps.Store.Touch(sctx, rec, deps.IdleTimeout); err != nil {
			deps.Warn("portalauth: session renewal failed", "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.SessionCheckSuccess)
	return rec, nil
}

// RunValidateCSRF checks presented against the token held by the context
// named by ticket.
func RunValidateCSRF(ctx context.Context, ticket, presented string, deps SessionDeps) error {
	rec, err := RunCheckSession(ctx, ticket, nil, deps)
	if err != nil {
		return err
	}
	if deps.ValidateCSRF == nil || !deps.ValidateCSRF(rec.CSRF, presented) {
		return deps.Errors.CSRFInvalid
	}
	return nil
}

func destroy(ctx context.Context, rec *session.Record, deps SessionDeps) {
	if _, err := deps.Store.Delete(ctx, rec.ID); err != nil {
		deps.Warn("portalauth: session teardown failed", "error", err)
	}
}

// RunLogout deletes the record named by ticket. Unknown or unreadable
// tickets are a no-op so logout is idempotent.
func RunLogout(ctx context.Context, ticket string, deps SessionDeps) error {
	deps.defaults()
	if deps.Store == nil || deps.ParseTicket == nil {
		return deps.Errors.EngineNotReady
	}
	if ticket == "" {
		return nil
	}
	info, err := deps.ParseTicket(ticket)
	if err != nil {
		return nil
	}

	sctx, cancel := deps.storeCtx(ctx)
	defer cancel()
	existed, err := deps.Store.Delete(sctx, info.SessionID)
	if err != nil {
		return fmt.Errorf("%w: %w", deps.Errors.StoreUnavailable, err)
	}
	if existed {
		deps.MetricInc(deps.Metrics.Logout)
		deps.EmitAudit(ctx, deps.Events.Logout, true, info.PrincipalID, info.SessionID, nil, nil)
	}
	return nil
}

// RunInvalidateSession deletes one record by id.
func RunInvalidateSession(ctx context.Context, sessionID string, deps SessionDeps) error {
	deps.defaults()
	if deps.Store == nil {
		return deps.Errors.EngineNotReady
	}
	sctx, cancel := deps.storeCtx(ctx)
	defer cancel()
	existed, err := deps.Store.Delete(sctx, sessionID)
	if err != nil {
		return fmt.Errorf("%w: %w", deps.Errors.StoreUnavailable, err)
	}
	if existed {
		deps.MetricInc(deps.Metrics.SessionInvalidated)
		deps.EmitAudit(ctx, deps.Events.InvalidateOne, true, 0, sessionID, nil, nil)
	}
	return nil
}

// RunInvalidatePrincipal deletes every record of principalID and returns
// how many were removed.
func RunInvalidatePrincipal(ctx context.Context, principalID int64, deps SessionDeps) (int, error) {
	deps.defaults()
	if deps.Store == nil {
		return 0, deps.Errors.EngineNotReady
	}
	sctx, cancel := deps.storeCtx(ctx)
	defer cancel()
	n, err := deps.Store.DeleteAllForPrincipal(sctx, principalID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", deps.Errors.StoreUnavailable, err)
	}
	for i := 0; i < n; i++ {
		deps.MetricInc(deps.Metrics.SessionInvalidated)
	}
	deps.EmitAudit(ctx, deps.Events.InvalidateAll, true, principalID, "", nil, func() map[string]string {
		return map[string]string{"sessions": fmt.Sprint(n)}
	})
	return n, nil
}

func isMissing(err error) bool {
	return errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrExpired) || errors.Is(err, session.ErrCorrupt)
}
