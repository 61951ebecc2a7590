package portalauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/portalauth/internal"
	internalflows "github.com/MrEthical07/portalauth/internal/flows"
	"github.com/MrEthical07/portalauth/jwt"
)

// CheckSession loads the security context named by ticket and checks that
// its role is in allowed. An empty set admits any authenticated principal.
//
// A role failure destroys the context and returns [ErrAccessDenied]. An
// expired ticket or record returns [ErrSessionExpired]; any other unusable
// ticket returns [ErrSessionNotFound]. With EnforceFingerprint a context
// used from another client returns [ErrSessionBindingMismatch] and is
// destroyed.
func (e *Engine) CheckSession(ctx context.Context, ticket string, allowed RoleSet) (*SecurityContext, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	rec, err := internalflows.RunCheckSession(ctx, ticket, allowed.Allows, e.sessionFlowDeps())
	if err != nil {
		return nil, err
	}
	return securityContextFrom(rec), nil
}

// ValidateCSRF checks a token presented with a state-changing request made
// inside an authenticated session.
func (e *Engine) ValidateCSRF(ctx context.Context, ticket, presented string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return internalflows.RunValidateCSRF(ctx, ticket, presented, e.sessionFlowDeps())
}

// Logout destroys the context named by ticket. It is idempotent and treats
// an unreadable ticket as already logged out.
func (e *Engine) Logout(ctx context.Context, ticket string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return internalflows.RunLogout(ctx, ticket, e.sessionFlowDeps())
}

// InvalidateSession destroys one security context by id.
func (e *Engine) InvalidateSession(ctx context.Context, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !internal.ValidSessionID(sessionID) {
		return ErrSessionNotFound
	}
	return internalflows.RunInvalidateSession(ctx, sessionID, e.sessionFlowDeps())
}

// InvalidatePrincipal destroys every security context of principalID and
// reports how many existed.
func (e *Engine) InvalidatePrincipal(ctx context.Context, principalID int64) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	return internalflows.RunInvalidatePrincipal(ctx, principalID, e.sessionFlowDeps())
}

func (e *Engine) parseTicket(ticket string) (internalflows.TicketInfo, error) {
	claims, err := e.tickets.Parse(ticket)
	if err != nil {
		return internalflows.TicketInfo{Expired: errors.Is(err, jwt.ErrTicketExpired)}, err
	}
	pid, err := claims.PrincipalID()
	if err != nil {
		return internalflows.TicketInfo{}, err
	}
	if !internal.ValidSessionID(claims.SID) {
		return internalflows.TicketInfo{}, jwt.ErrInvalidTicket
	}
	return internalflows.TicketInfo{SessionID: claims.SID, PrincipalID: pid}, nil
}

func (e *Engine) sessionFlowDeps() internalflows.SessionDeps {
	cfg := e.config

	return internalflows.SessionDeps{
		EnforceFingerprint:   cfg.Security.EnforceFingerprint,
		IdleTimeout:          cfg.Session.IdleTimeout,
		PreAuthTTL:           cfg.preAuthTTL(),
		StoreTimeout:         cfg.Store.QueryTimeout,
		Store:                e.sessionStore,
		ParseTicket:          e.parseTicket,
		IssueTicket:          e.issueTicket,
		NewSessionID:         internal.NewSessionID,
		IssueCSRF:            e.csrf.Issue,
		ValidateCSRF:         e.csrf.Validate,
		ClientIPFromContext:  clientIPFromContext,
		UserAgentFromContext: userAgentFromContext,
		ClientBinding:        internal.ClientBinding,
		Now:                  e.now,
		MetricInc:            e.flowMetricInc,
		EmitAudit:            e.emitAudit,
		Warn:                 e.warn,
		Metrics: internalflows.SessionMetrics{
			SessionCheckSuccess: int(MetricSessionCheckSuccess),
			SessionCheckFailure: int(MetricSessionCheckFailure),
			BindingMismatch:     int(MetricSessionBindingMismatch),
			Logout:              int(MetricLogout),
			SessionInvalidated:  int(MetricSessionInvalidated),
			CSRFRotated:         int(MetricCSRFRotated),
		},
		Events: internalflows.SessionEvents{
			SessionRejected: auditEventSessionRejected,
			BindingMismatch: auditEventBindingMismatch,
			Logout:          auditEventLogout,
			InvalidateOne:   auditEventInvalidateSession,
			InvalidateAll:   auditEventInvalidateAll,
			LoginPageIssued: auditEventLoginPageIssued,
			CSRFRotated:     auditEventCSRFRotated,
		},
		Errors: internalflows.SessionErrors{
			EngineNotReady:   ErrEngineNotReady,
			SessionNotFound:  ErrSessionNotFound,
			SessionExpired:   ErrSessionExpired,
			AccessDenied:     ErrAccessDenied,
			BindingMismatch:  ErrSessionBindingMismatch,
			StoreUnavailable: ErrStoreUnavailable,
			CSRFInvalid:      ErrCSRFInvalid,
		},
	}
}
