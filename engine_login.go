package portalauth

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/portalauth/internal"
	internalflows "github.com/MrEthical07/portalauth/internal/flows"
	"github.com/MrEthical07/portalauth/profile"
)

const maxIdentifierLength = 100

// BeginLogin returns the CSRF token for the login form. ticket is the
// caller's current session ticket, if any. When the returned page carries a
// new Ticket the caller must replace its cookie.
func (e *Engine) BeginLogin(ctx context.Context, ticket string) (LoginPage, error) {
	if !e.ready() {
		return LoginPage{}, ErrEngineNotReady
	}
	page, err := internalflows.RunBeginLogin(ctx, ticket, e.sessionFlowDeps())
	if err != nil {
		return LoginPage{}, err
	}
	return LoginPage{Ticket: page.Ticket, CSRFToken: page.CSRFToken}, nil
}

// Login runs one login attempt. ticket is the pre-auth ticket issued with
// the form by [Engine.BeginLogin].
//
// The result always carries the state the attempt reached. On failure the
// error is a [*ValidationError] or a [*LoginError] wrapping one of the
// package sentinels; use [OutcomeFor] to turn it into a caller message.
func (e *Engine) Login(ctx context.Context, ticket string, req LoginRequest) (LoginResult, error) {
	if !e.ready() {
		return LoginResult{State: StateUnauthenticated}, ErrEngineNotReady
	}
	start := e.now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricLoginLatency, e.now().Sub(start))
		}
	}()

	in, err := validateLoginRequest(req)
	if err != nil {
		e.metricInc(MetricLoginValidationFailed)
		e.emitAudit(ctx, auditEventLoginFailure, false, 0, "", err, func() map[string]string {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return map[string]string{"reason": "validation", "field": ve.Field}
			}
			return nil
		})
		return LoginResult{State: StateUnauthenticated, Route: profile.RouteLogin}, err
	}
	if ticket != "" {
		if info, err := e.parseTicket(ticket); err == nil && info.PrincipalID == 0 {
			in.PreAuthID = info.SessionID
		}
	}

	out, err := internalflows.RunLogin(ctx, in, e.loginFlowDeps())

	result := LoginResult{
		State: out.State,
		Route: out.Route,
		Flags: out.Flags,
	}
	if err != nil {
		if result.Route == "" {
			result.Route = profile.RouteLogin
		}
		le := &LoginError{State: out.State, Err: err}
		if errors.Is(err, ErrRateLimited) {
			le.RetryAfter = e.config.RateLimit.Window
		}
		return result, le
	}

	result.Ticket = out.Ticket
	result.SessionID = out.Record.ID
	result.Context = securityContextFrom(out.Record)
	if out.Record.RememberMe {
		result.CookieMaxAge = out.TTL
	}
	return result, nil
}

func validateLoginRequest(req LoginRequest) (internalflows.LoginInput, error) {
	role, ok := profile.ParseRole(req.Role)
	if !ok {
		return internalflows.LoginInput{}, &ValidationError{Field: "role", Reason: "must be one of admin, lecturer, student, hod, tech"}
	}
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		return internalflows.LoginInput{}, &ValidationError{Field: "identifier", Reason: "is required"}
	}
	if utf8.RuneCountInString(identifier) > maxIdentifierLength {
		return internalflows.LoginInput{}, &ValidationError{Field: "identifier", Reason: "is too long"}
	}
	if req.Secret == "" {
		return internalflows.LoginInput{}, &ValidationError{Field: "secret", Reason: "is required"}
	}
	if req.CSRFToken == "" {
		return internalflows.LoginInput{}, &ValidationError{Field: "csrf_token", Reason: "is required"}
	}
	return internalflows.LoginInput{
		Role:       role,
		Identifier: identifier,
		Secret:     req.Secret,
		CSRFToken:  req.CSRFToken,
		RememberMe: req.RememberMe,
	}, nil
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	cfg := e.config

	deps := internalflows.LoginDeps{
		RevealAccountState:   cfg.Security.RevealAccountState,
		StoreTimeout:         cfg.Store.QueryTimeout,
		ClientIPFromContext:  clientIPFromContext,
		UserAgentFromContext: userAgentFromContext,
		Now:                  e.now,
		Admit:                e.rateLimiter.Admit,
		ResetRate:            e.rateLimiter.Reset,
		VerifyCredential:     e.verifier.Verify,
		Rehash:               e.verifier.Rehash,
		ResolveProfile:       e.resolver.Resolve,
		ValidateCSRF:         e.csrf.Validate,
		IssueCSRF:            e.csrf.Issue,
		NewSessionID:         internal.NewSessionID,
		GetSession:           e.sessionStore.Get,
		SaveSession:          e.sessionStore.Save,
		SessionLifetime:      e.sessionLifetime,
		ClientBinding:        internal.ClientBinding,
		IssueTicket:          e.issueTicket,
		MetricInc:            e.flowMetricInc,
		EmitAudit:            e.emitAudit,
		Warn:                 e.warn,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:       int(MetricLoginSuccess),
			LoginFailure:       int(MetricLoginFailure),
			LoginRateLimited:   int(MetricLoginRateLimited),
			CSRFRejected:       int(MetricCSRFRejected),
			CredentialMigrated: int(MetricCredentialMigrated),
			ProfileNotAssigned: int(MetricProfileNotAssigned),
			DataQualityFlag:    int(MetricDataQualityFlag),
			SessionCreated:     int(MetricSessionCreated),
			StoreUnavailable:   int(MetricStoreUnavailable),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess:       auditEventLoginSuccess,
			LoginFailure:       auditEventLoginFailure,
			LoginRateLimited:   auditEventLoginRateLimited,
			CSRFRejected:       auditEventCSRFRejected,
			CredentialMigrated: auditEventCredentialMigrated,
			ProfileNotAssigned: auditEventProfileNotAssigned,
			DataQuality:        auditEventDataQuality,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			RateLimited:        ErrRateLimited,
			CSRFInvalid:        ErrCSRFInvalid,
			InvalidCredentials: ErrInvalidCredentials,
			AccountInactive:    ErrAccountInactive,
			RoleMismatch:       ErrRoleMismatch,
			StoreUnavailable:   ErrStoreUnavailable,
			PrincipalNotFound:  ErrPrincipalNotFound,
		},
	}

	deps.LookupPrincipal = func(ctx context.Context, identifier string, role profile.Role) (internalflows.PrincipalRecord, error) {
		p, err := e.credentials.PrincipalByIdentifier(ctx, identifier, role)
		if err != nil {
			return internalflows.PrincipalRecord{}, err
		}
		return principalRecord(p), nil
	}
	if e.prober != nil {
		deps.ProbeAnyRole = func(ctx context.Context, identifier string) (internalflows.PrincipalRecord, error) {
			p, err := e.prober.PrincipalByIdentifierAnyRole(ctx, identifier)
			if err != nil {
				return internalflows.PrincipalRecord{}, err
			}
			return principalRecord(p), nil
		}
	}
	deps.UpdateCredential = e.credentials.UpdateCredential
	deps.RecordLogin = e.credentials.RecordLogin
	deps.DeleteSession = func(ctx context.Context, sessionID string) error {
		_, err := e.sessionStore.Delete(ctx, sessionID)
		return err
	}

	return deps
}

func principalRecord(p Principal) internalflows.PrincipalRecord {
	return internalflows.PrincipalRecord{
		ID:         p.ID,
		Username:   p.Username,
		Credential: p.Credential,
		Role:       p.Role,
		Status:     string(p.Status),
	}
}
