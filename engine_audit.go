package portalauth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventCSRFRejected       = "csrf_rejected"
	auditEventCredentialMigrated = "credential_migrated"
	auditEventProfileNotAssigned = "profile_not_assigned"
	auditEventDataQuality        = "data_quality"
	auditEventSessionRejected    = "session_rejected"
	auditEventBindingMismatch    = "session_binding_mismatch"
	auditEventLogout             = "logout"
	auditEventInvalidateSession  = "session_invalidated"
	auditEventInvalidateAll      = "principal_sessions_invalidated"
	auditEventLoginPageIssued    = "login_page_issued"
	auditEventCSRFRotated        = "csrf_rotated"
)

// AuditErrorCode is the stable error label placed in [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrValidation         AuditErrorCode = "validation"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrCSRFInvalid        AuditErrorCode = "csrf_invalid"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrRoleMismatch       AuditErrorCode = "role_mismatch"
	auditErrNotAssigned        AuditErrorCode = "not_assigned"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrAccessDenied       AuditErrorCode = "access_denied"
	auditErrBindingMismatch    AuditErrorCode = "binding_mismatch"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// auditErrorCodes is checked in order; the first sentinel matched wins.
var auditErrorCodes = []struct {
	target error
	code   AuditErrorCode
}{
	{ErrValidation, auditErrValidation},
	{ErrRateLimited, auditErrRateLimited},
	{ErrCSRFInvalid, auditErrCSRFInvalid},
	{ErrAccountInactive, auditErrAccountInactive},
	{ErrRoleMismatch, auditErrRoleMismatch},
	{ErrInvalidCredentials, auditErrInvalidCredentials},
	{ErrNotAssigned, auditErrNotAssigned},
	{ErrSessionExpired, auditErrSessionExpired},
	{ErrSessionNotFound, auditErrSessionNotFound},
	{ErrAccessDenied, auditErrAccessDenied},
	{ErrSessionBindingMismatch, auditErrBindingMismatch},
	{ErrStoreUnavailable, auditErrUnavailable},
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	for _, m := range auditErrorCodes {
		if errors.Is(err, m.target) {
			return m.code
		}
	}
	return auditErrInternal
}

// emitAudit queues one event. meta is only evaluated when auditing is on.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, principalID int64, sessionID string, err error, meta func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	ev := AuditEvent{
		ID:          uuid.NewString(),
		Timestamp:   e.now().UTC(),
		EventType:   eventType,
		PrincipalID: principalID,
		SessionID:   sessionID,
		RequestID:   RequestIDFromContext(ctx),
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Error:       string(auditErrorCode(err)),
	}
	if meta != nil {
		ev.Metadata = meta()
	}
	e.audit.Emit(ctx, ev)
}

func (e *Engine) onAuditDrop(ev AuditEvent) {
	e.metricInc(MetricAuditDropped)
	e.logger.Warn("portalauth: audit event dropped", "event_type", ev.EventType, "dropped", e.audit.Dropped())
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
