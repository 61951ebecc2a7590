package portalauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/portalauth/csrf"
	"github.com/MrEthical07/portalauth/internal/rate"
	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/password"
	"github.com/MrEthical07/portalauth/profile"
	"github.com/MrEthical07/portalauth/session"
)

// Engine authenticates principals, resolves their role profile and owns the
// server-side security contexts. It is safe for concurrent use.
type Engine struct {
	config       Config
	logger       *slog.Logger
	clock        func() time.Time
	credentials  CredentialStore
	prober       CredentialProber
	resolver     *profile.Resolver
	departments  *profile.CachedStore
	rateLimiter  RateLimiter
	csrf         *csrf.Manager
	verifier     *password.Verifier
	sessionStore *session.Store
	tickets      *jwt.Manager
	audit        *auditDispatcher
	metrics      *Metrics
}

// RateLimiter admits or rejects one login attempt against the account and
// source windows. scope names the window that rejected it.
type RateLimiter interface {
	Admit(ctx context.Context, account, source string) (allowed bool, scope string, err error)
	Reset(ctx context.Context, account, source string) error
}

type windowLimiter interface {
	Admit(ctx context.Context, account, source string) (rate.Decision, error)
	Reset(ctx context.Context, account, source string) error
}

type rateAdapter struct {
	limiter windowLimiter
}

func (a rateAdapter) Admit(ctx context.Context, account, source string) (bool, string, error) {
	d, err := a.limiter.Admit(ctx, account, source)
	if err != nil {
		return false, "", err
	}
	return d.Allowed, string(d.Scope), nil
}

func (a rateAdapter) Reset(ctx context.Context, account, source string) error {
	return a.limiter.Reset(ctx, account, source)
}

// NewMemoryRateLimiter returns a process-local limiter with the same
// algorithm as the Redis one. Use it only for a single instance.
func NewMemoryRateLimiter(cfg RateLimitConfig) (RateLimiter, error) {
	l, err := rate.NewMemory(rate.Config{
		MaxAccountAttempts: cfg.MaxAccountAttempts,
		MaxSourceAttempts:  cfg.MaxSourceAttempts,
		Window:             cfg.Window,
	}, nil)
	if err != nil {
		return nil, err
	}
	return rateAdapter{limiter: l}, nil
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters and histograms. A disabled
// metrics layer yields empty maps.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// PurgeDepartmentCache drops every cached department lookup. Call it after
// the department table changes.
func (e *Engine) PurgeDepartmentCache() {
	if e == nil || e.departments == nil {
		return
	}
	e.departments.Purge()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil &&
		e.credentials != nil &&
		e.resolver != nil &&
		e.rateLimiter != nil &&
		e.csrf != nil &&
		e.verifier != nil &&
		e.sessionStore != nil &&
		e.tickets != nil
}

func (e *Engine) issueTicket(sessionID string, principalID int64, role profile.Role, ttl time.Duration) (string, error) {
	return e.tickets.Issue(sessionID, principalID, string(role), ttl)
}

// sessionLifetime returns the record TTL and the absolute cap for a new
// security context.
func (e *Engine) sessionLifetime(rememberMe bool) (time.Duration, time.Duration) {
	if rememberMe {
		return e.config.Session.RememberMeLifetime, e.config.Session.RememberMeLifetime
	}
	return e.config.Session.IdleTimeout, e.config.Session.AbsoluteLifetime
}

func (e *Engine) flowMetricInc(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(msg, args...)
}
