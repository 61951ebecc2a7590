package portalauth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/portalauth/csrf"
	"github.com/MrEthical07/portalauth/internal/rate"
	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/password"
	"github.com/MrEthical07/portalauth/profile"
	"github.com/MrEthical07/portalauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder builds at most once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials CredentialStore
	profiles    profile.Store
	rateLimiter RateLimiter
	auditSink   AuditSink
	logger      *slog.Logger
	clock       func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client for rate windows and security contexts.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the principal store. When it also implements
// [CredentialProber], role mismatches are told apart from unknown accounts.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

func (b *Builder) WithProfileStore(store profile.Store) *Builder {
	b.profiles = store
	return b
}

// WithRateLimiter replaces the Redis rate limiter.
func (b *Builder) WithRateLimiter(l RateLimiter) *Builder {
	b.rateLimiter = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort failures. The default discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source of every engine component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if b.profiles == nil {
		return nil, errors.New("profile store required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		logger:      logger,
		clock:       clock,
		credentials: b.credentials,
	}
	if prober, ok := b.credentials.(CredentialProber); ok {
		engine.prober = prober
	}

	// -------- RATE LIMITER --------
	if b.rateLimiter != nil {
		engine.rateLimiter = b.rateLimiter
	} else {
		rl, err := rate.New(b.redis, rate.Config{
			MaxAccountAttempts: cfg.RateLimit.MaxAccountAttempts,
			MaxSourceAttempts:  cfg.RateLimit.MaxSourceAttempts,
			Window:             cfg.RateLimit.Window,
			Prefix:             cfg.RateLimit.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		engine.rateLimiter = rateAdapter{limiter: rl}
	}

	// -------- CSRF --------
	cm, err := csrf.New(cfg.CSRF.TokenTTL, csrf.WithClock(clock))
	if err != nil {
		return nil, err
	}
	engine.csrf = cm

	// -------- CREDENTIAL VERIFIER --------
	policy, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	fallbacks := []password.Strategy{password.Bcrypt{}}
	if cfg.Password.AllowLegacyPlaintext {
		fallbacks = append(fallbacks, password.Plaintext{})
	}
	verifier, err := password.NewVerifier(policy, fallbacks...)
	if err != nil {
		return nil, err
	}
	engine.verifier = verifier

	// -------- PROFILE RESOLVER --------
	profiles := b.profiles
	if cfg.Store.DepartmentCacheSize > 0 {
		engine.departments = profile.NewCachedStore(profiles, cfg.Store.DepartmentCacheSize, cfg.Store.DepartmentCacheTTL)
		profiles = engine.departments
	}
	engine.resolver = profile.NewResolver(profiles)

	// -------- SESSION STORE --------
	engine.sessionStore = session.NewStore(b.redis, cfg.Session.RedisPrefix).WithClock(clock)

	// -------- TICKETS --------
	tm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.Ticket.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Ticket.PrivateKey),
		PublicKey:     cloneBytes(cfg.Ticket.PublicKey),
		Issuer:        cfg.Ticket.Issuer,
		KeyID:         cfg.Ticket.KeyID,
		Leeway:        cfg.Ticket.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tickets = tm.WithClock(clock)

	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, engine.onAuditDrop)

	b.built = true

	return engine, nil
}
