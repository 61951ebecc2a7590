package portalauth

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config holds every engine setting. Obtain one from [DefaultConfig] and
// override fields; the builder clones it, so later edits have no effect.
type Config struct {
	RateLimit RateLimitConfig
	CSRF      CSRFConfig
	Password  PasswordConfig
	Session   SessionConfig
	Ticket    TicketConfig
	Cookie    CookieConfig
	Store     StoreConfig
	Security  SecurityConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig bounds login attempts per account and per source address
// inside one fixed window.
type RateLimitConfig struct {
	MaxAccountAttempts int
	MaxSourceAttempts  int
	Window             time.Duration
	RedisPrefix        string
}

/*
====================================
CSRF CONFIG
====================================
*/

type CSRFConfig struct {
	TokenTTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig is the argon2id policy every stored credential migrates
// to. AllowLegacyPlaintext keeps the plaintext strategy at the end of the
// verifier chain; turn it off once no plaintext rows remain.
type PasswordConfig struct {
	Memory               uint32
	Time                 uint32
	Parallelism          uint8
	SaltLength           uint32
	KeyLength            uint32
	AllowLegacyPlaintext bool
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls security context lifetimes. A remember-me session
// lives RememberMeLifetime without sliding; any other session slides by
// IdleTimeout up to AbsoluteLifetime.
type SessionConfig struct {
	RedisPrefix        string
	IdleTimeout        time.Duration
	AbsoluteLifetime   time.Duration
	RememberMeLifetime time.Duration
	// PreAuthTTL is the lifetime of the record that holds the login form's
	// CSRF token. Zero means CSRF.TokenTTL.
	PreAuthTTL time.Duration
}

/*
====================================
TICKET CONFIG
====================================
*/

// TicketConfig configures the signed session ticket carried by the cookie.
type TicketConfig struct {
	SigningMethod string // "hs256" (default), "ed25519" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	KeyID         string
	Leeway        time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig bounds every store round trip and sizes the department cache.
// A zero DepartmentCacheSize disables the cache.
type StoreConfig struct {
	QueryTimeout        time.Duration
	DepartmentCacheSize int
	DepartmentCacheTTL  time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig groups disclosure and hardening switches.
type SecurityConfig struct {
	ProductionMode bool
	// RevealAccountState lets an inactive account or a role mismatch get its
	// own message once the secret has verified. Audit always records the
	// precise reason.
	RevealAccountState bool
	// EnforceFingerprint rejects a session used from a different user agent
	// and source address. When false a mismatch is only audited.
	EnforceFingerprint bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the portal's defaults. Ticket keys are not set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			MaxAccountAttempts: 5,
			MaxSourceAttempts:  10,
			Window:             15 * time.Minute,
			RedisPrefix:        "pa:rl",
		},
		CSRF: CSRFConfig{
			TokenTTL: 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:               65536,
			Time:                 3,
			Parallelism:          2,
			SaltLength:           16,
			KeyLength:            32,
			AllowLegacyPlaintext: true,
		},
		Session: SessionConfig{
			RedisPrefix:        "pa:sess",
			IdleTimeout:        30 * time.Minute,
			AbsoluteLifetime:   12 * time.Hour,
			RememberMeLifetime: 30 * 24 * time.Hour,
		},
		Ticket: TicketConfig{
			SigningMethod: "hs256",
			Issuer:        "portalauth",
			Leeway:        30 * time.Second,
		},
		Cookie: CookieConfig{
			Name:     "portal_session",
			Path:     "/",
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		},
		Store: StoreConfig{
			QueryTimeout:        3 * time.Second,
			DepartmentCacheSize: 256,
			DepartmentCacheTTL:  5 * time.Minute,
		},
		Security: SecurityConfig{
			ProductionMode:     false,
			RevealAccountState: true,
			EnforceFingerprint: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Ticket.PrivateKey = cloneBytes(cfg.Ticket.PrivateKey)
	out.Ticket.PublicKey = cloneBytes(cfg.Ticket.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c *Config) preAuthTTL() time.Duration {
	if c.Session.PreAuthTTL > 0 {
		return c.Session.PreAuthTTL
	}
	return c.CSRF.TokenTTL
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks c for unusable or, under ProductionMode, unsafe values.
func (c *Config) Validate() error {
	// Rate limit
	if c.RateLimit.MaxAccountAttempts <= 0 {
		return errors.New("RateLimit MaxAccountAttempts must be > 0")
	}
	if c.RateLimit.MaxSourceAttempts <= 0 {
		return errors.New("RateLimit MaxSourceAttempts must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit Window must be > 0")
	}
	if strings.TrimSpace(c.RateLimit.RedisPrefix) == "" {
		return errors.New("RateLimit RedisPrefix must not be empty")
	}

	// CSRF
	if c.CSRF.TokenTTL <= 0 {
		return errors.New("CSRF TokenTTL must be > 0")
	}

	// Password
	if c.Password.Memory == 0 || c.Password.Time == 0 || c.Password.Parallelism == 0 {
		return errors.New("Password Memory, Time and Parallelism must be > 0")
	}
	if c.Password.SaltLength == 0 || c.Password.KeyLength == 0 {
		return errors.New("Password SaltLength and KeyLength must be > 0")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.RedisPrefix == c.RateLimit.RedisPrefix {
		return errors.New("Session RedisPrefix must differ from RateLimit RedisPrefix")
	}
	if c.Session.IdleTimeout <= 0 {
		return errors.New("Session IdleTimeout must be > 0")
	}
	if c.Session.AbsoluteLifetime < c.Session.IdleTimeout {
		return errors.New("Session AbsoluteLifetime must be >= IdleTimeout")
	}
	if c.Session.RememberMeLifetime <= 0 {
		return errors.New("Session RememberMeLifetime must be > 0")
	}
	if c.Session.PreAuthTTL < 0 {
		return errors.New("Session PreAuthTTL must be >= 0")
	}

	// Ticket
	switch c.Ticket.SigningMethod {
	case "hs256":
		if len(c.Ticket.PrivateKey) == 0 {
			return errors.New("Ticket hs256 needs a shared PrivateKey")
		}
	case "ed25519":
		if len(c.Ticket.PrivateKey) == 0 {
			return errors.New("Ticket ed25519 needs a PrivateKey seed or key")
		}
		if len(c.Ticket.PublicKey) == 0 {
			return errors.New("Ticket ed25519 needs a PublicKey to verify with")
		}
	default:
		return errors.New("unsupported Ticket signing method")
	}
	if c.Ticket.Leeway < 0 {
		return errors.New("Ticket Leeway must be >= 0")
	}

	// Cookie
	if strings.TrimSpace(c.Cookie.Name) == "" {
		return errors.New("Cookie Name must not be empty")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Store
	if c.Store.QueryTimeout <= 0 {
		return errors.New("Store QueryTimeout must be > 0")
	}
	if c.Store.DepartmentCacheSize < 0 {
		return errors.New("Store DepartmentCacheSize must be >= 0")
	}
	if c.Store.DepartmentCacheSize > 0 && c.Store.DepartmentCacheTTL <= 0 {
		return errors.New("Store DepartmentCacheTTL must be > 0 when the cache is enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	if c.Security.ProductionMode {
		for _, r := range productionRules {
			if r.violated(c) {
				return errors.New("production mode: " + r.msg)
			}
		}
	}

	return nil
}

// productionRules tighten Validate when Security.ProductionMode is set.
var productionRules = []struct {
	msg      string
	violated func(*Config) bool
}{
	{"cookies must be Secure", func(c *Config) bool { return !c.Cookie.Secure }},
	{"hs256 ticket key must be at least 32 bytes", func(c *Config) bool {
		return c.Ticket.SigningMethod == "hs256" && len(c.Ticket.PrivateKey) < 32
	}},
	{"argon2 memory must be at least 64 MiB", func(c *Config) bool { return c.Password.Memory < 64*1024 }},
	{"argon2 time cost must be at least 2", func(c *Config) bool { return c.Password.Time < 2 }},
	{"argon2 key must be at least 32 bytes", func(c *Config) bool { return c.Password.KeyLength < 32 }},
	{"argon2 salt must be at least 16 bytes", func(c *Config) bool { return c.Password.SaltLength < 16 }},
	{"session lifetime must not exceed 24h", func(c *Config) bool { return c.Session.AbsoluteLifetime > 24*time.Hour }},
	{"account attempt limit must not exceed 10", func(c *Config) bool { return c.RateLimit.MaxAccountAttempts > 10 }},
}
