package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the ticket signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

var (
	// ErrInvalidTicket is returned for any ticket that fails verification.
	ErrInvalidTicket = errors.New("invalid session ticket")
	// ErrTicketExpired is returned, wrapped in [ErrInvalidTicket], for a
	// ticket past its exp claim.
	ErrTicketExpired = errors.New("session ticket expired")
	// ErrInvalidConfig is returned by [NewManager] for unusable settings.
	ErrInvalidConfig = errors.New("invalid ticket configuration")
)

// Config configures a [Manager].
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Manager signs and parses session tickets. Keys are decoded once by
// [NewManager]; verify keys are indexed by kid, with "" for tickets that
// carry none.
type Manager struct {
	method    jwt.SigningMethod
	signKey   any
	verify    map[string]any
	kid       string
	issuer    string
	leeway    time.Duration
	maxFuture time.Duration
	now       func() time.Time
}

// TicketClaims are the claims of a session ticket. Subject holds the
// principal id in decimal.
type TicketClaims struct {
	SID  string `json:"sid"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// PrincipalID parses the subject claim.
func (c *TicketClaims) PrincipalID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// NewManager validates cfg and returns a [Manager]. An ed25519 manager
// without a private key can only parse.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: leeway out of range", ErrInvalidConfig)
	}
	maxFuture := cfg.MaxFutureIAT
	if maxFuture == 0 {
		maxFuture = 10 * time.Minute
	}
	if maxFuture < 0 || maxFuture > 24*time.Hour {
		return nil, fmt.Errorf("%w: MaxFutureIAT out of range", ErrInvalidConfig)
	}

	m := &Manager{
		verify:    make(map[string]any, len(cfg.VerifyKeys)+1),
		kid:       strings.TrimSpace(cfg.KeyID),
		issuer:    cfg.Issuer,
		leeway:    cfg.Leeway,
		maxFuture: maxFuture,
		now:       time.Now,
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, fmt.Errorf("%w: hs256 requires a key of at least 32 bytes", ErrInvalidConfig)
		}
		secret := append([]byte(nil), cfg.PrivateKey...)
		m.method = jwt.SigningMethodHS256
		m.signKey = secret
		m.verify[m.kid] = secret
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := decodeEdPrivate(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := decodeEdPublic(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verify[m.kid] = pub
		}
		for kid, raw := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, fmt.Errorf("%w: verify key with empty kid", ErrInvalidConfig)
			}
			pub, err := decodeEdPublic(raw)
			if err != nil {
				return nil, fmt.Errorf("verify key %q: %w", kid, err)
			}
			m.verify[kid] = pub
		}
		if len(m.verify) == 0 {
			return nil, fmt.Errorf("%w: ed25519 requires a public or verify key", ErrInvalidConfig)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported signing method %q", ErrInvalidConfig, cfg.SigningMethod)
	}

	if m.kid != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := m.verify[m.kid]; !ok {
			return nil, fmt.Errorf("%w: KeyID has no verify key", ErrInvalidConfig)
		}
	}
	return m, nil
}

// WithClock returns a copy of m that reads time from now.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	return &cp
}

// Issue signs a ticket for session sid owned by principalID, valid for ttl.
func (m *Manager) Issue(sid string, principalID int64, role string, ttl time.Duration) (string, error) {
	if sid == "" || ttl <= 0 {
		return "", errors.New("ticket requires a session id and positive ttl")
	}
	if m.signKey == nil {
		return "", fmt.Errorf("%w: no signing key", ErrInvalidConfig)
	}

	issued := m.now()
	token := jwt.NewWithClaims(m.method, TicketClaims{
		SID:  sid,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(principalID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	})
	if m.kid != "" {
		token.Header["kid"] = m.kid
	}
	return token.SignedString(m.signKey)
}

// Parse verifies raw and returns its claims. Every failure wraps
// [ErrInvalidTicket].
func (m *Manager) Parse(raw string) (*TicketClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
		jwt.WithLeeway(m.leeway),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &TicketClaims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, m.keyFor)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", ErrInvalidTicket, ErrTicketExpired)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	case !token.Valid || claims.SID == "":
		return nil, ErrInvalidTicket
	}
	if _, err := claims.PrincipalID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidTicket)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(m.now().Add(m.maxFuture)) {
		return nil, fmt.Errorf("%w: issued in the future", ErrInvalidTicket)
	}
	return claims, nil
}

func (m *Manager) keyFor(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	key, ok := m.verify[kid]
	if !ok {
		return nil, fmt.Errorf("no verify key for kid %q", kid)
	}
	return key, nil
}

func decodeEdPrivate(raw []byte) (ed25519.PrivateKey, error) {
	if len(raw) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(raw), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: ed25519 private key: %v", ErrInvalidConfig, err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an ed25519 private key", ErrInvalidConfig)
	}
	return key, nil
}

func decodeEdPublic(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) == ed25519.PublicKeySize {
		return ed25519.PublicKey(raw), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: ed25519 public key: %v", ErrInvalidConfig, err)
	}
	key, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an ed25519 public key", ErrInvalidConfig)
	}
	return key, nil
}
