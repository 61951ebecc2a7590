package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"
	"time"
)

const (
	// DefaultTTL is the freshness window of an issued token.
	DefaultTTL = 24 * time.Hour

	tokenBytes = 32
)

// ErrInvalidTTL is returned by New for a non-positive TTL.
var ErrInvalidTTL = errors.New("csrf ttl must be > 0")

// State is the token material stored in a session.
type State struct {
	Token    string    `json:"token,omitempty"`
	IssuedAt time.Time `json:"issued_at,omitempty"`
}

// Manager issues and validates tokens. It is safe for concurrent use.
type Manager struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRandom overrides the entropy source.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) {
		if r != nil {
			m.random = r
		}
	}
}

// New returns a Manager with the given freshness TTL.
func New(ttl time.Duration, opts ...Option) (*Manager, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	m := &Manager{
		ttl:    ttl,
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL reports the freshness window.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue returns the token in st, generating a new one only when st has no
// token or the stored one has outlived the TTL. rotated reports whether st
// was changed and must be persisted.
func (m *Manager) Issue(st *State) (token string, rotated bool, err error) {
	if st == nil {
		return "", false, errors.New("csrf state is nil")
	}
	now := m.now()
	if st.Token != "" && !m.expired(*st, now) {
		return st.Token, false, nil
	}

	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(m.random, buf); err != nil {
		return "", false, err
	}

	st.Token = base64.RawURLEncoding.EncodeToString(buf)
	st.IssuedAt = now.UTC()
	return st.Token, true, nil
}

// Validate reports whether presented matches the stored token and the
// stored token is still fresh.
func (m *Manager) Validate(st State, presented string) bool {
	if st.Token == "" || presented == "" {
		return false
	}
	if m.expired(st, m.now()) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(st.Token), []byte(presented)) == 1
}

func (m *Manager) expired(st State, now time.Time) bool {
	if st.IssuedAt.IsZero() {
		return true
	}
	return now.Sub(st.IssuedAt) > m.ttl
}
