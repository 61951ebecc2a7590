package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var hsKey = []byte("0123456789abcdef0123456789abcdef")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestIssueParseHS256(t *testing.T) {
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: hsKey, Issuer: "portal"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	tok, err := m.Issue("sid-1", 30, "lecturer", 30*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	pid, _ := claims.PrincipalID()
	if claims.SID != "sid-1" || pid != 30 || claims.Role != "lecturer" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsExpiredTicket(t *testing.T) {
	m, _ := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: hsKey})
	tok, err := m.Issue("sid-1", 30, "student", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	late := m.WithClock(func() time.Time { return time.Now().Add(2 * time.Minute) })
	_, err = late.Parse(tok)
	if !errors.Is(err, ErrInvalidTicket) || !errors.Is(err, ErrTicketExpired) {
		t.Fatalf("expected expired ErrInvalidTicket, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := TicketClaims{SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(hsKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseRejectsTamperedAndForeignTickets(t *testing.T) {
	m, _ := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: hsKey, Issuer: "portal"})
	tok, _ := m.Issue("sid-1", 30, "admin", time.Minute)
	if _, err := m.Parse(tok + "x"); err == nil {
		t.Fatal("expected tampered ticket rejected")
	}

	other, _ := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("ffffffffffffffffffffffffffffffff"), Issuer: "portal"})
	foreign, _ := other.Issue("sid-1", 30, "admin", time.Minute)
	if _, err := m.Parse(foreign); err == nil {
		t.Fatal("expected ticket signed with another key rejected")
	}

	wrongIssuer, _ := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: hsKey, Issuer: "elsewhere"})
	tok, _ = wrongIssuer.Issue("sid-1", 30, "admin", time.Minute)
	if _, err := m.Parse(tok); err == nil {
		t.Fatal("expected wrong issuer rejected")
	}
}

func TestParseRejectsMissingExpiry(t *testing.T) {
	m, _ := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: hsKey})
	claims := TicketClaims{SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{Subject: "1"}}
	token, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(hsKey)
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected ticket without exp rejected")
	}
}

func TestEd25519KeyRotation(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, priv2 := newEdKeys(t)

	signer, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv2, PublicKey: pub2, KeyID: "k2",
		VerifyKeys: map[string][]byte{"k1": pub1, "k2": pub2}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	old, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv1, PublicKey: pub1, KeyID: "k1",
		VerifyKeys: map[string][]byte{"k1": pub1}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	oldTok, _ := old.Issue("sid-old", 1, "tech", time.Minute)
	if _, err := signer.Parse(oldTok); err != nil {
		t.Fatalf("expected ticket under retired key to verify: %v", err)
	}
	newTok, _ := signer.Issue("sid-new", 1, "tech", time.Minute)
	if _, err := old.Parse(newTok); err == nil {
		t.Fatal("expected unknown kid failure")
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := map[string]Config{
		"short hs key":   {SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		"no ed key":      {SigningMethod: MethodEd25519},
		"unknown method": {SigningMethod: "rs256", PrivateKey: hsKey},
		"leeway":         {SigningMethod: MethodHS256, PrivateKey: hsKey, Leeway: time.Hour},
	}
	for name, cfg := range cases {
		if _, err := NewManager(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestVerifyOnlyManagerCannotIssue(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.Issue("sid-1", 1, "admin", time.Minute); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
