package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if !cfg.CookieSecure {
		t.Fatal("expected secure cookies by default")
	}
	if cfg.TrustProxy {
		t.Fatal("expected proxy headers untrusted by default")
	}
	if cfg.QueryTimeout != 3*time.Second {
		t.Fatalf("expected 3s query timeout, got %v", cfg.QueryTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORTALAUTH_ADDR", ":9090")
	t.Setenv("PORTALAUTH_COOKIE_SECURE", "false")
	t.Setenv("PORTALAUTH_QUERY_TIMEOUT", "750ms")
	t.Setenv("PORTALAUTH_IDLE_TIMEOUT_SECONDS", "600")
	t.Setenv("PORTALAUTH_DEMO", "not-a-bool")

	cfg := Load()
	if cfg.HTTPAddr != ":9090" || cfg.CookieSecure {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.QueryTimeout != 750*time.Millisecond {
		t.Fatalf("expected 750ms, got %v", cfg.QueryTimeout)
	}
	if cfg.IdleTimeout != 10*time.Minute {
		t.Fatalf("expected seconds fallback, got %v", cfg.IdleTimeout)
	}
	if cfg.Demo {
		t.Fatal("expected unparseable bool to keep the default")
	}
}

func TestTicketKeyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("0123456789abcdef0123456789abcdef\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	t.Setenv("PORTALAUTH_TICKET_KEY", "ignored")
	t.Setenv("PORTALAUTH_TICKET_KEY_FILE", path)

	if got := Load().TicketKey; got != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("expected key from file, got %q", got)
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := Load()
	if _, err := cfg.EngineConfig(); err == nil {
		t.Fatal("expected missing key to fail")
	}

	cfg.TicketKey = "0123456789abcdef0123456789abcdef"
	if _, err := cfg.EngineConfig(); err == nil {
		t.Fatal("expected missing database without demo to fail")
	}

	cfg.Demo = true
	cfg.CookieSecure = false
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if engineCfg.Cookie.Secure || !engineCfg.Audit.Enabled || !engineCfg.Metrics.Enabled {
		t.Fatalf("unexpected engine config %+v", engineCfg)
	}

	cfg.ProductionMode = true
	if _, err := cfg.EngineConfig(); err == nil {
		t.Fatal("expected production mode to reject insecure cookies")
	}
}
