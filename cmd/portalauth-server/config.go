package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/portalauth"
)

type Config struct {
	HTTPAddr        string
	RedisAddr       string
	RedisPassword   string
	DatabaseURL     string
	EnsureSchema    bool
	Demo            bool
	TicketKey       string
	CookieSecure    bool
	TrustProxy      bool
	ProductionMode  bool
	LogLevel        string
	QueryTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func Load() Config {
	return Config{
		HTTPAddr:        getenv("PORTALAUTH_ADDR", ":8080"),
		RedisAddr:       getenv("PORTALAUTH_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:   getenv("PORTALAUTH_REDIS_PASSWORD", ""),
		DatabaseURL:     getenv("PORTALAUTH_DATABASE_URL", ""),
		EnsureSchema:    getenvBool("PORTALAUTH_ENSURE_SCHEMA", false),
		Demo:            getenvBool("PORTALAUTH_DEMO", false),
		TicketKey:       getenvKey("PORTALAUTH_TICKET_KEY", ""),
		CookieSecure:    getenvBool("PORTALAUTH_COOKIE_SECURE", true),
		TrustProxy:      getenvBool("PORTALAUTH_TRUST_PROXY_HEADERS", false),
		ProductionMode:  getenvBool("PORTALAUTH_PRODUCTION", false),
		LogLevel:        getenv("PORTALAUTH_LOG_LEVEL", "info"),
		QueryTimeout:    getenvDuration("PORTALAUTH_QUERY_TIMEOUT", 3*time.Second),
		IdleTimeout:     getenvDuration("PORTALAUTH_IDLE_TIMEOUT", 30*time.Minute),
		ShutdownTimeout: getenvDuration("PORTALAUTH_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// EngineConfig applies the environment to the engine defaults.
func (c Config) EngineConfig() (portalauth.Config, error) {
	if c.TicketKey == "" {
		return portalauth.Config{}, errors.New("PORTALAUTH_TICKET_KEY is required")
	}
	if c.DatabaseURL == "" && !c.Demo {
		return portalauth.Config{}, errors.New("PORTALAUTH_DATABASE_URL is required unless PORTALAUTH_DEMO is set")
	}

	cfg := portalauth.DefaultConfig()
	cfg.Ticket.PrivateKey = []byte(c.TicketKey)
	cfg.Cookie.Secure = c.CookieSecure
	cfg.Security.ProductionMode = c.ProductionMode
	cfg.Store.QueryTimeout = c.QueryTimeout
	cfg.Session.IdleTimeout = c.IdleTimeout
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg, cfg.Validate()
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getenvKey prefers KEY_FILE over KEY.
func getenvKey(key, fallback string) string {
	if file := os.Getenv(key + "_FILE"); file != "" {
		if data, err := os.ReadFile(file); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
