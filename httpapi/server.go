package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/middleware"
	"github.com/MrEthical07/portalauth/profile"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	loginPath       = "/login"
	logoutPath      = "/logout"
	notAssignedPath = "/not-assigned"
)

// Authenticator is the engine surface the handlers use.
type Authenticator interface {
	middleware.SessionChecker
	BeginLogin(ctx context.Context, ticket string) (portalauth.LoginPage, error)
	Login(ctx context.Context, ticket string, req portalauth.LoginRequest) (portalauth.LoginResult, error)
	Logout(ctx context.Context, ticket string) error
}

// Options configures a Server. The zero value serves with default cookie
// settings and discards logs.
type Options struct {
	Cookie portalauth.CookieConfig
	Logger *slog.Logger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// TrustProxyHeaders takes the client address from X-Forwarded-For,
	// X-Real-IP or True-Client-IP. Enable it only behind a proxy that
	// overwrites those headers; otherwise the peer address is used.
	TrustProxyHeaders bool
}

// Server serves the login, logout and role landing routes.
type Server struct {
	auth       Authenticator
	cookie     portalauth.CookieConfig
	logger     *slog.Logger
	metrics    http.Handler
	trustProxy bool
}

// NewServer returns a Server handling requests with auth.
func NewServer(auth Authenticator, opts Options) *Server {
	cookie := opts.Cookie
	if cookie.Name == "" {
		cookie = portalauth.DefaultConfig().Cookie
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		auth:       auth,
		cookie:     cookie,
		logger:     logger,
		metrics:    opts.Metrics,
		trustProxy: opts.TrustProxyHeaders,
	}
}

// Router builds the chi router for the server's routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if s.trustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientContext)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Get(loginPath, s.handleLoginPage)
	r.Post(loginPath, s.handleLogin)
	r.Post(logoutPath, s.handleLogout)
	r.Get(notAssignedPath, s.handleNotAssigned)

	guard := middleware.Options{CookieName: s.cookie.Name, LoginPath: loginPath}
	for _, role := range profile.Roles {
		r.With(middleware.Guard(s.auth, guard, role)).Get("/"+profile.LandingRoute(role), s.handleDashboard)
	}

	return r
}

/*
====================================
COOKIES
====================================
*/

func (s *Server) ticket(r *http.Request) string {
	c, err := r.Cookie(s.cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

// setTicket writes the session cookie. A zero maxAge leaves it a browser
// session cookie.
func (s *Server) setTicket(w http.ResponseWriter, ticket string, maxAge time.Duration) {
	c := s.baseCookie()
	c.Value = ticket
	if maxAge > 0 {
		c.MaxAge = int(maxAge / time.Second)
	}
	http.SetCookie(w, c)
}

func (s *Server) expireTicket(w http.ResponseWriter) {
	c := s.baseCookie()
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

func (s *Server) baseCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.cookie.Name,
		Path:     s.cookie.Path,
		Domain:   s.cookie.Domain,
		Secure:   s.cookie.Secure,
		HttpOnly: true,
		SameSite: s.cookie.SameSite,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
