package httpapi_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/httpapi"
	"github.com/MrEthical07/portalauth/profile"
	"github.com/MrEthical07/portalauth/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type portal struct {
	handler http.Handler
	engine  *portalauth.Engine
	store   *memory.Store
}

func newPortal(t *testing.T) portal {
	t.Helper()
	return newPortalWith(t, httpapi.Options{})
}

func newPortalWith(t *testing.T, opts httpapi.Options) portal {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := portalauth.DefaultConfig()
	cfg.Ticket.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16

	store := memory.Demo()
	engine, err := portalauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithProfileStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	opts.Cookie = cfg.Cookie
	srv := httpapi.NewServer(engine, opts)
	return portal{handler: srv.Router(), engine: engine, store: store}
}

func (p portal) do(t *testing.T, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req.RemoteAddr = "10.0.0.1:40000"
	req.Header.Set("User-Agent", "portal-test/1.0")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	p.handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "portal_session" {
			return c
		}
	}
	t.Fatalf("expected session cookie, headers: %v", rec.Header())
	return nil
}

type loginPage struct {
	CSRFToken string `json:"csrf_token"`
	Message   string `json:"message"`
	Code      string `json:"error"`
	LoggedOut bool   `json:"logged_out"`
}

// openForm fetches the login form and returns its token and pre-auth cookie.
func (p portal) openForm(t *testing.T) (string, *http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Accept", "application/json")
	rec := p.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page loginPage
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode login page: %v", err)
	}
	if page.CSRFToken == "" {
		t.Fatal("expected csrf token")
	}
	return page.CSRFToken, sessionCookie(t, rec)
}

func (p portal) submit(t *testing.T, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.do(t, req, cookie)
}

func loginForm(role, identifier, password, token string) url.Values {
	return url.Values{
		"role":       {role},
		"identifier": {identifier},
		"password":   {password},
		"csrf_token": {token},
	}
}

func TestLoginRedirectsToLandingWithSessionCookie(t *testing.T) {
	p := newPortal(t)
	token, preAuth := p.openForm(t)

	rec := p.submit(t, loginForm("lecturer", "jdoe", memory.DemoPassword, token), preAuth)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/lecturer-dashboard" {
		t.Fatalf("expected lecturer dashboard, got %q", got)
	}

	c := sessionCookie(t, rec)
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes %+v", c)
	}
	if c.MaxAge != 0 {
		t.Fatalf("expected browser-session cookie, got MaxAge %d", c.MaxAge)
	}
	if c.Value == preAuth.Value {
		t.Fatal("expected a new ticket after login")
	}

	dash := p.do(t, httptest.NewRequest(http.MethodGet, "/lecturer-dashboard", nil), c)
	if dash.Code != http.StatusOK {
		t.Fatalf("expected dashboard 200, got %d", dash.Code)
	}
	if got := dash.Header().Get("Cache-Control"); got != "no-store, no-cache, must-revalidate" {
		t.Fatalf("expected no-cache header, got %q", got)
	}
	var view struct {
		PrincipalID int64  `json:"principal_id"`
		Role        string `json:"role"`
	}
	if err := json.NewDecoder(dash.Body).Decode(&view); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if view.PrincipalID != 30 || view.Role != "lecturer" {
		t.Fatalf("unexpected dashboard view %+v", view)
	}
}

func TestLoginRememberMeSetsMaxAge(t *testing.T) {
	p := newPortal(t)
	token, preAuth := p.openForm(t)

	form := loginForm("student", "asmith@portal.test", memory.DemoPassword, token)
	form.Set("remember_me", "on")
	rec := p.submit(t, form, preAuth)

	if got := rec.Header().Get("Location"); got != "/student-dashboard" {
		t.Fatalf("expected student dashboard, got %q", got)
	}
	if c := sessionCookie(t, rec); c.MaxAge != 30*24*60*60 {
		t.Fatalf("expected 30 day MaxAge, got %d", c.MaxAge)
	}
}

func TestLoginFailuresRedirectWithCode(t *testing.T) {
	cases := []struct {
		name     string
		form     func(token string) url.Values
		location string
	}{
		{
			name:     "wrong password",
			form:     func(tok string) url.Values { return loginForm("lecturer", "jdoe", "nope", tok) },
			location: "/login?error=authentication_failed",
		},
		{
			name:     "bad csrf",
			form:     func(string) url.Values { return loginForm("lecturer", "jdoe", memory.DemoPassword, "forged") },
			location: "/login?error=csrf_invalid",
		},
		{
			name:     "invalid role",
			form:     func(tok string) url.Values { return loginForm("dean", "jdoe", memory.DemoPassword, tok) },
			location: "/login?error=validation",
		},
		{
			name:     "role mismatch disclosed",
			form:     func(tok string) url.Values { return loginForm("student", "jdoe", memory.DemoPassword, tok) },
			location: "/login?error=account_inactive",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newPortal(t)
			token, preAuth := p.openForm(t)
			rec := p.submit(t, tc.form(token), preAuth)
			if rec.Code != http.StatusSeeOther {
				t.Fatalf("expected 303, got %d", rec.Code)
			}
			if got := rec.Header().Get("Location"); got != tc.location {
				t.Fatalf("expected %q, got %q", tc.location, got)
			}
		})
	}
}

func TestLoginRateLimitedSetsRetryAfter(t *testing.T) {
	p := newPortal(t)
	token, preAuth := p.openForm(t)

	for i := 0; i < 5; i++ {
		p.submit(t, loginForm("lecturer", "jdoe", "wrong", token), preAuth)
	}
	rec := p.submit(t, loginForm("lecturer", "jdoe", memory.DemoPassword, token), preAuth)
	if got := rec.Header().Get("Location"); got != "/login?error=rate_limited" {
		t.Fatalf("expected rate limited redirect, got %q", got)
	}
	if got := rec.Header().Get("Retry-After"); got != "900" {
		t.Fatalf("expected Retry-After 900, got %q", got)
	}
}

// rateLimitedAcross submits one wrong password for each of 15 accounts from
// a single peer, each with its own X-Forwarded-For, and counts refusals.
func rateLimitedAcross(t *testing.T, p portal) int {
	t.Helper()
	token, preAuth := p.openForm(t)
	limited := 0
	for i := 0; i < 15; i++ {
		form := loginForm("lecturer", fmt.Sprintf("user%02d", i), "wrong", token)
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		rec := p.do(t, req, preAuth)
		if rec.Header().Get("Location") == "/login?error=rate_limited" {
			limited++
		}
	}
	return limited
}

func TestSourceLimitIgnoresForwardedHeadersByDefault(t *testing.T) {
	p := newPortal(t)
	if got := rateLimitedAcross(t, p); got != 5 {
		t.Fatalf("expected 5 attempts over the source cap refused, got %d", got)
	}
}

func TestSourceLimitHonoursTrustedProxyHeaders(t *testing.T) {
	p := newPortalWith(t, httpapi.Options{TrustProxyHeaders: true})
	if got := rateLimitedAcross(t, p); got != 0 {
		t.Fatalf("expected every forwarded source under its cap, got %d refused", got)
	}
}

func TestLoginNotAssignedRedirects(t *testing.T) {
	p := newPortal(t)
	p.store.AddPrincipal(portalauth.Principal{
		ID:         32,
		Username:   "nohead",
		Email:      "nohead@portal.test",
		Credential: memory.DemoPassword,
		Role:       portalauth.RoleHOD,
		Status:     portalauth.StatusActive,
	})
	token, preAuth := p.openForm(t)

	rec := p.submit(t, loginForm("hod", "nohead", memory.DemoPassword, token), preAuth)
	if got := rec.Header().Get("Location"); got != "/not-assigned" {
		t.Fatalf("expected not-assigned redirect, got %q", got)
	}

	page := p.do(t, httptest.NewRequest(http.MethodGet, "/not-assigned", nil))
	if !strings.Contains(page.Body.String(), "not assigned to any department") {
		t.Fatalf("expected not-assigned notice, got %q", page.Body.String())
	}
}

func TestDashboardRoleEnforcement(t *testing.T) {
	p := newPortal(t)
	token, preAuth := p.openForm(t)
	c := sessionCookie(t, p.submit(t, loginForm("lecturer", "jdoe", memory.DemoPassword, token), preAuth))

	rec := p.do(t, httptest.NewRequest(http.MethodGet, "/admin-dashboard", nil), c)
	if got := rec.Header().Get("Location"); got != "/login?error=access_denied" {
		t.Fatalf("expected access denied redirect, got %q", got)
	}

	// The failed role check destroyed the context.
	rec = p.do(t, httptest.NewRequest(http.MethodGet, "/lecturer-dashboard", nil), c)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect after teardown, got %d", rec.Code)
	}
}

func TestDashboardWithoutCookie(t *testing.T) {
	p := newPortal(t)
	for _, role := range profile.Roles {
		rec := p.do(t, httptest.NewRequest(http.MethodGet, "/"+profile.LandingRoute(role), nil))
		if got := rec.Header().Get("Location"); got != "/login?error=access_denied" {
			t.Fatalf("%s: expected access denied redirect, got %q", role, got)
		}
	}
}

func TestLogoutExpiresCookie(t *testing.T) {
	p := newPortal(t)
	token, preAuth := p.openForm(t)
	c := sessionCookie(t, p.submit(t, loginForm("tech", "ops", memory.DemoPassword, token), preAuth))

	rec := p.do(t, httptest.NewRequest(http.MethodPost, "/logout", nil), c)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/login?logout=success" {
		t.Fatalf("unexpected location %q", got)
	}
	if expired := sessionCookie(t, rec); expired.MaxAge >= 0 || expired.Value != "" {
		t.Fatalf("expected expired cookie, got %+v", expired)
	}
	h := rec.Header()
	if h.Get("Cache-Control") != "no-store, no-cache, must-revalidate" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("expected no-cache headers, got %v", h)
	}

	dash := p.do(t, httptest.NewRequest(http.MethodGet, "/tech-dashboard", nil), c)
	if dash.Code != http.StatusSeeOther {
		t.Fatalf("expected logged out ticket to be refused, got %d", dash.Code)
	}

	// A second logout with the dead ticket still succeeds.
	again := p.do(t, httptest.NewRequest(http.MethodPost, "/logout", nil), c)
	if again.Header().Get("Location") != "/login?logout=success" {
		t.Fatalf("expected idempotent logout, got %q", again.Header().Get("Location"))
	}
}

func TestLoginPageShowsOutcomeMessage(t *testing.T) {
	p := newPortal(t)

	req := httptest.NewRequest(http.MethodGet, "/login?error=session_expired", nil)
	rec := p.do(t, req)
	body := rec.Body.String()
	if !strings.Contains(body, "Your session has expired") {
		t.Fatalf("expected expiry message, got %q", body)
	}
	if !strings.Contains(body, `name="csrf_token"`) {
		t.Fatal("expected csrf field in form")
	}

	req = httptest.NewRequest(http.MethodGet, "/login?error=bogus&logout=success", nil)
	req.Header.Set("Accept", "application/json")
	var page loginPage
	if err := json.NewDecoder(p.do(t, req).Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Message != "" || page.Code != "" || !page.LoggedOut {
		t.Fatalf("expected unknown code ignored and logout flagged, got %+v", page)
	}
}

func TestLoginPageReusesPreAuthCookie(t *testing.T) {
	p := newPortal(t)
	token, preAuth := p.openForm(t)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Accept", "application/json")
	rec := p.do(t, req, preAuth)

	for _, c := range rec.Result().Cookies() {
		if c.Name == "portal_session" {
			t.Fatalf("expected no new cookie, got %+v", c)
		}
	}
	var page loginPage
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.CSRFToken != token {
		t.Fatalf("expected same token, got %q", page.CSRFToken)
	}
}

func TestHealth(t *testing.T) {
	p := newPortal(t)
	rec := p.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}
