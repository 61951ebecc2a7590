package middleware

import (
	"context"
	"net"
	"net/http"
	"net/url"

	"github.com/MrEthical07/portalauth"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// SessionChecker is the part of [portalauth.Engine] a guard needs.
type SessionChecker interface {
	CheckSession(ctx context.Context, ticket string, allowed portalauth.RoleSet) (*portalauth.SecurityContext, error)
}

// Options configures [Guard]. Zero fields take the defaults of
// [portalauth.DefaultConfig] and "/login".
type Options struct {
	CookieName string
	LoginPath  string
}

func (o Options) withDefaults() Options {
	if o.CookieName == "" {
		o.CookieName = portalauth.DefaultConfig().Cookie.Name
	}
	if o.LoginPath == "" {
		o.LoginPath = "/login"
	}
	return o
}

type securityContextKey struct{}

// SecurityContextFrom returns the context admitted by a guard.
func SecurityContextFrom(ctx context.Context) (*portalauth.SecurityContext, bool) {
	sc, ok := ctx.Value(securityContextKey{}).(*portalauth.SecurityContext)
	return sc, ok && sc != nil
}

// RequireRoles admits requests whose security context has one of roles.
// With no roles any authenticated principal is admitted.
func RequireRoles(checker SessionChecker, roles ...portalauth.Role) func(http.Handler) http.Handler {
	return Guard(checker, Options{}, roles...)
}

// Guard is RequireRoles with explicit cookie and redirect options. A missing
// or rejected session is redirected to opts.LoginPath.
func Guard(checker SessionChecker, opts Options, roles ...portalauth.Role) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	allowed := portalauth.Roles(roles...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			NoCache(w)

			if checker == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			var ticket string
			if c, err := r.Cookie(opts.CookieName); err == nil {
				ticket = c.Value
			}

			ctx := withClient(r.Context(), r)
			sc, err := checker.CheckSession(ctx, ticket, allowed)
			if err != nil {
				out := portalauth.OutcomeFor(err)
				if out.Code == portalauth.OutcomeStoreUnavailable {
					http.Error(w, out.Message, http.StatusServiceUnavailable)
					return
				}
				http.Redirect(w, r, LoginURL(opts.LoginPath, out.Code), http.StatusSeeOther)
				return
			}

			ctx = context.WithValue(ctx, securityContextKey{}, sc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoginURL returns loginPath with an error query for code.
func LoginURL(loginPath string, code portalauth.OutcomeCode) string {
	if code == portalauth.OutcomeOK {
		return loginPath
	}
	return loginPath + "?" + url.Values{"error": {string(code)}}.Encode()
}

// NoCache marks a response as not storable by any cache.
func NoCache(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// ClientContext copies the client address, user agent and request id of
// each request into its context. The id is chi's, else the X-Request-Id
// header, else a new uuid. Mount it after chi's RequestID, and after RealIP
// only when proxy headers are trusted.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(withClient(r.Context(), r)))
	})
}

func withClient(ctx context.Context, r *http.Request) context.Context {
	ctx = portalauth.WithClientIP(ctx, ClientIP(r))
	ctx = portalauth.WithUserAgent(ctx, r.UserAgent())
	if portalauth.RequestIDFromContext(ctx) != "" {
		return ctx
	}
	id := chimw.GetReqID(ctx)
	if id == "" {
		id = r.Header.Get(chimw.RequestIDHeader)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return portalauth.WithRequestID(ctx, id)
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
