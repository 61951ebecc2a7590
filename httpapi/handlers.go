package httpapi

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/middleware"
	"github.com/MrEthical07/portalauth/profile"
)

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html><head><title>Portal login</title></head><body>
{{if .Message}}<p class="error">{{.Message}}</p>{{end}}
{{if .LoggedOut}}<p class="notice">You have been logged out.</p>{{end}}
<form method="post" action="/login">
<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
<select name="role">{{range .Roles}}<option value="{{.}}">{{.}}</option>{{end}}</select>
<input name="identifier" placeholder="Email or username" maxlength="100">
<input name="password" type="password">
<label><input type="checkbox" name="remember_me" value="1"> Remember me</label>
<button type="submit">Log in</button>
</form>
</body></html>
`))

var notAssignedTemplate = template.Must(template.New("not-assigned").Parse(`<!DOCTYPE html>
<html><head><title>Not assigned</title></head><body>
<p>{{.}}</p>
<p><a href="/login">Back to login</a></p>
</body></html>
`))

type loginView struct {
	CSRFToken string                 `json:"csrf_token"`
	Message   string                 `json:"message,omitempty"`
	Code      portalauth.OutcomeCode `json:"error,omitempty"`
	LoggedOut bool                   `json:"logged_out,omitempty"`
	Roles     []profile.Role         `json:"roles"`
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	middleware.NoCache(w)

	page, err := s.auth.BeginLogin(r.Context(), s.ticket(r))
	if err != nil {
		out := portalauth.OutcomeFor(err)
		s.logger.WarnContext(r.Context(), "login page unavailable", "error", err)
		http.Error(w, out.Message, http.StatusServiceUnavailable)
		return
	}
	if page.Ticket != "" {
		s.setTicket(w, page.Ticket, 0)
	}

	q := r.URL.Query()
	out := portalauth.OutcomeForCode(portalauth.OutcomeCode(q.Get("error")))
	view := loginView{
		CSRFToken: page.CSRFToken,
		Message:   out.Message,
		Code:      out.Code,
		LoggedOut: q.Get("logout") == "success",
		Roles:     profile.Roles,
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, view)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginTemplate.Execute(w, view); err != nil {
		s.logger.ErrorContext(r.Context(), "render login page", "error", err)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	middleware.NoCache(w)

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, middleware.LoginURL(loginPath, portalauth.OutcomeValidation), http.StatusSeeOther)
		return
	}
	identifier := r.PostForm.Get("identifier")
	if identifier == "" {
		identifier = r.PostForm.Get("email")
	}
	req := portalauth.LoginRequest{
		Role:       r.PostForm.Get("role"),
		Identifier: identifier,
		Secret:     r.PostForm.Get("password"),
		CSRFToken:  r.PostForm.Get("csrf_token"),
		RememberMe: checked(r.PostForm.Get("remember_me")),
	}

	res, err := s.auth.Login(r.Context(), s.ticket(r), req)
	if err != nil {
		out := portalauth.OutcomeFor(err)
		if out.Code == portalauth.OutcomeStoreUnavailable {
			s.logger.ErrorContext(r.Context(), "login store failure", "error", err)
		}
		if out.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(out.RetryAfter/time.Second)))
		}
		if out.Route == profile.RouteNotAssigned {
			http.Redirect(w, r, notAssignedPath, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, middleware.LoginURL(loginPath, out.Code), http.StatusSeeOther)
		return
	}

	s.setTicket(w, res.Ticket, res.CookieMaxAge)
	http.Redirect(w, r, "/"+res.Route, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), s.ticket(r)); err != nil {
		s.logger.WarnContext(r.Context(), "logout failed", "error", err)
	}
	s.expireTicket(w)
	middleware.NoCache(w)
	http.Redirect(w, r, loginPath+"?logout=success", http.StatusSeeOther)
}

func (s *Server) handleNotAssigned(w http.ResponseWriter, r *http.Request) {
	middleware.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	msg := portalauth.OutcomeForCode(portalauth.OutcomeNotAssigned).Message
	if err := notAssignedTemplate.Execute(w, msg); err != nil {
		s.logger.ErrorContext(r.Context(), "render not-assigned page", "error", err)
	}
}

type dashboardView struct {
	PrincipalID int64               `json:"principal_id"`
	Username    string              `json:"username"`
	Role        profile.Role        `json:"role"`
	Profile     profile.RoleProfile `json:"profile,omitempty"`
	CSRFToken   string              `json:"csrf_token"`
	ExpiresAt   time.Time           `json:"expires_at"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sc, ok := middleware.SecurityContextFrom(r.Context())
	if !ok {
		s.logger.ErrorContext(r.Context(), "dashboard reached without security context")
		http.Redirect(w, r, middleware.LoginURL(loginPath, portalauth.OutcomeAccessDenied), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, dashboardView{
		PrincipalID: sc.PrincipalID,
		Username:    sc.Username,
		Role:        sc.Role,
		Profile:     sc.Profile,
		CSRFToken:   sc.CSRFToken,
		ExpiresAt:   sc.ExpiresAt,
	})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func checked(v string) bool {
	switch strings.ToLower(v) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}
