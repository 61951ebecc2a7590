// Package httpapi is the portal's HTTP surface over a portalauth engine: the
// login form, login submission, logout, the not-assigned notice and one
// guarded landing page per role.
//
// The session ticket travels only in an HttpOnly cookie. Every failure is
// reported as a redirect carrying a [portalauth.OutcomeCode], never as raw
// error text.
package httpapi
