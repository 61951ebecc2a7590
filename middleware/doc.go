// Package middleware adapts portalauth session checks to net/http.
//
// # Guards
//
//   - [RequireRoles]: the session cookie must name a live security context
//     whose role is in the given set.
//   - [Guard]: the same with explicit [Options].
//   - [ClientContext]: copies the client address, user agent and chi request
//     id into the request context so the engine can bind and audit them.
//
// A rejected request is redirected to the login page with
// ?error=access_denied or ?error=session_expired. Guarded responses always
// carry no-cache headers.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every
// authorisation decision is made by Engine.CheckSession.
//
// # What this package must NOT do
//
//   - Parse or issue session tickets directly.
//   - Access Redis.
//   - Cache a security context across requests.
package middleware
