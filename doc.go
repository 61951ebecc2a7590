// Package portalauth authenticates users of an institutional portal, throttles
// abuse of the login form, migrates legacy credentials and resolves each
// principal's role profile, including department headship.
//
// Engine methods are safe to call from multiple goroutines once [Builder.Build]
// has returned.
//
// # Architecture boundaries
//
// portalauth is the public surface. It exposes [Engine], [Builder], [Config],
// the error sentinels and [OutcomeFor], and the collaborator interfaces
// ([CredentialStore], [profile.Store], [AuditSink]). The login state machine,
// rate windows and session id generation live under internal/.
//
// A login runs strictly in order: field validation, rate limiting, CSRF,
// credential lookup, verification and migration, account state, profile
// resolution, then session establishment. Every store call runs under
// Config.Store.QueryTimeout.
//
// # What this package must NOT do
//
//   - Log or audit a presented secret, a stored credential or a CSRF token.
//   - Authorise on the session ticket alone; the server-side record decides.
//   - Import any sub-package that re-imports portalauth (no import cycles).
package portalauth
