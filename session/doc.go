// Package session provides Redis-backed persistence for security contexts
// and the pre-auth records that carry the login form's CSRF token.
//
// # Encoding
//
// Records are stored as a single version byte followed by a JSON body. A
// record whose version is unknown is reported as [ErrCorrupt] and treated as
// absent by callers.
//
// # Indexing
//
// Every authenticated record is also added to a per-principal set so that all
// sessions of one principal can be torn down together. The set's TTL is only
// ever extended, never shortened, so a long remember-me record stays reachable.
//
// # What this package must NOT do
//
//   - Import portalauth, jwt, or internal/flows (no upward imports).
//   - Decide whether a record authorises a request.
//   - Store secrets in [Record] fields.
package session
