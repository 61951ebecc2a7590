// Package csrf issues and validates the per-session anti-forgery token.
//
// The token lives inside the session record as a [State]. Issue is
// idempotent while the stored token is younger than the TTL; Validate fails
// closed on any missing input or stale token and compares in constant time.
package csrf
