// Package internal contains helper utilities that are private to portalauth,
// such as session id generation and client fingerprinting.
//
// # Sub-packages
//
//   - flows: the login state machine and session-check orchestration
//   - rate: Redis-backed and in-memory login attempt windows
//
// # What this package must NOT do
//
//   - Export types that appear in the public portalauth API.
//   - Be imported by any package outside the portalauth module.
package internal
