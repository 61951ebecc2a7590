// Package flows contains the orchestrators behind every Engine operation:
// the login state machine, the login page, the session check and logout.
//
// Each flow function (RunLogin, RunBeginLogin, RunCheckSession, etc.)
// accepts a typed dependency struct of function fields and returns results
// without side effects beyond those dependencies. The Engine builds the
// dependency structs once and stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session store, ticket manager, rate
// limiter, credential verifier, profile resolver, audit dispatcher and
// metrics. They do NOT own any of these resources; ownership stays with the
// Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import portalauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency fields.
package flows
