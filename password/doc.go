// Package password verifies stored credentials across every format the portal
// has written and produces argon2id hashes for migration.
//
// # Strategies
//
// A [Verifier] holds an ordered list of [Strategy] values. The argon2id
// policy hasher is always first; bcrypt ($2a$/$2b$/$2y$) and [Plaintext]
// follow. Plaintext only claims values without a hashed signature, so a
// malformed modern hash never falls through to direct comparison.
//
// Policy hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// # What this package must NOT do
//
//   - Store or retrieve credentials; callers persist the rehash.
//   - Import any other portalauth package.
//   - Log secrets or stored values.
package password
