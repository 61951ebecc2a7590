// Package profile resolves the role-specific profile of an authenticated
// principal.
//
// # Headship
//
// Department headship references are stored under two conventions: the
// correct one points at a lecturer profile id, the legacy one at a principal
// id. [ResolveHeadship] is the single implementation of the three ordered
// strategies (direct, legacy, department-fallback) and is a pure function
// over a department table. The fallback strategy yields membership only and
// never reports headship.
//
// # Variants
//
// [RoleProfile] is a closed set: only the variants in this package implement
// it. Callers switch on the concrete type.
package profile
