package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// SchemeBcrypt names crypt(3) bcrypt hashes ($2a$, $2b$, $2y$).
const SchemeBcrypt = "bcrypt"

// Bcrypt verifies hashes written by earlier PHP deployments. It never
// produces new hashes; a successful match is always scheduled for migration.
type Bcrypt struct{}

// Scheme implements [Strategy].
func (Bcrypt) Scheme() string { return SchemeBcrypt }

// Recognizes implements [Strategy].
func (Bcrypt) Recognizes(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// Verify implements [Strategy]. bcrypt is below policy, so weak is always
// true on a match.
func (Bcrypt) Verify(secret, stored string) (ok bool, weak bool, err error) {
	err = bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret))
	switch {
	case err == nil:
		return true, true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, false, nil
	default:
		return false, false, err
	}
}
