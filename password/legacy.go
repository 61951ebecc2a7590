package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"
)

// SchemePlaintext names unhashed legacy credentials.
const SchemePlaintext = "plaintext"

// Plaintext compares the secret directly to the stored value. It must be the
// last strategy in a [Verifier] and can be dropped once every row has been
// migrated.
type Plaintext struct{}

// Scheme implements [Strategy].
func (Plaintext) Scheme() string { return SchemePlaintext }

// Recognizes claims every non-empty value that does not carry a bcrypt or
// argon2 signature.
func (Plaintext) Recognizes(stored string) bool {
	return stored != "" && !looksHashed(stored)
}

// Verify implements [Strategy]. Both sides are digested first so the
// comparison does not leak the stored length.
func (Plaintext) Verify(secret, stored string) (ok bool, weak bool, err error) {
	a := sha256.Sum256([]byte(secret))
	b := sha256.Sum256([]byte(stored))
	if subtle.ConstantTimeCompare(a[:], b[:]) != 1 {
		return false, false, nil
	}
	return true, true, nil
}

func looksHashed(stored string) bool {
	return Bcrypt{}.Recognizes(stored) || strings.HasPrefix(stored, "$argon2")
}
