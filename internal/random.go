package internal

import (
	"crypto/rand"
	"encoding/hex"
)

const sessionIDBytes = 16

// NewSessionID draws a fresh security-context id: 16 random bytes as
// lowercase hex.
func NewSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ValidSessionID reports whether s has the shape produced by [NewSessionID].
func ValidSessionID(s string) bool {
	if len(s) != 2*sessionIDBytes {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
