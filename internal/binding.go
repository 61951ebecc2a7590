package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// ClientBinding fingerprints a client by user agent and source address. The
// result is hex so it can be stored in a JSON session record and compared as
// a string.
func ClientBinding(userAgent, clientIP string) string {
	h := sha256.New()
	h.Write([]byte(userAgent))
	h.Write([]byte(clientIP))
	return hex.EncodeToString(h.Sum(nil))
}
