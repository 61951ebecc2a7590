package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// SchemeArgon2id is the policy scheme every credential migrates to.
const SchemeArgon2id = "argon2id"

const argon2Prefix = "$" + SchemeArgon2id + "$"

// Policy floors. Stored hashes below them are treated as malformed.
const (
	floorMemoryKB  uint32 = 8 * 1024
	floorTime      uint32 = 1
	floorThreads   uint8  = 1
	floorSaltBytes        = 16
	floorKeyBytes         = 16
)

// Config is the argon2id cost policy.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (c Config) validate() error {
	switch {
	case c.Memory < floorMemoryKB:
		return fmt.Errorf("argon2 memory %d KB is below %d KB", c.Memory, floorMemoryKB)
	case c.Time < floorTime:
		return errors.New("argon2 time must be at least 1")
	case c.Parallelism < floorThreads:
		return errors.New("argon2 parallelism must be at least 1")
	case c.SaltLength < floorSaltBytes:
		return fmt.Errorf("argon2 salt length %d is below %d bytes", c.SaltLength, floorSaltBytes)
	case c.KeyLength < floorKeyBytes:
		return fmt.Errorf("argon2 key length %d is below %d bytes", c.KeyLength, floorKeyBytes)
	}
	return nil
}

// Argon2 hashes and verifies argon2id PHC strings against a cost policy.
type Argon2 struct {
	policy Config
}

// NewArgon2 validates cfg and returns the policy hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{policy: cfg}, nil
}

// Scheme implements [Strategy].
func (a *Argon2) Scheme() string { return SchemeArgon2id }

// Recognizes reports whether stored is an argon2id PHC string.
func (a *Argon2) Recognizes(stored string) bool {
	return strings.HasPrefix(stored, argon2Prefix)
}

// Hash encodes secret as a PHC string with unpadded base64 salt and key.
// Secrets are hashed as raw bytes with no normalization and no length cap.
func (a *Argon2) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	h := phc{
		memory:  a.policy.Memory,
		time:    a.policy.Time,
		threads: a.policy.Parallelism,
		salt:    make([]byte, a.policy.SaltLength),
	}
	if _, err := rand.Read(h.salt); err != nil {
		return "", err
	}
	h.key = h.derive(secret, a.policy.KeyLength)
	return h.String(), nil
}

// Verify reports whether secret matches stored. weak reports that the stored
// parameters are below the current policy.
func (a *Argon2) Verify(secret, stored string) (ok bool, weak bool, err error) {
	h, err := decodePHC(stored)
	if err != nil {
		return false, false, err
	}
	computed := h.derive(secret, uint32(len(h.key)))
	if subtle.ConstantTimeCompare(computed, h.key) != 1 {
		return false, false, nil
	}
	return true, a.weaker(h), nil
}

// NeedsUpgrade reports whether stored was produced below the policy.
func (a *Argon2) NeedsUpgrade(stored string) (bool, error) {
	h, err := decodePHC(stored)
	if err != nil {
		return false, err
	}
	return a.weaker(h), nil
}

func (a *Argon2) weaker(h phc) bool {
	return h.memory < a.policy.Memory ||
		h.time < a.policy.Time ||
		h.threads < a.policy.Parallelism ||
		uint32(len(h.salt)) < a.policy.SaltLength ||
		uint32(len(h.key)) != a.policy.KeyLength
}

/*
====================================
PHC ENCODING
====================================
*/

type phc struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (h phc) derive(secret string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(secret), h.salt, h.time, h.memory, h.threads, keyLen)
}

func (h phc) params() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", h.memory, h.time, h.threads)
}

func (h phc) String() string {
	return fmt.Sprintf("$%s$v=%d$%s$%s$%s",
		SchemeArgon2id,
		argon2.Version,
		h.params(),
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

// decodePHC accepts the canonical parameter order only, with padded or
// unpadded base64 fields.
func decodePHC(encoded string) (phc, error) {
	var h phc

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != SchemeArgon2id {
		return h, errors.New("not an argon2id PHC string")
	}
	if fields[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return h, fmt.Errorf("unsupported argon2 version %q", fields[2])
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return h, fmt.Errorf("argon2 parameters %q: %v", fields[3], err)
	}
	if h.params() != fields[3] {
		return h, fmt.Errorf("argon2 parameters %q are not canonical", fields[3])
	}
	if h.memory < floorMemoryKB || h.time < floorTime || h.threads < floorThreads {
		return h, fmt.Errorf("argon2 parameters %q are below the floor", fields[3])
	}

	var err error
	if h.salt, err = decodeB64(fields[4]); err != nil || len(h.salt) < floorSaltBytes {
		return h, errors.New("argon2 salt is invalid")
	}
	if h.key, err = decodeB64(fields[5]); err != nil || len(h.key) == 0 {
		return h, errors.New("argon2 key is invalid")
	}
	return h, nil
}

func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
