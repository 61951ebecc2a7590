package password

import (
	"errors"
	"fmt"
)

// Strategy verifies one stored credential format.
type Strategy interface {
	Scheme() string
	// Recognizes reports whether stored carries this strategy's signature.
	Recognizes(stored string) bool
	// Verify compares secret to stored in constant time. weak is only
	// meaningful when ok is true.
	Verify(secret, stored string) (ok bool, weak bool, err error)
}

// Result is the outcome of [Verifier.Verify].
type Result struct {
	Valid          bool
	NeedsMigration bool
	Scheme         string
}

// Verifier walks an ordered strategy list: the argon2id policy first, then
// every fallback in the order given. The first strategy that recognizes the
// stored value decides the result.
type Verifier struct {
	policy     *Argon2
	strategies []Strategy
}

// NewVerifier builds a verifier whose policy scheme is argon2id. Order
// fallbacks from most to least trusted; [Plaintext], if present, goes last.
func NewVerifier(policy *Argon2, fallbacks ...Strategy) (*Verifier, error) {
	if policy == nil {
		return nil, errors.New("password policy hasher is required")
	}
	strategies := make([]Strategy, 0, len(fallbacks)+1)
	strategies = append(strategies, policy)
	for _, s := range fallbacks {
		if s == nil {
			return nil, errors.New("nil password strategy")
		}
		strategies = append(strategies, s)
	}
	return &Verifier{policy: policy, strategies: strategies}, nil
}

// Verify checks secret against stored. NeedsMigration is set only on a
// valid result whose scheme is not the policy scheme or whose cost is below
// policy.
func (v *Verifier) Verify(secret, stored string) (Result, error) {
	if secret == "" || stored == "" {
		return Result{}, nil
	}

	for _, s := range v.strategies {
		if !s.Recognizes(stored) {
			continue
		}
		res := Result{Scheme: s.Scheme()}
		ok, weak, err := s.Verify(secret, stored)
		if err != nil {
			return res, fmt.Errorf("%w: %s: %v", ErrMalformedCredential, s.Scheme(), err)
		}
		if !ok {
			return res, nil
		}
		res.Valid = true
		res.NeedsMigration = weak || s.Scheme() != v.policy.Scheme()
		return res, nil
	}

	return Result{}, ErrUnrecognizedCredential
}

// Rehash returns a policy-strength hash of secret.
func (v *Verifier) Rehash(secret string) (string, error) {
	return v.policy.Hash(secret)
}

// Schemes lists the strategy schemes in evaluation order.
func (v *Verifier) Schemes() []string {
	out := make([]string, len(v.strategies))
	for i, s := range v.strategies {
		out[i] = s.Scheme()
	}
	return out
}
