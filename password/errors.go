package password

import "errors"

var (
	// ErrEmptySecret is returned when hashing an empty secret.
	ErrEmptySecret = errors.New("secret is empty")
	// ErrMalformedCredential is returned when a stored value carries a known
	// scheme signature but cannot be parsed.
	ErrMalformedCredential = errors.New("malformed stored credential")
	// ErrUnrecognizedCredential is returned when no strategy claims the stored value.
	ErrUnrecognizedCredential = errors.New("unrecognized stored credential")
)
