package rate

import "errors"

var (
	// ErrStoreUnavailable is returned when the counter backend cannot be reached.
	ErrStoreUnavailable = errors.New("rate store unavailable")
	// ErrInvalidConfig is returned by constructors for non-positive caps or windows.
	ErrInvalidConfig = errors.New("invalid rate limiter config")
)
