package warmup

import "errors"

var (
	// ErrInvalidRecord is returned for records or settings the ramp cannot
	// evaluate: unknown profile, custom profile without phases, start date in
	// the future, negative values, or a persisted record that fails decoding.
	ErrInvalidRecord = errors.New("invalid warm-up record")

	// ErrNotInitialized is returned when no record exists for the identity.
	ErrNotInitialized = errors.New("warm-up not initialized")

	// ErrWarmupDisabled is returned by pause/resume on a disabled record.
	ErrWarmupDisabled = errors.New("warm-up disabled")
)
