package sending

import "errors"

// Sentinel errors for the sending service layer.
var (
	ErrIdentityNotFound = errors.New("identity not found")
)

// Denial reasons reported by CanSend in addition to the capacity reasons
// hourly_limit and daily_limit.
const (
	ReasonInactive     = "inactive"
	ReasonWarmupPaused = "warmup_paused"
	ReasonWarmupLimit  = "warmup_limit"
)
