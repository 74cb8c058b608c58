package rewards

import "errors"

var (
	ErrNilState              = errors.New("rewards: state not configured")
	ErrNilPool               = errors.New("rewards: pool not configured")
	ErrUnauthorized          = errors.New("rewards: unauthorized")
	ErrNegativeDelta         = errors.New("rewards: contribution delta must be non-negative")
	ErrInvalidAmount         = errors.New("rewards: amount must be positive")
	ErrNothingToClaim        = errors.New("rewards: nothing to claim")
	ErrInsufficientPoolFunds = errors.New("rewards: insufficient pool funds")
	ErrInvariantViolation    = errors.New("rewards: negative claimable, accounting invariant violated")
	ErrReentrancy            = errors.New("rewards: operation already in progress")
)
