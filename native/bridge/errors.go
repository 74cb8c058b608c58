package bridge

import "errors"

var (
	ErrNilState                 = errors.New("bridge: state not configured")
	ErrNilMinter                = errors.New("bridge: credit minter not configured")
	ErrNilRegistry              = errors.New("bridge: contribution registry not configured")
	ErrUnauthorized             = errors.New("bridge: unauthorized")
	ErrEmptyBatch               = errors.New("bridge: batch must contain at least one entry")
	ErrAlreadySubmitted         = errors.New("bridge: batch already submitted")
	ErrAlreadySettled           = errors.New("bridge: batch already settled")
	ErrBatchNotFound            = errors.New("bridge: batch not found")
	ErrBatchRejected            = errors.New("bridge: batch permanently rejected")
	ErrNotYetSettleable         = errors.New("bridge: challenge window still open")
	ErrChallengeWindowClosed    = errors.New("bridge: challenge window closed")
	ErrChallengeExists          = errors.New("bridge: open challenge already exists")
	ErrChallengeNotFound        = errors.New("bridge: challenge not found")
	ErrChallengeResolved        = errors.New("bridge: challenge already resolved")
	ErrChallengeUnresolved      = errors.New("bridge: unresolved challenge blocks settlement")
	ErrChallengeUpheld          = errors.New("bridge: upheld challenge blocks settlement")
	ErrFactorNotConfigured      = errors.New("bridge: emission factor not configured for locale")
	ErrInvalidProof             = errors.New("bridge: malformed consensus proof")
	ErrInsufficientParticipants = errors.New("bridge: consensus participant count below threshold")
	ErrEntriesMissing           = errors.New("bridge: stored entries missing for batch")
	ErrReentrancy               = errors.New("bridge: operation already in progress")
)
