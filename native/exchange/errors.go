package exchange

import "errors"

var (
	ErrNilState              = errors.New("exchange: state not configured")
	ErrNilLedger             = errors.New("exchange: token ledger not configured")
	ErrListingNotFound       = errors.New("exchange: listing not found")
	ErrListingClosed         = errors.New("exchange: listing closed")
	ErrInvalidAmount         = errors.New("exchange: amount must be positive")
	ErrInvalidPrice          = errors.New("exchange: price must be positive")
	ErrInsufficientLiquidity = errors.New("exchange: fill exceeds listing remainder")
	ErrInsufficientFunds     = errors.New("exchange: buyer balance below cost")
	ErrUnauthorized          = errors.New("exchange: unauthorized")
	ErrReentrancy            = errors.New("exchange: operation already in progress")
)
