package token

import (
	"encoding/hex"
	"math/big"

	"carbonbridge/core/types"
)

const (
	EventTypeMinted      = "token.minted"
	EventTypeTransferred = "token.transferred"
)

// NewMintedEvent returns the canonical payload for a mint.
func NewMintedEvent(to [20]byte, symbol string, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"to":     hex.EncodeToString(to[:]),
		"symbol": symbol,
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeMinted, Attributes: attrs}
}

// NewTransferredEvent returns the canonical payload for a transfer.
func NewTransferredEvent(from, to [20]byte, symbol string, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"from":   hex.EncodeToString(from[:]),
		"to":     hex.EncodeToString(to[:]),
		"symbol": symbol,
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeTransferred, Attributes: attrs}
}
