package exchange

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"carbonbridge/core/types"
)

const (
	EventTypeListingCreated   = "exchange.listing_created"
	EventTypeListingFilled    = "exchange.listing_filled"
	EventTypeListingCancelled = "exchange.listing_cancelled"
	EventTypeFeeRouted        = "exchange.fee_routed"
)

// NewListingCreatedEvent returns the canonical payload for a new listing.
func NewListingCreatedEvent(l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l != nil {
		attrs["listingId"] = l.ID
		attrs["seller"] = hex.EncodeToString(l.Seller[:])
		if l.Remaining != nil {
			attrs["amount"] = l.Remaining.String()
		}
		if l.Price != nil {
			attrs["price"] = l.Price.String()
		}
		attrs["createdAt"] = strconv.FormatInt(l.CreatedAt, 10)
	}
	return &types.Event{Type: EventTypeListingCreated, Attributes: attrs}
}

// NewListingFilledEvent returns the canonical payload for a fill.
func NewListingFilledEvent(l *Listing, buyer [20]byte, amount, cost *big.Int) *types.Event {
	attrs := map[string]string{
		"buyer": hex.EncodeToString(buyer[:]),
	}
	if l != nil {
		attrs["listingId"] = l.ID
		attrs["closed"] = strconv.FormatBool(l.Closed)
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	if cost != nil {
		attrs["cost"] = cost.String()
	}
	return &types.Event{Type: EventTypeListingFilled, Attributes: attrs}
}

// NewListingCancelledEvent returns the canonical payload for a cancel.
func NewListingCancelledEvent(l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l != nil {
		attrs["listingId"] = l.ID
		attrs["seller"] = hex.EncodeToString(l.Seller[:])
	}
	return &types.Event{Type: EventTypeListingCancelled, Attributes: attrs}
}

// NewFeeRoutedEvent records the reward-pool share of a trading fee.
func NewFeeRoutedEvent(listingID string, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"listingId": listingID,
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeFeeRouted, Attributes: attrs}
}
