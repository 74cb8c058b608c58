package rewards

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"carbonbridge/core/types"
)

const (
	EventTypeContributionUpdated = "rewards.contribution_updated"
	EventTypeClaimed             = "rewards.claimed"
	EventTypePoolFunded          = "rewards.pool_funded"
	EventTypeRateUpdated         = "rewards.rate_updated"
)

// NewContributionUpdatedEvent carries the operator's new absolute score, not
// the delta, so indexers can reconcile without replaying history.
func NewContributionUpdatedEvent(operator [20]byte, newScore *big.Int, timestamp int64) *types.Event {
	attrs := map[string]string{
		"operator":  hex.EncodeToString(operator[:]),
		"timestamp": strconv.FormatInt(timestamp, 10),
	}
	if newScore != nil {
		attrs["score"] = newScore.String()
	}
	return &types.Event{Type: EventTypeContributionUpdated, Attributes: attrs}
}

// NewClaimedEvent returns the canonical payload for a reward payout.
func NewClaimedEvent(operator [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"operator": hex.EncodeToString(operator[:]),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeClaimed, Attributes: attrs}
}

// NewPoolFundedEvent returns the canonical payload for a pool deposit.
func NewPoolFundedEvent(from [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"from": hex.EncodeToString(from[:]),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypePoolFunded, Attributes: attrs}
}

// NewRateUpdatedEvent records the before/after emission rate for audit.
func NewRateUpdatedEvent(previous, current *big.Int) *types.Event {
	attrs := map[string]string{}
	if previous != nil {
		attrs["previousRate"] = previous.String()
	}
	if current != nil {
		attrs["newRate"] = current.String()
	}
	return &types.Event{Type: EventTypeRateUpdated, Attributes: attrs}
}
