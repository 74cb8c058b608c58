package bridge

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"carbonbridge/core/types"
)

const (
	EventTypeBatchSubmitted    = "bridge.batch_submitted"
	EventTypeBatchChallenged   = "bridge.batch_challenged"
	EventTypeChallengeResolved = "bridge.challenge_resolved"
	EventTypeBatchSettled      = "bridge.batch_settled"
	EventTypeParamUpdated      = "bridge.param_updated"
)

// NewBatchSubmittedEvent returns the canonical payload for a submission.
func NewBatchSubmittedEvent(record *BatchRecord) *types.Event {
	attrs := make(map[string]string)
	if record != nil {
		attrs["batchHash"] = hex.EncodeToString(record.Hash[:])
		attrs["entryCount"] = strconv.FormatUint(uint64(record.EntryCount), 10)
		attrs["settleAfter"] = strconv.FormatInt(record.SettleAfter, 10)
	}
	return &types.Event{Type: EventTypeBatchSubmitted, Attributes: attrs}
}

// NewBatchChallengedEvent returns the canonical payload for a dispute.
func NewBatchChallengedEvent(hash [32]byte, ch *Challenge) *types.Event {
	attrs := map[string]string{
		"batchHash": hex.EncodeToString(hash[:]),
	}
	if ch != nil {
		attrs["challenger"] = hex.EncodeToString(ch.Challenger[:])
		attrs["reason"] = ch.Reason
	}
	return &types.Event{Type: EventTypeBatchChallenged, Attributes: attrs}
}

// NewChallengeResolvedEvent returns the canonical payload for an arbiter
// outcome.
func NewChallengeResolvedEvent(hash [32]byte, upheld bool) *types.Event {
	return &types.Event{Type: EventTypeChallengeResolved, Attributes: map[string]string{
		"batchHash": hex.EncodeToString(hash[:]),
		"upheld":    strconv.FormatBool(upheld),
	}}
}

// NewBatchSettledEvent carries the aggregate mint amount and the number of
// entries processed (counted, not filtered).
func NewBatchSettledEvent(hash [32]byte, minted *big.Int, entriesProcessed int) *types.Event {
	attrs := map[string]string{
		"batchHash":        hex.EncodeToString(hash[:]),
		"entriesProcessed": strconv.Itoa(entriesProcessed),
	}
	if minted != nil {
		attrs["creditsMinted"] = minted.String()
	}
	return &types.Event{Type: EventTypeBatchSettled, Attributes: attrs}
}

// NewParamUpdatedEvent records a before/after configuration change for
// audit.
func NewParamUpdatedEvent(name, before, after string) *types.Event {
	return &types.Event{Type: EventTypeParamUpdated, Attributes: map[string]string{
		"param":    name,
		"previous": before,
		"new":      after,
	}}
}
