package bridge

import (
	"fmt"
	"math/big"
	"strings"
)

// EnergyEntry is one verified energy measurement inside a batch. Entries are
// immutable once included: the batch identity is the hash of the exact
// encoded entry list.
type EnergyEntry struct {
	DeviceID        [32]byte
	Operator        [20]byte
	EnergyKWh       uint64
	Timestamp       int64
	Locale          string
	VerificationTag string
}

// SanitizeEntry validates the fields an entry must carry before it can be
// hashed into a batch. A zero operator or zero energy quantity is legal (it
// degrades to a settlement skip) but a negative timestamp is not.
func SanitizeEntry(e EnergyEntry) (EnergyEntry, error) {
	if e.Timestamp < 0 {
		return EnergyEntry{}, fmt.Errorf("bridge: negative entry timestamp %d", e.Timestamp)
	}
	e.Locale = strings.TrimSpace(e.Locale)
	e.VerificationTag = strings.TrimSpace(e.VerificationTag)
	return e, nil
}

// ConsensusProof carries the off-chain aggregation result accompanying a
// batch submission. Verification is structural only: the participant count
// threshold and the result hash shape are checked, the aggregated signature
// blob is carried opaquely.
type ConsensusProof struct {
	RoundID          uint64
	ParticipantCount uint32
	ResultHash       [32]byte
	Signature        []byte
}

// BatchStatus is the derived lifecycle position of a batch record.
type BatchStatus uint8

const (
	StatusPending BatchStatus = iota
	StatusChallenged
	StatusSettleable
	StatusSettled
	StatusRejected
)

// String implements fmt.Stringer for status reporting surfaces.
func (s BatchStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusChallenged:
		return "challenged"
	case StatusSettleable:
		return "settleable"
	case StatusSettled:
		return "settled"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// BatchRecord wraps the lifecycle state of a submitted batch. Settled and
// Rejected are terminal and mutually exclusive; Rejected is the permanent
// tombstone written when a challenge is upheld, so the hash can never be
// resubmitted or settled.
type BatchRecord struct {
	Hash        [32]byte
	EntryCount  uint32
	SubmittedAt int64
	SettleAfter int64
	Settled     bool
	SettledAt   int64
	Rejected    bool
	MintedTotal *big.Int
}

// Clone returns a deep copy of the record.
func (r *BatchRecord) Clone() *BatchRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.MintedTotal != nil {
		clone.MintedTotal = new(big.Int).Set(r.MintedTotal)
	} else {
		clone.MintedTotal = big.NewInt(0)
	}
	return &clone
}

// StatusAt derives the record status as of now given the latest challenge.
func (r *BatchRecord) StatusAt(now int64, ch *Challenge) BatchStatus {
	if r == nil {
		return StatusRejected
	}
	switch {
	case r.Rejected:
		return StatusRejected
	case r.Settled:
		return StatusSettled
	case ch != nil && !ch.Resolved:
		return StatusChallenged
	case now >= r.SettleAfter:
		return StatusSettleable
	default:
		return StatusPending
	}
}

// Challenge is the public dispute raised against a pending batch. At most
// one open challenge exists per record at a time.
type Challenge struct {
	Challenger [20]byte
	Reason     string
	RaisedAt   int64
	Resolved   bool
	Upheld     bool
	ResolvedAt int64
}

// Clone returns a copy of the challenge.
func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

type storedEntry struct {
	DeviceID        [32]byte
	Operator        [20]byte
	EnergyKWh       uint64
	Timestamp       uint64
	Locale          string
	VerificationTag string
}

type storedRecord struct {
	Hash        [32]byte
	EntryCount  uint32
	SubmittedAt uint64
	SettleAfter uint64
	Settled     bool
	SettledAt   uint64
	Rejected    bool
	MintedTotal *big.Int
}

type storedChallenge struct {
	Challenger [20]byte
	Reason     string
	RaisedAt   uint64
	Resolved   bool
	Upheld     bool
	ResolvedAt uint64
}

func toStoredEntries(entries []EnergyEntry) ([]storedEntry, error) {
	stored := make([]storedEntry, 0, len(entries))
	for _, entry := range entries {
		sanitized, err := SanitizeEntry(entry)
		if err != nil {
			return nil, err
		}
		stored = append(stored, storedEntry{
			DeviceID:        sanitized.DeviceID,
			Operator:        sanitized.Operator,
			EnergyKWh:       sanitized.EnergyKWh,
			Timestamp:       uint64(sanitized.Timestamp),
			Locale:          sanitized.Locale,
			VerificationTag: sanitized.VerificationTag,
		})
	}
	return stored, nil
}

func fromStoredEntries(stored []storedEntry) []EnergyEntry {
	entries := make([]EnergyEntry, 0, len(stored))
	for _, s := range stored {
		entries = append(entries, EnergyEntry{
			DeviceID:        s.DeviceID,
			Operator:        s.Operator,
			EnergyKWh:       s.EnergyKWh,
			Timestamp:       int64(s.Timestamp),
			Locale:          s.Locale,
			VerificationTag: s.VerificationTag,
		})
	}
	return entries
}

func toStoredRecord(r *BatchRecord) *storedRecord {
	minted := r.MintedTotal
	if minted == nil {
		minted = big.NewInt(0)
	}
	return &storedRecord{
		Hash:        r.Hash,
		EntryCount:  r.EntryCount,
		SubmittedAt: uint64(r.SubmittedAt),
		SettleAfter: uint64(r.SettleAfter),
		Settled:     r.Settled,
		SettledAt:   uint64(r.SettledAt),
		Rejected:    r.Rejected,
		MintedTotal: minted,
	}
}

func fromStoredRecord(s *storedRecord) *BatchRecord {
	return &BatchRecord{
		Hash:        s.Hash,
		EntryCount:  s.EntryCount,
		SubmittedAt: int64(s.SubmittedAt),
		SettleAfter: int64(s.SettleAfter),
		Settled:     s.Settled,
		SettledAt:   int64(s.SettledAt),
		Rejected:    s.Rejected,
		MintedTotal: s.MintedTotal,
	}
}

func toStoredChallenge(c *Challenge) *storedChallenge {
	return &storedChallenge{
		Challenger: c.Challenger,
		Reason:     c.Reason,
		RaisedAt:   uint64(c.RaisedAt),
		Resolved:   c.Resolved,
		Upheld:     c.Upheld,
		ResolvedAt: uint64(c.ResolvedAt),
	}
}

func fromStoredChallenge(s *storedChallenge) *Challenge {
	return &Challenge{
		Challenger: s.Challenger,
		Reason:     s.Reason,
		RaisedAt:   int64(s.RaisedAt),
		Resolved:   s.Resolved,
		Upheld:     s.Upheld,
		ResolvedAt: int64(s.ResolvedAt),
	}
}
