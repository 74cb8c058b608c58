package bridge

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"carbonbridge/core/events"
	"carbonbridge/core/types"
	"carbonbridge/native/common"
)

// ModuleName identifies the bridge module in the pause registry.
const ModuleName = "bridge"

// Roles consumed by the engine. Submission follows the trusted-submitter
// model; challenges are public and need no role.
const (
	RoleSubmitter   = "ROLE_SUBMITTER"
	RoleArbiter     = "ROLE_ARBITER"
	RoleBridgeAdmin = "ROLE_BRIDGE_ADMIN"
)

// Storage abstracts the subset of state manager functionality required by
// the bridge engine.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	HasRole(role string, addr [20]byte) bool
}

// CreditMinter is the external credit-token collaborator. The engine issues
// exactly one treasury mint per settled batch; operator mints only occur
// when a direct share is configured. CanMint verifies the mint grant
// without side effects and is consulted before a batch is marked settled.
type CreditMinter interface {
	MintToTreasury(amount *big.Int) error
	MintToOperator(operator [20]byte, amount *big.Int) error
	CanMint() error
}

// ContributionUpdater is the rewards-module collaborator receiving raw
// energy deltas for each minting entry. CanUpdate verifies the updater
// grant without side effects.
type ContributionUpdater interface {
	UpdateContribution(operator [20]byte, delta *big.Int, timestamp int64) error
	CanUpdate() error
}

var (
	recordPrefix    = "bridge/record/"
	entriesPrefix   = "bridge/entries/"
	challengePrefix = "bridge/challenge/"
)

func recordKey(hash [32]byte) []byte    { return []byte(recordPrefix + string(hash[:])) }
func entriesKey(hash [32]byte) []byte   { return []byte(entriesPrefix + string(hash[:])) }
func challengeKey(hash [32]byte) []byte { return []byte(challengePrefix + string(hash[:])) }

// Engine drives the batch intake, challenge window and settlement state
// machine. All state-mutating entry points run under a single
// operation-in-progress flag so a collaborator callback cannot re-enter
// mid-transition.
type Engine struct {
	store    Storage
	minter   CreditMinter
	registry ContributionUpdater
	emitter  events.Emitter
	pauses   common.PauseView
	params   Params
	nowFn    func() int64
	busy     bool
}

// NewEngine creates a bridge engine with default parameters and a no-op
// emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		params:  DefaultParams(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetStore configures the state backend used by the engine.
func (e *Engine) SetStore(store Storage) { e.store = store }

// SetMinter configures the credit-minting collaborator.
func (e *Engine) SetMinter(minter CreditMinter) { e.minter = minter }

// SetRegistry configures the contribution registry collaborator.
func (e *Engine) SetRegistry(registry ContributionUpdater) { e.registry = registry }

// SetPauses configures the pause registry consulted before mutations.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetParams replaces the whole parameter set after validation. Intended for
// boot-time wiring; runtime changes go through the audited setters.
func (e *Engine) SetParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	e.params = params.Clone()
	return nil
}

// Params returns a copy of the active parameters.
func (e *Engine) Params() Params { return e.params.Clone() }

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) enter() error {
	if e.busy {
		return ErrReentrancy
	}
	e.busy = true
	return nil
}

func (e *Engine) exit() { e.busy = false }

func (e *Engine) loadRecord(hash [32]byte) (*BatchRecord, bool, error) {
	stored := new(storedRecord)
	ok, err := e.store.KVGet(recordKey(hash), stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return fromStoredRecord(stored), true, nil
}

func (e *Engine) storeRecord(record *BatchRecord) error {
	return e.store.KVPut(recordKey(record.Hash), toStoredRecord(record))
}

func (e *Engine) loadChallenge(hash [32]byte) (*Challenge, bool, error) {
	stored := new(storedChallenge)
	ok, err := e.store.KVGet(challengeKey(hash), stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return fromStoredChallenge(stored), true, nil
}

func (e *Engine) storeChallenge(hash [32]byte, ch *Challenge) error {
	return e.store.KVPut(challengeKey(hash), toStoredChallenge(ch))
}

// SubmitBatch records a batch after replay and proof checks. In immediate
// mode the batch is settled within the same call; in delayed mode it stays
// pending until the challenge window elapses.
func (e *Engine) SubmitBatch(caller [20]byte, entries []EnergyEntry, proof ConsensusProof) (*BatchRecord, error) {
	if e == nil || e.store == nil {
		return nil, ErrNilState
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := common.RequireRole(e.store, RoleSubmitter, caller); err != nil {
		return nil, ErrUnauthorized
	}
	if len(entries) == 0 {
		return nil, ErrEmptyBatch
	}
	hash, err := HashEntries(entries)
	if err != nil {
		return nil, err
	}
	// The replay check runs before proof verification so a duplicate hash
	// always reports its terminal state, whatever proof accompanies it.
	existing, ok, err := e.loadRecord(hash)
	if err != nil {
		return nil, err
	}
	if ok {
		switch {
		case existing.Rejected:
			return nil, ErrBatchRejected
		case existing.Settled:
			return nil, ErrAlreadySettled
		default:
			return nil, ErrAlreadySubmitted
		}
	}
	if err := e.verifyProof(hash, proof); err != nil {
		return nil, err
	}
	now := e.now()
	settleAfter := now
	if e.params.Mode == ModeDelayed {
		settleAfter = now + e.params.ChallengeWindow
	}
	record := &BatchRecord{
		Hash:        hash,
		EntryCount:  uint32(len(entries)),
		SubmittedAt: now,
		SettleAfter: settleAfter,
		MintedTotal: big.NewInt(0),
	}
	stored, err := toStoredEntries(entries)
	if err != nil {
		return nil, err
	}
	if err := e.store.KVPut(entriesKey(hash), stored); err != nil {
		return nil, err
	}
	if err := e.storeRecord(record); err != nil {
		return nil, err
	}
	e.emit(NewBatchSubmittedEvent(record))
	if e.params.Mode == ModeImmediate {
		if err := e.settleLocked(record, now); err != nil {
			return nil, err
		}
	}
	return record.Clone(), nil
}

func (e *Engine) verifyProof(batchHash [32]byte, proof ConsensusProof) error {
	if proof.ParticipantCount < e.params.MinParticipants {
		return ErrInsufficientParticipants
	}
	if len(proof.Signature) == 0 {
		return fmt.Errorf("%w: empty aggregated signature", ErrInvalidProof)
	}
	if proof.ResultHash != ProofResultHash(proof.RoundID, batchHash) {
		return fmt.Errorf("%w: result hash mismatch", ErrInvalidProof)
	}
	return nil
}

// Challenge raises a public dispute against a pending batch. Allowed only
// while the challenge window is open and no challenge is unresolved.
func (e *Engine) Challenge(caller [20]byte, hash [32]byte, reason string) error {
	if e == nil || e.store == nil {
		return ErrNilState
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	record, ok, err := e.loadRecord(hash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBatchNotFound
	}
	if record.Rejected {
		return ErrBatchRejected
	}
	if record.Settled {
		return ErrAlreadySettled
	}
	now := e.now()
	if now >= record.SettleAfter {
		return ErrChallengeWindowClosed
	}
	existing, ok, err := e.loadChallenge(hash)
	if err != nil {
		return err
	}
	if ok && !existing.Resolved {
		return ErrChallengeExists
	}
	ch := &Challenge{
		Challenger: caller,
		Reason:     reason,
		RaisedAt:   now,
	}
	if err := e.storeChallenge(hash, ch); err != nil {
		return err
	}
	e.emit(NewBatchChallengedEvent(hash, ch))
	return nil
}

// ResolveChallenge records the arbiter outcome for an open challenge. An
// upheld challenge writes the permanent rejected tombstone on the record so
// the hash can never be settled or resubmitted; a rejected challenge leaves
// the batch eligible for settlement once the window has passed. Restricted
// to ROLE_ARBITER.
func (e *Engine) ResolveChallenge(caller [20]byte, hash [32]byte, upheld bool) error {
	if e == nil || e.store == nil {
		return ErrNilState
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := common.RequireRole(e.store, RoleArbiter, caller); err != nil {
		return ErrUnauthorized
	}
	record, ok, err := e.loadRecord(hash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBatchNotFound
	}
	ch, ok, err := e.loadChallenge(hash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrChallengeNotFound
	}
	if ch.Resolved {
		return ErrChallengeResolved
	}
	ch.Resolved = true
	ch.Upheld = upheld
	ch.ResolvedAt = e.now()
	if err := e.storeChallenge(hash, ch); err != nil {
		return err
	}
	if upheld {
		record.Rejected = true
		if err := e.storeRecord(record); err != nil {
			return err
		}
	}
	e.emit(NewChallengeResolvedEvent(hash, upheld))
	return nil
}

// Settle converts a stored batch into minted credits and contribution
// updates. Anyone may call it once the window has elapsed and no challenge
// blocks the record.
func (e *Engine) Settle(hash [32]byte) error {
	if e == nil || e.store == nil {
		return ErrNilState
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	record, ok, err := e.loadRecord(hash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBatchNotFound
	}
	now := e.now()
	if err := e.ensureSettleable(record, now); err != nil {
		return err
	}
	return e.settleLocked(record, now)
}

func (e *Engine) ensureSettleable(record *BatchRecord, now int64) error {
	if record.Rejected {
		return ErrChallengeUpheld
	}
	if record.Settled {
		return ErrAlreadySettled
	}
	ch, ok, err := e.loadChallenge(record.Hash)
	if err != nil {
		return err
	}
	if ok {
		if !ch.Resolved {
			return ErrChallengeUnresolved
		}
		if ch.Upheld {
			return ErrChallengeUpheld
		}
	}
	if now < record.SettleAfter {
		return ErrNotYetSettleable
	}
	return nil
}

type operatorMint struct {
	operator [20]byte
	amount   *big.Int
}

type contributionDelta struct {
	operator  [20]byte
	delta     *big.Int
	timestamp int64
}

// settleLocked performs the settlement transition. The caller holds the
// reentrancy flag. The computation pass runs before any mutation so a
// configuration error (missing locale factor) leaves no partial state, and
// the collaborator grants are verified up front so the settled flag is never
// persisted ahead of a mint or contribution push that cannot succeed.
func (e *Engine) settleLocked(record *BatchRecord, now int64) error {
	if e.minter == nil {
		return ErrNilMinter
	}
	if e.registry == nil {
		return ErrNilRegistry
	}
	if err := e.minter.CanMint(); err != nil {
		return err
	}
	if err := e.registry.CanUpdate(); err != nil {
		return err
	}
	var stored []storedEntry
	ok, err := e.store.KVGet(entriesKey(record.Hash), &stored)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEntriesMissing
	}
	entries := fromStoredEntries(stored)

	treasuryTotal := big.NewInt(0)
	mintedTotal := big.NewInt(0)
	operatorMints := make([]operatorMint, 0)
	contributions := make([]contributionDelta, 0, len(entries))
	for _, entry := range entries {
		if entry.Operator == ([20]byte{}) || entry.EnergyKWh == 0 {
			continue
		}
		factor, err := e.params.factorFor(entry.Locale)
		if err != nil {
			return err
		}
		credits := CreditsFor(entry.EnergyKWh, factor)
		if credits.Sign() == 0 {
			continue
		}
		operatorCut := big.NewInt(0)
		if e.params.OperatorShareBps > 0 {
			operatorCut.Mul(credits, new(big.Int).SetUint64(uint64(e.params.OperatorShareBps)))
			operatorCut.Quo(operatorCut, big.NewInt(bpsDenominator))
		}
		treasuryShare := new(big.Int).Sub(credits, operatorCut)
		treasuryTotal.Add(treasuryTotal, treasuryShare)
		mintedTotal.Add(mintedTotal, credits)
		if operatorCut.Sign() > 0 {
			operatorMints = append(operatorMints, operatorMint{operator: entry.Operator, amount: operatorCut})
		}
		contributions = append(contributions, contributionDelta{
			operator:  entry.Operator,
			delta:     new(big.Int).SetUint64(entry.EnergyKWh),
			timestamp: entry.Timestamp,
		})
	}

	record.Settled = true
	record.SettledAt = now
	record.MintedTotal = mintedTotal
	if err := e.storeRecord(record); err != nil {
		return err
	}
	for _, c := range contributions {
		if err := e.registry.UpdateContribution(c.operator, c.delta, c.timestamp); err != nil {
			return err
		}
	}
	for _, m := range operatorMints {
		if err := e.minter.MintToOperator(m.operator, m.amount); err != nil {
			return err
		}
	}
	if treasuryTotal.Sign() > 0 {
		if err := e.minter.MintToTreasury(treasuryTotal); err != nil {
			return err
		}
	}
	e.emit(NewBatchSettledEvent(record.Hash, mintedTotal, len(entries)))
	return nil
}

// GetBatch returns copies of the record and its latest challenge, if any.
func (e *Engine) GetBatch(hash [32]byte) (*BatchRecord, *Challenge, bool, error) {
	if e == nil || e.store == nil {
		return nil, nil, false, ErrNilState
	}
	record, ok, err := e.loadRecord(hash)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	ch, _, err := e.loadChallenge(hash)
	if err != nil {
		return nil, nil, false, err
	}
	return record.Clone(), ch.Clone(), true, nil
}

// Entries returns the stored entry list for a submitted batch.
func (e *Engine) Entries(hash [32]byte) ([]EnergyEntry, bool, error) {
	if e == nil || e.store == nil {
		return nil, false, ErrNilState
	}
	var stored []storedEntry
	ok, err := e.store.KVGet(entriesKey(hash), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return fromStoredEntries(stored), true, nil
}

// SetChallengeWindow updates the challenge window for future submissions.
// Restricted to ROLE_BRIDGE_ADMIN.
func (e *Engine) SetChallengeWindow(caller [20]byte, seconds int64) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if e.params.Mode == ModeDelayed && seconds <= 0 {
		return fmt.Errorf("bridge: challenge window must be positive in delayed mode")
	}
	previous := e.params.ChallengeWindow
	e.params.ChallengeWindow = seconds
	e.emit(NewParamUpdatedEvent("challengeWindow", strconv.FormatInt(previous, 10), strconv.FormatInt(seconds, 10)))
	return nil
}

// SetMinParticipants updates the consensus participant threshold.
// Restricted to ROLE_BRIDGE_ADMIN.
func (e *Engine) SetMinParticipants(caller [20]byte, min uint32) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if min == 0 {
		return fmt.Errorf("bridge: minimum participant count must be positive")
	}
	previous := e.params.MinParticipants
	e.params.MinParticipants = min
	e.emit(NewParamUpdatedEvent("minParticipants", strconv.FormatUint(uint64(previous), 10), strconv.FormatUint(uint64(min), 10)))
	return nil
}

// SetEmissionFactor updates the global emission factor. Restricted to
// ROLE_BRIDGE_ADMIN.
func (e *Engine) SetEmissionFactor(caller [20]byte, factor *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if factor == nil || factor.Sign() <= 0 {
		return fmt.Errorf("bridge: emission factor must be positive")
	}
	previous := "0"
	if e.params.EmissionFactor != nil {
		previous = e.params.EmissionFactor.String()
	}
	e.params.EmissionFactor = new(big.Int).Set(factor)
	e.emit(NewParamUpdatedEvent("emissionFactor", previous, factor.String()))
	return nil
}

// SetLocaleFactor configures or replaces the emission factor for a locale.
// Restricted to ROLE_BRIDGE_ADMIN.
func (e *Engine) SetLocaleFactor(caller [20]byte, locale string, factor *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if locale == "" {
		return fmt.Errorf("bridge: locale must not be empty")
	}
	if factor == nil || factor.Sign() <= 0 {
		return fmt.Errorf("bridge: emission factor must be positive")
	}
	previous := "0"
	if existing, ok := e.params.LocaleFactors[locale]; ok && existing != nil {
		previous = existing.String()
	}
	if e.params.LocaleFactors == nil {
		e.params.LocaleFactors = make(map[string]*big.Int)
	}
	e.params.LocaleFactors[locale] = new(big.Int).Set(factor)
	e.emit(NewParamUpdatedEvent("localeFactor:"+locale, previous, factor.String()))
	return nil
}

// SetOperatorShareBps updates the direct operator share of minted credits.
// Restricted to ROLE_BRIDGE_ADMIN.
func (e *Engine) SetOperatorShareBps(caller [20]byte, bps uint32) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if bps > bpsDenominator {
		return fmt.Errorf("bridge: operator share bps out of range: %d", bps)
	}
	previous := e.params.OperatorShareBps
	e.params.OperatorShareBps = bps
	e.emit(NewParamUpdatedEvent("operatorShareBps", strconv.FormatUint(uint64(previous), 10), strconv.FormatUint(uint64(bps), 10)))
	return nil
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	if e == nil || e.store == nil {
		return ErrNilState
	}
	if err := common.RequireRole(e.store, RoleBridgeAdmin, caller); err != nil {
		return ErrUnauthorized
	}
	return nil
}

type bridgeEvent struct {
	evt *types.Event
}

func (e bridgeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e bridgeEvent) Event() *types.Event { return e.evt }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(bridgeEvent{evt: event})
}
