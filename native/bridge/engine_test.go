package bridge

import (
	"errors"
	"math/big"
	"testing"

	"carbonbridge/state"
	"carbonbridge/storage"
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestDevice(fill byte) [32]byte {
	var id [32]byte
	for i := range id {
		id[i] = fill
	}
	return id
}

type mintCall struct {
	operator [20]byte
	amount   *big.Int
}

type mockMinter struct {
	treasuryMints []*big.Int
	operatorMints []mintCall
	failTreasury  error
	grantErr      error
}

func (m *mockMinter) CanMint() error { return m.grantErr }

func (m *mockMinter) MintToTreasury(amount *big.Int) error {
	if m.failTreasury != nil {
		return m.failTreasury
	}
	m.treasuryMints = append(m.treasuryMints, new(big.Int).Set(amount))
	return nil
}

func (m *mockMinter) MintToOperator(operator [20]byte, amount *big.Int) error {
	m.operatorMints = append(m.operatorMints, mintCall{operator: operator, amount: new(big.Int).Set(amount)})
	return nil
}

type contributionCall struct {
	operator  [20]byte
	delta     *big.Int
	timestamp int64
}

type mockRegistry struct {
	calls    []contributionCall
	grantErr error
}

func (m *mockRegistry) CanUpdate() error { return m.grantErr }

func (m *mockRegistry) UpdateContribution(operator [20]byte, delta *big.Int, timestamp int64) error {
	m.calls = append(m.calls, contributionCall{operator: operator, delta: new(big.Int).Set(delta), timestamp: timestamp})
	return nil
}

type testHarness struct {
	engine    *Engine
	manager   *state.Manager
	minter    *mockMinter
	registry  *mockRegistry
	submitter [20]byte
	arbiter   [20]byte
	clock     int64
}

func newTestHarness(t *testing.T, params Params) *testHarness {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	h := &testHarness{
		engine:    NewEngine(),
		manager:   manager,
		minter:    &mockMinter{},
		registry:  &mockRegistry{},
		submitter: newTestAddress(0x11),
		arbiter:   newTestAddress(0x22),
		clock:     1_700_000_000,
	}
	if err := manager.SetRole(RoleSubmitter, h.submitter); err != nil {
		t.Fatalf("seed submitter role: %v", err)
	}
	if err := manager.SetRole(RoleArbiter, h.arbiter); err != nil {
		t.Fatalf("seed arbiter role: %v", err)
	}
	h.engine.SetStore(manager)
	h.engine.SetMinter(h.minter)
	h.engine.SetRegistry(h.registry)
	h.engine.SetPauses(manager)
	h.engine.SetNowFunc(func() int64 { return h.clock })
	if err := h.engine.SetParams(params); err != nil {
		t.Fatalf("set params: %v", err)
	}
	return h
}

func (h *testHarness) advance(seconds int64) { h.clock += seconds }

func testParams() Params {
	return Params{
		ChallengeWindow: 24 * 60 * 60,
		MinParticipants: 3,
		EmissionFactor:  big.NewInt(512_000_000),
		LocaleFactors:   map[string]*big.Int{},
		Mode:            ModeDelayed,
	}
}

func testEntries() []EnergyEntry {
	return []EnergyEntry{
		{
			DeviceID:  newTestDevice(0xA1),
			Operator:  newTestAddress(0x31),
			EnergyKWh: 500,
			Timestamp: 1_699_999_000,
			Locale:    "EU",
		},
	}
}

func proofFor(t *testing.T, entries []EnergyEntry, participants uint32) ConsensusProof {
	t.Helper()
	hash, err := HashEntries(entries)
	if err != nil {
		t.Fatalf("hash entries: %v", err)
	}
	const round = 42
	return ConsensusProof{
		RoundID:          round,
		ParticipantCount: participants,
		ResultHash:       ProofResultHash(round, hash),
		Signature:        []byte{0x01, 0x02, 0x03},
	}
}

func TestHashEntriesIsOrderSensitive(t *testing.T) {
	a := EnergyEntry{DeviceID: newTestDevice(0x01), Operator: newTestAddress(0x31), EnergyKWh: 100, Timestamp: 1000}
	b := EnergyEntry{DeviceID: newTestDevice(0x02), Operator: newTestAddress(0x32), EnergyKWh: 200, Timestamp: 2000}

	first, err := HashEntries([]EnergyEntry{a, b})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	again, err := HashEntries([]EnergyEntry{a, b})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first != again {
		t.Fatalf("identical entry lists must hash identically")
	}
	swapped, err := HashEntries([]EnergyEntry{b, a})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == swapped {
		t.Fatalf("reordered entry lists must not share a hash")
	}
}

func TestSubmitBatchRejectsReplay(t *testing.T) {
	h := newTestHarness(t, testParams())
	entries := testEntries()
	proof := proofFor(t, entries, 3)

	record, err := h.engine.SubmitBatch(h.submitter, entries, proof)
	if err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if record.SettleAfter != record.SubmittedAt+24*60*60 {
		t.Fatalf("settleAfter = %d, want submittedAt + window", record.SettleAfter)
	}

	if _, err := h.engine.SubmitBatch(h.submitter, entries, proof); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("resubmission err = %v, want ErrAlreadySubmitted", err)
	}

	// A known hash must report its state even when the accompanying proof
	// would not pass on its own.
	thin := proofFor(t, entries, 2)
	if _, err := h.engine.SubmitBatch(h.submitter, entries, thin); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("resubmission with thin quorum err = %v, want ErrAlreadySubmitted", err)
	}
	garbled := proofFor(t, entries, 3)
	garbled.ResultHash[0] ^= 0xFF
	if _, err := h.engine.SubmitBatch(h.submitter, entries, garbled); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("resubmission with garbled proof err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestSubmitBatchValidation(t *testing.T) {
	h := newTestHarness(t, testParams())
	entries := testEntries()

	if _, err := h.engine.SubmitBatch(newTestAddress(0x99), entries, proofFor(t, entries, 3)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unauthorized submitter err = %v, want ErrUnauthorized", err)
	}
	if _, err := h.engine.SubmitBatch(h.submitter, nil, proofFor(t, entries, 3)); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("empty batch err = %v, want ErrEmptyBatch", err)
	}
	if _, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 2)); !errors.Is(err, ErrInsufficientParticipants) {
		t.Fatalf("thin quorum err = %v, want ErrInsufficientParticipants", err)
	}

	proof := proofFor(t, entries, 3)
	proof.Signature = nil
	if _, err := h.engine.SubmitBatch(h.submitter, entries, proof); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("empty signature err = %v, want ErrInvalidProof", err)
	}

	proof = proofFor(t, entries, 3)
	proof.ResultHash[0] ^= 0xFF
	if _, err := h.engine.SubmitBatch(h.submitter, entries, proof); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("mismatched result hash err = %v, want ErrInvalidProof", err)
	}
}

func TestSettleMintsExpectedCredits(t *testing.T) {
	h := newTestHarness(t, testParams())
	entries := testEntries()
	operator := entries[0].Operator

	record, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.advance(25 * 60 * 60)
	if err := h.engine.Settle(record.Hash); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// 500 kWh at factor 512_000_000 (512 g/kWh scaled 1e6) mints 256 units.
	if len(h.minter.treasuryMints) != 1 || h.minter.treasuryMints[0].Cmp(big.NewInt(256)) != 0 {
		t.Fatalf("treasury mints = %v, want single mint of 256", h.minter.treasuryMints)
	}
	if len(h.minter.operatorMints) != 0 {
		t.Fatalf("operator mints = %v, want none without a configured share", h.minter.operatorMints)
	}
	if len(h.registry.calls) != 1 {
		t.Fatalf("contribution calls = %d, want 1", len(h.registry.calls))
	}
	call := h.registry.calls[0]
	if call.operator != operator || call.delta.Cmp(big.NewInt(500)) != 0 || call.timestamp != entries[0].Timestamp {
		t.Fatalf("contribution = %+v, want raw 500 kWh at entry timestamp", call)
	}

	stored, _, ok, err := h.engine.GetBatch(record.Hash)
	if err != nil || !ok {
		t.Fatalf("get batch: ok=%v err=%v", ok, err)
	}
	if !stored.Settled || stored.MintedTotal.Cmp(big.NewInt(256)) != 0 {
		t.Fatalf("record = %+v, want settled with minted total 256", stored)
	}

	if err := h.engine.Settle(record.Hash); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("second settle err = %v, want ErrAlreadySettled", err)
	}
	if len(h.minter.treasuryMints) != 1 {
		t.Fatalf("second settle must not mint again")
	}
}

func TestSettleValidatesCollaboratorGrants(t *testing.T) {
	h := newTestHarness(t, testParams())
	entries := testEntries()

	record, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.advance(25 * 60 * 60)

	grantErr := errors.New("missing mint grant")
	h.minter.grantErr = grantErr
	if err := h.engine.Settle(record.Hash); !errors.Is(err, grantErr) {
		t.Fatalf("settle with revoked mint grant err = %v, want %v", err, grantErr)
	}
	stored, _, ok, err := h.engine.GetBatch(record.Hash)
	if err != nil || !ok {
		t.Fatalf("get batch: ok=%v err=%v", ok, err)
	}
	if stored.Settled {
		t.Fatalf("record marked settled although the mint grant check failed")
	}
	if len(h.registry.calls) != 0 {
		t.Fatalf("contribution calls = %d, want none before the grant checks pass", len(h.registry.calls))
	}

	h.minter.grantErr = nil
	h.registry.grantErr = errors.New("missing updater grant")
	if err := h.engine.Settle(record.Hash); !errors.Is(err, h.registry.grantErr) {
		t.Fatalf("settle with revoked updater grant err = %v, want grant error", err)
	}
	stored, _, _, err = h.engine.GetBatch(record.Hash)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if stored.Settled || len(h.minter.treasuryMints) != 0 {
		t.Fatalf("partial settlement observed: settled=%v mints=%v", stored.Settled, h.minter.treasuryMints)
	}

	// Restoring the grants lets the same batch settle cleanly.
	h.registry.grantErr = nil
	if err := h.engine.Settle(record.Hash); err != nil {
		t.Fatalf("settle after restoring grants: %v", err)
	}
	if len(h.minter.treasuryMints) != 1 || h.minter.treasuryMints[0].Cmp(big.NewInt(256)) != 0 {
		t.Fatalf("treasury mints = %v, want single mint of 256", h.minter.treasuryMints)
	}
}

func TestSettleBeforeWindowElapses(t *testing.T) {
	h := newTestHarness(t, testParams())
	entries := testEntries()

	record, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.advance(60 * 60)
	if err := h.engine.Settle(record.Hash); !errors.Is(err, ErrNotYetSettleable) {
		t.Fatalf("early settle err = %v, want ErrNotYetSettleable", err)
	}
}

func TestChallengeLifecycle(t *testing.T) {
	h := newTestHarness(t, testParams())
	entries := testEntries()
	challenger := newTestAddress(0x44)

	record, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	h.advance(60 * 60)
	if err := h.engine.Challenge(challenger, record.Hash, "implausible volume"); err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if err := h.engine.Challenge(challenger, record.Hash, "again"); !errors.Is(err, ErrChallengeExists) {
		t.Fatalf("duplicate challenge err = %v, want ErrChallengeExists", err)
	}

	h.advance(24 * 60 * 60)
	if err := h.engine.Settle(record.Hash); !errors.Is(err, ErrChallengeUnresolved) {
		t.Fatalf("settle with open challenge err = %v, want ErrChallengeUnresolved", err)
	}

	if err := h.engine.ResolveChallenge(newTestAddress(0x55), record.Hash, false); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-arbiter resolve err = %v, want ErrUnauthorized", err)
	}
	if err := h.engine.ResolveChallenge(h.arbiter, record.Hash, false); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := h.engine.ResolveChallenge(h.arbiter, record.Hash, false); !errors.Is(err, ErrChallengeResolved) {
		t.Fatalf("double resolve err = %v, want ErrChallengeResolved", err)
	}

	if err := h.engine.Settle(record.Hash); err != nil {
		t.Fatalf("settle after dismissed challenge: %v", err)
	}
	if len(h.minter.treasuryMints) != 1 {
		t.Fatalf("want exactly one treasury mint after settlement")
	}
}

func TestUpheldChallengeWritesPermanentTombstone(t *testing.T) {
	h := newTestHarness(t, testParams())
	entries := testEntries()
	challenger := newTestAddress(0x44)

	record, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.advance(60 * 60)
	if err := h.engine.Challenge(challenger, record.Hash, "duplicate readings"); err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if err := h.engine.ResolveChallenge(h.arbiter, record.Hash, true); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	h.advance(48 * 60 * 60)
	if err := h.engine.Settle(record.Hash); !errors.Is(err, ErrChallengeUpheld) {
		t.Fatalf("settle of rejected batch err = %v, want ErrChallengeUpheld", err)
	}
	if _, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3)); !errors.Is(err, ErrBatchRejected) {
		t.Fatalf("resubmission of rejected batch err = %v, want ErrBatchRejected", err)
	}
	if err := h.engine.Challenge(challenger, record.Hash, "again"); !errors.Is(err, ErrBatchRejected) {
		t.Fatalf("challenge of rejected batch err = %v, want ErrBatchRejected", err)
	}
	if len(h.minter.treasuryMints) != 0 || len(h.registry.calls) != 0 {
		t.Fatalf("rejected batch must never mint or update contributions")
	}
}

func TestChallengeWindowGates(t *testing.T) {
	h := newTestHarness(t, testParams())
	entries := testEntries()

	if err := h.engine.Challenge(newTestAddress(0x44), newTestDevice(0xFF), "missing"); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("challenge of unknown batch err = %v, want ErrBatchNotFound", err)
	}

	record, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.advance(25 * 60 * 60)
	if err := h.engine.Challenge(newTestAddress(0x44), record.Hash, "too late"); !errors.Is(err, ErrChallengeWindowClosed) {
		t.Fatalf("late challenge err = %v, want ErrChallengeWindowClosed", err)
	}
}

func TestSettleSkipsDegenerateEntries(t *testing.T) {
	h := newTestHarness(t, testParams())
	operator := newTestAddress(0x31)
	entries := []EnergyEntry{
		{DeviceID: newTestDevice(0x01), Operator: operator, EnergyKWh: 500, Timestamp: 1000},
		{DeviceID: newTestDevice(0x02), Operator: [20]byte{}, EnergyKWh: 900, Timestamp: 1001},
		{DeviceID: newTestDevice(0x03), Operator: operator, EnergyKWh: 0, Timestamp: 1002},
	}

	record, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.advance(25 * 60 * 60)
	if err := h.engine.Settle(record.Hash); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if len(h.minter.treasuryMints) != 1 || h.minter.treasuryMints[0].Cmp(big.NewInt(256)) != 0 {
		t.Fatalf("treasury mints = %v, want 256 from the single valid entry", h.minter.treasuryMints)
	}
	if len(h.registry.calls) != 1 {
		t.Fatalf("contribution calls = %d, want 1 (skipped entries excluded)", len(h.registry.calls))
	}
}

func TestSettleFailsWholeBatchOnMissingLocaleFactor(t *testing.T) {
	params := testParams()
	params.EmissionFactor = big.NewInt(0)
	params.LocaleFactors = map[string]*big.Int{"EU": big.NewInt(512_000_000)}
	h := newTestHarness(t, params)

	entries := []EnergyEntry{
		{DeviceID: newTestDevice(0x01), Operator: newTestAddress(0x31), EnergyKWh: 500, Timestamp: 1000, Locale: "EU"},
		{DeviceID: newTestDevice(0x02), Operator: newTestAddress(0x32), EnergyKWh: 300, Timestamp: 1001, Locale: "US"},
	}
	record, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.advance(25 * 60 * 60)
	if err := h.engine.Settle(record.Hash); !errors.Is(err, ErrFactorNotConfigured) {
		t.Fatalf("settle err = %v, want ErrFactorNotConfigured", err)
	}

	stored, _, ok, err := h.engine.GetBatch(record.Hash)
	if err != nil || !ok {
		t.Fatalf("get batch: ok=%v err=%v", ok, err)
	}
	if stored.Settled {
		t.Fatalf("batch must stay unsettled when a locale factor is missing")
	}
	if len(h.minter.treasuryMints) != 0 || len(h.registry.calls) != 0 {
		t.Fatalf("failed settlement must leave no partial mints or contributions")
	}
}

func TestOperatorShareSplitsMint(t *testing.T) {
	params := testParams()
	params.OperatorShareBps = 1000 // 10%
	h := newTestHarness(t, params)
	entries := testEntries()
	operator := entries[0].Operator

	record, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.advance(25 * 60 * 60)
	if err := h.engine.Settle(record.Hash); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if len(h.minter.operatorMints) != 1 {
		t.Fatalf("operator mints = %v, want one", h.minter.operatorMints)
	}
	cut := h.minter.operatorMints[0]
	if cut.operator != operator || cut.amount.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("operator cut = %+v, want 25 units (10%% of 256, floored)", cut)
	}
	if len(h.minter.treasuryMints) != 1 || h.minter.treasuryMints[0].Cmp(big.NewInt(231)) != 0 {
		t.Fatalf("treasury mints = %v, want 231", h.minter.treasuryMints)
	}

	stored, _, _, err := h.engine.GetBatch(record.Hash)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if stored.MintedTotal.Cmp(big.NewInt(256)) != 0 {
		t.Fatalf("minted total = %s, want 256 across both destinations", stored.MintedTotal)
	}
}

func TestImmediateModeSettlesOnSubmit(t *testing.T) {
	params := testParams()
	params.Mode = ModeImmediate
	params.ChallengeWindow = 0
	h := newTestHarness(t, params)
	entries := testEntries()

	record, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	stored, _, ok, err := h.engine.GetBatch(record.Hash)
	if err != nil || !ok {
		t.Fatalf("get batch: ok=%v err=%v", ok, err)
	}
	if !stored.Settled {
		t.Fatalf("immediate mode must settle within the submission call")
	}
	if len(h.minter.treasuryMints) != 1 || h.minter.treasuryMints[0].Cmp(big.NewInt(256)) != 0 {
		t.Fatalf("treasury mints = %v, want 256", h.minter.treasuryMints)
	}
}

func TestPauseBlocksMutations(t *testing.T) {
	h := newTestHarness(t, testParams())
	entries := testEntries()
	if err := h.manager.Pause(ModuleName); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3)); err == nil {
		t.Fatalf("submission must fail while the module is paused")
	}
	if err := h.manager.Resume(ModuleName); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := h.engine.SubmitBatch(h.submitter, entries, proofFor(t, entries, 3)); err != nil {
		t.Fatalf("submission after resume: %v", err)
	}
}

func TestParamSettersRequireAdmin(t *testing.T) {
	h := newTestHarness(t, testParams())
	admin := newTestAddress(0x66)
	if err := h.manager.SetRole(RoleBridgeAdmin, admin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	if err := h.engine.SetChallengeWindow(newTestAddress(0x77), 3600); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin setter err = %v, want ErrUnauthorized", err)
	}
	if err := h.engine.SetChallengeWindow(admin, 3600); err != nil {
		t.Fatalf("set challenge window: %v", err)
	}
	if err := h.engine.SetMinParticipants(admin, 5); err != nil {
		t.Fatalf("set min participants: %v", err)
	}
	if err := h.engine.SetEmissionFactor(admin, big.NewInt(600_000_000)); err != nil {
		t.Fatalf("set emission factor: %v", err)
	}
	if err := h.engine.SetLocaleFactor(admin, "EU", big.NewInt(400_000_000)); err != nil {
		t.Fatalf("set locale factor: %v", err)
	}
	if err := h.engine.SetOperatorShareBps(admin, 20_000); err == nil {
		t.Fatalf("out-of-range operator share must be rejected")
	}

	params := h.engine.Params()
	if params.ChallengeWindow != 3600 || params.MinParticipants != 5 {
		t.Fatalf("params = %+v, want updated window and quorum", params)
	}
	if params.LocaleFactors["EU"].Cmp(big.NewInt(400_000_000)) != 0 {
		t.Fatalf("locale factor not applied: %v", params.LocaleFactors)
	}
}

func TestSanitizeEntryRejectsNegativeTimestamp(t *testing.T) {
	_, err := SanitizeEntry(EnergyEntry{Timestamp: -1})
	if err == nil {
		t.Fatalf("negative timestamp must be rejected")
	}
	entry, err := SanitizeEntry(EnergyEntry{Timestamp: 10, Locale: "  EU  "})
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if entry.Locale != "EU" {
		t.Fatalf("locale = %q, want trimmed", entry.Locale)
	}
}

func TestCreditsForFloors(t *testing.T) {
	cases := []struct {
		kwh    uint64
		factor int64
		want   int64
	}{
		{500, 512_000_000, 256},
		{1, 512_000_000, 0},
		{3, 500_000_000, 1},
		{0, 512_000_000, 0},
	}
	for _, tc := range cases {
		got := CreditsFor(tc.kwh, big.NewInt(tc.factor))
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("CreditsFor(%d, %d) = %s, want %d", tc.kwh, tc.factor, got, tc.want)
		}
	}
}
