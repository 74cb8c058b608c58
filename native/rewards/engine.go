package rewards

import (
	"fmt"
	"math/big"
	"time"

	"carbonbridge/core/events"
	"carbonbridge/core/types"
	"carbonbridge/native/common"
)

// ModuleName identifies the rewards module in the pause registry.
const ModuleName = "rewards"

// Roles consumed by the engine. The bridge module address holds
// ROLE_REWARD_UPDATER; the exchange module address holds ROLE_POOL_FUNDER.
const (
	RoleRewardUpdater = "ROLE_REWARD_UPDATER"
	RoleRewardAdmin   = "ROLE_REWARD_ADMIN"
	RolePoolFunder    = "ROLE_POOL_FUNDER"
)

// Storage abstracts the subset of state manager functionality required by
// the rewards engine.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	HasRole(role string, addr [20]byte) bool
}

// Pool abstracts the reward-token custody the engine pays claims from. The
// balance is re-checked at the moment of transfer, never at the moment
// claimable was computed.
type Pool interface {
	Balance() (*big.Int, error)
	Pay(to [20]byte, amount *big.Int) error
	Deposit(from [20]byte, amount *big.Int) error
}

var (
	globalStateKey = []byte("rewards/global")
	accountPrefix  = "rewards/account/"
)

func accountKey(addr [20]byte) []byte {
	return []byte(accountPrefix + string(addr[:]))
}

// Engine implements the streaming reward-per-score distribution: O(1)
// contribution updates, projection-based claimable queries and debt-reset
// claims.
type Engine struct {
	store   Storage
	pool    Pool
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
	busy    bool
}

// NewEngine creates a rewards engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetStore configures the state backend used by the engine.
func (e *Engine) SetStore(store Storage) { e.store = store }

// SetPool configures the reward-token custody used to pay claims.
func (e *Engine) SetPool(pool Pool) { e.pool = pool }

// SetPauses configures the pause registry consulted before mutations.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

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

func (e *Engine) loadGlobal() (*GlobalState, error) {
	if e == nil || e.store == nil {
		return nil, ErrNilState
	}
	stored := new(storedGlobalState)
	ok, err := e.store.KVGet(globalStateKey, stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewGlobalState(nil), nil
	}
	g := &GlobalState{
		TotalScore:    stored.TotalScore,
		AccPerScore:   stored.AccPerScore,
		LastUpdate:    int64(stored.LastUpdate),
		RatePerSecond: stored.RatePerSecond,
	}
	g.normalize()
	return g, nil
}

func (e *Engine) storeGlobal(g *GlobalState) error {
	g.normalize()
	if g.LastUpdate < 0 {
		return fmt.Errorf("rewards: negative last update %d", g.LastUpdate)
	}
	stored := &storedGlobalState{
		TotalScore:    g.TotalScore,
		AccPerScore:   g.AccPerScore,
		LastUpdate:    uint64(g.LastUpdate),
		RatePerSecond: g.RatePerSecond,
	}
	return e.store.KVPut(globalStateKey, stored)
}

func (e *Engine) loadAccount(addr [20]byte) (*Account, error) {
	stored := new(storedAccount)
	ok, err := e.store.KVGet(accountKey(addr), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Account{Score: big.NewInt(0), Debt: big.NewInt(0)}, nil
	}
	account := &Account{Score: stored.Score, Debt: stored.Debt}
	account.normalize()
	return account, nil
}

func (e *Engine) storeAccount(addr [20]byte, account *Account) error {
	account.normalize()
	return e.store.KVPut(accountKey(addr), &storedAccount{Score: account.Score, Debt: account.Debt})
}

// GlobalSnapshot returns a copy of the current accumulator state for
// read-only consumers.
func (e *Engine) GlobalSnapshot() (*GlobalState, error) {
	g, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

// AccountSnapshot returns a copy of the stored account for an operator.
// Missing accounts read as zeroed, matching lazy creation.
func (e *Engine) AccountSnapshot(operator [20]byte) (*Account, error) {
	if e == nil || e.store == nil {
		return nil, ErrNilState
	}
	account, err := e.loadAccount(operator)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// SetRate updates the reward emission rate. Accrual up to now is settled at
// the old rate before the new one takes effect. Restricted to
// ROLE_REWARD_ADMIN.
func (e *Engine) SetRate(caller [20]byte, rate *big.Int) error {
	if e == nil || e.store == nil {
		return ErrNilState
	}
	if !e.store.HasRole(RoleRewardAdmin, caller) {
		return ErrUnauthorized
	}
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidAmount
	}
	g, err := e.loadGlobal()
	if err != nil {
		return err
	}
	g.Refresh(e.now())
	previous := new(big.Int).Set(g.RatePerSecond)
	g.RatePerSecond = new(big.Int).Set(rate)
	if err := e.storeGlobal(g); err != nil {
		return err
	}
	e.emit(NewRateUpdatedEvent(previous, rate))
	return nil
}

// UpdateContribution credits an operator with an energy-weighted score
// delta. Accrual is settled against the old total score first, then the
// account debt is raised by the delta's share of the accumulator so the new
// score earns nothing retroactively while rewards already accrued stay
// claimable. Restricted to ROLE_REWARD_UPDATER.
func (e *Engine) UpdateContribution(caller, operator [20]byte, delta *big.Int, timestamp int64) error {
	if e == nil || e.store == nil {
		return ErrNilState
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if !e.store.HasRole(RoleRewardUpdater, caller) {
		return ErrUnauthorized
	}
	if delta == nil || delta.Sign() == 0 {
		return nil
	}
	if delta.Sign() < 0 {
		return ErrNegativeDelta
	}
	g, err := e.loadGlobal()
	if err != nil {
		return err
	}
	g.Refresh(e.now())
	account, err := e.loadAccount(operator)
	if err != nil {
		return err
	}
	account.Score = new(big.Int).Add(account.Score, delta)
	g.TotalScore = new(big.Int).Add(g.TotalScore, delta)
	debtIncrement := new(big.Int).Mul(delta, g.AccPerScore)
	debtIncrement.Quo(debtIncrement, accScale)
	account.Debt = new(big.Int).Add(account.Debt, debtIncrement)
	if err := e.storeGlobal(g); err != nil {
		return err
	}
	if err := e.storeAccount(operator, account); err != nil {
		return err
	}
	e.emit(NewContributionUpdatedEvent(operator, account.Score, timestamp))
	return nil
}

// CanUpdateContribution reports whether the caller holds
// ROLE_REWARD_UPDATER. It never mutates state; the settlement path uses it
// to validate the grant before committing its own writes.
func (e *Engine) CanUpdateContribution(caller [20]byte) error {
	if e == nil || e.store == nil {
		return ErrNilState
	}
	if !e.store.HasRole(RoleRewardUpdater, caller) {
		return ErrUnauthorized
	}
	return nil
}

// Claimable returns the reward amount the operator could claim as of now.
// The projection never mutates stored state.
func (e *Engine) Claimable(operator [20]byte) (*big.Int, error) {
	if e == nil || e.store == nil {
		return nil, ErrNilState
	}
	g, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	account, err := e.loadAccount(operator)
	if err != nil {
		return nil, err
	}
	projected := g.Projected(e.now())
	amount := new(big.Int).Mul(account.Score, projected)
	amount.Quo(amount, accScale)
	amount.Sub(amount, account.Debt)
	if amount.Sign() < 0 {
		return nil, ErrInvariantViolation
	}
	return amount, nil
}

// Claim pays out the operator's accrued rewards from the pool. The debt is
// reset before the external transfer so a re-entrant call observes nothing
// left to claim.
func (e *Engine) Claim(operator [20]byte) (*big.Int, error) {
	if e == nil || e.store == nil {
		return nil, ErrNilState
	}
	if e.pool == nil {
		return nil, ErrNilPool
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	g, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	g.Refresh(e.now())
	account, err := e.loadAccount(operator)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int).Mul(account.Score, g.AccPerScore)
	amount.Quo(amount, accScale)
	amount.Sub(amount, account.Debt)
	if amount.Sign() < 0 {
		return nil, ErrInvariantViolation
	}
	if amount.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	available, err := e.pool.Balance()
	if err != nil {
		return nil, err
	}
	if available == nil || available.Cmp(amount) < 0 {
		return nil, ErrInsufficientPoolFunds
	}
	account.Debt = new(big.Int).Mul(account.Score, g.AccPerScore)
	account.Debt.Quo(account.Debt, accScale)
	if err := e.storeGlobal(g); err != nil {
		return nil, err
	}
	if err := e.storeAccount(operator, account); err != nil {
		return nil, err
	}
	if err := e.pool.Pay(operator, amount); err != nil {
		return nil, err
	}
	e.emit(NewClaimedEvent(operator, amount))
	return amount, nil
}

// Fund deposits reward tokens into the pool. Restricted to
// ROLE_POOL_FUNDER; the deposit does not touch the accrual math.
func (e *Engine) Fund(from [20]byte, amount *big.Int) error {
	if e == nil || e.store == nil {
		return ErrNilState
	}
	if e.pool == nil {
		return ErrNilPool
	}
	if !e.store.HasRole(RolePoolFunder, from) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.pool.Deposit(from, amount); err != nil {
		return err
	}
	e.emit(NewPoolFundedEvent(from, amount))
	return nil
}

type rewardsEvent struct {
	evt *types.Event
}

func (e rewardsEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e rewardsEvent) Event() *types.Event { return e.evt }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(rewardsEvent{evt: event})
}
