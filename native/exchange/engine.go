package exchange

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"carbonbridge/core/events"
	"carbonbridge/core/types"
	"carbonbridge/native/common"
	"carbonbridge/native/token"
)

// ModuleName identifies the exchange module in the pause registry.
const ModuleName = "exchange"

const bpsDenominator = 10_000

// Storage abstracts the subset of state manager functionality required by
// the exchange engine.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	HasRole(role string, addr [20]byte) bool
}

// TokenLedger is the fungible-token collaborator moving credits and
// stablecoin between accounts.
type TokenLedger interface {
	Transfer(from, to [20]byte, symbol string, amount *big.Int) error
	BalanceOf(addr [20]byte, symbol string) (*big.Int, error)
}

// PoolFunder routes the reward-pool share of trading fees. The exchange
// module address must hold ROLE_POOL_FUNDER on the rewards engine.
type PoolFunder interface {
	Fund(from [20]byte, amount *big.Int) error
}

var (
	listingPrefix   = "exchange/listing/"
	listingIndexKey = []byte("exchange/listing/index")
)

func listingKey(id string) []byte { return []byte(listingPrefix + id) }

// Engine implements the secondary market: fixed-price listings of credits
// against stablecoin with a basis-points fee split between the treasury and
// the reward pool.
type Engine struct {
	store        Storage
	tokens       TokenLedger
	funder       PoolFunder
	emitter      events.Emitter
	pauses       common.PauseView
	nowFn        func() int64
	module       [20]byte
	treasury     [20]byte
	feeBps       uint32
	poolShareBps uint32
	busy         bool
}

// NewEngine creates an exchange engine with a no-op emitter. The module
// address is the custody account for listed credits.
func NewEngine(module, treasury [20]byte) *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
		module:   module,
		treasury: treasury,
	}
}

// SetStore configures the state backend used by the engine.
func (e *Engine) SetStore(store Storage) { e.store = store }

// SetTokens configures the fungible-token collaborator.
func (e *Engine) SetTokens(tokens TokenLedger) { e.tokens = tokens }

// SetPoolFunder configures the reward-pool fee route.
func (e *Engine) SetPoolFunder(funder PoolFunder) { e.funder = funder }

// SetPauses configures the pause registry consulted before mutations.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetFees configures the trading fee and the share of it routed to the
// reward pool, both in basis points.
func (e *Engine) SetFees(feeBps, poolShareBps uint32) error {
	if feeBps > bpsDenominator || poolShareBps > bpsDenominator {
		return fmt.Errorf("exchange: fee bps out of range")
	}
	e.feeBps = feeBps
	e.poolShareBps = poolShareBps
	return nil
}

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

func (e *Engine) loadListing(id string) (*Listing, bool, error) {
	stored := new(storedListing)
	ok, err := e.store.KVGet(listingKey(id), stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return fromStoredListing(stored), true, nil
}

func (e *Engine) storeListing(listing *Listing) error {
	return e.store.KVPut(listingKey(listing.ID), toStoredListing(listing))
}

func (e *Engine) indexListing(id string) error {
	var index []string
	if _, err := e.store.KVGet(listingIndexKey, &index); err != nil {
		return err
	}
	index = append(index, id)
	return e.store.KVPut(listingIndexKey, index)
}

// List escrows the seller's credits with the module and opens a fixed-price
// listing.
func (e *Engine) List(seller [20]byte, amount, price *big.Int) (*Listing, error) {
	if e == nil || e.store == nil {
		return nil, ErrNilState
	}
	if e.tokens == nil {
		return nil, ErrNilLedger
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	listing := &Listing{
		ID:        uuid.NewString(),
		Seller:    seller,
		Remaining: new(big.Int).Set(amount),
		Price:     new(big.Int).Set(price),
		CreatedAt: e.now(),
	}
	if err := e.tokens.Transfer(seller, e.module, token.SymbolCredit, amount); err != nil {
		return nil, err
	}
	if err := e.storeListing(listing); err != nil {
		return nil, err
	}
	if err := e.indexListing(listing.ID); err != nil {
		return nil, err
	}
	e.emit(NewListingCreatedEvent(listing))
	return listing.Clone(), nil
}

// Buy fills a listing partially or fully. The full cost is checked against
// the buyer's balance before any transfer so a failed fill leaves no
// partial payout.
func (e *Engine) Buy(buyer [20]byte, id string, amount *big.Int) error {
	if e == nil || e.store == nil {
		return ErrNilState
	}
	if e.tokens == nil {
		return ErrNilLedger
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	listing, ok, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrListingNotFound
	}
	if listing.Closed {
		return ErrListingClosed
	}
	if amount.Cmp(listing.Remaining) > 0 {
		return ErrInsufficientLiquidity
	}
	cost := new(big.Int).Mul(amount, listing.Price)
	balance, err := e.tokens.BalanceOf(buyer, token.SymbolStable)
	if err != nil {
		return err
	}
	if balance.Cmp(cost) < 0 {
		return ErrInsufficientFunds
	}
	fee := new(big.Int).Mul(cost, new(big.Int).SetUint64(uint64(e.feeBps)))
	fee.Quo(fee, big.NewInt(bpsDenominator))
	poolShare := new(big.Int).Mul(fee, new(big.Int).SetUint64(uint64(e.poolShareBps)))
	poolShare.Quo(poolShare, big.NewInt(bpsDenominator))
	treasuryFee := new(big.Int).Sub(fee, poolShare)
	proceeds := new(big.Int).Sub(cost, fee)

	listing.Remaining = new(big.Int).Sub(listing.Remaining, amount)
	if listing.Remaining.Sign() == 0 {
		listing.Closed = true
	}
	if err := e.storeListing(listing); err != nil {
		return err
	}
	if proceeds.Sign() > 0 {
		if err := e.tokens.Transfer(buyer, listing.Seller, token.SymbolStable, proceeds); err != nil {
			return err
		}
	}
	if treasuryFee.Sign() > 0 {
		if err := e.tokens.Transfer(buyer, e.treasury, token.SymbolStable, treasuryFee); err != nil {
			return err
		}
	}
	if poolShare.Sign() > 0 {
		if err := e.tokens.Transfer(buyer, e.module, token.SymbolStable, poolShare); err != nil {
			return err
		}
		if e.funder != nil {
			if err := e.funder.Fund(e.module, poolShare); err != nil {
				return err
			}
			e.emit(NewFeeRoutedEvent(id, poolShare))
		}
	}
	if err := e.tokens.Transfer(e.module, buyer, token.SymbolCredit, amount); err != nil {
		return err
	}
	e.emit(NewListingFilledEvent(listing, buyer, amount, cost))
	return nil
}

// Cancel closes a listing and returns the unfilled remainder to the seller.
func (e *Engine) Cancel(caller [20]byte, id string) error {
	if e == nil || e.store == nil {
		return ErrNilState
	}
	if e.tokens == nil {
		return ErrNilLedger
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	listing, ok, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrListingNotFound
	}
	if listing.Closed {
		return ErrListingClosed
	}
	if caller != listing.Seller {
		return ErrUnauthorized
	}
	remainder := new(big.Int).Set(listing.Remaining)
	listing.Closed = true
	listing.Remaining = big.NewInt(0)
	if err := e.storeListing(listing); err != nil {
		return err
	}
	if remainder.Sign() > 0 {
		if err := e.tokens.Transfer(e.module, listing.Seller, token.SymbolCredit, remainder); err != nil {
			return err
		}
	}
	e.emit(NewListingCancelledEvent(listing))
	return nil
}

// Listing returns a copy of a stored listing.
func (e *Engine) Listing(id string) (*Listing, bool, error) {
	if e == nil || e.store == nil {
		return nil, false, ErrNilState
	}
	listing, ok, err := e.loadListing(id)
	if err != nil || !ok {
		return nil, false, err
	}
	return listing.Clone(), true, nil
}

// Listings returns copies of all known listings in creation order.
func (e *Engine) Listings() ([]*Listing, error) {
	if e == nil || e.store == nil {
		return nil, ErrNilState
	}
	var index []string
	if _, err := e.store.KVGet(listingIndexKey, &index); err != nil {
		return nil, err
	}
	out := make([]*Listing, 0, len(index))
	for _, id := range index {
		listing, ok, err := e.loadListing(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, listing.Clone())
		}
	}
	return out, nil
}

type exchangeEvent struct {
	evt *types.Event
}

func (e exchangeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e exchangeEvent) Event() *types.Event { return e.evt }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(exchangeEvent{evt: event})
}
