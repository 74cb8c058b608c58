package token

import (
	"fmt"
	"math/big"
	"strings"

	"carbonbridge/core/events"
	"carbonbridge/core/types"
)

// Supported symbols. GCT is the 3-decimal carbon credit token minted by the
// bridge; USDG is the 6-decimal stablecoin moved by the exchange and the
// reward pool.
const (
	SymbolCredit = "GCT"
	SymbolStable = "USDG"
)

// RoleMinter gates Mint. The bridge module address holds it in a standard
// deployment.
const RoleMinter = "ROLE_MINTER"

// Decimals returns the configured precision for a supported symbol.
func Decimals(symbol string) (uint8, error) {
	switch symbol {
	case SymbolCredit:
		return 3, nil
	case SymbolStable:
		return 6, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
}

// NormalizeSymbol canonicalises a token symbol and rejects unsupported ones.
func NormalizeSymbol(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	switch trimmed {
	case SymbolCredit, SymbolStable:
		return trimmed, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
}

// Storage abstracts the subset of state manager functionality required by
// the ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	HasRole(role string, addr [20]byte) bool
}

// Ledger keeps symbol-keyed fungible balances. It is the in-process stand-in
// for the credit-minting and reward-pool token collaborators the settlement
// and claim paths depend on.
type Ledger struct {
	store   Storage
	emitter events.Emitter
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func balanceKey(symbol string, addr [20]byte) []byte {
	return []byte("token/balance/" + symbol + "/" + string(addr[:]))
}

func supplyKey(symbol string) []byte {
	return []byte("token/supply/" + symbol)
}

func (l *Ledger) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := l.store.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// BalanceOf returns the current balance for an address.
func (l *Ledger) BalanceOf(addr [20]byte, symbol string) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, ErrNilState
	}
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return l.loadAmount(balanceKey(normalized, addr))
}

// TotalSupply returns the cumulative minted amount for a symbol.
func (l *Ledger) TotalSupply(symbol string) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, ErrNilState
	}
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return l.loadAmount(supplyKey(normalized))
}

// CanMint reports whether the caller holds ROLE_MINTER. It never mutates
// state; callers use it to validate a mint before committing their own.
func (l *Ledger) CanMint(caller [20]byte) error {
	if l == nil || l.store == nil {
		return ErrNilState
	}
	if !l.store.HasRole(RoleMinter, caller) {
		return ErrUnauthorized
	}
	return nil
}

// Mint creates new units for the recipient. Restricted to ROLE_MINTER.
func (l *Ledger) Mint(caller, to [20]byte, symbol string, amount *big.Int) error {
	if l == nil || l.store == nil {
		return ErrNilState
	}
	if !l.store.HasRole(RoleMinter, caller) {
		return ErrUnauthorized
	}
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := l.loadAmount(balanceKey(normalized, to))
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	if err := l.store.KVPut(balanceKey(normalized, to), balance); err != nil {
		return err
	}
	supply, err := l.loadAmount(supplyKey(normalized))
	if err != nil {
		return err
	}
	supply.Add(supply, amount)
	if err := l.store.KVPut(supplyKey(normalized), supply); err != nil {
		return err
	}
	l.emit(NewMintedEvent(to, normalized, amount))
	return nil
}

// Transfer moves units between two addresses.
func (l *Ledger) Transfer(from, to [20]byte, symbol string, amount *big.Int) error {
	if l == nil || l.store == nil {
		return ErrNilState
	}
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance, err := l.loadAmount(balanceKey(normalized, from))
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := l.loadAmount(balanceKey(normalized, to))
	if err != nil {
		return err
	}
	fromBalance.Sub(fromBalance, amount)
	toBalance.Add(toBalance, amount)
	if err := l.store.KVPut(balanceKey(normalized, from), fromBalance); err != nil {
		return err
	}
	if err := l.store.KVPut(balanceKey(normalized, to), toBalance); err != nil {
		return err
	}
	l.emit(NewTransferredEvent(from, to, normalized, amount))
	return nil
}

type tokenEvent struct {
	evt *types.Event
}

func (e tokenEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tokenEvent) Event() *types.Event { return e.evt }

func (l *Ledger) emit(event *types.Event) {
	if l == nil || l.emitter == nil || event == nil {
		return
	}
	l.emitter.Emit(tokenEvent{evt: event})
}
