package rewards

import (
	"math/big"

	"carbonbridge/native/token"
)

// TokenPool adapts the token ledger into the Pool interface. The pool's
// spendable balance is the stablecoin balance held by the module account.
type TokenPool struct {
	tokens  *token.Ledger
	account [20]byte
	symbol  string
}

// NewTokenPool binds a pool to the given module account. An empty symbol
// defaults to the stablecoin.
func NewTokenPool(tokens *token.Ledger, account [20]byte, symbol string) *TokenPool {
	if symbol == "" {
		symbol = token.SymbolStable
	}
	return &TokenPool{tokens: tokens, account: account, symbol: symbol}
}

// Balance returns the pool's spendable balance.
func (p *TokenPool) Balance() (*big.Int, error) {
	if p == nil || p.tokens == nil {
		return nil, ErrNilPool
	}
	return p.tokens.BalanceOf(p.account, p.symbol)
}

// Pay transfers rewards out of the pool custody.
func (p *TokenPool) Pay(to [20]byte, amount *big.Int) error {
	if p == nil || p.tokens == nil {
		return ErrNilPool
	}
	return p.tokens.Transfer(p.account, to, p.symbol, amount)
}

// Deposit moves reward tokens into the pool custody.
func (p *TokenPool) Deposit(from [20]byte, amount *big.Int) error {
	if p == nil || p.tokens == nil {
		return ErrNilPool
	}
	return p.tokens.Transfer(from, p.account, p.symbol, amount)
}
