package bridge

import (
	"math/big"

	"carbonbridge/native/rewards"
	"carbonbridge/native/token"
)

// TokenMinter adapts the token ledger into the CreditMinter interface. The
// module address must hold ROLE_MINTER on the ledger.
type TokenMinter struct {
	tokens   *token.Ledger
	module   [20]byte
	treasury [20]byte
}

// NewTokenMinter binds the minter to the bridge module address and the
// treasury account that receives aggregate mints.
func NewTokenMinter(tokens *token.Ledger, module, treasury [20]byte) *TokenMinter {
	return &TokenMinter{tokens: tokens, module: module, treasury: treasury}
}

// MintToTreasury issues the aggregate batch mint to the treasury account.
func (m *TokenMinter) MintToTreasury(amount *big.Int) error {
	if m == nil || m.tokens == nil {
		return ErrNilMinter
	}
	return m.tokens.Mint(m.module, m.treasury, token.SymbolCredit, amount)
}

// MintToOperator issues an operator's direct share.
func (m *TokenMinter) MintToOperator(operator [20]byte, amount *big.Int) error {
	if m == nil || m.tokens == nil {
		return ErrNilMinter
	}
	return m.tokens.Mint(m.module, operator, token.SymbolCredit, amount)
}

// CanMint verifies the module's mint grant without issuing anything.
func (m *TokenMinter) CanMint() error {
	if m == nil || m.tokens == nil {
		return ErrNilMinter
	}
	return m.tokens.CanMint(m.module)
}

// RewardsUpdater adapts the rewards engine into the ContributionUpdater
// interface, binding the bridge module address as the trusted caller. The
// module address must hold ROLE_REWARD_UPDATER.
type RewardsUpdater struct {
	engine *rewards.Engine
	module [20]byte
}

// NewRewardsUpdater binds the updater to the bridge module address.
func NewRewardsUpdater(engine *rewards.Engine, module [20]byte) *RewardsUpdater {
	return &RewardsUpdater{engine: engine, module: module}
}

// UpdateContribution forwards a settlement contribution delta.
func (u *RewardsUpdater) UpdateContribution(operator [20]byte, delta *big.Int, timestamp int64) error {
	if u == nil || u.engine == nil {
		return ErrNilRegistry
	}
	return u.engine.UpdateContribution(u.module, operator, delta, timestamp)
}

// CanUpdate verifies the module's updater grant without pushing a delta.
func (u *RewardsUpdater) CanUpdate() error {
	if u == nil || u.engine == nil {
		return ErrNilRegistry
	}
	return u.engine.CanUpdateContribution(u.module)
}
