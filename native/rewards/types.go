package rewards

import "math/big"

// accScale is the fixed-point scale of the accumulated reward-per-score
// value.
var accScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// AccScale returns the fixed-point scale applied to AccPerScore.
func AccScale() *big.Int {
	return new(big.Int).Set(accScale)
}

// GlobalState tracks the streaming reward accumulator shared by all
// contribution accounts. AccPerScore is scaled by 1e18 and never decreases;
// RatePerSecond is expressed in reward-token units per score-unit per
// second.
type GlobalState struct {
	TotalScore    *big.Int
	AccPerScore   *big.Int
	LastUpdate    int64
	RatePerSecond *big.Int
}

// NewGlobalState returns a zeroed accumulator with the supplied rate.
func NewGlobalState(rate *big.Int) *GlobalState {
	g := &GlobalState{
		TotalScore:    big.NewInt(0),
		AccPerScore:   big.NewInt(0),
		LastUpdate:    0,
		RatePerSecond: big.NewInt(0),
	}
	if rate != nil && rate.Sign() > 0 {
		g.RatePerSecond = new(big.Int).Set(rate)
	}
	return g
}

func (g *GlobalState) normalize() {
	if g.TotalScore == nil {
		g.TotalScore = big.NewInt(0)
	}
	if g.AccPerScore == nil {
		g.AccPerScore = big.NewInt(0)
	}
	if g.RatePerSecond == nil {
		g.RatePerSecond = big.NewInt(0)
	}
}

// Refresh settles time-based accrual up to now. With a zero total score only
// the timestamp advances so resumed contributions do not accrue phantom
// rewards for the idle gap.
func (g *GlobalState) Refresh(now int64) {
	g.normalize()
	if now <= g.LastUpdate {
		if g.TotalScore.Sign() == 0 {
			g.LastUpdate = now
		}
		return
	}
	if g.TotalScore.Sign() == 0 {
		g.LastUpdate = now
		return
	}
	elapsed := big.NewInt(now - g.LastUpdate)
	increment := new(big.Int).Mul(elapsed, g.RatePerSecond)
	increment.Mul(increment, accScale)
	increment.Quo(increment, g.TotalScore)
	g.AccPerScore.Add(g.AccPerScore, increment)
	g.LastUpdate = now
}

// Projected returns the accumulator value as of now without mutating state.
func (g *GlobalState) Projected(now int64) *big.Int {
	g.normalize()
	projected := new(big.Int).Set(g.AccPerScore)
	if now <= g.LastUpdate || g.TotalScore.Sign() == 0 {
		return projected
	}
	elapsed := big.NewInt(now - g.LastUpdate)
	increment := new(big.Int).Mul(elapsed, g.RatePerSecond)
	increment.Mul(increment, accScale)
	increment.Quo(increment, g.TotalScore)
	return projected.Add(projected, increment)
}

// Clone returns a deep copy of the global state.
func (g *GlobalState) Clone() *GlobalState {
	if g == nil {
		return NewGlobalState(nil)
	}
	g.normalize()
	return &GlobalState{
		TotalScore:    new(big.Int).Set(g.TotalScore),
		AccPerScore:   new(big.Int).Set(g.AccPerScore),
		LastUpdate:    g.LastUpdate,
		RatePerSecond: new(big.Int).Set(g.RatePerSecond),
	}
}

// Account keeps the per-operator contribution score and reward debt. Debt is
// expressed in the same fixed-point units as AccPerScore so claimable
// rewards reduce to score*acc/scale - debt.
type Account struct {
	Score *big.Int
	Debt  *big.Int
}

func (a *Account) normalize() {
	if a.Score == nil {
		a.Score = big.NewInt(0)
	}
	if a.Debt == nil {
		a.Debt = big.NewInt(0)
	}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{Score: big.NewInt(0), Debt: big.NewInt(0)}
	}
	a.normalize()
	return &Account{Score: new(big.Int).Set(a.Score), Debt: new(big.Int).Set(a.Debt)}
}

type storedGlobalState struct {
	TotalScore    *big.Int
	AccPerScore   *big.Int
	LastUpdate    uint64
	RatePerSecond *big.Int
}

type storedAccount struct {
	Score *big.Int
	Debt  *big.Int
}
