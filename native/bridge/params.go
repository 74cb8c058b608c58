package bridge

import (
	"errors"
	"fmt"
	"math/big"
)

// Emission factors are integers scaled by 1e6 (grams CO2e per kWh times
// 1e6). Dividing the kWh-weighted factor by 1e9 lands on the 3-decimal
// credit token, so 512 g/kWh over 500 kWh mints 256 smallest units.
const (
	FactorScale     = 1_000_000
	emissionDivisor = 1_000_000_000
	bpsDenominator  = 10_000
)

// SettlementMode selects the deployment discipline. A single instance runs
// one mode only; delayed settlement gates minting behind the challenge
// window while immediate settlement records and settles in one call.
type SettlementMode uint8

const (
	ModeDelayed SettlementMode = iota
	ModeImmediate
)

// Params holds the configuration surface consumed by the engine. When
// LocaleFactors is non-empty the engine is locale-aware and every minting
// entry must resolve a factor for its locale; otherwise EmissionFactor
// applies globally.
type Params struct {
	ChallengeWindow  int64
	MinParticipants  uint32
	EmissionFactor   *big.Int
	LocaleFactors    map[string]*big.Int
	OperatorShareBps uint32
	Mode             SettlementMode
}

// DefaultParams returns a delayed-settlement configuration with a 24h
// challenge window and no emission factor configured.
func DefaultParams() Params {
	return Params{
		ChallengeWindow: 24 * 60 * 60,
		MinParticipants: 1,
		EmissionFactor:  big.NewInt(0),
		LocaleFactors:   map[string]*big.Int{},
	}
}

// Validate ensures the parameter values fall within acceptable bounds.
func (p Params) Validate() error {
	if p.Mode == ModeDelayed && p.ChallengeWindow <= 0 {
		return errors.New("bridge: challenge window must be positive in delayed mode")
	}
	if p.MinParticipants == 0 {
		return errors.New("bridge: minimum participant count must be positive")
	}
	if p.OperatorShareBps > bpsDenominator {
		return fmt.Errorf("bridge: operator share bps out of range: %d", p.OperatorShareBps)
	}
	if p.EmissionFactor != nil && p.EmissionFactor.Sign() < 0 {
		return errors.New("bridge: emission factor cannot be negative")
	}
	for locale, factor := range p.LocaleFactors {
		if factor == nil || factor.Sign() <= 0 {
			return fmt.Errorf("bridge: invalid emission factor for locale %q", locale)
		}
	}
	if len(p.LocaleFactors) == 0 && (p.EmissionFactor == nil || p.EmissionFactor.Sign() <= 0) {
		return errors.New("bridge: emission factor must be configured")
	}
	return nil
}

// Clone returns a deep copy of the parameters.
func (p Params) Clone() Params {
	clone := p
	if p.EmissionFactor != nil {
		clone.EmissionFactor = new(big.Int).Set(p.EmissionFactor)
	}
	clone.LocaleFactors = make(map[string]*big.Int, len(p.LocaleFactors))
	for locale, factor := range p.LocaleFactors {
		clone.LocaleFactors[locale] = new(big.Int).Set(factor)
	}
	return clone
}

// factorFor resolves the emission factor for an entry. In locale-aware
// deployments a missing locale factor is a configuration error that fails
// the whole batch.
func (p Params) factorFor(locale string) (*big.Int, error) {
	if len(p.LocaleFactors) > 0 {
		factor, ok := p.LocaleFactors[locale]
		if !ok || factor == nil || factor.Sign() <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrFactorNotConfigured, locale)
		}
		return factor, nil
	}
	if p.EmissionFactor == nil || p.EmissionFactor.Sign() <= 0 {
		return nil, fmt.Errorf("%w: global factor unset", ErrFactorNotConfigured)
	}
	return p.EmissionFactor, nil
}

// CreditsFor converts an energy quantity into smallest credit units using
// the supplied factor: floor(kWh * factor / 1e9).
func CreditsFor(energyKWh uint64, factor *big.Int) *big.Int {
	if factor == nil || factor.Sign() <= 0 || energyKWh == 0 {
		return big.NewInt(0)
	}
	credits := new(big.Int).SetUint64(energyKWh)
	credits.Mul(credits, factor)
	credits.Quo(credits, big.NewInt(emissionDivisor))
	return credits
}
