package staking

import "math/big"

// Position is one owner's staked reward-asset balance. Zero is a valid
// steady state; positions are never destroyed.
type Position struct {
	Owner          [20]byte `json:"owner"`
	Amount         *big.Int `json:"amount"`
	LockDays       uint64   `json:"lockDays"`
	LockEnd        int64    `json:"lockEnd"`
	MultiplierBps  uint64   `json:"multiplierBps"`
	PendingRewards *big.Int `json:"pendingRewards"`
}

// Normalize replaces nil amount fields with zero values.
func (p *Position) Normalize() *Position {
	if p == nil {
		p = &Position{}
	}
	if p.Amount == nil {
		p.Amount = big.NewInt(0)
	}
	if p.PendingRewards == nil {
		p.PendingRewards = big.NewInt(0)
	}
	if p.MultiplierBps == 0 {
		p.MultiplierBps = baseMultiplierBps
	}
	return p
}

// Global aggregates the registry-wide staked and multiplier-weighted totals
// used for yield weighting.
type Global struct {
	TotalStaked   *big.Int `json:"totalStaked"`
	TotalWeighted *big.Int `json:"totalWeighted"`
}

// Normalize replaces nil totals with zero values.
func (g *Global) Normalize() *Global {
	if g == nil {
		g = &Global{}
	}
	if g.TotalStaked == nil {
		g.TotalStaked = big.NewInt(0)
	}
	if g.TotalWeighted == nil {
		g.TotalWeighted = big.NewInt(0)
	}
	return g
}
