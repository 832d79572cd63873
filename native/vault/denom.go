package vault

import "math/big"

// The settlement asset carries 6 fractional digits and the reward asset 18.
// RewardScale converts settlement base units into reward base units; every
// cross-asset computation goes through these constants so the truncation
// direction is explicit at the call site.
const (
	SettlementDecimals = 6
	RewardDecimals     = 18
)

var (
	// RewardScale = 10^(RewardDecimals-SettlementDecimals).
	RewardScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(RewardDecimals-SettlementDecimals), nil)

	// PriceScale expresses share prices as settlement base units per whole
	// share scaled by 10^SettlementDecimals; the initial price is exactly 1.0.
	PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(SettlementDecimals), nil)

	basisPoints = big.NewInt(10_000)
)

// DaySeconds is the engine's accounting day.
const DaySeconds int64 = 86_400

// SettleToReward converts a settlement base-unit amount into reward base
// units. The conversion is exact (scaling up).
func SettleToReward(amount *big.Int) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(amount, RewardScale)
}
