package vault

import "math/big"

// VaultState is the singleton aggregate mutated by every value-moving
// operation. All amounts are settlement base units unless noted.
type VaultState struct {
	TotalDeposits         *big.Int `json:"totalDeposits"`
	TotalLoansOutstanding *big.Int `json:"totalLoansOutstanding"`
	TotalAlternateFunded  *big.Int `json:"totalAlternateFunded"`
	TotalAccruedFees      *big.Int `json:"totalAccruedFees"`
	TotalCollectedFees    *big.Int `json:"totalCollectedFees"`
	TotalProtocolFees     *big.Int `json:"totalProtocolFees"`
	ShareSupply           *big.Int `json:"shareSupply"`
	PendingShares         *big.Int `json:"pendingShares"`
	LastAccrualTime       int64    `json:"lastAccrualTime"`
}

// Normalize replaces nil aggregate fields with zero values.
func (s *VaultState) Normalize() *VaultState {
	if s == nil {
		s = &VaultState{}
	}
	fields := []**big.Int{
		&s.TotalDeposits, &s.TotalLoansOutstanding, &s.TotalAlternateFunded,
		&s.TotalAccruedFees, &s.TotalCollectedFees, &s.TotalProtocolFees,
		&s.ShareSupply, &s.PendingShares,
	}
	for _, f := range fields {
		if *f == nil {
			*f = big.NewInt(0)
		}
	}
	return s
}

// RedemptionRequest is a queued claim-token redemption. The shares were
// burned from circulating supply when the request was accepted; the amount
// recorded here keeps claiming NAV until the payout settles.
type RedemptionRequest struct {
	ID          uint64   `json:"id"`
	Requester   [20]byte `json:"requester"`
	Shares      *big.Int `json:"shares"`
	RequestedAt int64    `json:"requestedAt"`
}

// RedemptionDay tracks the redemption throughput for one UTC day. The cap is
// snapshotted on the first ProcessRedemptions call of the day so draining the
// queue does not shrink the budget mid-day.
type RedemptionDay struct {
	Day       string   `json:"day"`
	CapShares *big.Int `json:"capShares"`
	Processed *big.Int `json:"processed"`
}

// OpenLoan is the view of a principal-outstanding loan the accrual walk
// needs. It is produced by the state layer from the loan registry.
type OpenLoan struct {
	ID           uint64
	LPFee        *big.Int
	DailyAccrual *big.Int
	StartTime    int64
}

// Policy carries the runtime knobs for liquidity and redemption throttling.
type Policy struct {
	BufferBps             uint64
	DailyRedemptionCapBps uint64
}
