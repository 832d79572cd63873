package types

import "math/big"

// Account tracks the asset ledger balances held by a single address. The
// engine owns every mutation; external transfers are modelled as balance
// moves between accounts inside an operation's transaction.
type Account struct {
	Nonce          uint64   `json:"nonce"`
	BalanceSettle  *big.Int `json:"balanceSettle"`
	BalanceReward  *big.Int `json:"balanceReward"`
	Shares         *big.Int `json:"shares"`
	LifetimeMinted *big.Int `json:"lifetimeMinted,omitempty"`
	LifetimeBurned *big.Int `json:"lifetimeBurned,omitempty"`
}

// Normalize replaces nil balance fields with zero so callers can do
// arithmetic without nil checks.
func (a *Account) Normalize() *Account {
	if a == nil {
		return &Account{
			BalanceSettle: big.NewInt(0),
			BalanceReward: big.NewInt(0),
			Shares:        big.NewInt(0),
		}
	}
	if a.BalanceSettle == nil {
		a.BalanceSettle = big.NewInt(0)
	}
	if a.BalanceReward == nil {
		a.BalanceReward = big.NewInt(0)
	}
	if a.Shares == nil {
		a.Shares = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy so callers can stage changes without mutating
// the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return (&Account{}).Normalize()
	}
	clone := &Account{Nonce: a.Nonce}
	if a.BalanceSettle != nil {
		clone.BalanceSettle = new(big.Int).Set(a.BalanceSettle)
	}
	if a.BalanceReward != nil {
		clone.BalanceReward = new(big.Int).Set(a.BalanceReward)
	}
	if a.Shares != nil {
		clone.Shares = new(big.Int).Set(a.Shares)
	}
	if a.LifetimeMinted != nil {
		clone.LifetimeMinted = new(big.Int).Set(a.LifetimeMinted)
	}
	if a.LifetimeBurned != nil {
		clone.LifetimeBurned = new(big.Int).Set(a.LifetimeBurned)
	}
	return clone.Normalize()
}
