package state

import (
	"errors"
	"math/big"

	"creditvault/native/governance"
)

// GenesisBalance seeds one account at bootstrap.
type GenesisBalance struct {
	Addr   [20]byte
	Settle *big.Int
	Reward *big.Int
}

// Genesis is the initial role registry and account set.
type Genesis struct {
	Owner     [20]byte
	Admins    [][20]byte
	Governors [][20]byte
	Balances  []GenesisBalance
}

var errNoOwner = errors.New("state: genesis owner must be set")

// Bootstrap writes the genesis roles and balances. It is idempotent: once
// an owner is recorded the store is considered initialized and the call is
// a no-op.
func (m *Manager) Bootstrap(genesis Genesis) error {
	if genesis.Owner == ([20]byte{}) {
		return errNoOwner
	}
	return m.Update(func(txn *Txn) error {
		roles, err := txn.RolesGet()
		if err != nil {
			return err
		}
		if roles.Owner != ([20]byte{}) {
			return nil
		}
		roles = &governance.Roles{
			Owner:     genesis.Owner,
			Admins:    append([][20]byte(nil), genesis.Admins...),
			Governors: append([][20]byte(nil), genesis.Governors...),
		}
		if err := txn.RolesPut(roles); err != nil {
			return err
		}
		for _, seed := range genesis.Balances {
			account, err := txn.GetAccount(seed.Addr)
			if err != nil {
				return err
			}
			if seed.Settle != nil {
				account.BalanceSettle = new(big.Int).Set(seed.Settle)
			}
			if seed.Reward != nil {
				account.BalanceReward = new(big.Int).Set(seed.Reward)
			}
			if err := txn.PutAccount(seed.Addr, account); err != nil {
				return err
			}
		}
		return nil
	})
}
