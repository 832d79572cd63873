package state

import (
	"errors"

	"creditvault/core/types"
)

var errNilAccount = errors.New("state: account must not be nil")

// GetAccount loads an account, returning a zeroed account when none is
// stored yet.
func (t *Txn) GetAccount(addr [20]byte) (*types.Account, error) {
	account := new(types.Account)
	ok, err := t.getJSON(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		account = &types.Account{}
	}
	account.Normalize()
	return account, nil
}

// PutAccount stages an account write.
func (t *Txn) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return errNilAccount
	}
	account.Normalize()
	return t.putJSON(accountKey(addr), account)
}
