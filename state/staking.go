package state

import "creditvault/native/staking"

// StakeGet loads a staking position, zeroed when none is stored.
func (t *Txn) StakeGet(addr [20]byte) (*staking.Position, error) {
	pos := new(staking.Position)
	ok, err := t.getJSON(stakeKey(addr), pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		pos = &staking.Position{Owner: addr}
	}
	pos.Normalize()
	return pos, nil
}

// StakePut stages a staking position write.
func (t *Txn) StakePut(pos *staking.Position) error {
	if pos == nil {
		return errNilRecord
	}
	pos.Normalize()
	return t.putJSON(stakeKey(pos.Owner), pos)
}

// StakeGlobal loads the aggregate staking totals.
func (t *Txn) StakeGlobal() (*staking.Global, error) {
	global := new(staking.Global)
	ok, err := t.getJSON(keyStakeGlobal, global)
	if err != nil {
		return nil, err
	}
	if !ok {
		global = &staking.Global{}
	}
	global.Normalize()
	return global, nil
}

// StakePutGlobal stages the aggregate staking totals.
func (t *Txn) StakePutGlobal(global *staking.Global) error {
	if global == nil {
		return errNilRecord
	}
	global.Normalize()
	return t.putJSON(keyStakeGlobal, global)
}
