package state

import "creditvault/native/timelock"

// TimelockNextNonce allocates the next scheduler nonce.
func (t *Txn) TimelockNextNonce() (uint64, error) {
	return t.nextCounter(keyTimelockNonce, 0)
}

// TimelockGet loads a queued operation.
func (t *Txn) TimelockGet(id [32]byte) (*timelock.Operation, bool, error) {
	op := new(timelock.Operation)
	ok, err := t.getJSON(timelockKey(id), op)
	if err != nil || !ok {
		return nil, false, err
	}
	return op, true, nil
}

// TimelockPut stages a queued operation.
func (t *Txn) TimelockPut(op *timelock.Operation) error {
	if op == nil {
		return errNilRecord
	}
	return t.putJSON(timelockKey(op.ID), op)
}

// TimelockDelete removes a queued operation.
func (t *Txn) TimelockDelete(id [32]byte) error {
	return t.del(timelockKey(id))
}
