package state

import (
	"errors"

	"creditvault/native/loans"
	"creditvault/native/vault"
)

var errNilRecord = errors.New("state: record must not be nil")

// VaultGetState loads the vault aggregate record, zeroed when unset.
func (t *Txn) VaultGetState() (*vault.VaultState, error) {
	st := new(vault.VaultState)
	ok, err := t.getJSON(keyVaultState, st)
	if err != nil {
		return nil, err
	}
	if !ok {
		st = &vault.VaultState{}
	}
	st.Normalize()
	return st, nil
}

// VaultPutState stages the vault aggregate record.
func (t *Txn) VaultPutState(st *vault.VaultState) error {
	if st == nil {
		return errNilRecord
	}
	st.Normalize()
	return t.putJSON(keyVaultState, st)
}

// RedemptionNextID allocates the next redemption request ID, starting at 1.
func (t *Txn) RedemptionNextID() (uint64, error) {
	return t.nextCounter(keyRedeemNext, 1)
}

// RedemptionPut stores a queued request and appends it to the queue index.
func (t *Txn) RedemptionPut(req *vault.RedemptionRequest) error {
	if req == nil {
		return errNilRecord
	}
	if err := t.putJSON(redemptionKey(req.ID), req); err != nil {
		return err
	}
	ids, err := t.redemptionIndex()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == req.ID {
			return nil
		}
	}
	return t.putJSON(keyRedeemQueue, append(ids, req.ID))
}

// RedemptionRemove deletes a request and drops it from the queue index.
func (t *Txn) RedemptionRemove(id uint64) error {
	if err := t.del(redemptionKey(id)); err != nil {
		return err
	}
	ids, err := t.redemptionIndex()
	if err != nil {
		return err
	}
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return t.putJSON(keyRedeemQueue, out)
}

// RedemptionQueue returns all queued requests in request order.
func (t *Txn) RedemptionQueue() ([]*vault.RedemptionRequest, error) {
	ids, err := t.redemptionIndex()
	if err != nil {
		return nil, err
	}
	queue := make([]*vault.RedemptionRequest, 0, len(ids))
	for _, id := range ids {
		req := new(vault.RedemptionRequest)
		ok, err := t.getJSON(redemptionKey(id), req)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		queue = append(queue, req)
	}
	return queue, nil
}

// RedemptionGetDay loads the per-day processing record.
func (t *Txn) RedemptionGetDay(day string) (*vault.RedemptionDay, bool, error) {
	rec := new(vault.RedemptionDay)
	ok, err := t.getJSON(redemptionDayKey(day), rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return rec, true, nil
}

// RedemptionPutDay stages the per-day processing record.
func (t *Txn) RedemptionPutDay(rec *vault.RedemptionDay) error {
	if rec == nil {
		return errNilRecord
	}
	return t.putJSON(redemptionDayKey(rec.Day), rec)
}

// OpenLoans projects the active loan set into the accrual view. Loans whose
// principal is repaid no longer accrue and are excluded even when their
// protocol fee is still outstanding.
func (t *Txn) OpenLoans() ([]vault.OpenLoan, error) {
	ids, err := t.activeLoanIndex()
	if err != nil {
		return nil, err
	}
	open := make([]vault.OpenLoan, 0, len(ids))
	for _, id := range ids {
		loan := new(loans.Loan)
		ok, err := t.getJSON(loanKey(id), loan)
		if err != nil {
			return nil, err
		}
		if !ok || loan.Repaid {
			continue
		}
		open = append(open, vault.OpenLoan{
			ID:           loan.ID,
			LPFee:        loan.LPFee,
			DailyAccrual: loan.DailyAccrual,
			StartTime:    loan.StartTime,
		})
	}
	return open, nil
}

func (t *Txn) redemptionIndex() ([]uint64, error) {
	var ids []uint64
	if _, err := t.getJSON(keyRedeemQueue, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
