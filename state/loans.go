package state

import "creditvault/native/loans"

// BorrowerGet loads a borrower registry record.
func (t *Txn) BorrowerGet(addr [20]byte) (*loans.Borrower, bool, error) {
	record := new(loans.Borrower)
	ok, err := t.getJSON(borrowerKey(addr), record)
	if err != nil || !ok {
		return nil, false, err
	}
	record.Normalize()
	return record, true, nil
}

// BorrowerPut stages a borrower registry write.
func (t *Txn) BorrowerPut(record *loans.Borrower) error {
	if record == nil {
		return errNilRecord
	}
	record.Normalize()
	return t.putJSON(borrowerKey(record.Addr), record)
}

// LoanNextID allocates the next loan ID, starting at 1.
func (t *Txn) LoanNextID() (uint64, error) {
	return t.nextCounter(keyLoanNext, 1)
}

// LoanGet loads a loan record.
func (t *Txn) LoanGet(id uint64) (*loans.Loan, bool, error) {
	loan := new(loans.Loan)
	ok, err := t.getJSON(loanKey(id), loan)
	if err != nil || !ok {
		return nil, false, err
	}
	return loan, true, nil
}

// LoanPut stages a loan record write.
func (t *Txn) LoanPut(loan *loans.Loan) error {
	if loan == nil {
		return errNilRecord
	}
	return t.putJSON(loanKey(loan.ID), loan)
}

// LoanSetActive adds or removes a loan from the active index.
func (t *Txn) LoanSetActive(id uint64, active bool) error {
	ids, err := t.activeLoanIndex()
	if err != nil {
		return err
	}
	if active {
		for _, existing := range ids {
			if existing == id {
				return nil
			}
		}
		return t.putJSON(keyLoanActive, append(ids, id))
	}
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return t.putJSON(keyLoanActive, out)
}

// ActiveLoans returns the IDs in the active index.
func (t *Txn) ActiveLoans() ([]uint64, error) {
	return t.activeLoanIndex()
}

func (t *Txn) activeLoanIndex() ([]uint64, error) {
	var ids []uint64
	if _, err := t.getJSON(keyLoanActive, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
