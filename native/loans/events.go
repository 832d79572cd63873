package loans

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"creditvault/core/types"
)

const (
	// EventTypeLoanCreated is emitted when a loan funds its payee.
	EventTypeLoanCreated = "loans.created"
	// EventTypeLoanRepaid marks the principal milestone settled.
	EventTypeLoanRepaid = "loans.repaid"
	// EventTypeFeePaid marks the protocol fee milestone settled.
	EventTypeFeePaid = "loans.fee_paid"
)

type loanEvent struct {
	evt *types.Event
}

func (l loanEvent) EventType() string {
	if l.evt == nil {
		return ""
	}
	return l.evt.Type
}

func (l loanEvent) Event() *types.Event { return l.evt }

func newLoanCreatedEvent(loan *Loan) *types.Event {
	attrs := make(map[string]string)
	if loan != nil {
		attrs["id"] = strconv.FormatUint(loan.ID, 10)
		attrs["borrower"] = hex.EncodeToString(loan.Borrower[:])
		attrs["payee"] = hex.EncodeToString(loan.Payee[:])
		if loan.Principal != nil {
			attrs["principal"] = loan.Principal.String()
		}
		if loan.AlternateFunded != nil && loan.AlternateFunded.Sign() > 0 {
			attrs["alternateFunded"] = loan.AlternateFunded.String()
		}
		attrs["termDays"] = strconv.FormatUint(loan.TermDays, 10)
	}
	return &types.Event{Type: EventTypeLoanCreated, Attributes: attrs}
}

func newLoanRepaidEvent(loan *Loan, paid *big.Int) *types.Event {
	attrs := make(map[string]string)
	if loan != nil {
		attrs["id"] = strconv.FormatUint(loan.ID, 10)
		attrs["borrower"] = hex.EncodeToString(loan.Borrower[:])
		attrs["closed"] = strconv.FormatBool(loan.Closed())
	}
	if paid != nil {
		attrs["paid"] = paid.String()
	}
	return &types.Event{Type: EventTypeLoanRepaid, Attributes: attrs}
}

func newFeePaidEvent(loan *Loan, collected *big.Int, inAlternate bool) *types.Event {
	attrs := make(map[string]string)
	if loan != nil {
		attrs["id"] = strconv.FormatUint(loan.ID, 10)
		attrs["closed"] = strconv.FormatBool(loan.Closed())
	}
	if collected != nil {
		attrs["collected"] = collected.String()
	}
	attrs["inAlternate"] = strconv.FormatBool(inAlternate)
	return &types.Event{Type: EventTypeFeePaid, Attributes: attrs}
}
