package loans

import "math/big"

// Borrower is an approved credit line. Records are created on approval and
// never destroyed; revocation clears the Approved flag.
type Borrower struct {
	Addr               [20]byte `json:"addr"`
	Approved           bool     `json:"approved"`
	BorrowLimit        *big.Int `json:"borrowLimit"`
	CurrentDebt        *big.Int `json:"currentDebt"`
	LPYieldRateBps     uint64   `json:"lpYieldRateBps"`
	ProtocolFeeRateBps uint64   `json:"protocolFeeRateBps"`
	TotalBorrowed      *big.Int `json:"totalBorrowed"`
	TotalRepaid        *big.Int `json:"totalRepaid"`
	TotalFeesPaid      *big.Int `json:"totalFeesPaid"`
}

// Normalize replaces nil amount fields with zero values.
func (b *Borrower) Normalize() *Borrower {
	if b == nil {
		b = &Borrower{}
	}
	fields := []**big.Int{&b.BorrowLimit, &b.CurrentDebt, &b.TotalBorrowed, &b.TotalRepaid, &b.TotalFeesPaid}
	for _, f := range fields {
		if *f == nil {
			*f = big.NewInt(0)
		}
	}
	return b
}

// Loan carries the fixed fee split agreed at creation. Principal repayment
// and protocol fee settlement are independent milestones; the loan leaves
// the active set only once both are done.
type Loan struct {
	ID               uint64   `json:"id"`
	Borrower         [20]byte `json:"borrower"`
	Payee            [20]byte `json:"payee"`
	Principal        *big.Int `json:"principal"`
	SettlementFunded *big.Int `json:"settlementFunded"`
	AlternateFunded  *big.Int `json:"alternateFunded"`
	LPFee            *big.Int `json:"lpFee"`
	ProtocolFee      *big.Int `json:"protocolFee"`
	DailyAccrual     *big.Int `json:"dailyAccrual"`
	StartTime        int64    `json:"startTime"`
	TermDays         uint64   `json:"termDays"`
	Repaid           bool     `json:"repaid"`
	ProtocolFeePaid  bool     `json:"protocolFeePaid"`
}

// Closed reports whether both settlement milestones are complete.
func (l *Loan) Closed() bool {
	return l != nil && l.Repaid && l.ProtocolFeePaid
}
