package rpc

import (
	"net/http"

	"creditvault/native/loans"
	"creditvault/state"
)

type loansCreateParams struct {
	Borrower         string `json:"borrower"`
	Payee            string `json:"payee"`
	Principal        string `json:"principal"`
	TermDays         uint64 `json:"termDays"`
	UseAlternate     bool   `json:"useAlternate"`
	AlternatePercent uint64 `json:"alternatePercent,omitempty"`
}

type loansCreateResult struct {
	LoanID uint64 `json:"loanId"`
}

type loansIDParams struct {
	Caller string `json:"caller"`
	LoanID uint64 `json:"loanId"`
}

type loansFeeParams struct {
	Caller      string `json:"caller"`
	LoanID      uint64 `json:"loanId"`
	InAlternate bool   `json:"inAlternate"`
}

type loansWithdrawParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type loansGetParams struct {
	LoanID uint64 `json:"loanId"`
}

type loansBorrowerParams struct {
	Address string `json:"address"`
}

type loanResult struct {
	ID               uint64 `json:"id"`
	Borrower         string `json:"borrower"`
	Payee            string `json:"payee"`
	Principal        string `json:"principal"`
	SettlementFunded string `json:"settlementFunded"`
	AlternateFunded  string `json:"alternateFunded"`
	LPFee            string `json:"lpFee"`
	ProtocolFee      string `json:"protocolFee"`
	DailyAccrual     string `json:"dailyAccrual"`
	StartTime        int64  `json:"startTime"`
	TermDays         uint64 `json:"termDays"`
	Repaid           bool   `json:"repaid"`
	ProtocolFeePaid  bool   `json:"protocolFeePaid"`
}

type borrowerResult struct {
	Address            string `json:"address"`
	Approved           bool   `json:"approved"`
	BorrowLimit        string `json:"borrowLimit"`
	CurrentDebt        string `json:"currentDebt"`
	LPYieldRateBps     uint64 `json:"lpYieldRateBps"`
	ProtocolFeeRateBps uint64 `json:"protocolFeeRateBps"`
	TotalBorrowed      string `json:"totalBorrowed"`
	TotalRepaid        string `json:"totalRepaid"`
	TotalFeesPaid      string `json:"totalFeesPaid"`
}

func loanView(loan *loans.Loan) loanResult {
	return loanResult{
		ID:               loan.ID,
		Borrower:         addrHex(loan.Borrower),
		Payee:            addrHex(loan.Payee),
		Principal:        bigString(loan.Principal),
		SettlementFunded: bigString(loan.SettlementFunded),
		AlternateFunded:  bigString(loan.AlternateFunded),
		LPFee:            bigString(loan.LPFee),
		ProtocolFee:      bigString(loan.ProtocolFee),
		DailyAccrual:     bigString(loan.DailyAccrual),
		StartTime:        loan.StartTime,
		TermDays:         loan.TermDays,
		Repaid:           loan.Repaid,
		ProtocolFeePaid:  loan.ProtocolFeePaid,
	}
}

func (s *Server) handleLoansCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loansCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	borrower, err := parseAddress(params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrower address", err.Error())
		return
	}
	payee, err := parseAddress(params.Payee)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payee address", err.Error())
		return
	}
	principal, err := parseAmount(params.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid principal", err.Error())
		return
	}

	var loanID uint64
	err = s.withTxn(func(txn *state.Txn) error {
		var innerErr error
		loanID, innerErr = s.loans.CreateLoan(borrower, payee, principal, params.TermDays, params.UseAlternate, params.AlternatePercent)
		return innerErr
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, loansCreateResult{LoanID: loanID})
}

func (s *Server) handleLoansRepay(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loansIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	err = s.withTxn(func(txn *state.Txn) error {
		return s.loans.RepayLoan(caller, params.LoanID)
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"repaid": true})
}

func (s *Server) handleLoansPayProtocolFee(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loansFeeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	err = s.withTxn(func(txn *state.Txn) error {
		return s.loans.PayProtocolFee(caller, params.LoanID, params.InAlternate)
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paid": true})
}

func (s *Server) handleLoansWithdrawProtocolFees(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.requireAdmin(w, r, req) {
		return
	}
	var params loansWithdrawParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	err = s.withTxn(func(txn *state.Txn) error {
		return s.loans.WithdrawProtocolFees(caller, recipient, amount)
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"withdrawn": true})
}

func (s *Server) handleLoansGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loansGetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	var result loanResult
	err := s.withTxn(func(txn *state.Txn) error {
		loan, innerErr := s.loans.Loan(params.LoanID)
		if innerErr != nil {
			return innerErr
		}
		result = loanView(loan)
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleLoansGetBorrower(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loansBorrowerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	var result borrowerResult
	err = s.withTxn(func(txn *state.Txn) error {
		record, innerErr := s.loans.Borrower(addr)
		if innerErr != nil {
			return innerErr
		}
		result = borrowerResult{
			Address:            addrHex(record.Addr),
			Approved:           record.Approved,
			BorrowLimit:        bigString(record.BorrowLimit),
			CurrentDebt:        bigString(record.CurrentDebt),
			LPYieldRateBps:     record.LPYieldRateBps,
			ProtocolFeeRateBps: record.ProtocolFeeRateBps,
			TotalBorrowed:      bigString(record.TotalBorrowed),
			TotalRepaid:        bigString(record.TotalRepaid),
			TotalFeesPaid:      bigString(record.TotalFeesPaid),
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}
