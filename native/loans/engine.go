package loans

import (
	"errors"
	"math/big"
	"time"

	"creditvault/core/events"
	"creditvault/core/types"
	"creditvault/native/vault"
)

var (
	errNilState            = errors.New("loans engine: state not configured")
	errNilLedger           = errors.New("loans engine: ledger not configured")
	errAmountNotPositive   = errors.New("loans engine: amount must be positive")
	errTermNotPositive     = errors.New("loans engine: term must be at least one day")
	errInvalidPercent      = errors.New("loans engine: alternate percent exceeds 100")
	errNotApprovedBorrower = errors.New("loans engine: caller is not an approved borrower")
	errExceedsBorrowLimit  = errors.New("loans engine: principal exceeds borrow limit")
	errLoanNotFound        = errors.New("loans engine: loan not found")
	errNotLoanBorrower     = errors.New("loans engine: caller is not the loan borrower")
	errAlreadyRepaid       = errors.New("loans engine: principal already repaid")
	errFeeAlreadyPaid      = errors.New("loans engine: protocol fee already paid")
	errInsufficientFunds   = errors.New("loans engine: insufficient settlement balance")
	errInsufficientReward  = errors.New("loans engine: insufficient reward-asset balance")
	errInsufficientLiquid  = errors.New("loans engine: insufficient available liquidity")
	errInvalidPayee        = errors.New("loans engine: payee must be a third party")
	errNotAdmin            = errors.New("loans engine: caller is not an admin")
	errExceedsProtocolFees = errors.New("loans engine: amount exceeds accrued protocol fees")
)

var basisPoints = big.NewInt(10_000)

// alternateFeeDiscountBps keeps 75% of the protocol fee when it is settled
// in the reward asset (a fixed 25% discount).
const alternateFeeDiscountBps = 7_500

type engineState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	VaultGetState() (*vault.VaultState, error)
	VaultPutState(*vault.VaultState) error
	BorrowerGet(addr [20]byte) (*Borrower, bool, error)
	BorrowerPut(*Borrower) error
	LoanNextID() (uint64, error)
	LoanGet(id uint64) (*Loan, bool, error)
	LoanPut(*Loan) error
	LoanSetActive(id uint64, active bool) error
}

// Ledger is the NAV view the loan lifecycle needs from the vault engine.
type Ledger interface {
	RefreshAccrual(now int64) error
	AvailableLiquidity() (*big.Int, error)
}

// RoleView answers authorization questions for admin-gated operations.
type RoleView interface {
	IsAdmin(addr [20]byte) (bool, error)
}

// Engine runs the loan lifecycle: creation against credit limits, principal
// repayment, and protocol fee settlement.
type Engine struct {
	state      engineState
	ledger     Ledger
	roles      RoleView
	moduleAddr [20]byte
	emitter    events.Emitter
	nowFn      func() int64
}

// NewEngine constructs a loans engine bound to the module treasury address.
func NewEngine(moduleAddr [20]byte) *Engine {
	return &Engine{
		moduleAddr: moduleAddr,
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the NAV view used for accrual refresh and liquidity checks.
func (e *Engine) SetLedger(ledger Ledger) { e.ledger = ledger }

// SetRoles wires the role registry consulted by admin-gated operations.
func (e *Engine) SetRoles(roles RoleView) { e.roles = roles }

// SetNowFunc overrides the time source. Nil restores the wall clock.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(loanEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// CreateLoan funds a payout to the payee against the borrower's credit line.
// The settlement share is paid from pooled liquidity; the alternate share is
// paid from the borrower's own reward-asset balance, scaled into reward base
// units, so it never draws on depositor funds.
func (e *Engine) CreateLoan(borrower, payee [20]byte, principal *big.Int, termDays uint64, useAlternate bool, alternatePercent uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if e.ledger == nil {
		return 0, errNilLedger
	}
	if principal == nil || principal.Sign() <= 0 {
		return 0, errAmountNotPositive
	}
	if termDays == 0 {
		return 0, errTermNotPositive
	}
	if alternatePercent > 100 {
		return 0, errInvalidPercent
	}
	if payee == borrower || payee == e.moduleAddr {
		return 0, errInvalidPayee
	}

	record, ok, err := e.state.BorrowerGet(borrower)
	if err != nil {
		return 0, err
	}
	if !ok || !record.Normalize().Approved {
		return 0, errNotApprovedBorrower
	}
	projected := new(big.Int).Add(record.CurrentDebt, principal)
	if projected.Cmp(record.BorrowLimit) > 0 {
		return 0, errExceedsBorrowLimit
	}

	now := e.now()
	if err := e.ledger.RefreshAccrual(now); err != nil {
		return 0, err
	}

	lpFee := feeFor(principal, record.LPYieldRateBps)
	protocolFee := feeFor(principal, record.ProtocolFeeRateBps)

	alternateFunded := big.NewInt(0)
	if useAlternate && alternatePercent > 0 {
		alternateFunded = new(big.Int).Mul(principal, new(big.Int).SetUint64(alternatePercent))
		alternateFunded.Quo(alternateFunded, big.NewInt(100))
	}
	settlementFunded := new(big.Int).Sub(principal, alternateFunded)

	if settlementFunded.Sign() > 0 {
		liquidity, err := e.ledger.AvailableLiquidity()
		if err != nil {
			return 0, err
		}
		if liquidity.Cmp(settlementFunded) < 0 {
			return 0, errInsufficientLiquid
		}
	}

	borrowerAcc, err := e.loadAccount(borrower)
	if err != nil {
		return 0, err
	}
	payeeAcc, err := e.loadAccount(payee)
	if err != nil {
		return 0, err
	}
	moduleAcc, err := e.loadAccount(e.moduleAddr)
	if err != nil {
		return 0, err
	}

	// Settlement share: module -> payee.
	if settlementFunded.Sign() > 0 {
		if moduleAcc.BalanceSettle.Cmp(settlementFunded) < 0 {
			return 0, errInsufficientLiquid
		}
		moduleAcc.BalanceSettle = new(big.Int).Sub(moduleAcc.BalanceSettle, settlementFunded)
		payeeAcc.BalanceSettle = new(big.Int).Add(payeeAcc.BalanceSettle, settlementFunded)
	}
	// Alternate share: borrower -> payee in reward base units
	// (settlement units scaled up by RewardScale).
	if alternateFunded.Sign() > 0 {
		rewardOut := vault.SettleToReward(alternateFunded)
		if borrowerAcc.BalanceReward.Cmp(rewardOut) < 0 {
			return 0, errInsufficientReward
		}
		borrowerAcc.BalanceReward = new(big.Int).Sub(borrowerAcc.BalanceReward, rewardOut)
		payeeAcc.BalanceReward = new(big.Int).Add(payeeAcc.BalanceReward, rewardOut)
	}

	id, err := e.state.LoanNextID()
	if err != nil {
		return 0, err
	}
	loan := &Loan{
		ID:               id,
		Borrower:         borrower,
		Payee:            payee,
		Principal:        new(big.Int).Set(principal),
		SettlementFunded: settlementFunded,
		AlternateFunded:  alternateFunded,
		LPFee:            lpFee,
		ProtocolFee:      protocolFee,
		DailyAccrual:     new(big.Int).Quo(lpFee, new(big.Int).SetUint64(termDays)),
		StartTime:        now,
		TermDays:         termDays,
	}

	record.CurrentDebt = projected
	record.TotalBorrowed = new(big.Int).Add(record.TotalBorrowed, principal)

	st, err := e.loadVaultState()
	if err != nil {
		return 0, err
	}
	st.TotalLoansOutstanding = new(big.Int).Add(st.TotalLoansOutstanding, principal)
	st.TotalAlternateFunded = new(big.Int).Add(st.TotalAlternateFunded, alternateFunded)

	if err := e.persistAccounts(map[[20]byte]*types.Account{borrower: borrowerAcc, payee: payeeAcc, e.moduleAddr: moduleAcc}); err != nil {
		return 0, err
	}
	if err := e.state.LoanPut(loan); err != nil {
		return 0, err
	}
	if err := e.state.LoanSetActive(id, true); err != nil {
		return 0, err
	}
	if err := e.state.BorrowerPut(record); err != nil {
		return 0, err
	}
	if err := e.state.VaultPutState(st); err != nil {
		return 0, err
	}

	e.emit(newLoanCreatedEvent(loan))
	return id, nil
}

// RepayLoan settles the principal milestone. The borrower pays principal
// plus the full LP fee in settlement asset; the alternate-funded portion's
// conversion gain is realized as protocol revenue.
func (e *Engine) RepayLoan(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	loan, ok, err := e.state.LoanGet(id)
	if err != nil {
		return err
	}
	if !ok || loan == nil {
		return errLoanNotFound
	}
	if loan.Borrower != caller {
		return errNotLoanBorrower
	}
	if loan.Repaid {
		return errAlreadyRepaid
	}

	now := e.now()
	if err := e.ledger.RefreshAccrual(now); err != nil {
		return err
	}

	due := new(big.Int).Add(loan.Principal, loan.LPFee)
	borrowerAcc, err := e.loadAccount(caller)
	if err != nil {
		return err
	}
	if borrowerAcc.BalanceSettle.Cmp(due) < 0 {
		return errInsufficientFunds
	}
	moduleAcc, err := e.loadAccount(e.moduleAddr)
	if err != nil {
		return err
	}
	borrowerAcc.BalanceSettle = new(big.Int).Sub(borrowerAcc.BalanceSettle, due)
	moduleAcc.BalanceSettle = new(big.Int).Add(moduleAcc.BalanceSettle, due)

	record, ok, err := e.state.BorrowerGet(caller)
	if err != nil {
		return err
	}
	if !ok {
		return errNotApprovedBorrower
	}
	record.Normalize()
	record.CurrentDebt = new(big.Int).Sub(record.CurrentDebt, loan.Principal)
	if record.CurrentDebt.Sign() < 0 {
		record.CurrentDebt = big.NewInt(0)
	}
	record.TotalRepaid = new(big.Int).Add(record.TotalRepaid, loan.Principal)
	record.TotalFeesPaid = new(big.Int).Add(record.TotalFeesPaid, loan.LPFee)

	st, err := e.loadVaultState()
	if err != nil {
		return err
	}
	st.TotalLoansOutstanding = new(big.Int).Sub(st.TotalLoansOutstanding, loan.Principal)
	st.TotalAlternateFunded = new(big.Int).Sub(st.TotalAlternateFunded, loan.AlternateFunded)
	// The alternate share was never settlement-backed; realizing it in
	// settlement asset is a protocol gain, not a depositor gain.
	st.TotalProtocolFees = new(big.Int).Add(st.TotalProtocolFees, loan.AlternateFunded)
	st.TotalCollectedFees = new(big.Int).Add(st.TotalCollectedFees, loan.LPFee)

	loan.Repaid = true

	if err := e.persistAccounts(map[[20]byte]*types.Account{caller: borrowerAcc, e.moduleAddr: moduleAcc}); err != nil {
		return err
	}
	if err := e.state.BorrowerPut(record); err != nil {
		return err
	}
	if err := e.state.LoanPut(loan); err != nil {
		return err
	}
	if loan.Closed() {
		if err := e.state.LoanSetActive(id, false); err != nil {
			return err
		}
	}
	if err := e.state.VaultPutState(st); err != nil {
		return err
	}
	// The repaid loan no longer accrues; rebuild the pending fee total.
	if err := e.ledger.RefreshAccrual(now); err != nil {
		return err
	}

	e.emit(newLoanRepaidEvent(loan, due))
	return nil
}

// PayProtocolFee settles the protocol fee milestone. Settling in the reward
// asset earns a fixed 25% discount; the collected amount is booked as
// protocol revenue either way.
func (e *Engine) PayProtocolFee(caller [20]byte, id uint64, inAlternate bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	loan, ok, err := e.state.LoanGet(id)
	if err != nil {
		return err
	}
	if !ok || loan == nil {
		return errLoanNotFound
	}
	if loan.Borrower != caller {
		return errNotLoanBorrower
	}
	if loan.ProtocolFeePaid {
		return errFeeAlreadyPaid
	}

	borrowerAcc, err := e.loadAccount(caller)
	if err != nil {
		return err
	}
	moduleAcc, err := e.loadAccount(e.moduleAddr)
	if err != nil {
		return err
	}

	collected := new(big.Int).Set(loan.ProtocolFee)
	if inAlternate {
		collected.Mul(collected, big.NewInt(alternateFeeDiscountBps))
		collected.Quo(collected, basisPoints)
		// The discounted fee is settled in reward base units.
		rewardDue := vault.SettleToReward(collected)
		if borrowerAcc.BalanceReward.Cmp(rewardDue) < 0 {
			return errInsufficientReward
		}
		borrowerAcc.BalanceReward = new(big.Int).Sub(borrowerAcc.BalanceReward, rewardDue)
		moduleAcc.BalanceReward = new(big.Int).Add(moduleAcc.BalanceReward, rewardDue)
	} else {
		if borrowerAcc.BalanceSettle.Cmp(collected) < 0 {
			return errInsufficientFunds
		}
		borrowerAcc.BalanceSettle = new(big.Int).Sub(borrowerAcc.BalanceSettle, collected)
		moduleAcc.BalanceSettle = new(big.Int).Add(moduleAcc.BalanceSettle, collected)
	}

	st, err := e.loadVaultState()
	if err != nil {
		return err
	}
	st.TotalProtocolFees = new(big.Int).Add(st.TotalProtocolFees, collected)

	record, ok, err := e.state.BorrowerGet(caller)
	if err != nil {
		return err
	}
	if ok {
		record.Normalize()
		record.TotalFeesPaid = new(big.Int).Add(record.TotalFeesPaid, collected)
		if err := e.state.BorrowerPut(record); err != nil {
			return err
		}
	}

	loan.ProtocolFeePaid = true

	if err := e.persistAccounts(map[[20]byte]*types.Account{caller: borrowerAcc, e.moduleAddr: moduleAcc}); err != nil {
		return err
	}
	if err := e.state.LoanPut(loan); err != nil {
		return err
	}
	if loan.Closed() {
		if err := e.state.LoanSetActive(id, false); err != nil {
			return err
		}
	}
	if err := e.state.VaultPutState(st); err != nil {
		return err
	}

	e.emit(newFeePaidEvent(loan, collected, inAlternate))
	return nil
}

// WithdrawProtocolFees transfers realized protocol revenue to the recipient.
// Admin only; bounded by the accrued total and the on-hand balance.
func (e *Engine) WithdrawProtocolFees(caller, recipient [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.roles == nil {
		return errNotAdmin
	}
	admin, err := e.roles.IsAdmin(caller)
	if err != nil {
		return err
	}
	if !admin {
		return errNotAdmin
	}
	if amount == nil || amount.Sign() <= 0 {
		return errAmountNotPositive
	}
	if recipient == e.moduleAddr {
		return errInvalidPayee
	}
	st, err := e.loadVaultState()
	if err != nil {
		return err
	}
	if st.TotalProtocolFees.Cmp(amount) < 0 {
		return errExceedsProtocolFees
	}
	moduleAcc, err := e.loadAccount(e.moduleAddr)
	if err != nil {
		return err
	}
	if moduleAcc.BalanceSettle.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	recipientAcc, err := e.loadAccount(recipient)
	if err != nil {
		return err
	}

	moduleAcc.BalanceSettle = new(big.Int).Sub(moduleAcc.BalanceSettle, amount)
	recipientAcc.BalanceSettle = new(big.Int).Add(recipientAcc.BalanceSettle, amount)
	st.TotalProtocolFees = new(big.Int).Sub(st.TotalProtocolFees, amount)

	if err := e.persistAccounts(map[[20]byte]*types.Account{e.moduleAddr: moduleAcc, recipient: recipientAcc}); err != nil {
		return err
	}
	return e.state.VaultPutState(st)
}

// Loan returns the stored loan record.
func (e *Engine) Loan(id uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	loan, ok, err := e.state.LoanGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLoanNotFound
	}
	return loan, nil
}

// Borrower returns the stored borrower record.
func (e *Engine) Borrower(addr [20]byte) (*Borrower, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, ok, err := e.state.BorrowerGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotApprovedBorrower
	}
	return record.Normalize(), nil
}

func feeFor(principal *big.Int, rateBps uint64) *big.Int {
	fee := new(big.Int).Mul(principal, new(big.Int).SetUint64(rateBps))
	return fee.Quo(fee, basisPoints)
}

func (e *Engine) loadAccount(addr [20]byte) (*types.Account, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Normalize(), nil
}

func (e *Engine) loadVaultState() (*vault.VaultState, error) {
	st, err := e.state.VaultGetState()
	if err != nil {
		return nil, err
	}
	return st.Normalize(), nil
}

func (e *Engine) persistAccounts(accounts map[[20]byte]*types.Account) error {
	for addr, acc := range accounts {
		if err := e.state.PutAccount(addr, acc); err != nil {
			return err
		}
	}
	return nil
}
