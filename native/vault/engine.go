package vault

import (
	"errors"
	"math/big"
	"time"

	"creditvault/core/events"
	"creditvault/core/types"
)

var (
	errNilState           = errors.New("vault engine: state not configured")
	errAmountNotPositive  = errors.New("vault engine: amount must be positive")
	errInsufficientFunds  = errors.New("vault engine: insufficient settlement balance")
	errInsufficientShares = errors.New("vault engine: insufficient claim-token balance")
	errVaultInsolvent     = errors.New("vault engine: claim base has no net asset value")
)

type engineState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	VaultGetState() (*VaultState, error)
	VaultPutState(*VaultState) error
	RedemptionNextID() (uint64, error)
	RedemptionPut(*RedemptionRequest) error
	RedemptionRemove(id uint64) error
	RedemptionQueue() ([]*RedemptionRequest, error)
	RedemptionGetDay(day string) (*RedemptionDay, bool, error)
	RedemptionPutDay(*RedemptionDay) error
	OpenLoans() ([]OpenLoan, error)
}

// Engine maintains the depositor claim base: NAV accounting, claim-token
// issuance, and the redemption queue. Claim tokens are minted and burned
// only through this engine.
type Engine struct {
	state      engineState
	moduleAddr [20]byte
	policy     Policy
	emitter    events.Emitter
	nowFn      func() int64
}

// NewEngine constructs a vault engine bound to the module treasury address.
// Bps knobs above the full scale are clamped so liquidity math never works
// with a negative retained fraction.
func NewEngine(moduleAddr [20]byte, policy Policy) *Engine {
	if policy.BufferBps > 10_000 {
		policy.BufferBps = 10_000
	}
	if policy.DailyRedemptionCapBps > 10_000 {
		policy.DailyRedemptionCapBps = 10_000
	}
	return &Engine{
		moduleAddr: moduleAddr,
		policy:     policy,
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

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
	e.emitter.Emit(vaultEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// RefreshAccrual recomputes the pending LP fee total across all loans whose
// principal is still outstanding. The walk is idempotent: the total is
// rebuilt from scratch, so repeated calls at the same timestamp are no-ops.
func (e *Engine) RefreshAccrual(now int64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	st, err := e.loadState()
	if err != nil {
		return err
	}
	open, err := e.state.OpenLoans()
	if err != nil {
		return err
	}
	accrued := big.NewInt(0)
	for _, loan := range open {
		accrued.Add(accrued, accruedFee(loan, now))
	}
	st.TotalAccruedFees = accrued
	st.LastAccrualTime = now
	return e.state.VaultPutState(st)
}

// accruedFee returns min(dailyAccrual * daysElapsed, lpFee) for one loan.
func accruedFee(loan OpenLoan, now int64) *big.Int {
	if loan.LPFee == nil || loan.LPFee.Sign() <= 0 || loan.DailyAccrual == nil {
		return big.NewInt(0)
	}
	if now <= loan.StartTime {
		return big.NewInt(0)
	}
	days := (now - loan.StartTime) / DaySeconds
	if days <= 0 {
		return big.NewInt(0)
	}
	accrued := new(big.Int).Mul(loan.DailyAccrual, big.NewInt(days))
	if accrued.Cmp(loan.LPFee) > 0 {
		return new(big.Int).Set(loan.LPFee)
	}
	return accrued
}

// NAV returns the depositor-owned value backing outstanding claim tokens:
// the module's settlement balance net of protocol revenue, plus the
// settlement-funded share of outstanding loans, plus accrued LP fees.
func (e *Engine) NAV() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	module, err := e.loadAccount(e.moduleAddr)
	if err != nil {
		return nil, err
	}
	return navValue(st, module.BalanceSettle), nil
}

func navValue(st *VaultState, moduleSettle *big.Int) *big.Int {
	nav := new(big.Int).Sub(moduleSettle, st.TotalProtocolFees)
	nav.Add(nav, st.TotalLoansOutstanding)
	nav.Sub(nav, st.TotalAlternateFunded)
	nav.Add(nav, st.TotalAccruedFees)
	if nav.Sign() < 0 {
		return big.NewInt(0)
	}
	return nav
}

// AvailableLiquidity caps usable settlement funds at both the solvency
// buffer applied to liquid NAV and the balance actually on hand.
func (e *Engine) AvailableLiquidity() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	module, err := e.loadAccount(e.moduleAddr)
	if err != nil {
		return nil, err
	}
	return e.availableLiquidity(st, module.BalanceSettle), nil
}

func (e *Engine) availableLiquidity(st *VaultState, moduleSettle *big.Int) *big.Int {
	nav := navValue(st, moduleSettle)
	liquid := new(big.Int).Sub(nav, st.TotalLoansOutstanding)
	if liquid.Sign() < 0 {
		liquid = big.NewInt(0)
	}
	usable := new(big.Int).Mul(liquid, big.NewInt(int64(10_000-e.policy.BufferBps)))
	usable.Quo(usable, basisPoints)
	onHand := new(big.Int).Sub(moduleSettle, st.TotalProtocolFees)
	if onHand.Sign() < 0 {
		onHand = big.NewInt(0)
	}
	if usable.Cmp(onHand) > 0 {
		return onHand
	}
	return usable
}

// SharePrice reports NAV per claim token scaled by PriceScale. Shares burned
// into still-queued redemptions keep claiming NAV, so they stay in the
// denominator until paid out. Zero effective supply returns the fixed
// initial price of 1.0.
func (e *Engine) SharePrice() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	module, err := e.loadAccount(e.moduleAddr)
	if err != nil {
		return nil, err
	}
	supply := effectiveSupply(st)
	if supply.Sign() == 0 {
		return new(big.Int).Set(PriceScale), nil
	}
	price := new(big.Int).Mul(navValue(st, module.BalanceSettle), PriceScale)
	return price.Quo(price, supply), nil
}

// State returns a normalized copy of the persisted vault aggregates.
func (e *Engine) State() (*VaultState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadState()
}

func effectiveSupply(st *VaultState) *big.Int {
	return new(big.Int).Add(st.ShareSupply, st.PendingShares)
}

func (e *Engine) loadState() (*VaultState, error) {
	st, err := e.state.VaultGetState()
	if err != nil {
		return nil, err
	}
	return st.Normalize(), nil
}

func (e *Engine) loadAccount(addr [20]byte) (*types.Account, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Normalize(), nil
}
