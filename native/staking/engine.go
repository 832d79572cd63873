package staking

import (
	"errors"
	"math/big"
	"time"

	"creditvault/core/events"
	"creditvault/core/types"
	"creditvault/native/vault"
)

var (
	errNilState          = errors.New("staking engine: state not configured")
	errAmountNotPositive = errors.New("staking engine: amount must be positive")
	errUnknownTier       = errors.New("staking engine: unknown lock tier")
	errLockDowngrade     = errors.New("staking engine: cannot shorten an active lock")
	errCapExceeded       = errors.New("staking engine: stake exceeds claim-token cap")
	errInsufficientStake = errors.New("staking engine: amount exceeds staked balance")
	errLockActive        = errors.New("staking engine: lock period not elapsed")
	errInsufficient      = errors.New("staking engine: insufficient reward-asset balance")
)

var basisPoints = big.NewInt(10_000)

// Lock tiers and their yield-weighting multipliers, in basis points.
const (
	baseMultiplierBps = 10_000
	midMultiplierBps  = 15_000
	maxMultiplierBps  = 20_000
)

// MultiplierBps maps a lock tier to its weighting multiplier.
func MultiplierBps(lockDays uint64) (uint64, bool) {
	switch lockDays {
	case 0:
		return baseMultiplierBps, true
	case 90:
		return midMultiplierBps, true
	case 180:
		return maxMultiplierBps, true
	default:
		return 0, false
	}
}

type engineState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	StakeGet(addr [20]byte) (*Position, error)
	StakePut(*Position) error
	StakeGlobal() (*Global, error)
	StakePutGlobal(*Global) error
}

// Engine manages reward-asset staking positions. Capacity is tied to the
// owner's claim-token holdings so staking cannot outgrow vault participation.
type Engine struct {
	state      engineState
	moduleAddr [20]byte
	emitter    events.Emitter
	nowFn      func() int64
}

// NewEngine constructs a staking engine bound to the module treasury address.
func NewEngine(moduleAddr [20]byte) *Engine {
	return &Engine{
		moduleAddr: moduleAddr,
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
	e.emitter.Emit(stakingEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Stake locks reward asset against the owner's claim-token holdings. Adding
// to a live position re-locks the whole position at the new tier; the tier
// may only stay or grow while a lock is active.
func (e *Engine) Stake(owner [20]byte, amount *big.Int, lockDays uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errAmountNotPositive
	}
	multiplier, ok := MultiplierBps(lockDays)
	if !ok {
		return errUnknownTier
	}

	now := e.now()
	pos, err := e.loadPosition(owner)
	if err != nil {
		return err
	}
	if pos.Amount.Sign() > 0 && now < pos.LockEnd && lockDays < pos.LockDays {
		return errLockDowngrade
	}

	account, err := e.loadAccount(owner)
	if err != nil {
		return err
	}
	newAmount := new(big.Int).Add(pos.Amount, amount)
	// Cap: claim-token balance scaled into reward base units, weighted by
	// the tier multiplier.
	capacity := vault.SettleToReward(account.Shares)
	capacity.Mul(capacity, new(big.Int).SetUint64(multiplier))
	capacity.Quo(capacity, basisPoints)
	if newAmount.Cmp(capacity) > 0 {
		return errCapExceeded
	}
	if account.BalanceReward.Cmp(amount) < 0 {
		return errInsufficient
	}
	module, err := e.loadAccount(e.moduleAddr)
	if err != nil {
		return err
	}

	account.BalanceReward = new(big.Int).Sub(account.BalanceReward, amount)
	module.BalanceReward = new(big.Int).Add(module.BalanceReward, amount)

	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	global.TotalStaked = new(big.Int).Add(global.TotalStaked, amount)
	global.TotalWeighted = new(big.Int).Sub(global.TotalWeighted, weighted(pos.Amount, pos.MultiplierBps))
	global.TotalWeighted.Add(global.TotalWeighted, weighted(newAmount, multiplier))

	pos.Owner = owner
	pos.Amount = newAmount
	pos.LockDays = lockDays
	pos.LockEnd = now + int64(lockDays)*vault.DaySeconds
	pos.MultiplierBps = multiplier

	if err := e.state.PutAccount(owner, account); err != nil {
		return err
	}
	if err := e.state.PutAccount(e.moduleAddr, module); err != nil {
		return err
	}
	if err := e.state.StakePut(pos); err != nil {
		return err
	}
	if err := e.state.StakePutGlobal(global); err != nil {
		return err
	}

	e.emit(newStakedEvent(owner, amount, lockDays, pos.LockEnd))
	return nil
}

// Unstake releases reward asset once the lock has elapsed.
func (e *Engine) Unstake(owner [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errAmountNotPositive
	}
	pos, err := e.loadPosition(owner)
	if err != nil {
		return err
	}
	if pos.Amount.Cmp(amount) < 0 {
		return errInsufficientStake
	}
	now := e.now()
	if now < pos.LockEnd {
		return errLockActive
	}

	account, err := e.loadAccount(owner)
	if err != nil {
		return err
	}
	module, err := e.loadAccount(e.moduleAddr)
	if err != nil {
		return err
	}
	if module.BalanceReward.Cmp(amount) < 0 {
		return errInsufficient
	}

	remaining := new(big.Int).Sub(pos.Amount, amount)
	module.BalanceReward = new(big.Int).Sub(module.BalanceReward, amount)
	account.BalanceReward = new(big.Int).Add(account.BalanceReward, amount)

	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	global.TotalStaked = new(big.Int).Sub(global.TotalStaked, amount)
	global.TotalWeighted = new(big.Int).Sub(global.TotalWeighted, weighted(pos.Amount, pos.MultiplierBps))
	global.TotalWeighted.Add(global.TotalWeighted, weighted(remaining, pos.MultiplierBps))

	pos.Amount = remaining

	if err := e.state.PutAccount(owner, account); err != nil {
		return err
	}
	if err := e.state.PutAccount(e.moduleAddr, module); err != nil {
		return err
	}
	if err := e.state.StakePut(pos); err != nil {
		return err
	}
	if err := e.state.StakePutGlobal(global); err != nil {
		return err
	}

	e.emit(newUnstakedEvent(owner, amount))
	return nil
}

// Position returns the stored staking position for the owner.
func (e *Engine) Position(owner [20]byte) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadPosition(owner)
}

// Totals returns the registry-wide staked and weighted totals.
func (e *Engine) Totals() (*Global, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadGlobal()
}

func weighted(amount *big.Int, multiplierBps uint64) *big.Int {
	if amount == nil || amount.Sign() == 0 {
		return big.NewInt(0)
	}
	w := new(big.Int).Mul(amount, new(big.Int).SetUint64(multiplierBps))
	return w.Quo(w, basisPoints)
}

func (e *Engine) loadPosition(owner [20]byte) (*Position, error) {
	pos, err := e.state.StakeGet(owner)
	if err != nil {
		return nil, err
	}
	pos = pos.Normalize()
	if pos.Owner == ([20]byte{}) {
		pos.Owner = owner
	}
	return pos, nil
}

func (e *Engine) loadGlobal() (*Global, error) {
	global, err := e.state.StakeGlobal()
	if err != nil {
		return nil, err
	}
	return global.Normalize(), nil
}

func (e *Engine) loadAccount(addr [20]byte) (*types.Account, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Normalize(), nil
}
