package staking

import (
	"errors"
	"math/big"
	"testing"

	"creditvault/core/types"
	"creditvault/native/vault"
)

type mockState struct {
	accounts  map[[20]byte]*types.Account
	positions map[[20]byte]*Position
	global    *Global
}

func newMockState() *mockState {
	return &mockState{
		accounts:  make(map[[20]byte]*types.Account),
		positions: make(map[[20]byte]*Position),
		global:    (&Global{}).Normalize(),
	}
}

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	if acc, ok := m.accounts[addr]; ok {
		return acc, nil
	}
	return (&types.Account{}).Normalize(), nil
}

func (m *mockState) PutAccount(addr [20]byte, account *types.Account) error {
	m.accounts[addr] = account
	return nil
}

func (m *mockState) StakeGet(addr [20]byte) (*Position, error) {
	if pos, ok := m.positions[addr]; ok {
		return pos, nil
	}
	return (&Position{Owner: addr}).Normalize(), nil
}

func (m *mockState) StakePut(pos *Position) error {
	m.positions[pos.Owner] = pos
	return nil
}

func (m *mockState) StakeGlobal() (*Global, error) { return m.global, nil }

func (m *mockState) StakePutGlobal(global *Global) error {
	m.global = global
	return nil
}

var (
	moduleAddr = [20]byte{0xff}
	owner      = [20]byte{0x01}
)

func newTestEngine(state *mockState) *Engine {
	engine := NewEngine(moduleAddr)
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return 1_000_000 })
	return engine
}

// holder gives the owner claim tokens (capacity) and a reward balance to
// stake from.
func holder(state *mockState, shares, reward int64) {
	acc := (&types.Account{}).Normalize()
	acc.Shares = big.NewInt(shares)
	acc.BalanceReward = vault.SettleToReward(big.NewInt(reward))
	state.accounts[owner] = acc
}

func TestMultiplierTiers(t *testing.T) {
	cases := []struct {
		lockDays uint64
		want     uint64
		ok       bool
	}{
		{0, 10_000, true},
		{90, 15_000, true},
		{180, 20_000, true},
		{30, 0, false},
		{365, 0, false},
	}
	for _, tc := range cases {
		got, ok := MultiplierBps(tc.lockDays)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("MultiplierBps(%d) = (%d, %v), want (%d, %v)", tc.lockDays, got, ok, tc.want, tc.ok)
		}
	}
}

func TestStakeMovesRewardAndTracksTotals(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	holder(state, 1_000, 500)

	amount := vault.SettleToReward(big.NewInt(300))
	if err := engine.Stake(owner, amount, 90); err != nil {
		t.Fatalf("stake: %v", err)
	}
	pos := state.positions[owner]
	if pos.Amount.Cmp(amount) != 0 {
		t.Fatalf("position = %s, want %s", pos.Amount, amount)
	}
	if pos.MultiplierBps != 15_000 {
		t.Fatalf("multiplier = %d, want 15000", pos.MultiplierBps)
	}
	if pos.LockEnd != 1_000_000+90*vault.DaySeconds {
		t.Fatalf("lock end = %d", pos.LockEnd)
	}
	if got := state.accounts[moduleAddr].BalanceReward; got.Cmp(amount) != 0 {
		t.Fatalf("module reward = %s, want %s", got, amount)
	}
	if got := state.global.TotalStaked; got.Cmp(amount) != 0 {
		t.Fatalf("total staked = %s, want %s", got, amount)
	}
	wantWeighted := new(big.Int).Mul(amount, big.NewInt(15_000))
	wantWeighted.Quo(wantWeighted, basisPoints)
	if got := state.global.TotalWeighted; got.Cmp(wantWeighted) != 0 {
		t.Fatalf("total weighted = %s, want %s", got, wantWeighted)
	}
}

func TestStakeCapScalesWithTier(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	holder(state, 100, 10_000)

	// Base tier cap: 100 shares worth of reward units.
	over := vault.SettleToReward(big.NewInt(101))
	if err := engine.Stake(owner, over, 0); !errors.Is(err, errCapExceeded) {
		t.Fatalf("over-cap err = %v, want %v", err, errCapExceeded)
	}
	// The 180-day tier doubles capacity.
	doubled := vault.SettleToReward(big.NewInt(200))
	if err := engine.Stake(owner, doubled, 180); err != nil {
		t.Fatalf("stake at max tier: %v", err)
	}
}

func TestStakeRejectsUnknownTierAndDowngrade(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	holder(state, 1_000, 1_000)

	if err := engine.Stake(owner, vault.SettleToReward(big.NewInt(10)), 45); !errors.Is(err, errUnknownTier) {
		t.Fatalf("tier err = %v, want %v", err, errUnknownTier)
	}
	if err := engine.Stake(owner, vault.SettleToReward(big.NewInt(10)), 180); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := engine.Stake(owner, vault.SettleToReward(big.NewInt(10)), 90); !errors.Is(err, errLockDowngrade) {
		t.Fatalf("downgrade err = %v, want %v", err, errLockDowngrade)
	}
}

func TestStakeTopUpRelocks(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	holder(state, 1_000, 1_000)

	if err := engine.Stake(owner, vault.SettleToReward(big.NewInt(100)), 90); err != nil {
		t.Fatalf("stake: %v", err)
	}
	firstEnd := state.positions[owner].LockEnd

	engine.SetNowFunc(func() int64 { return 1_000_000 + 30*vault.DaySeconds })
	if err := engine.Stake(owner, vault.SettleToReward(big.NewInt(50)), 90); err != nil {
		t.Fatalf("top-up: %v", err)
	}
	if got := state.positions[owner].LockEnd; got <= firstEnd {
		t.Fatalf("lock end not extended: %d <= %d", got, firstEnd)
	}
}

func TestUnstakeEnforcesLock(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	holder(state, 1_000, 1_000)

	amount := vault.SettleToReward(big.NewInt(100))
	if err := engine.Stake(owner, amount, 90); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := engine.Unstake(owner, amount); !errors.Is(err, errLockActive) {
		t.Fatalf("locked err = %v, want %v", err, errLockActive)
	}

	engine.SetNowFunc(func() int64 { return 1_000_000 + 90*vault.DaySeconds })
	if err := engine.Unstake(owner, amount); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if got := state.positions[owner].Amount; got.Sign() != 0 {
		t.Fatalf("position = %s, want 0", got)
	}
	if got := state.global.TotalStaked; got.Sign() != 0 {
		t.Fatalf("total staked = %s, want 0", got)
	}
	if got := state.global.TotalWeighted; got.Sign() != 0 {
		t.Fatalf("total weighted = %s, want 0", got)
	}
	wantBack := vault.SettleToReward(big.NewInt(1_000))
	if got := state.accounts[owner].BalanceReward; got.Cmp(wantBack) != 0 {
		t.Fatalf("owner reward = %s, want %s", got, wantBack)
	}
}

func TestUnstakeRejectsOverdraw(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	holder(state, 1_000, 1_000)

	if err := engine.Stake(owner, vault.SettleToReward(big.NewInt(100)), 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := engine.Unstake(owner, vault.SettleToReward(big.NewInt(200))); !errors.Is(err, errInsufficientStake) {
		t.Fatalf("overdraw err = %v, want %v", err, errInsufficientStake)
	}
}
