package vault

import (
	"errors"
	"math/big"
	"testing"

	"creditvault/core/types"
)

type mockState struct {
	accounts map[[20]byte]*types.Account
	st       *VaultState
	queue    []*RedemptionRequest
	nextID   uint64
	days     map[string]*RedemptionDay
	open     []OpenLoan
}

func newMockState() *mockState {
	return &mockState{
		accounts: make(map[[20]byte]*types.Account),
		st:       (&VaultState{}).Normalize(),
		days:     make(map[string]*RedemptionDay),
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

func (m *mockState) VaultGetState() (*VaultState, error) { return m.st, nil }
func (m *mockState) VaultPutState(st *VaultState) error { m.st = st; return nil }
func (m *mockState) RedemptionNextID() (uint64, error) { m.nextID++; return m.nextID, nil }
func (m *mockState) RedemptionPut(r *RedemptionRequest) error {
	m.queue = append(m.queue, r)
	return nil
}

func (m *mockState) RedemptionRemove(id uint64) error {
	out := m.queue[:0]
	for _, req := range m.queue {
		if req.ID != id {
			out = append(out, req)
		}
	}
	m.queue = out
	return nil
}

func (m *mockState) RedemptionQueue() ([]*RedemptionRequest, error) {
	return append([]*RedemptionRequest(nil), m.queue...), nil
}

func (m *mockState) RedemptionGetDay(day string) (*RedemptionDay, bool, error) {
	rec, ok := m.days[day]
	return rec, ok, nil
}

func (m *mockState) RedemptionPutDay(rec *RedemptionDay) error {
	m.days[rec.Day] = rec
	return nil
}

func (m *mockState) OpenLoans() ([]OpenLoan, error) { return m.open, nil }

var (
	moduleAddr = [20]byte{0xff}
	alice      = [20]byte{0x01}
	bob        = [20]byte{0x02}
)

func newTestEngine(state *mockState, policy Policy) *Engine {
	engine := NewEngine(moduleAddr, policy)
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return 1_000_000 })
	return engine
}

func fund(state *mockState, addr [20]byte, settle int64) {
	acc := (&types.Account{}).Normalize()
	acc.BalanceSettle = big.NewInt(settle)
	state.accounts[addr] = acc
}

func TestDepositFirstMintIsOneToOne(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, Policy{})
	fund(state, alice, 1_000)

	minted, err := engine.Deposit(alice, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if minted.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("minted = %s, want 1000", minted)
	}
	if got := state.st.ShareSupply; got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("share supply = %s, want 1000", got)
	}
	if got := state.accounts[moduleAddr].BalanceSettle; got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("module balance = %s, want 1000", got)
	}
	if got := state.accounts[alice].Shares; got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("alice shares = %s, want 1000", got)
	}
}

func TestDepositMintsProportionallyAfterAccrual(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, Policy{})
	fund(state, alice, 1_000)
	fund(state, bob, 110)

	if _, err := engine.Deposit(alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	// A loan accruing 10/day for 10 days raises NAV to 1100 before the
	// second deposit mints.
	start := int64(1_000_000)
	state.open = []OpenLoan{{ID: 1, LPFee: big.NewInt(100), DailyAccrual: big.NewInt(10), StartTime: start}}
	engine.SetNowFunc(func() int64 { return start + 10*DaySeconds })

	minted, err := engine.Deposit(bob, big.NewInt(110))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if minted.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("minted = %s, want 100", minted)
	}
}

func TestDepositRejectsBadAmounts(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, Policy{})
	fund(state, alice, 10)

	if _, err := engine.Deposit(alice, big.NewInt(0)); !errors.Is(err, errAmountNotPositive) {
		t.Fatalf("zero amount err = %v, want %v", err, errAmountNotPositive)
	}
	if _, err := engine.Deposit(alice, big.NewInt(100)); !errors.Is(err, errInsufficientFunds) {
		t.Fatalf("overdraft err = %v, want %v", err, errInsufficientFunds)
	}
}

func TestDepositRefusedWhenClaimBaseInsolvent(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, Policy{})
	// Outstanding claims whose backing was consumed by protocol revenue:
	// NAV clamps to zero while 100 shares remain.
	state.st.ShareSupply = big.NewInt(100)
	fund(state, moduleAddr, 100)
	state.st.TotalProtocolFees = big.NewInt(750)
	fund(state, bob, 50)

	if _, err := engine.Deposit(bob, big.NewInt(50)); !errors.Is(err, errVaultInsolvent) {
		t.Fatalf("insolvent deposit err = %v, want %v", err, errVaultInsolvent)
	}
	if got := state.accounts[bob].BalanceSettle; got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("bob balance = %s, want 50 untouched", got)
	}
	if got := state.st.ShareSupply; got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("share supply = %s, want 100 untouched", got)
	}
}

func TestNewEngineClampsBpsKnobs(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, Policy{BufferBps: 20_000, DailyRedemptionCapBps: 25_000})
	fund(state, alice, 1_000)

	if _, err := engine.Deposit(alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// An unclamped 20000 buffer would wrap the retained fraction into a huge
	// positive multiplier; clamped it retains everything.
	liquid, err := engine.AvailableLiquidity()
	if err != nil {
		t.Fatalf("liquidity: %v", err)
	}
	if liquid.Sign() != 0 {
		t.Fatalf("liquidity = %s, want 0", liquid)
	}
	if engine.policy.DailyRedemptionCapBps != 10_000 {
		t.Fatalf("cap bps = %d, want 10000", engine.policy.DailyRedemptionCapBps)
	}
}

func TestRequestRedemptionBurnsIntoPending(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, Policy{})
	fund(state, alice, 1_000)

	if _, err := engine.Deposit(alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	id, err := engine.RequestRedemption(alice, big.NewInt(400))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if id != 1 {
		t.Fatalf("request id = %d, want 1", id)
	}
	if got := state.st.ShareSupply; got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("share supply = %s, want 600", got)
	}
	if got := state.st.PendingShares; got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("pending shares = %s, want 400", got)
	}
	if got := state.accounts[alice].Shares; got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("alice shares = %s, want 600", got)
	}
	if got := state.accounts[alice].LifetimeBurned; got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("lifetime burned = %s, want 400", got)
	}

	if _, err := engine.RequestRedemption(alice, big.NewInt(700)); !errors.Is(err, errInsufficientShares) {
		t.Fatalf("overdraft err = %v, want %v", err, errInsufficientShares)
	}
}

func TestSharePriceStableAcrossRedemptionRequest(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, Policy{})
	fund(state, alice, 1_000_000)

	price, err := engine.SharePrice()
	if err != nil {
		t.Fatalf("price at zero supply: %v", err)
	}
	if price.Cmp(PriceScale) != 0 {
		t.Fatalf("initial price = %s, want %s", price, PriceScale)
	}

	if _, err := engine.Deposit(alice, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	before, _ := engine.SharePrice()
	if _, err := engine.RequestRedemption(alice, big.NewInt(300_000)); err != nil {
		t.Fatalf("request: %v", err)
	}
	after, _ := engine.SharePrice()
	if before.Cmp(after) != 0 {
		t.Fatalf("price moved on request: before %s, after %s", before, after)
	}
}

func TestProcessRedemptionsHonorsDailyCap(t *testing.T) {
	state := newMockState()
	// Cap = 12% of the claim base: 120 shares on a 1000-share day.
	engine := newTestEngine(state, Policy{DailyRedemptionCapBps: 1_200})
	fund(state, alice, 1_000)

	if _, err := engine.Deposit(alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	for _, shares := range []int64{100, 50, 200} {
		if _, err := engine.RequestRedemption(alice, big.NewInt(shares)); err != nil {
			t.Fatalf("request %d: %v", shares, err)
		}
	}

	paid, err := engine.ProcessRedemptions()
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	// Arrival order: 100 fits (100 <= 120), 50 would overflow (150 > 120),
	// 200 would overflow. Skipped requests stay queued.
	if paid != 1 {
		t.Fatalf("paid = %d, want 1", paid)
	}
	queue, _ := engine.PendingRedemptions()
	if len(queue) != 2 {
		t.Fatalf("remaining queue = %d, want 2", len(queue))
	}
	if got := state.accounts[alice].BalanceSettle; got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("alice payout = %s, want 100", got)
	}
	if got := state.st.PendingShares; got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("pending shares = %s, want 250", got)
	}

	// A second drain on the same day has no remaining budget for the
	// queued 50-share request.
	paid, err = engine.ProcessRedemptions()
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if paid != 0 {
		t.Fatalf("second drain paid = %d, want 0", paid)
	}

	// The next day snapshots a fresh budget and services the 50.
	engine.SetNowFunc(func() int64 { return 1_000_000 + DaySeconds })
	paid, err = engine.ProcessRedemptions()
	if err != nil {
		t.Fatalf("next-day process: %v", err)
	}
	if paid != 1 {
		t.Fatalf("next-day paid = %d, want 1", paid)
	}
}

func TestProcessRedemptionsBoundedByLiquidity(t *testing.T) {
	state := newMockState()
	// Buffer retains 90% of liquid NAV; only 100 of 1000 is payable.
	engine := newTestEngine(state, Policy{BufferBps: 9_000, DailyRedemptionCapBps: 10_000})
	fund(state, alice, 1_000)

	if _, err := engine.Deposit(alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := engine.RequestRedemption(alice, big.NewInt(200)); err != nil {
		t.Fatalf("request: %v", err)
	}

	paid, err := engine.ProcessRedemptions()
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if paid != 0 {
		t.Fatalf("paid = %d, want 0 (liquidity bound)", paid)
	}
	queue, _ := engine.PendingRedemptions()
	if len(queue) != 1 {
		t.Fatalf("queue = %d, want 1", len(queue))
	}
}

func TestProcessRedemptionsKeepsZeroPayoutQueued(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, Policy{DailyRedemptionCapBps: 10_000})
	fund(state, alice, 1_000)

	if _, err := engine.Deposit(alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := engine.RequestRedemption(alice, big.NewInt(100)); err != nil {
		t.Fatalf("request: %v", err)
	}
	// Wipe out NAV after the request is queued.
	state.st.TotalProtocolFees = big.NewInt(2_000)

	paid, err := engine.ProcessRedemptions()
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if paid != 0 {
		t.Fatalf("paid = %d, want 0", paid)
	}
	// The burned shares keep their claim instead of being consumed for a
	// zero payout.
	queue, _ := engine.PendingRedemptions()
	if len(queue) != 1 {
		t.Fatalf("queue = %d, want 1", len(queue))
	}
	if got := state.st.PendingShares; got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("pending shares = %s, want 100", got)
	}
	if got := state.accounts[moduleAddr].BalanceSettle; got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("module balance = %s, want 1000 untouched", got)
	}
}

func TestAccruedFeeIsCappedAtLPFee(t *testing.T) {
	loan := OpenLoan{LPFee: big.NewInt(90), DailyAccrual: big.NewInt(10), StartTime: 0}

	if got := accruedFee(loan, 5*DaySeconds); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("5 days = %s, want 50", got)
	}
	if got := accruedFee(loan, 20*DaySeconds); got.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("20 days = %s, want 90 (capped)", got)
	}
	if got := accruedFee(loan, DaySeconds/2); got.Sign() != 0 {
		t.Fatalf("partial day = %s, want 0", got)
	}
}

func TestRefreshAccrualIsIdempotent(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, Policy{})
	state.open = []OpenLoan{
		{ID: 1, LPFee: big.NewInt(100), DailyAccrual: big.NewInt(10), StartTime: 0},
		{ID: 2, LPFee: big.NewInt(30), DailyAccrual: big.NewInt(1), StartTime: 0},
	}

	now := 4 * DaySeconds
	if err := engine.RefreshAccrual(now); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	first := new(big.Int).Set(state.st.TotalAccruedFees)
	if first.Cmp(big.NewInt(44)) != 0 {
		t.Fatalf("accrued = %s, want 44", first)
	}
	if err := engine.RefreshAccrual(now); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if state.st.TotalAccruedFees.Cmp(first) != 0 {
		t.Fatalf("accrued drifted: %s -> %s", first, state.st.TotalAccruedFees)
	}
}

func TestNAVNeverNegative(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, Policy{})
	state.st.TotalProtocolFees = big.NewInt(500)

	nav, err := engine.NAV()
	if err != nil {
		t.Fatalf("nav: %v", err)
	}
	if nav.Sign() != 0 {
		t.Fatalf("nav = %s, want 0", nav)
	}
}

func TestAvailableLiquidityAppliesBuffer(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, Policy{BufferBps: 1_500})
	fund(state, alice, 1_000)
	if _, err := engine.Deposit(alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	liquid, err := engine.AvailableLiquidity()
	if err != nil {
		t.Fatalf("liquidity: %v", err)
	}
	if liquid.Cmp(big.NewInt(850)) != 0 {
		t.Fatalf("liquidity = %s, want 850", liquid)
	}
}
