package governance

import (
	"errors"
	"math/big"
	"testing"

	"creditvault/native/loans"
)

type mockState struct {
	roles     *Roles
	proposals map[uint64]*BorrowerProposal
	borrowers map[[20]byte]*loans.Borrower
	nextID    uint64
}

func newMockState() *mockState {
	return &mockState{
		roles:     &Roles{},
		proposals: make(map[uint64]*BorrowerProposal),
		borrowers: make(map[[20]byte]*loans.Borrower),
	}
}

func (m *mockState) RolesGet() (*Roles, error) { return m.roles, nil }

func (m *mockState) RolesPut(r *Roles) error { m.roles = r; return nil }

func (m *mockState) ProposalNextID() (uint64, error) { m.nextID++; return m.nextID, nil }

func (m *mockState) ProposalGet(id uint64) (*BorrowerProposal, bool, error) {
	p, ok := m.proposals[id]
	return p, ok, nil
}

func (m *mockState) ProposalPut(p *BorrowerProposal) error {
	m.proposals[p.ID] = p
	return nil
}

func (m *mockState) BorrowerGet(addr [20]byte) (*loans.Borrower, bool, error) {
	record, ok := m.borrowers[addr]
	return record, ok, nil
}

func (m *mockState) BorrowerPut(record *loans.Borrower) error {
	m.borrowers[record.Addr] = record
	return nil
}

type stubOp struct {
	target  string
	payload []byte
	eta     int64
}

type stubScheduler struct {
	ops    map[[32]byte]stubOp
	nonce  byte
	queued int
}

func newStubScheduler() *stubScheduler {
	return &stubScheduler{ops: make(map[[32]byte]stubOp)}
}

func (s *stubScheduler) Queue(target string, payload []byte, delay int64, now int64) ([32]byte, error) {
	s.nonce++
	id := [32]byte{s.nonce}
	s.ops[id] = stubOp{target: target, payload: payload, eta: now + delay}
	s.queued++
	return id, nil
}

func (s *stubScheduler) Execute(id [32]byte, now int64) (string, []byte, error) {
	op, ok := s.ops[id]
	if !ok {
		return "", nil, errors.New("stub: unknown operation")
	}
	if now < op.eta {
		return "", nil, errors.New("stub: not ready")
	}
	delete(s.ops, id)
	return op.target, op.payload, nil
}

func (s *stubScheduler) Cancel(id [32]byte) error {
	delete(s.ops, id)
	return nil
}

var (
	ownerAddr = [20]byte{0x01}
	gov1      = [20]byte{0x02}
	gov2      = [20]byte{0x03}
	gov3      = [20]byte{0x04}
	adminAddr = [20]byte{0x05}
	candidate = [20]byte{0x06}
	outsider  = [20]byte{0x07}
)

func newTestEngine(state *mockState) (*Engine, *stubScheduler) {
	state.roles.Owner = ownerAddr
	engine := NewEngine(Policy{ApprovalThreshold: 2, DelaySeconds: 2 * 86_400})
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return 1_000_000 })
	scheduler := newStubScheduler()
	if err := engine.SetScheduler(ownerAddr, scheduler); err != nil {
		panic(err)
	}
	return engine, scheduler
}

func TestInitializeGovernorOwnerOnlyAndOnce(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)

	if err := engine.InitializeGovernor(outsider, gov1); !errors.Is(err, errNotOwner) {
		t.Fatalf("outsider err = %v, want %v", err, errNotOwner)
	}
	if err := engine.InitializeGovernor(ownerAddr, gov1); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.InitializeGovernor(ownerAddr, gov2); !errors.Is(err, errGovernorsExist) {
		t.Fatalf("second init err = %v, want %v", err, errGovernorsExist)
	}
}

func TestGovernorSetManagement(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)

	if err := engine.InitializeGovernor(ownerAddr, gov1); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.AddGovernor(outsider, gov2); !errors.Is(err, errNotGovernor) {
		t.Fatalf("outsider add err = %v, want %v", err, errNotGovernor)
	}
	if err := engine.AddGovernor(gov1, gov2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := engine.AddGovernor(gov1, gov2); !errors.Is(err, errAlreadyMember) {
		t.Fatalf("duplicate add err = %v, want %v", err, errAlreadyMember)
	}
	if err := engine.RemoveGovernor(gov1, gov2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// gov1 is now the last governor and cannot be removed, even by itself.
	if err := engine.RemoveGovernor(gov1, gov1); !errors.Is(err, errLastGovernor) {
		t.Fatalf("last governor err = %v, want %v", err, errLastGovernor)
	}
}

func TestAdminSetOwnerOnly(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)

	if err := engine.AddAdmin(outsider, adminAddr); !errors.Is(err, errNotOwner) {
		t.Fatalf("outsider add err = %v, want %v", err, errNotOwner)
	}
	if err := engine.AddAdmin(ownerAddr, adminAddr); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if ok, _ := engine.IsAdmin(adminAddr); !ok {
		t.Fatal("admin not recognized")
	}
	if ok, _ := engine.IsAdmin(ownerAddr); !ok {
		t.Fatal("owner should pass the admin check")
	}
	if err := engine.RemoveAdmin(ownerAddr, adminAddr); err != nil {
		t.Fatalf("remove admin: %v", err)
	}
	if ok, _ := engine.IsAdmin(adminAddr); ok {
		t.Fatal("removed admin still recognized")
	}
}

func TestDirectApprovalWritesRegistry(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	if err := engine.AddAdmin(ownerAddr, adminAddr); err != nil {
		t.Fatalf("add admin: %v", err)
	}

	if err := engine.ApproveBorrower(outsider, candidate, big.NewInt(5_000), 800, 200); !errors.Is(err, errNotAdminOrOwner) {
		t.Fatalf("outsider err = %v, want %v", err, errNotAdminOrOwner)
	}
	if err := engine.ApproveBorrower(adminAddr, candidate, big.NewInt(5_000), 800, 200); err != nil {
		t.Fatalf("approve: %v", err)
	}
	record := state.borrowers[candidate]
	if record == nil || !record.Approved {
		t.Fatal("candidate not approved")
	}
	if record.BorrowLimit.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("limit = %s, want 5000", record.BorrowLimit)
	}
	if record.LPYieldRateBps != 800 || record.ProtocolFeeRateBps != 200 {
		t.Fatalf("rates = (%d, %d), want (800, 200)", record.LPYieldRateBps, record.ProtocolFeeRateBps)
	}
}

func TestApprovalTermsValidated(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)

	if err := engine.ApproveBorrower(ownerAddr, candidate, big.NewInt(0), 800, 200); !errors.Is(err, errLimitNotPositive) {
		t.Fatalf("zero limit err = %v, want %v", err, errLimitNotPositive)
	}
	if err := engine.ApproveBorrower(ownerAddr, candidate, big.NewInt(100), 10_001, 200); !errors.Is(err, errRateOutOfRange) {
		t.Fatalf("rate err = %v, want %v", err, errRateOutOfRange)
	}
}

func TestProposalFlowThresholdAndDelay(t *testing.T) {
	state := newMockState()
	engine, scheduler := newTestEngine(state)
	if err := engine.InitializeGovernor(ownerAddr, gov1); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.AddGovernor(gov1, gov2); err != nil {
		t.Fatalf("add governor: %v", err)
	}

	if _, err := engine.ProposeBorrower(outsider, candidate, big.NewInt(5_000), 800, 200); !errors.Is(err, errNotGovernor) {
		t.Fatalf("outsider propose err = %v, want %v", err, errNotGovernor)
	}
	id, err := engine.ProposeBorrower(gov1, candidate, big.NewInt(5_000), 800, 200)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	// Proposer's vote counts; the same governor cannot vote again.
	if err := engine.ApproveProposal(gov1, id); !errors.Is(err, errAlreadyVoted) {
		t.Fatalf("revote err = %v, want %v", err, errAlreadyVoted)
	}
	if scheduler.queued != 0 {
		t.Fatal("scheduled before threshold")
	}

	if err := engine.ApproveProposal(gov2, id); err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if scheduler.queued != 1 {
		t.Fatal("threshold vote did not schedule")
	}
	proposal := state.proposals[id]
	if !proposal.Scheduled {
		t.Fatal("proposal not marked scheduled")
	}
	if proposal.Eta != 1_000_000+2*86_400 {
		t.Fatalf("eta = %d, want %d", proposal.Eta, 1_000_000+2*86_400)
	}

	// Approvals after scheduling are rejected.
	if err := engine.AddGovernor(gov1, gov3); err != nil {
		t.Fatalf("add governor: %v", err)
	}
	if err := engine.ApproveProposal(gov3, id); !errors.Is(err, errAlreadyScheduled) {
		t.Fatalf("late vote err = %v, want %v", err, errAlreadyScheduled)
	}

	// Execution before the delay fails; the registry stays untouched.
	if err := engine.ExecuteProposal(id); !errors.Is(err, errDelayNotElapsed) {
		t.Fatalf("early exec err = %v, want %v", err, errDelayNotElapsed)
	}
	if _, ok := state.borrowers[candidate]; ok {
		t.Fatal("registry written before delay elapsed")
	}

	engine.SetNowFunc(func() int64 { return 1_000_000 + 2*86_400 })
	if err := engine.ExecuteProposal(id); err != nil {
		t.Fatalf("execute: %v", err)
	}
	record := state.borrowers[candidate]
	if record == nil || !record.Approved {
		t.Fatal("candidate not approved after execution")
	}
	if !state.proposals[id].Executed {
		t.Fatal("proposal not marked executed")
	}

	if err := engine.ExecuteProposal(id); !errors.Is(err, errAlreadyExecuted) {
		t.Fatalf("double exec err = %v, want %v", err, errAlreadyExecuted)
	}
}

func TestExecuteUnscheduledProposalFails(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	if err := engine.InitializeGovernor(ownerAddr, gov1); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	id, err := engine.ProposeBorrower(gov1, candidate, big.NewInt(5_000), 800, 200)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := engine.ExecuteProposal(id); !errors.Is(err, errNotScheduled) {
		t.Fatalf("exec err = %v, want %v", err, errNotScheduled)
	}
}

func TestSetSchedulerOwnerOnlyAndOnce(t *testing.T) {
	state := newMockState()
	state.roles.Owner = ownerAddr
	engine := NewEngine(Policy{})
	engine.SetState(state)

	if err := engine.SetScheduler(outsider, newStubScheduler()); !errors.Is(err, errNotOwner) {
		t.Fatalf("outsider err = %v, want %v", err, errNotOwner)
	}
	if err := engine.SetScheduler(ownerAddr, newStubScheduler()); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := engine.SetScheduler(ownerAddr, newStubScheduler()); !errors.Is(err, errSchedulerSet) {
		t.Fatalf("second set err = %v, want %v", err, errSchedulerSet)
	}
}
