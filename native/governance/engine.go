package governance

import (
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"creditvault/core/events"
	"creditvault/core/types"
	"creditvault/native/loans"
)

// TargetApproveBorrower is the scheduler target for governed borrower
// approvals.
const TargetApproveBorrower = "loans.approve_borrower"

var (
	errNilState         = errors.New("governance engine: state not configured")
	errNilScheduler     = errors.New("governance engine: delay scheduler not configured")
	errSchedulerSet     = errors.New("governance engine: delay scheduler already configured")
	errNotOwner         = errors.New("governance engine: caller is not the owner")
	errNotAdminOrOwner  = errors.New("governance engine: caller is neither owner nor admin")
	errNotGovernor      = errors.New("governance engine: caller is not a governor")
	errGovernorsExist   = errors.New("governance engine: governor set already initialized")
	errAlreadyMember    = errors.New("governance engine: address already holds the role")
	errNotMember        = errors.New("governance engine: address does not hold the role")
	errLastGovernor     = errors.New("governance engine: cannot remove the last governor")
	errLimitNotPositive = errors.New("governance engine: borrow limit must be positive")
	errRateOutOfRange   = errors.New("governance engine: fee rate exceeds 10000 bps")
	errProposalNotFound = errors.New("governance engine: proposal not found")
	errAlreadyVoted     = errors.New("governance engine: governor already approved this proposal")
	errAlreadyScheduled = errors.New("governance engine: proposal already scheduled")
	errNotScheduled     = errors.New("governance engine: proposal has not met the approval threshold")
	errAlreadyExecuted  = errors.New("governance engine: proposal already executed")
	errDelayNotElapsed  = errors.New("governance engine: timelock delay not yet elapsed")
	errPayloadMismatch  = errors.New("governance engine: scheduler returned an unexpected operation")
)

type engineState interface {
	RolesGet() (*Roles, error)
	RolesPut(*Roles) error
	ProposalNextID() (uint64, error)
	ProposalGet(id uint64) (*BorrowerProposal, bool, error)
	ProposalPut(*BorrowerProposal) error
	BorrowerGet(addr [20]byte) (*loans.Borrower, bool, error)
	BorrowerPut(*loans.Borrower) error
}

// Scheduler is the external delay mechanism consumed by the governed
// approval path. The engine only calls into it; execution environment and
// persistence of queued operations are the scheduler's concern.
type Scheduler interface {
	Queue(target string, payload []byte, delay int64, now int64) ([32]byte, error)
	Execute(id [32]byte, now int64) (target string, payload []byte, err error)
	Cancel(id [32]byte) error
}

// Policy carries the governed-approval knobs.
type Policy struct {
	ApprovalThreshold uint64
	DelaySeconds      int64
}

// DefaultPolicy is two distinct governor approvals and a two-day delay.
func DefaultPolicy() Policy {
	return Policy{ApprovalThreshold: 2, DelaySeconds: 2 * 86_400}
}

// Engine enforces the layered authorization model and runs the
// threshold-plus-delay borrower onboarding flow.
type Engine struct {
	state     engineState
	scheduler Scheduler
	policy    Policy
	emitter   events.Emitter
	nowFn     func() int64
}

// NewEngine constructs a governance engine with the given policy. Zero
// policy fields fall back to the defaults.
func NewEngine(policy Policy) *Engine {
	if policy.ApprovalThreshold == 0 {
		policy.ApprovalThreshold = DefaultPolicy().ApprovalThreshold
	}
	if policy.DelaySeconds <= 0 {
		policy.DelaySeconds = DefaultPolicy().DelaySeconds
	}
	return &Engine{
		policy:  policy,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetScheduler installs the delay scheduler. The owner may do this exactly
// once.
func (e *Engine) SetScheduler(caller [20]byte, scheduler Scheduler) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	roles, err := e.loadRoles()
	if err != nil {
		return err
	}
	if !roles.IsOwner(caller) {
		return errNotOwner
	}
	if e.scheduler != nil {
		return errSchedulerSet
	}
	if scheduler == nil {
		return errNilScheduler
	}
	e.scheduler = scheduler
	return nil
}

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
	e.emitter.Emit(governanceEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// --- Role management ---

// InitializeGovernor installs the first governor. Owner only, and only
// while the governor set is empty; later additions go through governors.
func (e *Engine) InitializeGovernor(caller, governor [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	roles, err := e.loadRoles()
	if err != nil {
		return err
	}
	if !roles.IsOwner(caller) {
		return errNotOwner
	}
	if len(roles.Governors) > 0 {
		return errGovernorsExist
	}
	roles.Governors = [][20]byte{governor}
	if err := e.state.RolesPut(roles); err != nil {
		return err
	}
	e.emit(newRoleEvent("governor", governor, true))
	return nil
}

// AddGovernor appends to the governor set. Requires an existing governor.
func (e *Engine) AddGovernor(caller, governor [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	roles, err := e.loadRoles()
	if err != nil {
		return err
	}
	if !roles.IsGovernor(caller) {
		return errNotGovernor
	}
	if roles.IsGovernor(governor) {
		return errAlreadyMember
	}
	roles.Governors = append(roles.Governors, governor)
	if err := e.state.RolesPut(roles); err != nil {
		return err
	}
	e.emit(newRoleEvent("governor", governor, true))
	return nil
}

// RemoveGovernor drops a governor. The last governor can never be removed,
// including by itself.
func (e *Engine) RemoveGovernor(caller, governor [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	roles, err := e.loadRoles()
	if err != nil {
		return err
	}
	if !roles.IsGovernor(caller) {
		return errNotGovernor
	}
	if !roles.IsGovernor(governor) {
		return errNotMember
	}
	if len(roles.Governors) <= 1 {
		return errLastGovernor
	}
	roles.Governors = remove(roles.Governors, governor)
	if err := e.state.RolesPut(roles); err != nil {
		return err
	}
	e.emit(newRoleEvent("governor", governor, false))
	return nil
}

// AddAdmin appends to the admin set. Owner only.
func (e *Engine) AddAdmin(caller, admin [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	roles, err := e.loadRoles()
	if err != nil {
		return err
	}
	if !roles.IsOwner(caller) {
		return errNotOwner
	}
	if roles.IsAdmin(admin) {
		return errAlreadyMember
	}
	roles.Admins = append(roles.Admins, admin)
	if err := e.state.RolesPut(roles); err != nil {
		return err
	}
	e.emit(newRoleEvent("admin", admin, true))
	return nil
}

// RemoveAdmin drops an admin. Owner only.
func (e *Engine) RemoveAdmin(caller, admin [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	roles, err := e.loadRoles()
	if err != nil {
		return err
	}
	if !roles.IsOwner(caller) {
		return errNotOwner
	}
	if !roles.IsAdmin(admin) {
		return errNotMember
	}
	roles.Admins = remove(roles.Admins, admin)
	if err := e.state.RolesPut(roles); err != nil {
		return err
	}
	e.emit(newRoleEvent("admin", admin, false))
	return nil
}

// IsAdmin implements the loans engine's role view.
func (e *Engine) IsAdmin(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	roles, err := e.loadRoles()
	if err != nil {
		return false, err
	}
	return roles.IsAdmin(addr) || roles.IsOwner(addr), nil
}

// Roles returns the stored role registry.
func (e *Engine) Roles() (*Roles, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadRoles()
}

// --- Borrower approval ---

// ApproveBorrower is the direct path: owner or admin writes the borrower
// registry immediately, bypassing the proposal flow.
func (e *Engine) ApproveBorrower(caller, candidate [20]byte, limit *big.Int, lpYieldRateBps, protocolFeeRateBps uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	roles, err := e.loadRoles()
	if err != nil {
		return err
	}
	if !roles.IsOwner(caller) && !roles.IsAdmin(caller) {
		return errNotAdminOrOwner
	}
	return e.applyApproval(candidate, limit, lpYieldRateBps, protocolFeeRateBps)
}

// ProposeBorrower opens a governed approval with the proposer's vote
// already recorded.
func (e *Engine) ProposeBorrower(caller, candidate [20]byte, limit *big.Int, lpYieldRateBps, protocolFeeRateBps uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	roles, err := e.loadRoles()
	if err != nil {
		return 0, err
	}
	if !roles.IsGovernor(caller) {
		return 0, errNotGovernor
	}
	if err := validateTerms(limit, lpYieldRateBps, protocolFeeRateBps); err != nil {
		return 0, err
	}
	id, err := e.state.ProposalNextID()
	if err != nil {
		return 0, err
	}
	proposal := &BorrowerProposal{
		ID:                 id,
		Proposer:           caller,
		Candidate:          candidate,
		BorrowLimit:        new(big.Int).Set(limit),
		LPYieldRateBps:     lpYieldRateBps,
		ProtocolFeeRateBps: protocolFeeRateBps,
		Approvals:          [][20]byte{caller},
		ProposedAt:         e.now(),
	}
	if err := e.state.ProposalPut(proposal); err != nil {
		return 0, err
	}
	e.emit(newProposedEvent(proposal))
	return id, nil
}

// ApproveProposal records one governor vote. Reaching the threshold
// schedules the approval with the delay scheduler.
func (e *Engine) ApproveProposal(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	roles, err := e.loadRoles()
	if err != nil {
		return err
	}
	if !roles.IsGovernor(caller) {
		return errNotGovernor
	}
	proposal, ok, err := e.state.ProposalGet(id)
	if err != nil {
		return err
	}
	if !ok || proposal == nil {
		return errProposalNotFound
	}
	if proposal.Executed {
		return errAlreadyExecuted
	}
	if proposal.Scheduled {
		return errAlreadyScheduled
	}
	if proposal.HasApproval(caller) {
		return errAlreadyVoted
	}
	proposal.Approvals = append(proposal.Approvals, caller)

	if uint64(len(proposal.Approvals)) >= e.policy.ApprovalThreshold {
		if e.scheduler == nil {
			return errNilScheduler
		}
		payload, err := json.Marshal(approvalPayload{
			Candidate:          proposal.Candidate,
			BorrowLimit:        proposal.BorrowLimit,
			LPYieldRateBps:     proposal.LPYieldRateBps,
			ProtocolFeeRateBps: proposal.ProtocolFeeRateBps,
		})
		if err != nil {
			return err
		}
		now := e.now()
		opID, err := e.scheduler.Queue(TargetApproveBorrower, payload, e.policy.DelaySeconds, now)
		if err != nil {
			return err
		}
		proposal.Scheduled = true
		proposal.ScheduledAt = now
		proposal.Eta = now + e.policy.DelaySeconds
		proposal.OperationID = opID
		e.emit(newScheduledEvent(proposal))
	}

	if err := e.state.ProposalPut(proposal); err != nil {
		return err
	}
	e.emit(newApprovedEvent(proposal, caller))
	return nil
}

// ExecuteProposal applies a scheduled approval once its delay has elapsed.
// Anyone may call; the scheduler enforces single execution.
func (e *Engine) ExecuteProposal(id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	proposal, ok, err := e.state.ProposalGet(id)
	if err != nil {
		return err
	}
	if !ok || proposal == nil {
		return errProposalNotFound
	}
	if proposal.Executed {
		return errAlreadyExecuted
	}
	if !proposal.Scheduled {
		return errNotScheduled
	}
	now := e.now()
	if now < proposal.Eta {
		return errDelayNotElapsed
	}
	if e.scheduler == nil {
		return errNilScheduler
	}
	target, payload, err := e.scheduler.Execute(proposal.OperationID, now)
	if err != nil {
		return err
	}
	if target != TargetApproveBorrower {
		return errPayloadMismatch
	}
	var approval approvalPayload
	if err := json.Unmarshal(payload, &approval); err != nil {
		return err
	}
	if err := e.applyApproval(approval.Candidate, approval.BorrowLimit, approval.LPYieldRateBps, approval.ProtocolFeeRateBps); err != nil {
		return err
	}
	proposal.Executed = true
	if err := e.state.ProposalPut(proposal); err != nil {
		return err
	}
	e.emit(newExecutedEvent(proposal))
	return nil
}

// Proposal returns the stored proposal record.
func (e *Engine) Proposal(id uint64) (*BorrowerProposal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	proposal, ok, err := e.state.ProposalGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errProposalNotFound
	}
	return proposal, nil
}

func (e *Engine) applyApproval(candidate [20]byte, limit *big.Int, lpYieldRateBps, protocolFeeRateBps uint64) error {
	if err := validateTerms(limit, lpYieldRateBps, protocolFeeRateBps); err != nil {
		return err
	}
	record, ok, err := e.state.BorrowerGet(candidate)
	if err != nil {
		return err
	}
	if !ok || record == nil {
		record = &Borrower{Addr: candidate}
	}
	record.Normalize()
	record.Approved = true
	record.BorrowLimit = new(big.Int).Set(limit)
	record.LPYieldRateBps = lpYieldRateBps
	record.ProtocolFeeRateBps = protocolFeeRateBps
	if err := e.state.BorrowerPut(record); err != nil {
		return err
	}
	e.emit(newBorrowerApprovedEvent(candidate, limit))
	return nil
}

func validateTerms(limit *big.Int, lpYieldRateBps, protocolFeeRateBps uint64) error {
	if limit == nil || limit.Sign() <= 0 {
		return errLimitNotPositive
	}
	if lpYieldRateBps > 10_000 || protocolFeeRateBps > 10_000 {
		return errRateOutOfRange
	}
	return nil
}

func (e *Engine) loadRoles() (*Roles, error) {
	roles, err := e.state.RolesGet()
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = &Roles{}
	}
	return roles, nil
}

// Borrower aliases the loans registry record to keep the state interface
// narrow on this side.
type Borrower = loans.Borrower
