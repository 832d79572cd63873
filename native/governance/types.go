package governance

import "math/big"

// Roles is the layered authorization model: a single immutable owner, an
// admin set, and a governor set. The owner is fixed at genesis.
type Roles struct {
	Owner     [20]byte   `json:"owner"`
	Admins    [][20]byte `json:"admins"`
	Governors [][20]byte `json:"governors"`
}

// IsOwner reports whether addr is the authority origin.
func (r *Roles) IsOwner(addr [20]byte) bool {
	return r != nil && r.Owner == addr
}

// IsAdmin reports whether addr holds the admin role.
func (r *Roles) IsAdmin(addr [20]byte) bool {
	return r != nil && contains(r.Admins, addr)
}

// IsGovernor reports whether addr holds the governor role.
func (r *Roles) IsGovernor(addr [20]byte) bool {
	return r != nil && contains(r.Governors, addr)
}

func contains(set [][20]byte, addr [20]byte) bool {
	for _, member := range set {
		if member == addr {
			return true
		}
	}
	return false
}

func remove(set [][20]byte, addr [20]byte) [][20]byte {
	out := make([][20]byte, 0, len(set))
	for _, member := range set {
		if member != addr {
			out = append(out, member)
		}
	}
	return out
}

// BorrowerProposal is a governed borrower approval in flight. It moves
// pending -> scheduled (threshold met) -> executed and never mutates after
// execution.
type BorrowerProposal struct {
	ID                 uint64     `json:"id"`
	Proposer           [20]byte   `json:"proposer"`
	Candidate          [20]byte   `json:"candidate"`
	BorrowLimit        *big.Int   `json:"borrowLimit"`
	LPYieldRateBps     uint64     `json:"lpYieldRateBps"`
	ProtocolFeeRateBps uint64     `json:"protocolFeeRateBps"`
	Approvals          [][20]byte `json:"approvals"`
	ProposedAt         int64      `json:"proposedAt"`
	Scheduled          bool       `json:"scheduled"`
	ScheduledAt        int64      `json:"scheduledAt"`
	Eta                int64      `json:"eta"`
	OperationID        [32]byte   `json:"operationId"`
	Executed           bool       `json:"executed"`
}

// HasApproval reports whether the governor already voted on the proposal.
func (p *BorrowerProposal) HasApproval(governor [20]byte) bool {
	return p != nil && contains(p.Approvals, governor)
}

// approvalPayload is the scheduler payload for a governed borrower approval.
type approvalPayload struct {
	Candidate          [20]byte `json:"candidate"`
	BorrowLimit        *big.Int `json:"borrowLimit"`
	LPYieldRateBps     uint64   `json:"lpYieldRateBps"`
	ProtocolFeeRateBps uint64   `json:"protocolFeeRateBps"`
}
