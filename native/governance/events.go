package governance

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"creditvault/core/types"
)

const (
	// EventTypeProposed is emitted when a governor opens a borrower proposal.
	EventTypeProposed = "gov.proposed"
	// EventTypeApproved records a single governor vote.
	EventTypeApproved = "gov.approved"
	// EventTypeScheduled marks the proposal queued with the delay scheduler.
	EventTypeScheduled = "gov.scheduled"
	// EventTypeExecuted marks a scheduled proposal applied.
	EventTypeExecuted = "gov.executed"
	// EventTypeRoleUpdated records an owner, admin, or governor set change.
	EventTypeRoleUpdated = "gov.role_updated"
	// EventTypeBorrowerApproved records a write to the borrower registry.
	EventTypeBorrowerApproved = "gov.borrower_approved"
)

type governanceEvent struct {
	evt *types.Event
}

func (g governanceEvent) EventType() string {
	if g.evt == nil {
		return ""
	}
	return g.evt.Type
}

func (g governanceEvent) Event() *types.Event { return g.evt }

func newRoleEvent(role string, addr [20]byte, granted bool) *types.Event {
	return &types.Event{Type: EventTypeRoleUpdated, Attributes: map[string]string{
		"role":    role,
		"address": hex.EncodeToString(addr[:]),
		"granted": strconv.FormatBool(granted),
	}}
}

func newProposedEvent(p *BorrowerProposal) *types.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["id"] = strconv.FormatUint(p.ID, 10)
		attrs["proposer"] = hex.EncodeToString(p.Proposer[:])
		attrs["candidate"] = hex.EncodeToString(p.Candidate[:])
		if p.BorrowLimit != nil {
			attrs["borrowLimit"] = p.BorrowLimit.String()
		}
	}
	return &types.Event{Type: EventTypeProposed, Attributes: attrs}
}

func newApprovedEvent(p *BorrowerProposal, voter [20]byte) *types.Event {
	attrs := map[string]string{
		"voter": hex.EncodeToString(voter[:]),
	}
	if p != nil {
		attrs["id"] = strconv.FormatUint(p.ID, 10)
		attrs["approvals"] = strconv.Itoa(len(p.Approvals))
	}
	return &types.Event{Type: EventTypeApproved, Attributes: attrs}
}

func newScheduledEvent(p *BorrowerProposal) *types.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["id"] = strconv.FormatUint(p.ID, 10)
		attrs["eta"] = strconv.FormatInt(p.Eta, 10)
		attrs["operation"] = hex.EncodeToString(p.OperationID[:])
	}
	return &types.Event{Type: EventTypeScheduled, Attributes: attrs}
}

func newExecutedEvent(p *BorrowerProposal) *types.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["id"] = strconv.FormatUint(p.ID, 10)
		attrs["candidate"] = hex.EncodeToString(p.Candidate[:])
	}
	return &types.Event{Type: EventTypeExecuted, Attributes: attrs}
}

func newBorrowerApprovedEvent(candidate [20]byte, limit *big.Int) *types.Event {
	attrs := map[string]string{
		"candidate": hex.EncodeToString(candidate[:]),
	}
	if limit != nil {
		attrs["borrowLimit"] = limit.String()
	}
	return &types.Event{Type: EventTypeBorrowerApproved, Attributes: attrs}
}
