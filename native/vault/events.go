package vault

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"creditvault/core/types"
)

const (
	// EventTypeDeposited is emitted when a deposit mints claim tokens.
	EventTypeDeposited = "vault.deposited"
	// EventTypeRedemptionRequested marks shares burned into the queue.
	EventTypeRedemptionRequested = "vault.redemption_requested"
	// EventTypeRedemptionPaid marks a queued request paid out and removed.
	EventTypeRedemptionPaid = "vault.redemption_paid"
)

type vaultEvent struct {
	evt *types.Event
}

func (v vaultEvent) EventType() string {
	if v.evt == nil {
		return ""
	}
	return v.evt.Type
}

func (v vaultEvent) Event() *types.Event { return v.evt }

func newDepositedEvent(from [20]byte, amount, minted *big.Int) *types.Event {
	attrs := map[string]string{
		"depositor": hex.EncodeToString(from[:]),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	if minted != nil {
		attrs["minted"] = minted.String()
	}
	return &types.Event{Type: EventTypeDeposited, Attributes: attrs}
}

func newRedemptionRequestedEvent(req *RedemptionRequest) *types.Event {
	attrs := make(map[string]string)
	if req != nil {
		attrs["id"] = strconv.FormatUint(req.ID, 10)
		attrs["requester"] = hex.EncodeToString(req.Requester[:])
		if req.Shares != nil {
			attrs["shares"] = req.Shares.String()
		}
		attrs["requestedAt"] = strconv.FormatInt(req.RequestedAt, 10)
	}
	return &types.Event{Type: EventTypeRedemptionRequested, Attributes: attrs}
}

func newRedemptionPaidEvent(req *RedemptionRequest, payout *big.Int) *types.Event {
	attrs := make(map[string]string)
	if req != nil {
		attrs["id"] = strconv.FormatUint(req.ID, 10)
		attrs["requester"] = hex.EncodeToString(req.Requester[:])
		if req.Shares != nil {
			attrs["shares"] = req.Shares.String()
		}
	}
	if payout != nil {
		attrs["payout"] = payout.String()
	}
	return &types.Event{Type: EventTypeRedemptionPaid, Attributes: attrs}
}
