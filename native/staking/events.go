package staking

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"creditvault/core/types"
)

const (
	// EventTypeStaked is emitted when reward asset is locked.
	EventTypeStaked = "staking.staked"
	// EventTypeUnstaked is emitted when reward asset is released.
	EventTypeUnstaked = "staking.unstaked"
)

type stakingEvent struct {
	evt *types.Event
}

func (s stakingEvent) EventType() string {
	if s.evt == nil {
		return ""
	}
	return s.evt.Type
}

func (s stakingEvent) Event() *types.Event { return s.evt }

func newStakedEvent(owner [20]byte, amount *big.Int, lockDays uint64, lockEnd int64) *types.Event {
	attrs := map[string]string{
		"owner":    hex.EncodeToString(owner[:]),
		"lockDays": strconv.FormatUint(lockDays, 10),
		"lockEnd":  strconv.FormatInt(lockEnd, 10),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeStaked, Attributes: attrs}
}

func newUnstakedEvent(owner [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"owner": hex.EncodeToString(owner[:]),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeUnstaked, Attributes: attrs}
}
