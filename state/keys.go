package state

import (
	"encoding/hex"
	"strconv"
)

const (
	keyVaultState    = "vault/state"
	keyRedeemQueue   = "vault/redeem/queue"
	keyRedeemNext    = "vault/redeem/next"
	keyLoanNext      = "loans/next"
	keyLoanActive    = "loans/active"
	keyStakeGlobal   = "staking/global"
	keyRoles         = "gov/roles"
	keyProposalNext  = "gov/next"
	keyTimelockNonce = "timelock/nonce"
)

func accountKey(addr [20]byte) string {
	return "acct/" + hex.EncodeToString(addr[:])
}

func redemptionKey(id uint64) string {
	return "vault/redeem/req/" + strconv.FormatUint(id, 10)
}

func redemptionDayKey(day string) string {
	return "vault/redeem/day/" + day
}

func loanKey(id uint64) string {
	return "loans/loan/" + strconv.FormatUint(id, 10)
}

func borrowerKey(addr [20]byte) string {
	return "loans/borrower/" + hex.EncodeToString(addr[:])
}

func stakeKey(addr [20]byte) string {
	return "staking/pos/" + hex.EncodeToString(addr[:])
}

func proposalKey(id uint64) string {
	return "gov/proposal/" + strconv.FormatUint(id, 10)
}

func timelockKey(id [32]byte) string {
	return "timelock/op/" + hex.EncodeToString(id[:])
}
