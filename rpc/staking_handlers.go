package rpc

import (
	"net/http"

	"creditvault/state"
)

type stakingStakeParams struct {
	Owner    string `json:"owner"`
	Amount   string `json:"amount"`
	LockDays uint64 `json:"lockDays"`
}

type stakingUnstakeParams struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

type stakingPositionParams struct {
	Owner string `json:"owner"`
}

type stakingPositionResult struct {
	Owner          string `json:"owner"`
	Amount         string `json:"amount"`
	LockDays       uint64 `json:"lockDays"`
	LockEnd        int64  `json:"lockEnd"`
	MultiplierBps  uint64 `json:"multiplierBps"`
	PendingRewards string `json:"pendingRewards"`
}

type stakingTotalsResult struct {
	TotalStaked   string `json:"totalStaked"`
	TotalWeighted string `json:"totalWeighted"`
}

func (s *Server) handleStakingStake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakingStakeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	err = s.withTxn(func(txn *state.Txn) error {
		return s.staking.Stake(owner, amount, params.LockDays)
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"staked": true})
}

func (s *Server) handleStakingUnstake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakingUnstakeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	err = s.withTxn(func(txn *state.Txn) error {
		return s.staking.Unstake(owner, amount)
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"unstaked": true})
}

func (s *Server) handleStakingGetPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakingPositionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	var result stakingPositionResult
	err = s.withTxn(func(txn *state.Txn) error {
		pos, innerErr := s.staking.Position(owner)
		if innerErr != nil {
			return innerErr
		}
		result = stakingPositionResult{
			Owner:          addrHex(pos.Owner),
			Amount:         bigString(pos.Amount),
			LockDays:       pos.LockDays,
			LockEnd:        pos.LockEnd,
			MultiplierBps:  pos.MultiplierBps,
			PendingRewards: bigString(pos.PendingRewards),
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleStakingTotals(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var result stakingTotalsResult
	err := s.withTxn(func(txn *state.Txn) error {
		totals, innerErr := s.staking.Totals()
		if innerErr != nil {
			return innerErr
		}
		result = stakingTotalsResult{
			TotalStaked:   bigString(totals.TotalStaked),
			TotalWeighted: bigString(totals.TotalWeighted),
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}
