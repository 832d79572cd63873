package rpc

import (
	"encoding/hex"
	"net/http"

	"creditvault/state"
)

type govRoleParams struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

type govApproveBorrowerParams struct {
	Caller             string `json:"caller"`
	Candidate          string `json:"candidate"`
	BorrowLimit        string `json:"borrowLimit"`
	LPYieldRateBps     uint64 `json:"lpYieldRateBps"`
	ProtocolFeeRateBps uint64 `json:"protocolFeeRateBps"`
}

type govProposalIDParams struct {
	Caller     string `json:"caller,omitempty"`
	ProposalID uint64 `json:"proposalId"`
}

type govProposalResult struct {
	ID                 uint64   `json:"id"`
	Proposer           string   `json:"proposer"`
	Candidate          string   `json:"candidate"`
	BorrowLimit        string   `json:"borrowLimit"`
	LPYieldRateBps     uint64   `json:"lpYieldRateBps"`
	ProtocolFeeRateBps uint64   `json:"protocolFeeRateBps"`
	Approvals          []string `json:"approvals"`
	ProposedAt         int64    `json:"proposedAt"`
	Scheduled          bool     `json:"scheduled"`
	Eta                int64    `json:"eta,omitempty"`
	OperationID        string   `json:"operationId,omitempty"`
	Executed           bool     `json:"executed"`
}

type govRolesResult struct {
	Owner     string   `json:"owner"`
	Admins    []string `json:"admins"`
	Governors []string `json:"governors"`
}

func (s *Server) roleHandler(apply func(caller, addr [20]byte) error) handlerFunc {
	return func(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
		var params govRoleParams
		if err := decodeParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
			return
		}
		caller, err := parseAddress(params.Caller)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
			return
		}
		addr, err := parseAddress(params.Address)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
			return
		}
		if err := s.withTxn(func(txn *state.Txn) error {
			return apply(caller, addr)
		}); err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
		writeResult(w, req.ID, map[string]bool{"applied": true})
	}
}

func (s *Server) handleGovInitializeGovernor(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.roleHandler(s.gov.InitializeGovernor)(w, r, req)
}

func (s *Server) handleGovAddGovernor(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.roleHandler(s.gov.AddGovernor)(w, r, req)
}

func (s *Server) handleGovRemoveGovernor(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.roleHandler(s.gov.RemoveGovernor)(w, r, req)
}

func (s *Server) handleGovAddAdmin(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.roleHandler(s.gov.AddAdmin)(w, r, req)
}

func (s *Server) handleGovRemoveAdmin(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.roleHandler(s.gov.RemoveAdmin)(w, r, req)
}

func (s *Server) handleGovApproveBorrower(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.requireAdmin(w, r, req) {
		return
	}
	var params govApproveBorrowerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	candidate, err := parseAddress(params.Candidate)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid candidate address", err.Error())
		return
	}
	limit, err := parseAmount(params.BorrowLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrow limit", err.Error())
		return
	}
	err = s.withTxn(func(txn *state.Txn) error {
		return s.gov.ApproveBorrower(caller, candidate, limit, params.LPYieldRateBps, params.ProtocolFeeRateBps)
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"approved": true})
}

func (s *Server) handleGovProposeBorrower(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params govApproveBorrowerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	candidate, err := parseAddress(params.Candidate)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid candidate address", err.Error())
		return
	}
	limit, err := parseAmount(params.BorrowLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrow limit", err.Error())
		return
	}
	var proposalID uint64
	err = s.withTxn(func(txn *state.Txn) error {
		var innerErr error
		proposalID, innerErr = s.gov.ProposeBorrower(caller, candidate, limit, params.LPYieldRateBps, params.ProtocolFeeRateBps)
		return innerErr
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"proposalId": proposalID})
}

func (s *Server) handleGovApproveProposal(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params govProposalIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	err = s.withTxn(func(txn *state.Txn) error {
		return s.gov.ApproveProposal(caller, params.ProposalID)
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"approved": true})
}

func (s *Server) handleGovExecuteProposal(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params govProposalIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	err := s.withTxn(func(txn *state.Txn) error {
		return s.gov.ExecuteProposal(params.ProposalID)
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"executed": true})
}

func (s *Server) handleGovGetProposal(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params govProposalIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	var result govProposalResult
	err := s.withTxn(func(txn *state.Txn) error {
		proposal, innerErr := s.gov.Proposal(params.ProposalID)
		if innerErr != nil {
			return innerErr
		}
		result = govProposalResult{
			ID:                 proposal.ID,
			Proposer:           addrHex(proposal.Proposer),
			Candidate:          addrHex(proposal.Candidate),
			BorrowLimit:        bigString(proposal.BorrowLimit),
			LPYieldRateBps:     proposal.LPYieldRateBps,
			ProtocolFeeRateBps: proposal.ProtocolFeeRateBps,
			Approvals:          addrHexList(proposal.Approvals),
			ProposedAt:         proposal.ProposedAt,
			Scheduled:          proposal.Scheduled,
			Eta:                proposal.Eta,
			Executed:           proposal.Executed,
		}
		if proposal.Scheduled {
			result.OperationID = hex.EncodeToString(proposal.OperationID[:])
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGovRoles(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var result govRolesResult
	err := s.withTxn(func(txn *state.Txn) error {
		roles, innerErr := s.gov.Roles()
		if innerErr != nil {
			return innerErr
		}
		result = govRolesResult{
			Owner:     addrHex(roles.Owner),
			Admins:    addrHexList(roles.Admins),
			Governors: addrHexList(roles.Governors),
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}
