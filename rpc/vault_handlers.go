package rpc

import (
	"math/big"
	"net/http"

	"creditvault/native/vault"
	"creditvault/state"
)

type vaultDepositParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type vaultDepositResult struct {
	Minted     string `json:"minted"`
	SharePrice string `json:"sharePrice"`
}

type vaultRedeemParams struct {
	From   string `json:"from"`
	Shares string `json:"shares"`
}

type vaultRedeemResult struct {
	RequestID uint64 `json:"requestId"`
}

type vaultProcessResult struct {
	Paid      int `json:"paid"`
	Remaining int `json:"remaining"`
}

type vaultAddressParams struct {
	Address string `json:"address"`
}

type vaultStateResult struct {
	State              *vault.VaultState `json:"state"`
	NAV                string            `json:"nav"`
	AvailableLiquidity string            `json:"availableLiquidity"`
	SharePrice         string            `json:"sharePrice"`
}

type vaultAccountResult struct {
	Address        string `json:"address"`
	BalanceSettle  string `json:"balanceSettle"`
	BalanceReward  string `json:"balanceReward"`
	Shares         string `json:"shares"`
	LifetimeMinted string `json:"lifetimeMinted"`
	LifetimeBurned string `json:"lifetimeBurned"`
}

type vaultQueueEntry struct {
	ID          uint64 `json:"id"`
	Requester   string `json:"requester"`
	Shares      string `json:"shares"`
	RequestedAt int64  `json:"requestedAt"`
}

func (s *Server) handleVaultDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultDepositParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}

	var minted, price *big.Int
	err = s.withTxn(func(txn *state.Txn) error {
		var innerErr error
		if minted, innerErr = s.vault.Deposit(from, amount); innerErr != nil {
			return innerErr
		}
		price, innerErr = s.vault.SharePrice()
		return innerErr
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vaultDepositResult{Minted: bigString(minted), SharePrice: bigString(price)})
}

func (s *Server) handleVaultRequestRedemption(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultRedeemParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	shares, err := parseAmount(params.Shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid share amount", err.Error())
		return
	}

	var requestID uint64
	err = s.withTxn(func(txn *state.Txn) error {
		var innerErr error
		requestID, innerErr = s.vault.RequestRedemption(from, shares)
		return innerErr
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vaultRedeemResult{RequestID: requestID})
}

func (s *Server) handleVaultProcessRedemptions(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.requireAdmin(w, r, req) {
		return
	}
	var paid, remaining int
	err := s.withTxn(func(txn *state.Txn) error {
		var innerErr error
		if paid, innerErr = s.vault.ProcessRedemptions(); innerErr != nil {
			return innerErr
		}
		queue, innerErr := s.vault.PendingRedemptions()
		if innerErr != nil {
			return innerErr
		}
		remaining = len(queue)
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vaultProcessResult{Paid: paid, Remaining: remaining})
}

func (s *Server) handleVaultGetState(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var result vaultStateResult
	err := s.withTxn(func(txn *state.Txn) error {
		st, innerErr := s.vault.State()
		if innerErr != nil {
			return innerErr
		}
		nav, innerErr := s.vault.NAV()
		if innerErr != nil {
			return innerErr
		}
		liquid, innerErr := s.vault.AvailableLiquidity()
		if innerErr != nil {
			return innerErr
		}
		price, innerErr := s.vault.SharePrice()
		if innerErr != nil {
			return innerErr
		}
		result = vaultStateResult{
			State:              st,
			NAV:                bigString(nav),
			AvailableLiquidity: bigString(liquid),
			SharePrice:         bigString(price),
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleVaultGetAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAddressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}

	var result vaultAccountResult
	err = s.withTxn(func(txn *state.Txn) error {
		account, innerErr := txn.GetAccount(addr)
		if innerErr != nil {
			return innerErr
		}
		result = vaultAccountResult{
			Address:        addrHex(addr),
			BalanceSettle:  bigString(account.BalanceSettle),
			BalanceReward:  bigString(account.BalanceReward),
			Shares:         bigString(account.Shares),
			LifetimeMinted: bigString(account.LifetimeMinted),
			LifetimeBurned: bigString(account.LifetimeBurned),
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleVaultSharePrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var price *big.Int
	err := s.withTxn(func(txn *state.Txn) error {
		var innerErr error
		price, innerErr = s.vault.SharePrice()
		return innerErr
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"sharePrice": bigString(price)})
}

func (s *Server) handleVaultPendingRedemptions(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var entries []vaultQueueEntry
	err := s.withTxn(func(txn *state.Txn) error {
		queue, innerErr := s.vault.PendingRedemptions()
		if innerErr != nil {
			return innerErr
		}
		entries = make([]vaultQueueEntry, 0, len(queue))
		for _, item := range queue {
			entries = append(entries, vaultQueueEntry{
				ID:          item.ID,
				Requester:   addrHex(item.Requester),
				Shares:      bigString(item.Shares),
				RequestedAt: item.RequestedAt,
			})
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, entries)
}
