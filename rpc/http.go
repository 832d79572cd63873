package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"creditvault/config"
	"creditvault/native/governance"
	"creditvault/native/loans"
	"creditvault/native/staking"
	"creditvault/native/timelock"
	"creditvault/native/vault"
	"creditvault/observability"
	"creditvault/state"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server exposes the vault modules over JSON-RPC. Mutating operations run
// one at a time under the server mutex; each request gets its own state
// transaction which is committed only on success.
type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	manager *state.Manager

	mu        sync.Mutex
	vault     *vault.Engine
	loans     *loans.Engine
	staking   *staking.Engine
	gov       *governance.Engine
	scheduler *timelock.Scheduler

	auth    *authenticator
	limiter *rate.Limiter
	http    *http.Server
}

// NewServer wires the engines to the state manager and builds the handler
// table.
func NewServer(cfg *config.Config, logger *slog.Logger, manager *state.Manager) (*Server, error) {
	moduleAddr, err := config.ParseAddress(cfg.ModuleAddress)
	if err != nil {
		return nil, err
	}

	vaultEngine := vault.NewEngine(moduleAddr, vault.Policy{
		BufferBps:             cfg.Vault.BufferBps,
		DailyRedemptionCapBps: cfg.Vault.DailyRedemptionCapBps,
	})
	loanEngine := loans.NewEngine(moduleAddr)
	stakeEngine := staking.NewEngine(moduleAddr)
	govEngine := governance.NewEngine(governance.Policy{
		ApprovalThreshold: cfg.Governance.ApprovalThreshold,
		DelaySeconds:      cfg.Governance.DelaySeconds,
	})
	scheduler := timelock.NewScheduler()

	loanEngine.SetLedger(vaultEngine)
	loanEngine.SetRoles(govEngine)

	emitter := observability.CountingEmitter{}
	vaultEngine.SetEmitter(emitter)
	loanEngine.SetEmitter(emitter)
	stakeEngine.SetEmitter(emitter)
	govEngine.SetEmitter(emitter)

	var limiter *rate.Limiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}

	return &Server{
		cfg:       cfg,
		log:       logger,
		manager:   manager,
		vault:     vaultEngine,
		loans:     loanEngine,
		staking:   stakeEngine,
		gov:       govEngine,
		scheduler: scheduler,
		auth:      newAuthenticator(cfg.Auth),
		limiter:   limiter,
	}, nil
}

// BindScheduler installs the delay scheduler on behalf of the configured
// owner. Called once at startup after genesis bootstrap.
func (s *Server) BindScheduler(owner [20]byte) error {
	txn := s.manager.Begin()
	defer txn.Discard()
	s.attach(txn)
	return s.gov.SetScheduler(owner, s.scheduler)
}

// Router builds the HTTP mux: the JSON-RPC endpoint plus health and
// metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.rateLimitMiddleware)
	r.Method(http.MethodPost, "/rpc", otelhttp.NewHandler(http.HandlerFunc(s.handle), "rpc"))
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Start serves the router until Shutdown is called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("rpc server listening", "addr", s.cfg.ListenAddress)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// attach points every engine at the given transaction.
func (s *Server) attach(txn *state.Txn) {
	s.vault.SetState(txn)
	s.loans.SetState(txn)
	s.staking.SetState(txn)
	s.gov.SetState(txn)
	s.scheduler.SetState(txn)
}

// withTxn runs fn against a fresh transaction under the server mutex and
// commits when fn succeeds. Read-only handlers use it too; an extra commit
// of zero staged writes is harmless.
func (s *Server) withTxn(fn func(txn *state.Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn := s.manager.Begin()
	s.attach(txn)
	if err := fn(txn); err != nil {
		txn.Discard()
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	s.publishGauges()
	return nil
}

// publishGauges refreshes the balance-sheet metrics from committed state.
func (s *Server) publishGauges() {
	txn := s.manager.Begin()
	defer txn.Discard()
	s.attach(txn)
	metrics := observability.LedgerMetrics()
	if st, err := s.vault.State(); err == nil {
		metrics.SetSupply(st.ShareSupply, st.PendingShares)
	}
	if nav, err := s.vault.NAV(); err == nil {
		metrics.SetNAV("total", nav)
	}
	if liquid, err := s.vault.AvailableLiquidity(); err == nil {
		metrics.SetLiquidity(liquid)
	}
	if queue, err := s.vault.PendingRedemptions(); err == nil {
		metrics.SetQueueDepth(len(queue))
	}
	if active, err := txn.ActiveLoans(); err == nil {
		metrics.SetActiveLoans(len(active))
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() { _ = reader.Close() }()
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
			return
		}
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}

	method := strings.TrimSpace(req.Method)
	handler, ok := s.handlers()[method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", method)
		return
	}

	module := method
	if idx := strings.IndexByte(method, '_'); idx > 0 {
		module = method[:idx]
	}
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	handler(rec, r, &req)
	outcome := "ok"
	if rec.status >= http.StatusBadRequest {
		outcome = "error"
	}
	observability.ModuleMetrics().Observe(module, method, outcome, time.Since(start))
}

func (s *Server) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"vault_deposit":            s.handleVaultDeposit,
		"vault_requestRedemption":  s.handleVaultRequestRedemption,
		"vault_processRedemptions": s.handleVaultProcessRedemptions,
		"vault_getState":           s.handleVaultGetState,
		"vault_getAccount":         s.handleVaultGetAccount,
		"vault_sharePrice":         s.handleVaultSharePrice,
		"vault_pendingRedemptions": s.handleVaultPendingRedemptions,

		"loans_create":               s.handleLoansCreate,
		"loans_repay":                s.handleLoansRepay,
		"loans_payProtocolFee":       s.handleLoansPayProtocolFee,
		"loans_withdrawProtocolFees": s.handleLoansWithdrawProtocolFees,
		"loans_get":                  s.handleLoansGet,
		"loans_getBorrower":          s.handleLoansGetBorrower,

		"staking_stake":       s.handleStakingStake,
		"staking_unstake":     s.handleStakingUnstake,
		"staking_getPosition": s.handleStakingGetPosition,
		"staking_totals":      s.handleStakingTotals,

		"gov_initializeGovernor": s.handleGovInitializeGovernor,
		"gov_addGovernor":        s.handleGovAddGovernor,
		"gov_removeGovernor":     s.handleGovRemoveGovernor,
		"gov_addAdmin":           s.handleGovAddAdmin,
		"gov_removeAdmin":        s.handleGovRemoveAdmin,
		"gov_approveBorrower":    s.handleGovApproveBorrower,
		"gov_proposeBorrower":    s.handleGovProposeBorrower,
		"gov_approveProposal":    s.handleGovApproveProposal,
		"gov_executeProposal":    s.handleGovExecuteProposal,
		"gov_getProposal":        s.handleGovGetProposal,
		"gov_roles":              s.handleGovRoles,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && r.URL.Path == "/rpc" && !s.limiter.Allow() {
			observability.ModuleMetrics().RecordThrottle("rpc", "rate_limit")
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
