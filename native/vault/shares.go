package vault

import (
	"math/big"
	"time"
)

// Deposit pulls settlement asset from the depositor and mints claim tokens
// proportional to the value contributed, so existing holders are never
// diluted. The first deposit into zero supply mints 1:1.
func (e *Engine) Deposit(from [20]byte, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errAmountNotPositive
	}
	now := e.now()
	if err := e.RefreshAccrual(now); err != nil {
		return nil, err
	}
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	depositor, err := e.loadAccount(from)
	if err != nil {
		return nil, err
	}
	if depositor.BalanceSettle.Cmp(amount) < 0 {
		return nil, errInsufficientFunds
	}
	module, err := e.loadAccount(e.moduleAddr)
	if err != nil {
		return nil, err
	}

	// Mint against NAV measured before the transfer lands.
	supply := effectiveSupply(st)
	minted := new(big.Int)
	if supply.Sign() == 0 {
		minted.Set(amount)
	} else {
		// Outstanding claims with zero NAV means accumulated losses wiped
		// out the depositor base. Minting against it would divide by zero,
		// so the deposit is refused until governance restores solvency.
		nav := navValue(st, module.BalanceSettle)
		if nav.Sign() == 0 {
			return nil, errVaultInsolvent
		}
		minted.Mul(amount, supply)
		minted.Quo(minted, nav)
	}

	depositor.BalanceSettle = new(big.Int).Sub(depositor.BalanceSettle, amount)
	module.BalanceSettle = new(big.Int).Add(module.BalanceSettle, amount)
	depositor.Shares = new(big.Int).Add(depositor.Shares, minted)
	if depositor.LifetimeMinted == nil {
		depositor.LifetimeMinted = big.NewInt(0)
	}
	depositor.LifetimeMinted = new(big.Int).Add(depositor.LifetimeMinted, minted)

	st.ShareSupply = new(big.Int).Add(st.ShareSupply, minted)
	st.TotalDeposits = new(big.Int).Add(st.TotalDeposits, amount)

	if err := e.state.PutAccount(from, depositor); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.moduleAddr, module); err != nil {
		return nil, err
	}
	if err := e.state.VaultPutState(st); err != nil {
		return nil, err
	}

	e.emit(newDepositedEvent(from, amount, minted))
	return minted, nil
}

// RequestRedemption burns the caller's claim tokens immediately and queues
// a payout request. The burned amount is tracked as pending so NAV math
// keeps treating it as a claim until the payout settles.
func (e *Engine) RequestRedemption(from [20]byte, shares *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if shares == nil || shares.Sign() <= 0 {
		return 0, errAmountNotPositive
	}
	holder, err := e.loadAccount(from)
	if err != nil {
		return 0, err
	}
	if holder.Shares.Cmp(shares) < 0 {
		return 0, errInsufficientShares
	}
	st, err := e.loadState()
	if err != nil {
		return 0, err
	}

	holder.Shares = new(big.Int).Sub(holder.Shares, shares)
	if holder.LifetimeBurned == nil {
		holder.LifetimeBurned = big.NewInt(0)
	}
	holder.LifetimeBurned = new(big.Int).Add(holder.LifetimeBurned, shares)
	st.ShareSupply = new(big.Int).Sub(st.ShareSupply, shares)
	st.PendingShares = new(big.Int).Add(st.PendingShares, shares)

	id, err := e.state.RedemptionNextID()
	if err != nil {
		return 0, err
	}
	request := &RedemptionRequest{
		ID:          id,
		Requester:   from,
		Shares:      new(big.Int).Set(shares),
		RequestedAt: e.now(),
	}
	if err := e.state.PutAccount(from, holder); err != nil {
		return 0, err
	}
	if err := e.state.VaultPutState(st); err != nil {
		return 0, err
	}
	if err := e.state.RedemptionPut(request); err != nil {
		return 0, err
	}

	e.emit(newRedemptionRequestedEvent(request))
	return id, nil
}

// ProcessRedemptions drains the queue in arrival order, paying each request
// its proportional NAV slice, bounded by available liquidity and the daily
// cap. Requests that cannot be serviced are skipped and retried on a later
// call, so completion order is not strictly FIFO once a skip occurs.
func (e *Engine) ProcessRedemptions() (int, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	now := e.now()
	if err := e.RefreshAccrual(now); err != nil {
		return 0, err
	}
	st, err := e.loadState()
	if err != nil {
		return 0, err
	}
	module, err := e.loadAccount(e.moduleAddr)
	if err != nil {
		return 0, err
	}
	queue, err := e.state.RedemptionQueue()
	if err != nil {
		return 0, err
	}
	if len(queue) == 0 {
		return 0, nil
	}

	day := utcDay(now)
	dayRec, ok, err := e.state.RedemptionGetDay(day)
	if err != nil {
		return 0, err
	}
	if !ok {
		// Snapshot the cap from the claim base at the start of the day's
		// first drain so servicing does not shrink the budget.
		budget := new(big.Int).Mul(effectiveSupply(st), big.NewInt(int64(e.policy.DailyRedemptionCapBps)))
		budget.Quo(budget, basisPoints)
		dayRec = &RedemptionDay{Day: day, CapShares: budget, Processed: big.NewInt(0)}
	}

	paid := 0
	for _, req := range queue {
		if req == nil || req.Shares == nil {
			continue
		}
		capAfter := new(big.Int).Add(dayRec.Processed, req.Shares)
		if capAfter.Cmp(dayRec.CapShares) > 0 {
			continue
		}
		supply := effectiveSupply(st)
		if supply.Sign() == 0 {
			continue
		}
		payout := new(big.Int).Mul(req.Shares, navValue(st, module.BalanceSettle))
		payout.Quo(payout, supply)
		// A zero payout pays nothing for burned shares. Leave the request
		// queued so it is serviced once NAV recovers.
		if payout.Sign() == 0 {
			continue
		}
		if payout.Cmp(e.availableLiquidity(st, module.BalanceSettle)) > 0 {
			continue
		}

		requester, err := e.loadAccount(req.Requester)
		if err != nil {
			return paid, err
		}
		module.BalanceSettle = new(big.Int).Sub(module.BalanceSettle, payout)
		requester.BalanceSettle = new(big.Int).Add(requester.BalanceSettle, payout)
		st.PendingShares = new(big.Int).Sub(st.PendingShares, req.Shares)
		dayRec.Processed = capAfter

		if err := e.state.PutAccount(req.Requester, requester); err != nil {
			return paid, err
		}
		if err := e.state.RedemptionRemove(req.ID); err != nil {
			return paid, err
		}
		e.emit(newRedemptionPaidEvent(req, payout))
		paid++
	}

	if err := e.state.PutAccount(e.moduleAddr, module); err != nil {
		return paid, err
	}
	if err := e.state.VaultPutState(st); err != nil {
		return paid, err
	}
	if err := e.state.RedemptionPutDay(dayRec); err != nil {
		return paid, err
	}
	return paid, nil
}

// PendingRedemptions returns the queued requests in arrival order.
func (e *Engine) PendingRedemptions() ([]*RedemptionRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.RedemptionQueue()
}

func utcDay(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
