package pool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"presalepool/internal/ledger"
	"presalepool/internal/model"
)

// feeFromAmount computes amount * ppm / 1e6, truncating.
func feeFromAmount(amount *big.Int, ppm uint32) *big.Int {
	if amount == nil || ppm == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Set(amount)
	fee.Mul(fee, big.NewInt(int64(ppm)))
	fee.Div(fee, big.NewInt(ppmDenominator))
	return fee
}

// participantCreatorFee sums the per-group creator fee on a participant's
// accepted stake. Fees are floored per group, so summing participant fees
// reproduces the pool totals fixed at payout time exactly.
func (p *Pool) participantCreatorFee(part *participant) *big.Int {
	fee := big.NewInt(0)
	for i := 0; i < MaxGroups; i++ {
		fee.Add(fee, feeFromAmount(part.contribution[i], p.groups[i].settings.FeePPM))
	}
	return fee
}

// netAmounts returns a participant's fee-adjusted net contribution and
// the pool-wide net it is a fraction of. In fee-to-token mode the
// withheld creator fee is restored to the creator's side of the fraction
// and to the denominator, so shares still sum to the whole.
func (p *Pool) netAmounts(actor common.Address, part *participant) (netPart, netPool *big.Int) {
	contrib := part.totalContribution()
	netPart = new(big.Int).Sub(contrib, p.participantCreatorFee(part))
	netPart.Sub(netPart, feeFromAmount(contrib, p.serviceFeePPM))
	if p.feeToToken && actor == p.creator {
		netPart.Add(netPart, p.creatorFees)
	}
	return netPart, new(big.Int).Set(p.netPool)
}

// PayToPresale forwards the pooled value to the target, minus fees, and
// moves the pool out of collection. The target address is locked on first
// use. The untrusted invocation is the final step; its failure aborts the
// whole operation. With feeToToken the creator fee is withheld here and
// folded into the creator's distribution share instead of being paid out.
func (p *Pool) PayToPresale(ctx context.Context, actor, target common.Address, minPoolTotal *big.Int, data []byte, feeToToken bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireState(model.Open); err != nil {
		return err
	}
	if err := p.requireAdmin(actor); err != nil {
		return err
	}
	if !p.targetLocked {
		if target == (common.Address{}) {
			return fmt.Errorf("target: %w", ErrInvalidAddress)
		}
	} else if target != (common.Address{}) && target != p.target {
		return fmt.Errorf("target already locked to %s: %w", p.target.Hex(), ErrInvalidAddress)
	}

	poolTotal := p.totalContribution()
	if poolTotal.Sign() == 0 {
		return fmt.Errorf("nothing to pay out: %w", ErrInvalidAmount)
	}
	if minPoolTotal != nil && poolTotal.Cmp(minPoolTotal) < 0 {
		return fmt.Errorf("pool total %s below required minimum %s: %w", poolTotal, minPoolTotal, ErrInvalidAmount)
	}

	// Fee totals are the sums of per-participant floors, so the net pool
	// equals the sum of participant nets with no truncation drift.
	creatorFees := big.NewInt(0)
	serviceFees := big.NewInt(0)
	for _, addr := range p.order {
		part := p.participants[addr]
		creatorFees.Add(creatorFees, p.participantCreatorFee(part))
		serviceFees.Add(serviceFees, feeFromAmount(part.totalContribution(), p.serviceFeePPM))
	}

	payout := new(big.Int).Sub(poolTotal, creatorFees)
	payout.Sub(payout, serviceFees)

	netPool := new(big.Int).Set(payout)
	if feeToToken {
		netPool.Add(netPool, creatorFees)
	}

	wasLocked := p.targetLocked
	oldTarget := p.target
	if !p.targetLocked {
		p.target = target
		p.targetLocked = true
	}
	p.state = model.PaidToPresale
	p.paidTotal = poolTotal
	p.creatorFees = creatorFees
	p.serviceFees = serviceFees
	p.netPool = netPool
	p.feeToToken = feeToToken
	p.balance.Sub(p.balance, payout)

	if err := p.env.Invoker.Call(ctx, p.target, payout, data); err != nil {
		p.state = model.Open
		p.targetLocked = wasLocked
		p.target = oldTarget
		p.paidTotal = nil
		p.creatorFees = nil
		p.serviceFees = nil
		p.netPool = nil
		p.feeToToken = false
		p.balance.Add(p.balance, payout)
		return fmt.Errorf("target invocation: %w", err)
	}

	p.emit(model.AuditEvent{Kind: model.EventStateChanged, Actor: actor.Hex(), Group: -1,
		Detail: "open -> paid_to_presale"})
	p.emit(model.AuditEvent{Kind: model.EventTargetPaid, Actor: actor.Hex(), Group: -1, Amount: payout.String(),
		Detail: fmt.Sprintf("target=%s creator_fees=%s service_fees=%s fee_to_token=%t",
			p.target.Hex(), creatorFees, serviceFees, feeToToken)})
	p.logger.Info("paid to presale",
		zap.String("target", p.target.Hex()),
		zap.String("payout", payout.String()),
		zap.String("creator_fees", creatorFees.String()),
		zap.String("service_fees", serviceFees.String()),
		zap.Bool("fee_to_token", feeToToken),
	)
	return nil
}

// ConfirmTokenAddress admits an external token for distribution once it
// holds a positive balance for the pool. The first confirmation moves the
// pool to distribution and triggers the one-time fee payout.
func (p *Pool) ConfirmTokenAddress(ctx context.Context, actor, tokenAddr common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireState(model.PaidToPresale, model.Distribution); err != nil {
		return err
	}
	if err := p.requireAdmin(actor); err != nil {
		return err
	}
	if tokenAddr == (common.Address{}) {
		return fmt.Errorf("token: %w", ErrInvalidAddress)
	}
	if len(p.tokens) >= MaxTokens {
		return fmt.Errorf("token limit of %d reached: %w", MaxTokens, ErrInvalidAddress)
	}
	for _, existing := range p.tokens {
		if existing == tokenAddr {
			return fmt.Errorf("token %s already confirmed: %w", tokenAddr.Hex(), ErrInvalidAddress)
		}
	}

	tok, err := p.env.Tokens.Token(tokenAddr)
	if err != nil {
		return fmt.Errorf("resolve token %s: %w", tokenAddr.Hex(), ErrInvalidAddress)
	}
	balance, err := tok.BalanceOf(ctx, p.self)
	if err != nil {
		return fmt.Errorf("read balance of %s: %w", tokenAddr.Hex(), err)
	}
	if balance.Sign() <= 0 {
		return fmt.Errorf("token %s holds no balance for the pool: %w", tokenAddr.Hex(), ErrInvalidAmount)
	}

	first := p.state == model.PaidToPresale

	p.tokens = append(p.tokens, tokenAddr)
	p.tokenLedgers[tokenAddr] = ledger.New()
	if first {
		p.state = model.Distribution
	}

	if first {
		if err := p.distributeFees(ctx); err != nil {
			delete(p.tokenLedgers, tokenAddr)
			p.tokens = p.tokens[:len(p.tokens)-1]
			p.state = model.PaidToPresale
			return err
		}
		p.emit(model.AuditEvent{Kind: model.EventStateChanged, Actor: actor.Hex(), Group: -1,
			Detail: "paid_to_presale -> distribution"})
	}

	p.emit(model.AuditEvent{Kind: model.EventTokenConfirmed, Actor: actor.Hex(), Group: -1,
		Token: tokenAddr.Hex(), Amount: balance.String()})
	p.logger.Info("token confirmed",
		zap.String("token", tokenAddr.Hex()),
		zap.String("balance", balance.String()),
		zap.Bool("first", first),
	)
	return nil
}

// distributeFees performs the one-time fee payout on entering
// distribution: the service fee goes to the fee service keyed by the pool
// creator, the creator fee directly to the creator unless it was withheld
// for the token split. If the creator fee transfer fails after the
// service fee has already left, only the creator fee deduction is
// compensated; serviceFeeSent keeps the retried confirmation from paying
// the service fee a second time.
func (p *Pool) distributeFees(ctx context.Context) error {
	if p.serviceFees.Sign() > 0 && !p.serviceFeeSent {
		p.balance.Sub(p.balance, p.serviceFees)
		if err := p.env.Fees.SendFee(ctx, p.serviceFees, p.creator); err != nil {
			p.balance.Add(p.balance, p.serviceFees)
			return fmt.Errorf("send service fee: %w", err)
		}
		p.serviceFeeSent = true
	}

	if !p.feeToToken && p.creatorFees.Sign() > 0 {
		p.balance.Sub(p.balance, p.creatorFees)
		if err := p.env.Invoker.SendValue(ctx, p.creator, p.creatorFees); err != nil {
			p.balance.Add(p.balance, p.creatorFees)
			p.logger.Error("creator fee payout failed after service fee was sent", zap.Error(err))
			return fmt.Errorf("send creator fee: %w", err)
		}
	}

	p.emit(model.AuditEvent{Kind: model.EventFeesDistributed, Actor: p.creator.Hex(), Group: -1,
		Detail: fmt.Sprintf("service_fees=%s creator_fees=%s fee_to_token=%t",
			p.serviceFees, p.creatorFees, p.feeToToken)})
	return nil
}

// withdrawShares handles WithdrawAll during distribution or full refund:
// it sweeps the participant's unaccepted value, claims the proportional
// refund share, pays both out in one transfer, then claims and transfers
// each confirmed token's share. The value payout is all-or-nothing; a
// token transfer failure is compensated on that token's ledger alone.
func (p *Pool) withdrawShares(ctx context.Context, actor common.Address, part *participant) error {
	// The refundable pot excludes every participant's outstanding
	// unaccepted value, including what this withdrawal is about to sweep.
	outstanding := p.totalRemaining()

	swept, err := p.withdrawRemaining(ctx, actor, part, false)
	if err != nil {
		return err
	}

	netPart, netPool := p.netAmounts(actor, part)

	refund := big.NewInt(0)
	if netPool.Sign() > 0 && netPart.Sign() > 0 {
		base := new(big.Int).Sub(p.balance, outstanding)
		if base.Sign() < 0 {
			base.SetInt64(0)
		}
		refund, err = p.refundLedger.Claim(actor, base, ledger.Fraction{Num: netPart, Den: netPool})
		if err != nil {
			p.restoreRemaining(part, swept)
			return fmt.Errorf("refund share: %w", err)
		}
	}

	payout := new(big.Int).Add(swept, refund)
	if payout.Sign() > 0 {
		p.balance.Sub(p.balance, payout)
		if err := p.env.Invoker.SendValue(ctx, actor, payout); err != nil {
			p.balance.Add(p.balance, payout)
			if refund.Sign() > 0 {
				if undoErr := p.refundLedger.Unclaim(actor, refund); undoErr != nil {
					return fmt.Errorf("pay out shares: %v; undo refund claim: %w", err, undoErr)
				}
			}
			p.restoreRemaining(part, swept)
			return fmt.Errorf("pay out shares: %w", err)
		}
		p.emit(model.AuditEvent{Kind: model.EventWithdrawal, Actor: actor.Hex(), Group: -1, Amount: payout.String(),
			Detail: fmt.Sprintf("remaining=%s refund_share=%s", swept, refund)})
	}

	if netPool.Sign() > 0 && netPart.Sign() > 0 {
		p.claimTokenShares(ctx, actor, netPart, netPool)
	}

	p.logger.Info("shares withdrawn",
		zap.String("actor", actor.Hex()),
		zap.String("remaining", swept.String()),
		zap.String("refund_share", refund.String()),
	)
	return nil
}

// restoreRemaining puts a swept-but-unpaid remaining total back. The
// per-group split is lost by the sweep, so the whole amount goes back to
// the first active group; totals stay exact, which is what the refund
// accounting depends on.
func (p *Pool) restoreRemaining(part *participant, total *big.Int) {
	if total.Sign() == 0 {
		return
	}
	for i := 0; i < MaxGroups; i++ {
		if p.groups[i].exists {
			part.remaining[i].Add(part.remaining[i], total)
			p.groups[i].remaining.Add(p.groups[i].remaining, total)
			return
		}
	}
}

// claimTokenShares claims and transfers the participant's share of every
// confirmed token. Failures are scoped to the token at hand.
func (p *Pool) claimTokenShares(ctx context.Context, actor common.Address, netPart, netPool *big.Int) {
	for _, tokenAddr := range p.tokens {
		led := p.tokenLedgers[tokenAddr]
		tok, err := p.env.Tokens.Token(tokenAddr)
		if err != nil {
			p.logger.Warn("token resolve failed during claim", zap.String("token", tokenAddr.Hex()), zap.Error(err))
			continue
		}
		balance, err := tok.BalanceOf(ctx, p.self)
		if err != nil {
			p.logger.Warn("token balance read failed during claim", zap.String("token", tokenAddr.Hex()), zap.Error(err))
			continue
		}

		amount, err := led.Claim(actor, balance, ledger.Fraction{Num: netPart, Den: netPool})
		if err != nil {
			p.logger.Error("token share claim failed", zap.String("token", tokenAddr.Hex()), zap.Error(err))
			continue
		}
		if amount.Sign() == 0 {
			continue
		}

		ok, err := tok.Transfer(ctx, actor, amount)
		if err != nil || !ok {
			if undoErr := led.Unclaim(actor, amount); undoErr != nil {
				p.logger.Error("token claim undo failed", zap.String("token", tokenAddr.Hex()), zap.Error(undoErr))
				continue
			}
			p.emit(model.AuditEvent{Kind: model.EventShareReversed, Actor: actor.Hex(), Group: -1,
				Token: tokenAddr.Hex(), Amount: amount.String()})
			p.logger.Warn("token transfer failed, claim reversed",
				zap.String("token", tokenAddr.Hex()),
				zap.String("amount", amount.String()),
				zap.Error(err),
			)
			continue
		}

		p.emit(model.AuditEvent{Kind: model.EventShareClaimed, Actor: actor.Hex(), Group: -1,
			Token: tokenAddr.Hex(), Amount: amount.String()})
	}
}
