package pool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"presalepool/internal/model"
)

// WithdrawAmount withdraws part of a participant's stake from one group.
// Amount zero means everything owed for that group. The unaccepted
// portion is drained first; drawing from accepted stake must not leave a
// non-admin below the group minimum. Only valid while collecting or
// after cancellation.
func (p *Pool) WithdrawAmount(ctx context.Context, actor common.Address, groupIdx int, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireState(model.Open, model.Canceled); err != nil {
		return err
	}
	if groupIdx < 0 || groupIdx >= MaxGroups || !p.groups[groupIdx].exists {
		return fmt.Errorf("group %d: %w", groupIdx, ErrInvalidGroup)
	}
	part, ok := p.participants[actor]
	if !ok {
		return fmt.Errorf("%s has no stake: %w", actor.Hex(), ErrUnauthorized)
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("withdrawal amount: %w", ErrInvalidAmount)
	}

	g := &p.groups[groupIdx]
	owed := new(big.Int).Add(part.contribution[groupIdx], part.remaining[groupIdx])
	if amount.Sign() == 0 {
		amount = owed
	}
	if amount.Sign() == 0 {
		return fmt.Errorf("nothing owed in group %d: %w", groupIdx, ErrInvalidAmount)
	}
	if amount.Cmp(part.remaining[groupIdx]) < 0 || amount.Cmp(owed) > 0 {
		return fmt.Errorf("withdrawal of %s outside [%s, %s]: %w",
			amount, part.remaining[groupIdx], owed, ErrInvalidAmount)
	}

	fromRemaining := new(big.Int).Set(part.remaining[groupIdx])
	if amount.Cmp(fromRemaining) < 0 {
		fromRemaining.Set(amount)
	}
	fromAccepted := new(big.Int).Sub(amount, fromRemaining)

	newAccepted := new(big.Int).Sub(part.contribution[groupIdx], fromAccepted)
	if !part.admin && newAccepted.Sign() > 0 && newAccepted.Cmp(g.settings.MinContribution) < 0 {
		return fmt.Errorf("residual stake %s below group minimum: %w", newAccepted, ErrInvalidAmount)
	}

	part.remaining[groupIdx].Sub(part.remaining[groupIdx], fromRemaining)
	part.contribution[groupIdx] = newAccepted
	g.remaining.Sub(g.remaining, fromRemaining)
	g.contribution.Sub(g.contribution, fromAccepted)
	p.balance.Sub(p.balance, amount)

	if err := p.env.Invoker.SendValue(ctx, actor, amount); err != nil {
		part.remaining[groupIdx].Add(part.remaining[groupIdx], fromRemaining)
		part.contribution[groupIdx].Add(part.contribution[groupIdx], fromAccepted)
		g.remaining.Add(g.remaining, fromRemaining)
		g.contribution.Add(g.contribution, fromAccepted)
		p.balance.Add(p.balance, amount)
		return fmt.Errorf("pay out withdrawal: %w", err)
	}

	p.emit(model.AuditEvent{Kind: model.EventWithdrawal, Actor: actor.Hex(), Group: groupIdx, Amount: amount.String()})
	p.logger.Info("withdrawal",
		zap.String("actor", actor.Hex()),
		zap.Int("group", groupIdx),
		zap.String("amount", amount.String()),
	)
	return nil
}

// WithdrawAll exits the pool across every group. What it sweeps depends
// on the lifecycle state: while collecting or canceled it returns the
// full stake; after the target is paid only the unaccepted portion is
// still held here; during distribution or full refund it additionally
// claims the participant's proportional refund and token shares.
func (p *Pool) WithdrawAll(ctx context.Context, actor common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	part, ok := p.participants[actor]
	if !ok {
		return fmt.Errorf("%s has no stake: %w", actor.Hex(), ErrUnauthorized)
	}

	switch p.state {
	case model.Open, model.Canceled:
		return p.withdrawEverything(ctx, actor, part)
	case model.PaidToPresale:
		_, err := p.withdrawRemaining(ctx, actor, part, true)
		return err
	case model.Distribution, model.FullRefund:
		return p.withdrawShares(ctx, actor, part)
	default:
		return fmt.Errorf("pool is %s: %w", p.state, ErrInvalidState)
	}
}

// withdrawEverything sweeps accepted plus remaining for every group.
func (p *Pool) withdrawEverything(ctx context.Context, actor common.Address, part *participant) error {
	total := big.NewInt(0)
	sweptAccepted := make([]*big.Int, MaxGroups)
	sweptRemaining := make([]*big.Int, MaxGroups)

	for i := 0; i < MaxGroups; i++ {
		sweptAccepted[i] = new(big.Int).Set(part.contribution[i])
		sweptRemaining[i] = new(big.Int).Set(part.remaining[i])
		total.Add(total, sweptAccepted[i])
		total.Add(total, sweptRemaining[i])

		p.groups[i].contribution.Sub(p.groups[i].contribution, sweptAccepted[i])
		p.groups[i].remaining.Sub(p.groups[i].remaining, sweptRemaining[i])
		part.contribution[i] = big.NewInt(0)
		part.remaining[i] = big.NewInt(0)
	}

	if total.Sign() == 0 {
		return nil
	}
	p.balance.Sub(p.balance, total)

	if err := p.env.Invoker.SendValue(ctx, actor, total); err != nil {
		for i := 0; i < MaxGroups; i++ {
			part.contribution[i] = sweptAccepted[i]
			part.remaining[i] = sweptRemaining[i]
			p.groups[i].contribution.Add(p.groups[i].contribution, sweptAccepted[i])
			p.groups[i].remaining.Add(p.groups[i].remaining, sweptRemaining[i])
		}
		p.balance.Add(p.balance, total)
		return fmt.Errorf("pay out full withdrawal: %w", err)
	}

	p.emit(model.AuditEvent{Kind: model.EventWithdrawal, Actor: actor.Hex(), Group: -1, Amount: total.String()})
	p.logger.Info("full withdrawal", zap.String("actor", actor.Hex()), zap.String("amount", total.String()))
	return nil
}

// withdrawRemaining sweeps only the unaccepted portion. When send is
// false the sweep is recorded but the value transfer is left to the
// caller, which folds it into a larger payout.
func (p *Pool) withdrawRemaining(ctx context.Context, actor common.Address, part *participant, send bool) (*big.Int, error) {
	total := big.NewInt(0)
	swept := make([]*big.Int, MaxGroups)
	for i := 0; i < MaxGroups; i++ {
		swept[i] = new(big.Int).Set(part.remaining[i])
		total.Add(total, swept[i])
		p.groups[i].remaining.Sub(p.groups[i].remaining, swept[i])
		part.remaining[i] = big.NewInt(0)
	}

	if !send {
		return total, nil
	}
	if total.Sign() == 0 {
		return total, nil
	}
	p.balance.Sub(p.balance, total)

	if err := p.env.Invoker.SendValue(ctx, actor, total); err != nil {
		for i := 0; i < MaxGroups; i++ {
			part.remaining[i] = swept[i]
			p.groups[i].remaining.Add(p.groups[i].remaining, swept[i])
		}
		p.balance.Add(p.balance, total)
		return nil, fmt.Errorf("pay out remaining: %w", err)
	}

	p.emit(model.AuditEvent{Kind: model.EventWithdrawal, Actor: actor.Hex(), Group: -1, Amount: total.String()})
	return total, nil
}
