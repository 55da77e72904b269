package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"presalepool/internal/model"
)

// Summary returns the side-effect-free top-level view of the pool.
func (p *Pool) Summary() model.PoolSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	summary := model.PoolSummary{
		State:         p.state.String(),
		Creator:       p.creator.Hex(),
		ServiceFeePPM: p.serviceFeePPM,
		Balance:       p.balance.String(),
		Contribution:  p.totalContribution().String(),
		Remaining:     p.totalRemaining().String(),
		FeeToToken:    p.feeToToken,
	}
	if p.targetLocked {
		summary.Target = p.target.Hex()
	}
	if p.refundSource != (common.Address{}) {
		summary.RefundSource = p.refundSource.Hex()
	}
	for _, token := range p.tokens {
		summary.Tokens = append(summary.Tokens, token.Hex())
	}
	for _, addr := range p.order {
		summary.Participants = append(summary.Participants, addr.Hex())
	}
	for _, addr := range p.admins {
		summary.Admins = append(summary.Admins, addr.Hex())
	}
	if p.creatorFees != nil {
		summary.CreatorFees = p.creatorFees.String()
	}
	if p.serviceFees != nil {
		summary.ServiceFees = p.serviceFees.String()
	}
	for i := range p.groups {
		if p.groups[i].exists {
			summary.GroupsActive++
		}
	}
	return summary
}

// GroupDetail returns the view of one group slot.
func (p *Pool) GroupDetail(groupIdx int) (model.GroupDetail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if groupIdx < 0 || groupIdx >= MaxGroups {
		return model.GroupDetail{}, fmt.Errorf("group %d: %w", groupIdx, ErrInvalidGroup)
	}
	g := &p.groups[groupIdx]
	detail := model.GroupDetail{
		Index:        groupIdx,
		Exists:       g.exists,
		Contribution: g.contribution.String(),
		Remaining:    g.remaining.String(),
	}
	if g.exists {
		detail.MaxBalance = g.settings.MaxBalance.String()
		detail.MinContribution = g.settings.MinContribution.String()
		detail.MaxContribution = g.settings.MaxContribution.String()
		detail.FeePPM = g.settings.FeePPM
		detail.Restricted = g.settings.Restricted
	}
	return detail, nil
}

// ParticipantDetail returns the view of one participant. An unknown
// address yields a record with Exists false.
func (p *Pool) ParticipantDetail(addr common.Address) model.ParticipantDetail {
	p.mu.Lock()
	defer p.mu.Unlock()

	detail := model.ParticipantDetail{Address: addr.Hex()}
	part, ok := p.participants[addr]
	if !ok {
		return detail
	}
	detail.Exists = true
	detail.Admin = part.admin
	for i := 0; i < MaxGroups; i++ {
		if !p.groups[i].exists {
			continue
		}
		detail.Groups = append(detail.Groups, model.ParticipantGroupDetail{
			Group:        i,
			Contribution: part.contribution[i].String(),
			Remaining:    part.remaining[i].String(),
			AllowListed:  part.listed[i],
		})
	}
	return detail
}

// State returns the current lifecycle state.
func (p *Pool) State() model.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
