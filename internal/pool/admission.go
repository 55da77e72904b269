package pool

import "math/big"

// admit computes how much of a candidate stake a group accepts, given the
// accepted total of the other participants. It is pure: the same inputs
// always produce the same split, which is what makes rebalancing
// deterministic.
//
// Admins are admitted in full. A full or restricted-and-unlisted group
// accepts nothing. Otherwise the accepted amount is capped by the
// per-participant max and by the room left under the group balance cap,
// and an amount below the group minimum is rejected whole.
func admit(candidate *big.Int, s GroupSettings, othersTotal *big.Int, isAdmin, listed bool) (accepted, remaining *big.Int) {
	if isAdmin {
		return new(big.Int).Set(candidate), big.NewInt(0)
	}

	if othersTotal.Cmp(s.MaxBalance) >= 0 || (s.Restricted && !listed) {
		return big.NewInt(0), new(big.Int).Set(candidate)
	}

	room := new(big.Int).Sub(s.MaxBalance, othersTotal)
	accepted = new(big.Int).Set(s.MaxContribution)
	if candidate.Cmp(accepted) < 0 {
		accepted.Set(candidate)
	}
	if room.Cmp(accepted) < 0 {
		accepted.Set(room)
	}
	if accepted.Cmp(s.MinContribution) < 0 {
		accepted.SetInt64(0)
	}

	remaining = new(big.Int).Sub(candidate, accepted)
	return accepted, remaining
}

// rebalanceGroup re-runs admission for every registered participant of one
// group, in registration order, against a running accepted-total
// accumulator, then resums the group totals. Running it twice without an
// intervening change is a no-op.
func (p *Pool) rebalanceGroup(idx int) {
	g := &p.groups[idx]
	others := big.NewInt(0)
	remaining := big.NewInt(0)

	for _, addr := range p.order {
		part := p.participants[addr]
		candidate := new(big.Int).Add(part.contribution[idx], part.remaining[idx])
		if candidate.Sign() == 0 {
			continue
		}
		acc, rem := admit(candidate, g.settings, others, part.admin, part.listed[idx])
		part.contribution[idx] = acc
		part.remaining[idx] = rem
		others.Add(others, acc)
		remaining.Add(remaining, rem)
	}

	g.contribution = others
	g.remaining = remaining
}
