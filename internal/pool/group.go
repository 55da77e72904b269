package pool

import (
	"fmt"
	"math/big"
)

const (
	// MaxGroups is the fixed number of group slots per pool.
	MaxGroups = 8
	// MaxTokens bounds the number of confirmed token addresses.
	MaxTokens = 4

	ppmDenominator   = 1_000_000
	maxCreatorFeePPM = 500_000 // 50%
	maxServiceFeePPM = 250_000 // 25%
)

// maxGroupBalance is 1e9 ether in wei, the hard cap on any group's max balance.
var maxGroupBalance = new(big.Int).Mul(big.NewInt(1_000_000_000), big.NewInt(1e18))

// GroupSettings are the admission rules for one group. Amounts are wei,
// fee rates parts per million.
type GroupSettings struct {
	MinContribution *big.Int
	MaxContribution *big.Int
	MaxBalance      *big.Int
	FeePPM          uint32
	Restricted      bool
}

func (s GroupSettings) validate() error {
	if s.MinContribution == nil || s.MaxContribution == nil || s.MaxBalance == nil {
		return fmt.Errorf("group bounds are required: %w", ErrInvalidAmount)
	}
	if s.MinContribution.Sign() <= 0 {
		return fmt.Errorf("min contribution must be positive: %w", ErrInvalidAmount)
	}
	if s.MinContribution.Cmp(s.MaxContribution) > 0 {
		return fmt.Errorf("min contribution above max: %w", ErrInvalidAmount)
	}
	if s.MaxContribution.Cmp(s.MaxBalance) > 0 {
		return fmt.Errorf("max contribution above group balance cap: %w", ErrInvalidAmount)
	}
	if s.MaxBalance.Cmp(maxGroupBalance) > 0 {
		return fmt.Errorf("group balance cap above hard limit: %w", ErrInvalidAmount)
	}
	if s.FeePPM > maxCreatorFeePPM {
		return fmt.Errorf("creator fee above 50%%: %w", ErrInvalidAmount)
	}
	return nil
}

func (s GroupSettings) clone() GroupSettings {
	return GroupSettings{
		MinContribution: new(big.Int).Set(s.MinContribution),
		MaxContribution: new(big.Int).Set(s.MaxContribution),
		MaxBalance:      new(big.Int).Set(s.MaxBalance),
		FeePPM:          s.FeePPM,
		Restricted:      s.Restricted,
	}
}

// group is one activated slot. Totals are kept consistent with the sum of
// participant positions at all times.
type group struct {
	exists       bool
	contribution *big.Int
	remaining    *big.Int
	settings     GroupSettings
}

// participant is one registered contributor. Records are created lazily
// and never deleted; a fully withdrawn participant stays addressable with
// zeroed balances.
type participant struct {
	admin        bool
	contribution [MaxGroups]*big.Int
	remaining    [MaxGroups]*big.Int
	listed       [MaxGroups]bool
}

func newParticipant() *participant {
	p := &participant{}
	for i := 0; i < MaxGroups; i++ {
		p.contribution[i] = big.NewInt(0)
		p.remaining[i] = big.NewInt(0)
	}
	return p
}

// totalContribution sums the participant's accepted stake across groups.
func (p *participant) totalContribution() *big.Int {
	total := big.NewInt(0)
	for i := 0; i < MaxGroups; i++ {
		total.Add(total, p.contribution[i])
	}
	return total
}

// totalRemaining sums the participant's unaccepted stake across groups.
func (p *participant) totalRemaining() *big.Int {
	total := big.NewInt(0)
	for i := 0; i < MaxGroups; i++ {
		total.Add(total, p.remaining[i])
	}
	return total
}
