package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvariantViolated means recorded claims and computed entitlements
// disagree. It can only happen through a caller bug and must halt the
// surrounding operation.
var ErrInvariantViolated = errors.New("ledger invariant violated")

// Fraction is a participant's proportional entitlement, numerator over
// denominator.
type Fraction struct {
	Num *big.Int
	Den *big.Int
}

// Ledger tracks cumulative claims against a monotonically growing total
// for one distributable asset. The zero value is not usable; use New.
type Ledger struct {
	totalClaimed *big.Int
	claimed      map[common.Address]*big.Int
}

func New() *Ledger {
	return &Ledger{
		totalClaimed: big.NewInt(0),
		claimed:      make(map[common.Address]*big.Int),
	}
}

// TotalClaimed returns the cumulative amount claimed by all participants.
func (l *Ledger) TotalClaimed() *big.Int {
	return new(big.Int).Set(l.totalClaimed)
}

// Claimed returns the cumulative amount claimed by one participant.
func (l *Ledger) Claimed(addr common.Address) *big.Int {
	if c, ok := l.claimed[addr]; ok {
		return new(big.Int).Set(c)
	}
	return big.NewInt(0)
}

// Claim credits addr with its newly claimable share of currentTotal and
// returns the credited amount. The entitlement is computed over
// currentTotal plus everything already claimed, so repeated calls with a
// growing total never double-count and a call with an unchanged total is
// a no-op returning zero.
func (l *Ledger) Claim(addr common.Address, currentTotal *big.Int, frac Fraction) (*big.Int, error) {
	if currentTotal == nil || currentTotal.Sign() < 0 {
		return nil, fmt.Errorf("claim: current total must be non-negative")
	}
	if frac.Num == nil || frac.Den == nil || frac.Den.Sign() <= 0 || frac.Num.Sign() < 0 {
		return nil, fmt.Errorf("claim: malformed fraction")
	}

	entitled := new(big.Int).Add(currentTotal, l.totalClaimed)
	entitled.Mul(entitled, frac.Num)
	entitled.Div(entitled, frac.Den)

	already := l.claimed[addr]
	if already == nil {
		already = big.NewInt(0)
	}

	switch entitled.Cmp(already) {
	case -1:
		return nil, fmt.Errorf("claim for %s: entitled %s below recorded %s: %w",
			addr.Hex(), entitled, already, ErrInvariantViolated)
	case 0:
		return big.NewInt(0), nil
	}

	diff := new(big.Int).Sub(entitled, already)
	l.claimed[addr] = entitled
	l.totalClaimed.Add(l.totalClaimed, diff)
	return diff, nil
}

// Unclaim reverses a prior credit exactly. It exists so a failed external
// transfer can be compensated without re-deriving the fraction or total.
func (l *Ledger) Unclaim(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("unclaim: amount must be non-negative")
	}
	already := l.claimed[addr]
	if already == nil || already.Cmp(amount) < 0 {
		return fmt.Errorf("unclaim for %s: amount %s exceeds recorded claims: %w",
			addr.Hex(), amount, ErrInvariantViolated)
	}
	l.claimed[addr] = new(big.Int).Sub(already, amount)
	l.totalClaimed.Sub(l.totalClaimed, amount)
	return nil
}
