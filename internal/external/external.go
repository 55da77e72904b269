package external

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FeeService publishes the service fee rate and receives the service fee.
type FeeService interface {
	// FeeRate returns the service fee in parts per million.
	FeeRate(ctx context.Context) (uint32, error)
	// SendFee transfers amount to the fee service, credited to beneficiary.
	SendFee(ctx context.Context, amount *big.Int, beneficiary common.Address) error
}

// Token is the narrow surface of an external token contract. Both calls
// must be treated as possibly adversarial.
type Token interface {
	BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error)
	Transfer(ctx context.Context, to common.Address, amount *big.Int) (bool, error)
}

// TokenResolver maps a token address to its contract.
type TokenResolver interface {
	Token(addr common.Address) (Token, error)
}

// Invoker issues untrusted outbound value transfers. Call carries an
// opaque payload to the target; SendValue is a plain value transfer.
type Invoker interface {
	Call(ctx context.Context, to common.Address, value *big.Int, data []byte) error
	SendValue(ctx context.Context, to common.Address, amount *big.Int) error
}

// Env bundles the external collaborators a pool depends on.
type Env struct {
	Fees    FeeService
	Tokens  TokenResolver
	Invoker Invoker
}
