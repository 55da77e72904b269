package external

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemFeeService is an in-memory fee service for simulation and tests.
type MemFeeService struct {
	RatePPM uint32

	mu       sync.Mutex
	received map[common.Address]*big.Int
}

func NewMemFeeService(ratePPM uint32) *MemFeeService {
	return &MemFeeService{RatePPM: ratePPM, received: make(map[common.Address]*big.Int)}
}

func (s *MemFeeService) FeeRate(ctx context.Context) (uint32, error) {
	return s.RatePPM, nil
}

func (s *MemFeeService) SendFee(ctx context.Context, amount *big.Int, beneficiary common.Address) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("send fee: bad amount")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.received[beneficiary]
	if cur == nil {
		cur = big.NewInt(0)
		s.received[beneficiary] = cur
	}
	cur.Add(cur, amount)
	return nil
}

// Received returns the total fees credited to a beneficiary.
func (s *MemFeeService) Received(beneficiary common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.received[beneficiary]; ok {
		return new(big.Int).Set(cur)
	}
	return big.NewInt(0)
}

// MemToken is an in-memory token contract. Transfer debits the owner,
// the account whose pot the claims draw from. FailTransfers makes every
// Transfer report failure, which exercises the compensating-undo path.
type MemToken struct {
	mu            sync.Mutex
	owner         common.Address
	balances      map[common.Address]*big.Int
	FailTransfers bool
}

func NewMemToken(owner common.Address) *MemToken {
	return &MemToken{owner: owner, balances: make(map[common.Address]*big.Int)}
}

func (t *MemToken) Mint(holder common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.balances[holder]
	if cur == nil {
		cur = big.NewInt(0)
		t.balances[holder] = cur
	}
	cur.Add(cur, amount)
}

func (t *MemToken) BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.balances[holder]; ok {
		return new(big.Int).Set(cur), nil
	}
	return big.NewInt(0), nil
}

func (t *MemToken) Transfer(ctx context.Context, to common.Address, amount *big.Int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FailTransfers {
		return false, nil
	}
	if amount == nil || amount.Sign() < 0 {
		return false, fmt.Errorf("transfer: bad amount")
	}
	from := t.balances[t.owner]
	if from == nil || from.Cmp(amount) < 0 {
		return false, nil
	}
	from.Sub(from, amount)
	cur := t.balances[to]
	if cur == nil {
		cur = big.NewInt(0)
		t.balances[to] = cur
	}
	cur.Add(cur, amount)
	return true, nil
}

// MemRegistry resolves token addresses to in-memory tokens. Every token
// it creates is owned by the same account, the pool the registry serves.
type MemRegistry struct {
	mu     sync.Mutex
	owner  common.Address
	tokens map[common.Address]*MemToken
}

func NewMemRegistry(owner common.Address) *MemRegistry {
	return &MemRegistry{owner: owner, tokens: make(map[common.Address]*MemToken)}
}

// Register binds a token contract to an address, creating one if needed.
func (r *MemRegistry) Register(addr common.Address) *MemToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tok, ok := r.tokens[addr]; ok {
		return tok
	}
	tok := NewMemToken(r.owner)
	r.tokens[addr] = tok
	return tok
}

func (r *MemRegistry) Token(addr common.Address) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("no token contract at %s", addr.Hex())
	}
	return tok, nil
}

// MemInvoker records outbound value transfers. FailCalls and FailSends
// simulate target or payout failure.
type MemInvoker struct {
	mu        sync.Mutex
	sent      map[common.Address]*big.Int
	calls     []InvokedCall
	FailCalls bool
	FailSends bool
}

// InvokedCall is one recorded target invocation.
type InvokedCall struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

func NewMemInvoker() *MemInvoker {
	return &MemInvoker{sent: make(map[common.Address]*big.Int)}
}

func (i *MemInvoker) Call(ctx context.Context, to common.Address, value *big.Int, data []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.FailCalls {
		return fmt.Errorf("target invocation to %s failed", to.Hex())
	}
	i.calls = append(i.calls, InvokedCall{To: to, Value: new(big.Int).Set(value), Data: append([]byte(nil), data...)})
	return nil
}

func (i *MemInvoker) SendValue(ctx context.Context, to common.Address, amount *big.Int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.FailSends {
		return fmt.Errorf("value transfer to %s failed", to.Hex())
	}
	cur := i.sent[to]
	if cur == nil {
		cur = big.NewInt(0)
		i.sent[to] = cur
	}
	cur.Add(cur, amount)
	return nil
}

// Sent returns the total value transferred to an address.
func (i *MemInvoker) Sent(to common.Address) *big.Int {
	i.mu.Lock()
	defer i.mu.Unlock()
	if cur, ok := i.sent[to]; ok {
		return new(big.Int).Set(cur)
	}
	return big.NewInt(0)
}

// Calls returns the recorded target invocations.
func (i *MemInvoker) Calls() []InvokedCall {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]InvokedCall(nil), i.calls...)
}
