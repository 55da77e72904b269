package pool

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"presalepool/internal/audit"
	"presalepool/internal/external"
	"presalepool/internal/ledger"
	"presalepool/internal/model"
)

// Config holds the immutable identity of a pool.
type Config struct {
	// Self is the pool's own address, used for token balance reads.
	Self common.Address
	// Creator receives the creator fee and is the service fee beneficiary key.
	Creator common.Address
	// Admins are additional administrators registered at creation.
	Admins []common.Address
}

// Pool is the fund-pooling engine: a linear lifecycle state machine over
// groups, participants, and per-asset share ledgers. All public
// operations are serialized by an internal mutex; an operation either
// completes entirely or leaves no trace, except the documented
// claim-then-transfer compensation during distribution.
type Pool struct {
	mu     sync.Mutex
	env    external.Env
	sink   audit.Sink
	logger *zap.Logger

	state   model.State
	self    common.Address
	creator common.Address

	serviceFeePPM uint32
	feeToToken    bool

	target       common.Address
	targetLocked bool
	refundSource common.Address

	balance      *big.Int
	groups       [MaxGroups]group
	participants map[common.Address]*participant
	order        []common.Address
	admins       []common.Address

	tokens       []common.Address
	tokenLedgers map[common.Address]*ledger.Ledger
	refundLedger *ledger.Ledger

	// Fee totals fixed at payout time. netPool is the denominator of every
	// proportional claim and equals the sum of participant net amounts.
	paidTotal   *big.Int
	creatorFees *big.Int
	serviceFees *big.Int
	netPool     *big.Int

	// serviceFeeSent survives a rolled-back token confirmation: the fee
	// service cannot return value, so a retry must not pay it again.
	serviceFeeSent bool

	seq uint64
}

// New creates an open pool. The service fee rate is queried from the fee
// service once and fixed for the pool's lifetime.
func New(ctx context.Context, cfg Config, env external.Env, sink audit.Sink, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	if env.Fees == nil || env.Tokens == nil || env.Invoker == nil {
		return nil, fmt.Errorf("all external collaborators are required")
	}
	if cfg.Creator == (common.Address{}) {
		return nil, fmt.Errorf("creator: %w", ErrInvalidAddress)
	}

	ratePPM, err := env.Fees.FeeRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("query fee rate: %w", err)
	}
	if ratePPM > maxServiceFeePPM {
		return nil, fmt.Errorf("service fee %d ppm above 25%%: %w", ratePPM, ErrInvalidAmount)
	}

	p := &Pool{
		env:           env,
		sink:          sink,
		logger:        logger,
		state:         model.Open,
		self:          cfg.Self,
		creator:       cfg.Creator,
		serviceFeePPM: ratePPM,
		balance:       big.NewInt(0),
		participants:  make(map[common.Address]*participant),
		tokenLedgers:  make(map[common.Address]*ledger.Ledger),
		refundLedger:  ledger.New(),
	}
	for i := range p.groups {
		p.groups[i].contribution = big.NewInt(0)
		p.groups[i].remaining = big.NewInt(0)
	}

	p.emit(model.AuditEvent{Kind: model.EventPoolCreated, Actor: cfg.Creator.Hex(), Group: -1,
		Detail: fmt.Sprintf("service_fee_ppm=%d", ratePPM)})

	p.addAdmin(cfg.Creator)
	for _, addr := range cfg.Admins {
		if addr == (common.Address{}) {
			return nil, fmt.Errorf("admin: %w", ErrInvalidAddress)
		}
		p.addAdmin(addr)
	}
	return p, nil
}

func (p *Pool) addAdmin(addr common.Address) {
	part := p.ensureParticipant(addr)
	if part.admin {
		return
	}
	part.admin = true
	p.admins = append(p.admins, addr)
	p.emit(model.AuditEvent{Kind: model.EventAdminAdded, Actor: addr.Hex(), Group: -1})
}

// ensureParticipant returns the record for addr, creating it lazily.
// Records are never deleted once created.
func (p *Pool) ensureParticipant(addr common.Address) *participant {
	if part, ok := p.participants[addr]; ok {
		return part
	}
	part := newParticipant()
	p.participants[addr] = part
	p.order = append(p.order, addr)
	return part
}

func (p *Pool) emit(ev model.AuditEvent) {
	p.seq++
	ev.Seq = p.seq
	ev.State = p.state.String()
	ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	if err := p.sink.PutEvents([]model.AuditEvent{ev}); err != nil {
		p.logger.Warn("audit sink write failed", zap.Error(err), zap.String("kind", ev.Kind))
	}
}

func (p *Pool) requireState(states ...model.State) error {
	for _, s := range states {
		if p.state == s {
			return nil
		}
	}
	return fmt.Errorf("pool is %s: %w", p.state, ErrInvalidState)
}

func (p *Pool) requireAdmin(actor common.Address) error {
	if part, ok := p.participants[actor]; ok && part.admin {
		return nil
	}
	return fmt.Errorf("%s is not an administrator: %w", actor.Hex(), ErrUnauthorized)
}

// totalContribution sums accepted value across all groups.
func (p *Pool) totalContribution() *big.Int {
	total := big.NewInt(0)
	for i := range p.groups {
		total.Add(total, p.groups[i].contribution)
	}
	return total
}

// totalRemaining sums unaccepted value across all groups.
func (p *Pool) totalRemaining() *big.Int {
	total := big.NewInt(0)
	for i := range p.groups {
		total.Add(total, p.groups[i].remaining)
	}
	return total
}

// AddAdmins registers additional administrators. Only valid while open.
func (p *Pool) AddAdmins(actor common.Address, addrs []common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireState(model.Open); err != nil {
		return err
	}
	if err := p.requireAdmin(actor); err != nil {
		return err
	}
	for _, addr := range addrs {
		if addr == (common.Address{}) {
			return fmt.Errorf("admin: %w", ErrInvalidAddress)
		}
	}
	for _, addr := range addrs {
		p.addAdmin(addr)
	}
	return nil
}

// Deposit contributes value to a group. The entire incoming amount must
// be admitted; a deposit that would leave any of the depositor's value
// unaccepted fails with no effect, so a contributor facing a cap must
// split the deposit themselves.
func (p *Pool) Deposit(from common.Address, groupIdx int, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireState(model.Open); err != nil {
		return err
	}
	if groupIdx < 0 || groupIdx >= MaxGroups || !p.groups[groupIdx].exists {
		return fmt.Errorf("group %d: %w", groupIdx, ErrInvalidGroup)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("deposit must be positive: %w", ErrInvalidAmount)
	}

	g := &p.groups[groupIdx]
	existing := p.participants[from]

	oldAccepted := big.NewInt(0)
	oldRemaining := big.NewInt(0)
	isAdmin := false
	listed := false
	if existing != nil {
		oldAccepted.Set(existing.contribution[groupIdx])
		oldRemaining.Set(existing.remaining[groupIdx])
		isAdmin = existing.admin
		listed = existing.listed[groupIdx]
	}

	candidate := new(big.Int).Add(oldAccepted, oldRemaining)
	candidate.Add(candidate, amount)
	others := new(big.Int).Sub(g.contribution, oldAccepted)

	accepted, remaining := admit(candidate, g.settings, others, isAdmin, listed)
	if remaining.Sign() != 0 {
		return fmt.Errorf("deposit of %s not fully admitted (%s over): %w", amount, remaining, ErrInvalidAmount)
	}

	part := p.ensureParticipant(from)
	part.contribution[groupIdx] = accepted
	part.remaining[groupIdx] = big.NewInt(0)
	part.listed[groupIdx] = true

	g.contribution.Add(g.contribution, new(big.Int).Sub(accepted, oldAccepted))
	g.remaining.Sub(g.remaining, oldRemaining)
	p.balance.Add(p.balance, amount)

	p.emit(model.AuditEvent{Kind: model.EventDeposit, Actor: from.Hex(), Group: groupIdx, Amount: amount.String()})
	p.logger.Info("deposit",
		zap.String("from", from.Hex()),
		zap.Int("group", groupIdx),
		zap.String("amount", amount.String()),
	)
	return nil
}

// SetGroupSettings creates or updates a group. Groups must be created in
// strict index order; updating an existing group triggers a full
// rebalance of its participants.
func (p *Pool) SetGroupSettings(actor common.Address, groupIdx int, settings GroupSettings) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireState(model.Open); err != nil {
		return err
	}
	if err := p.requireAdmin(actor); err != nil {
		return err
	}
	if groupIdx < 0 || groupIdx >= MaxGroups {
		return fmt.Errorf("group %d: %w", groupIdx, ErrInvalidGroup)
	}
	if groupIdx > 0 && !p.groups[groupIdx-1].exists {
		return fmt.Errorf("group %d before group %d: %w", groupIdx, groupIdx-1, ErrInvalidGroup)
	}
	if err := settings.validate(); err != nil {
		return err
	}

	g := &p.groups[groupIdx]
	existed := g.exists
	g.exists = true
	g.settings = settings.clone()

	p.emit(model.AuditEvent{Kind: model.EventGroupSettings, Actor: actor.Hex(), Group: groupIdx,
		Detail: fmt.Sprintf("min=%s max=%s cap=%s fee_ppm=%d restricted=%t",
			settings.MinContribution, settings.MaxContribution, settings.MaxBalance, settings.FeePPM, settings.Restricted)})

	if existed {
		p.rebalanceGroup(groupIdx)
		p.emit(model.AuditEvent{Kind: model.EventGroupRebalanced, Actor: actor.Hex(), Group: groupIdx})
	}
	return nil
}

// ModifyAllowList adds and removes allow-list entries for a restricted
// group, then rebalances it.
func (p *Pool) ModifyAllowList(actor common.Address, groupIdx int, include, exclude []common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireState(model.Open); err != nil {
		return err
	}
	if err := p.requireAdmin(actor); err != nil {
		return err
	}
	if groupIdx < 0 || groupIdx >= MaxGroups || !p.groups[groupIdx].exists {
		return fmt.Errorf("group %d: %w", groupIdx, ErrInvalidGroup)
	}

	for _, addr := range include {
		part := p.ensureParticipant(addr)
		part.listed[groupIdx] = true
	}
	for _, addr := range exclude {
		if part, ok := p.participants[addr]; ok {
			part.listed[groupIdx] = false
		}
	}

	p.emit(model.AuditEvent{Kind: model.EventAllowListChange, Actor: actor.Hex(), Group: groupIdx,
		Detail: fmt.Sprintf("included=%d excluded=%d", len(include), len(exclude))})

	p.rebalanceGroup(groupIdx)
	p.emit(model.AuditEvent{Kind: model.EventGroupRebalanced, Actor: actor.Hex(), Group: groupIdx})
	return nil
}

// Cancel aborts an open pool. Only reachable from Open.
func (p *Pool) Cancel(actor common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireState(model.Open); err != nil {
		return err
	}
	if err := p.requireAdmin(actor); err != nil {
		return err
	}

	p.state = model.Canceled
	p.emit(model.AuditEvent{Kind: model.EventStateChanged, Actor: actor.Hex(), Group: -1, Detail: "open -> canceled"})
	p.logger.Info("pool canceled", zap.String("actor", actor.Hex()))
	return nil
}

// SetRefundAddress sets the address refunds are accepted from. Setting it
// while still waiting on the target signals the target will not deliver
// tokens and moves the pool to full refund.
func (p *Pool) SetRefundAddress(actor common.Address, addr common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireState(model.PaidToPresale, model.Distribution, model.FullRefund); err != nil {
		return err
	}
	if err := p.requireAdmin(actor); err != nil {
		return err
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("refund source: %w", ErrInvalidAddress)
	}

	p.refundSource = addr
	if p.state == model.PaidToPresale {
		p.state = model.FullRefund
		p.emit(model.AuditEvent{Kind: model.EventStateChanged, Actor: actor.Hex(), Group: -1,
			Detail: "paid_to_presale -> full_refund"})
		p.logger.Info("entering full refund", zap.String("refund_source", addr.Hex()))
	}
	p.emit(model.AuditEvent{Kind: model.EventRefundSourceSet, Actor: actor.Hex(), Group: -1,
		Detail: fmt.Sprintf("refund_source=%s", addr.Hex())})
	return nil
}

// AcceptRefund records value returned by the refund source, growing the
// balance the refund ledger distributes from.
func (p *Pool) AcceptRefund(from common.Address, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireState(model.PaidToPresale, model.Distribution, model.FullRefund); err != nil {
		return err
	}
	if p.refundSource == (common.Address{}) || from != p.refundSource {
		return fmt.Errorf("refund from %s: %w", from.Hex(), ErrUnauthorized)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("refund must be positive: %w", ErrInvalidAmount)
	}

	p.balance.Add(p.balance, amount)
	p.emit(model.AuditEvent{Kind: model.EventRefundAccepted, Actor: from.Hex(), Group: -1, Amount: amount.String()})
	p.logger.Info("refund accepted", zap.String("from", from.Hex()), zap.String("amount", amount.String()))
	return nil
}
