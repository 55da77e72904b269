package pool

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"presalepool/internal/external"
	"presalepool/internal/model"
)

var (
	creatorAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	poolSelf    = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	aliceAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bobAddr     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	targetAddr  = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	refundAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f6")
)

type testEnv struct {
	fees     *external.MemFeeService
	registry *external.MemRegistry
	invoker  *external.MemInvoker
}

func newTestPool(t *testing.T, svcPPM uint32) (*Pool, *testEnv) {
	t.Helper()
	env := &testEnv{
		fees:     external.NewMemFeeService(svcPPM),
		registry: external.NewMemRegistry(poolSelf),
		invoker:  external.NewMemInvoker(),
	}
	p, err := New(context.Background(), Config{Self: poolSelf, Creator: creatorAddr},
		external.Env{Fees: env.fees, Tokens: env.registry, Invoker: env.invoker}, nil, nil)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	return p, env
}

func mustSetGroup(t *testing.T, p *Pool, idx int, settings GroupSettings) {
	t.Helper()
	if err := p.SetGroupSettings(creatorAddr, idx, settings); err != nil {
		t.Fatalf("set group %d: %v", idx, err)
	}
}

func mustDeposit(t *testing.T, p *Pool, from common.Address, idx int, amount int64) {
	t.Helper()
	if err := p.Deposit(from, idx, big.NewInt(amount)); err != nil {
		t.Fatalf("deposit %d by %s: %v", amount, from.Hex(), err)
	}
}

// checkGroupSums verifies the accepted and remaining totals of every
// group equal the sums over participants.
func checkGroupSums(t *testing.T, p *Pool) {
	t.Helper()
	for i := 0; i < MaxGroups; i++ {
		accepted := big.NewInt(0)
		remaining := big.NewInt(0)
		for _, part := range p.participants {
			accepted.Add(accepted, part.contribution[i])
			remaining.Add(remaining, part.remaining[i])
		}
		if accepted.Cmp(p.groups[i].contribution) != 0 {
			t.Fatalf("group %d accepted total %s != participant sum %s", i, p.groups[i].contribution, accepted)
		}
		if remaining.Cmp(p.groups[i].remaining) != 0 {
			t.Fatalf("group %d remaining total %s != participant sum %s", i, p.groups[i].remaining, remaining)
		}
	}
}

func TestNewRejectsExcessiveServiceFee(t *testing.T) {
	env := external.Env{
		Fees:    external.NewMemFeeService(300_000),
		Tokens:  external.NewMemRegistry(poolSelf),
		Invoker: external.NewMemInvoker(),
	}
	_, err := New(context.Background(), Config{Self: poolSelf, Creator: creatorAddr}, env, nil, nil)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestDepositUpdatesTotals(t *testing.T) {
	p, _ := newTestPool(t, 10_000)
	mustSetGroup(t, p, 0, testSettings())

	mustDeposit(t, p, aliceAddr, 0, 30)
	mustDeposit(t, p, bobAddr, 0, 40)
	checkGroupSums(t, p)

	if got := p.totalContribution(); got.Int64() != 70 {
		t.Fatalf("pool contribution = %s, want 70", got)
	}
	detail := p.ParticipantDetail(aliceAddr)
	if !detail.Exists || detail.Groups[0].Contribution != "30" {
		t.Fatalf("unexpected participant detail: %+v", detail)
	}
	if !detail.Groups[0].AllowListed {
		t.Fatalf("depositor should be allow-listed for the group")
	}
}

func TestDepositPartialAdmissionRejected(t *testing.T) {
	p, _ := newTestPool(t, 10_000)
	mustSetGroup(t, p, 0, testSettings())
	mustDeposit(t, p, aliceAddr, 0, 30)

	// Candidate 110 against max-per-participant 50 would leave 60 over.
	err := p.Deposit(aliceAddr, 0, big.NewInt(80))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}

	// No effect.
	detail := p.ParticipantDetail(aliceAddr)
	if detail.Groups[0].Contribution != "30" || detail.Groups[0].Remaining != "0" {
		t.Fatalf("rejected deposit changed state: %+v", detail.Groups[0])
	}
	checkGroupSums(t, p)
}

func TestDepositRestrictedGroupRejected(t *testing.T) {
	p, _ := newTestPool(t, 10_000)
	settings := testSettings()
	settings.Restricted = true
	mustSetGroup(t, p, 0, settings)

	err := p.Deposit(aliceAddr, 0, big.NewInt(30))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if p.ParticipantDetail(aliceAddr).Exists {
		t.Fatalf("rejected depositor must not be registered")
	}

	if err := p.ModifyAllowList(creatorAddr, 0, []common.Address{aliceAddr}, nil); err != nil {
		t.Fatalf("modify allow list: %v", err)
	}
	mustDeposit(t, p, aliceAddr, 0, 30)
	checkGroupSums(t, p)
}

func TestDepositPreconditions(t *testing.T) {
	p, _ := newTestPool(t, 10_000)
	mustSetGroup(t, p, 0, testSettings())

	if err := p.Deposit(aliceAddr, 0, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero deposit: err = %v, want ErrInvalidAmount", err)
	}
	if err := p.Deposit(aliceAddr, 3, big.NewInt(10)); !errors.Is(err, ErrInvalidGroup) {
		t.Fatalf("missing group: err = %v, want ErrInvalidGroup", err)
	}

	if err := p.Cancel(creatorAddr); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := p.Deposit(aliceAddr, 0, big.NewInt(10)); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("deposit after cancel: err = %v, want ErrInvalidState", err)
	}
}

func TestGroupCreationOrder(t *testing.T) {
	p, _ := newTestPool(t, 10_000)

	err := p.SetGroupSettings(creatorAddr, 1, testSettings())
	if !errors.Is(err, ErrInvalidGroup) {
		t.Fatalf("err = %v, want ErrInvalidGroup", err)
	}

	mustSetGroup(t, p, 0, testSettings())
	mustSetGroup(t, p, 1, testSettings())

	if err := p.SetGroupSettings(aliceAddr, 2, testSettings()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin: err = %v, want ErrUnauthorized", err)
	}
}

func TestGroupSettingsValidation(t *testing.T) {
	p, _ := newTestPool(t, 10_000)

	bad := testSettings()
	bad.MinContribution = big.NewInt(0)
	if err := p.SetGroupSettings(creatorAddr, 0, bad); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero min: err = %v, want ErrInvalidAmount", err)
	}

	bad = testSettings()
	bad.MinContribution = big.NewInt(60)
	if err := p.SetGroupSettings(creatorAddr, 0, bad); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("min above max: err = %v, want ErrInvalidAmount", err)
	}

	bad = testSettings()
	bad.MaxContribution = big.NewInt(200)
	if err := p.SetGroupSettings(creatorAddr, 0, bad); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("max above balance cap: err = %v, want ErrInvalidAmount", err)
	}

	bad = testSettings()
	bad.FeePPM = 600_000
	if err := p.SetGroupSettings(creatorAddr, 0, bad); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("fee above half: err = %v, want ErrInvalidAmount", err)
	}
}

func TestCancelOnlyFromOpen(t *testing.T) {
	p, _ := newTestPool(t, 10_000)
	mustSetGroup(t, p, 0, testSettings())
	mustDeposit(t, p, aliceAddr, 0, 30)

	if err := p.Cancel(aliceAddr); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin cancel: err = %v, want ErrUnauthorized", err)
	}
	if err := p.Cancel(creatorAddr); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if p.State() != model.Canceled {
		t.Fatalf("state = %s, want canceled", p.State())
	}
	if err := p.Cancel(creatorAddr); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second cancel: err = %v, want ErrInvalidState", err)
	}
}

func TestWithdrawAmountDrainsRemainingFirst(t *testing.T) {
	p, env := newTestPool(t, 10_000)
	mustSetGroup(t, p, 0, testSettings())
	mustDeposit(t, p, aliceAddr, 0, 50)
	mustDeposit(t, p, bobAddr, 0, 50)

	// Tightening the cap pushes bob's stake into remaining.
	tightened := testSettings()
	tightened.MaxBalance = big.NewInt(70)
	mustSetGroup(t, p, 0, tightened)
	checkGroupSums(t, p)

	detail := p.ParticipantDetail(bobAddr)
	if detail.Groups[0].Contribution != "20" || detail.Groups[0].Remaining != "30" {
		t.Fatalf("unexpected bob position after rebalance: %+v", detail.Groups[0])
	}

	// A withdrawal below the remaining bucket is rejected.
	if err := p.WithdrawAmount(context.Background(), bobAddr, 0, big.NewInt(20)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("below-remaining withdrawal: err = %v, want ErrInvalidAmount", err)
	}

	// Remaining is drained first, then accepted, down to the minimum.
	if err := p.WithdrawAmount(context.Background(), bobAddr, 0, big.NewInt(40)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	detail = p.ParticipantDetail(bobAddr)
	if detail.Groups[0].Contribution != "10" || detail.Groups[0].Remaining != "0" {
		t.Fatalf("unexpected bob position after withdrawal: %+v", detail.Groups[0])
	}
	if got := env.invoker.Sent(bobAddr); got.Int64() != 40 {
		t.Fatalf("paid out %s, want 40", got)
	}
	checkGroupSums(t, p)
}

func TestWithdrawAmountMinimumFloor(t *testing.T) {
	p, _ := newTestPool(t, 10_000)
	mustSetGroup(t, p, 0, testSettings())
	mustDeposit(t, p, aliceAddr, 0, 30)

	// Leaving 5 behind would undercut the group minimum of 10.
	err := p.WithdrawAmount(context.Background(), aliceAddr, 0, big.NewInt(25))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}

	if err := p.WithdrawAmount(context.Background(), aliceAddr, 0, big.NewInt(20)); err != nil {
		t.Fatalf("withdraw to minimum: %v", err)
	}
}

func TestWithdrawAmountZeroMeansEverything(t *testing.T) {
	p, env := newTestPool(t, 10_000)
	mustSetGroup(t, p, 0, testSettings())
	mustDeposit(t, p, aliceAddr, 0, 30)

	if err := p.WithdrawAmount(context.Background(), aliceAddr, 0, big.NewInt(0)); err != nil {
		t.Fatalf("withdraw all: %v", err)
	}
	if got := env.invoker.Sent(aliceAddr); got.Int64() != 30 {
		t.Fatalf("paid out %s, want 30", got)
	}

	// The record goes dormant but stays addressable.
	detail := p.ParticipantDetail(aliceAddr)
	if !detail.Exists || detail.Groups[0].Contribution != "0" {
		t.Fatalf("unexpected dormant record: %+v", detail)
	}
	checkGroupSums(t, p)
}

func TestWithdrawAllSweepsEveryGroup(t *testing.T) {
	p, env := newTestPool(t, 10_000)
	mustSetGroup(t, p, 0, testSettings())
	mustSetGroup(t, p, 1, testSettings())
	mustDeposit(t, p, aliceAddr, 0, 30)
	mustDeposit(t, p, aliceAddr, 1, 40)

	if err := p.WithdrawAll(context.Background(), aliceAddr); err != nil {
		t.Fatalf("withdraw all: %v", err)
	}
	if got := env.invoker.Sent(aliceAddr); got.Int64() != 70 {
		t.Fatalf("paid out %s, want 70", got)
	}
	if got := p.totalContribution(); got.Sign() != 0 {
		t.Fatalf("pool contribution = %s, want 0", got)
	}
	checkGroupSums(t, p)
}

func TestWithdrawPayoutFailureHasNoEffect(t *testing.T) {
	p, env := newTestPool(t, 10_000)
	mustSetGroup(t, p, 0, testSettings())
	mustDeposit(t, p, aliceAddr, 0, 30)

	env.invoker.FailSends = true
	if err := p.WithdrawAmount(context.Background(), aliceAddr, 0, big.NewInt(0)); err == nil {
		t.Fatalf("expected payout failure")
	}

	detail := p.ParticipantDetail(aliceAddr)
	if detail.Groups[0].Contribution != "30" {
		t.Fatalf("failed payout changed state: %+v", detail.Groups[0])
	}
	if p.balance.Int64() != 30 {
		t.Fatalf("balance = %s, want 30", p.balance)
	}
	checkGroupSums(t, p)
}

func TestAddAdminsOnlyWhileOpen(t *testing.T) {
	p, _ := newTestPool(t, 10_000)

	if err := p.AddAdmins(aliceAddr, []common.Address{bobAddr}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin: err = %v, want ErrUnauthorized", err)
	}
	if err := p.AddAdmins(creatorAddr, []common.Address{bobAddr}); err != nil {
		t.Fatalf("add admins: %v", err)
	}
	if !p.ParticipantDetail(bobAddr).Admin {
		t.Fatalf("bob should be an admin")
	}

	if err := p.Cancel(creatorAddr); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := p.AddAdmins(creatorAddr, []common.Address{carolAddr}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("after cancel: err = %v, want ErrInvalidState", err)
	}
}

func TestSummaryReflectsPool(t *testing.T) {
	p, _ := newTestPool(t, 10_000)
	mustSetGroup(t, p, 0, testSettings())
	mustDeposit(t, p, aliceAddr, 0, 30)

	summary := p.Summary()
	if summary.State != "open" || summary.Contribution != "30" || summary.GroupsActive != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Admins) != 1 || summary.Admins[0] != creatorAddr.Hex() {
		t.Fatalf("unexpected admins: %v", summary.Admins)
	}
	if len(summary.Participants) != 2 {
		t.Fatalf("participants = %v, want creator and alice", summary.Participants)
	}
}
