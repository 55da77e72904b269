package pool

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func snapshot(p *Pool, addrs []common.Address) []interface{} {
	var out []interface{}
	for _, addr := range addrs {
		out = append(out, p.ParticipantDetail(addr))
	}
	for i := 0; i < MaxGroups; i++ {
		detail, _ := p.GroupDetail(i)
		out = append(out, detail)
	}
	return out
}

func TestRebalanceTighteningCap(t *testing.T) {
	p, _ := newTestPool(t, 10_000)
	mustSetGroup(t, p, 0, testSettings())
	mustDeposit(t, p, aliceAddr, 0, 50)
	mustDeposit(t, p, bobAddr, 0, 50)

	tightened := testSettings()
	tightened.MaxBalance = big.NewInt(60)
	mustSetGroup(t, p, 0, tightened)
	checkGroupSums(t, p)

	// Registration order decides who keeps their stake.
	alice := p.ParticipantDetail(aliceAddr)
	if alice.Groups[0].Contribution != "50" || alice.Groups[0].Remaining != "0" {
		t.Fatalf("unexpected alice position: %+v", alice.Groups[0])
	}
	bob := p.ParticipantDetail(bobAddr)
	if bob.Groups[0].Contribution != "10" || bob.Groups[0].Remaining != "40" {
		t.Fatalf("unexpected bob position: %+v", bob.Groups[0])
	}

	// Relaxing the cap restores the original split.
	mustSetGroup(t, p, 0, testSettings())
	bob = p.ParticipantDetail(bobAddr)
	if bob.Groups[0].Contribution != "50" || bob.Groups[0].Remaining != "0" {
		t.Fatalf("unexpected bob position after relaxing: %+v", bob.Groups[0])
	}
	checkGroupSums(t, p)
}

func TestRebalanceIdempotent(t *testing.T) {
	p, _ := newTestPool(t, 10_000)
	mustSetGroup(t, p, 0, testSettings())
	mustDeposit(t, p, aliceAddr, 0, 50)
	mustDeposit(t, p, bobAddr, 0, 30)

	tightened := testSettings()
	tightened.MaxBalance = big.NewInt(60)
	mustSetGroup(t, p, 0, tightened)
	first := snapshot(p, []common.Address{aliceAddr, bobAddr})

	mustSetGroup(t, p, 0, tightened)
	second := snapshot(p, []common.Address{aliceAddr, bobAddr})

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rebalance not idempotent: %+v != %+v", first, second)
	}
}

func TestAllowListExclusionMovesStakeToRemaining(t *testing.T) {
	p, _ := newTestPool(t, 10_000)
	settings := testSettings()
	settings.Restricted = true
	mustSetGroup(t, p, 0, settings)

	if err := p.ModifyAllowList(creatorAddr, 0, []common.Address{aliceAddr, bobAddr}, nil); err != nil {
		t.Fatalf("modify allow list: %v", err)
	}
	mustDeposit(t, p, aliceAddr, 0, 30)
	mustDeposit(t, p, bobAddr, 0, 40)

	if err := p.ModifyAllowList(creatorAddr, 0, nil, []common.Address{bobAddr}); err != nil {
		t.Fatalf("exclude bob: %v", err)
	}
	checkGroupSums(t, p)

	bob := p.ParticipantDetail(bobAddr)
	if bob.Groups[0].Contribution != "0" || bob.Groups[0].Remaining != "40" {
		t.Fatalf("unexpected bob position after exclusion: %+v", bob.Groups[0])
	}
	detail, _ := p.GroupDetail(0)
	if detail.Contribution != "30" || detail.Remaining != "40" {
		t.Fatalf("unexpected group totals: %+v", detail)
	}

	// Re-including restores the stake.
	if err := p.ModifyAllowList(creatorAddr, 0, []common.Address{bobAddr}, nil); err != nil {
		t.Fatalf("re-include bob: %v", err)
	}
	bob = p.ParticipantDetail(bobAddr)
	if bob.Groups[0].Contribution != "40" || bob.Groups[0].Remaining != "0" {
		t.Fatalf("unexpected bob position after re-inclusion: %+v", bob.Groups[0])
	}
}
