package sim

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"presalepool/internal/external"
	"presalepool/internal/model"
	"presalepool/internal/pool"
)

const (
	simCreator = "0x00000000000000000000000000000000000000c0"
	simSelf    = "0x00000000000000000000000000000000000000ff"
	simAlice   = "0x00000000000000000000000000000000000000a1"
	simBob     = "0x00000000000000000000000000000000000000b2"
	simCarol   = "0x00000000000000000000000000000000000000c3"
	simTarget  = "0x00000000000000000000000000000000000000d4"
	simToken   = "0x00000000000000000000000000000000000000e5"
)

func newTestRunner(t *testing.T) (*Runner, *pool.Pool, *external.MemRegistry) {
	t.Helper()
	creator, err := ParseAddress(simCreator)
	if err != nil {
		t.Fatalf("parse creator: %v", err)
	}
	self, err := ParseAddress(simSelf)
	if err != nil {
		t.Fatalf("parse self: %v", err)
	}
	registry := external.NewMemRegistry(self)
	env := external.Env{
		Fees:    external.NewMemFeeService(0),
		Tokens:  registry,
		Invoker: external.NewMemInvoker(),
	}
	p, err := pool.New(context.Background(), pool.Config{Self: self, Creator: creator}, env, nil, nil)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	return NewRunner(p, registry, simSelf, nil), p, registry
}

func writeScenario(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.jsonl")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestRunFullLifecycle(t *testing.T) {
	runner, p, registry := newTestRunner(t)

	scenario := `# pooled presale, happy path with adversarial lines mixed in
{"op":"set_group","actor":"` + simCreator + `","group":0,"min":"10","max":"1000","max_balance":"1000"}
{"op":"deposit","participant":"` + simAlice + `","group":0,"amount":"600"}
{"op":"deposit","participant":"` + simBob + `","group":0,"amount":"400"}

{"op":"deposit","participant":"` + simCarol + `","group":0,"amount":"5"}
{"op":"pay","actor":"` + simAlice + `","target":"` + simTarget + `"}
{"op":"pay","actor":"` + simCreator + `","target":"` + simTarget + `"}
{"op":"mint_token","token":"` + simToken + `","amount":"1000"}
{"op":"confirm_token","actor":"` + simCreator + `","token":"` + simToken + `"}
{"op":"withdraw_all","participant":"` + simAlice + `"}
`
	result, err := runner.Run(context.Background(), writeScenario(t, scenario))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Applied != 7 {
		t.Fatalf("applied = %d, want 7", result.Applied)
	}
	if result.Rejected != 2 {
		t.Fatalf("rejected = %d, want 2", result.Rejected)
	}
	if got := p.State(); got != model.Distribution {
		t.Fatalf("final state = %s, want distribution", got)
	}

	tok, err := registry.Token(mustAddr(t, simToken))
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	balance, err := tok.BalanceOf(context.Background(), mustAddr(t, simAlice))
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if balance.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("alice token share = %s, want 600", balance)
	}
}

func TestRunUnknownOpIsRejected(t *testing.T) {
	runner, _, _ := newTestRunner(t)

	scenario := `{"op":"frobnicate"}` + "\n"
	result, err := runner.Run(context.Background(), writeScenario(t, scenario))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Applied != 0 || result.Rejected != 1 {
		t.Fatalf("result = %+v, want 0 applied / 1 rejected", result)
	}
}

func TestRunMalformedLineAborts(t *testing.T) {
	runner, _, _ := newTestRunner(t)

	scenario := `{"op":"cancel","actor":"` + simCreator + `"}` + "\n" + `{not json` + "\n"
	_, err := runner.Run(context.Background(), writeScenario(t, scenario))
	if err == nil {
		t.Fatalf("expected parse error for malformed line")
	}
}

func TestRunMissingFile(t *testing.T) {
	runner, _, _ := newTestRunner(t)
	if _, err := runner.Run(context.Background(), filepath.Join(t.TempDir(), "absent.jsonl")); err == nil {
		t.Fatalf("expected error for missing scenario file")
	}
}

func mustAddr(t *testing.T, s string) (addr common.Address) {
	t.Helper()
	addr, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("parse address %q: %v", s, err)
	}
	return addr
}
