package external

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ownerAddr = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	recvAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e5")
)

func TestMemTokenTransferDebitsOwner(t *testing.T) {
	ctx := context.Background()
	tok := NewMemRegistry(ownerAddr).Register(tokAddr)
	tok.Mint(ownerAddr, big.NewInt(100))

	ok, err := tok.Transfer(ctx, recvAddr, big.NewInt(60))
	if err != nil || !ok {
		t.Fatalf("transfer: ok=%t err=%v", ok, err)
	}

	got, _ := tok.BalanceOf(ctx, ownerAddr)
	if got.Int64() != 40 {
		t.Fatalf("owner balance = %s, want 40", got)
	}
	got, _ = tok.BalanceOf(ctx, recvAddr)
	if got.Int64() != 60 {
		t.Fatalf("recipient balance = %s, want 60", got)
	}
}

func TestMemTokenTransferInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	tok := NewMemToken(ownerAddr)
	tok.Mint(ownerAddr, big.NewInt(10))

	ok, err := tok.Transfer(ctx, recvAddr, big.NewInt(11))
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if ok {
		t.Fatalf("transfer beyond the owner balance reported success")
	}

	got, _ := tok.BalanceOf(ctx, ownerAddr)
	if got.Int64() != 10 {
		t.Fatalf("owner balance = %s after failed transfer, want 10", got)
	}
	got, _ = tok.BalanceOf(ctx, recvAddr)
	if got.Sign() != 0 {
		t.Fatalf("recipient balance = %s after failed transfer, want 0", got)
	}
}

func TestMemTokenFailTransfers(t *testing.T) {
	ctx := context.Background()
	tok := NewMemToken(ownerAddr)
	tok.Mint(ownerAddr, big.NewInt(100))

	tok.FailTransfers = true
	ok, err := tok.Transfer(ctx, recvAddr, big.NewInt(1))
	if err != nil || ok {
		t.Fatalf("forced failure: ok=%t err=%v", ok, err)
	}
	got, _ := tok.BalanceOf(ctx, ownerAddr)
	if got.Int64() != 100 {
		t.Fatalf("owner balance = %s after forced failure, want 100", got)
	}
}
