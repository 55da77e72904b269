package sim

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Op is one scripted pool operation, decoded from a JSONL scenario line.
// Fields are shared across op kinds; each kind reads the ones it needs.
type Op struct {
	Op           string   `json:"op"`
	Actor        string   `json:"actor,omitempty"`
	Participant  string   `json:"participant,omitempty"`
	Group        int      `json:"group,omitempty"`
	Amount       string   `json:"amount,omitempty"`
	Min          string   `json:"min,omitempty"`
	Max          string   `json:"max,omitempty"`
	MaxBalance   string   `json:"max_balance,omitempty"`
	FeePPM       uint32   `json:"fee_ppm,omitempty"`
	Restricted   bool     `json:"restricted,omitempty"`
	Include      []string `json:"include,omitempty"`
	Exclude      []string `json:"exclude,omitempty"`
	Addrs        []string `json:"addrs,omitempty"`
	Target       string   `json:"target,omitempty"`
	MinPoolTotal string   `json:"min_pool_total,omitempty"`
	FeeToToken   bool     `json:"fee_to_token,omitempty"`
	Token        string   `json:"token,omitempty"`
	Address      string   `json:"address,omitempty"`
	From         string   `json:"from,omitempty"`
	Data         string   `json:"data,omitempty"`
}

// Supported op kinds.
const (
	OpSetGroup     = "set_group"
	OpAllowList    = "allow_list"
	OpAddAdmins    = "add_admins"
	OpDeposit      = "deposit"
	OpWithdraw     = "withdraw"
	OpWithdrawAll  = "withdraw_all"
	OpPay          = "pay"
	OpMintToken    = "mint_token"
	OpConfirmToken = "confirm_token"
	OpSetRefund    = "set_refund"
	OpRefund       = "refund"
	OpCancel       = "cancel"
)

// ParseAddress converts a required string address into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		addr, err := ParseAddress(input)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// ParseAmount converts a decimal string into a big.Int. Empty means zero.
func ParseAmount(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", value)
	}
	return parsed, nil
}
