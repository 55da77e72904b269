package sim

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"presalepool/internal/external"
	"presalepool/internal/pool"
)

// Runner replays a scripted operation stream against a pool wired to
// in-memory externals. Individual op rejections are expected input
// (adversarial sequences included) and are counted, not fatal; only
// malformed lines abort the run.
type Runner struct {
	pool     *pool.Pool
	registry *external.MemRegistry
	self     string
	logger   *zap.Logger
}

// Result summarizes one scenario run.
type Result struct {
	Applied  int `json:"applied"`
	Rejected int `json:"rejected"`
}

func NewRunner(p *pool.Pool, registry *external.MemRegistry, self string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{pool: p, registry: registry, self: self, logger: logger}
}

// Run applies every op in the JSONL scenario file in order.
func (r *Runner) Run(ctx context.Context, path string) (Result, error) {
	var result Result

	file, err := os.Open(path)
	if err != nil {
		return result, fmt.Errorf("open scenario: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var op Op
		if err := json.Unmarshal([]byte(line), &op); err != nil {
			return result, fmt.Errorf("line %d: parse op: %w", lineNo, err)
		}

		if err := r.apply(ctx, op); err != nil {
			result.Rejected++
			r.logger.Warn("op rejected",
				zap.Int("line", lineNo),
				zap.String("op", op.Op),
				zap.Error(err),
			)
			continue
		}
		result.Applied++
		r.logger.Info("op applied", zap.Int("line", lineNo), zap.String("op", op.Op))
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read scenario: %w", err)
	}

	return result, nil
}

func (r *Runner) apply(ctx context.Context, op Op) error {
	switch op.Op {
	case OpSetGroup:
		actor, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		min, err := ParseAmount(op.Min)
		if err != nil {
			return err
		}
		max, err := ParseAmount(op.Max)
		if err != nil {
			return err
		}
		maxBalance, err := ParseAmount(op.MaxBalance)
		if err != nil {
			return err
		}
		return r.pool.SetGroupSettings(actor, op.Group, pool.GroupSettings{
			MinContribution: min,
			MaxContribution: max,
			MaxBalance:      maxBalance,
			FeePPM:          op.FeePPM,
			Restricted:      op.Restricted,
		})

	case OpAllowList:
		actor, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		include, err := ParseAddresses(op.Include)
		if err != nil {
			return err
		}
		exclude, err := ParseAddresses(op.Exclude)
		if err != nil {
			return err
		}
		return r.pool.ModifyAllowList(actor, op.Group, include, exclude)

	case OpAddAdmins:
		actor, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		addrs, err := ParseAddresses(op.Addrs)
		if err != nil {
			return err
		}
		return r.pool.AddAdmins(actor, addrs)

	case OpDeposit:
		from, err := ParseAddress(op.Participant)
		if err != nil {
			return err
		}
		amount, err := ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		return r.pool.Deposit(from, op.Group, amount)

	case OpWithdraw:
		actor, err := ParseAddress(op.Participant)
		if err != nil {
			return err
		}
		amount, err := ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		return r.pool.WithdrawAmount(ctx, actor, op.Group, amount)

	case OpWithdrawAll:
		actor, err := ParseAddress(op.Participant)
		if err != nil {
			return err
		}
		return r.pool.WithdrawAll(ctx, actor)

	case OpPay:
		actor, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		target, err := ParseAddress(op.Target)
		if err != nil {
			return err
		}
		minTotal, err := ParseAmount(op.MinPoolTotal)
		if err != nil {
			return err
		}
		return r.pool.PayToPresale(ctx, actor, target, minTotal, []byte(op.Data), op.FeeToToken)

	case OpMintToken:
		if r.registry == nil {
			return fmt.Errorf("no token registry")
		}
		tokenAddr, err := ParseAddress(op.Token)
		if err != nil {
			return err
		}
		self, err := ParseAddress(r.self)
		if err != nil {
			return err
		}
		amount, err := ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		r.registry.Register(tokenAddr).Mint(self, amount)
		return nil

	case OpConfirmToken:
		actor, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		tokenAddr, err := ParseAddress(op.Token)
		if err != nil {
			return err
		}
		return r.pool.ConfirmTokenAddress(ctx, actor, tokenAddr)

	case OpSetRefund:
		actor, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		addr, err := ParseAddress(op.Address)
		if err != nil {
			return err
		}
		return r.pool.SetRefundAddress(actor, addr)

	case OpRefund:
		from, err := ParseAddress(op.From)
		if err != nil {
			return err
		}
		amount, err := ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		return r.pool.AcceptRefund(from, amount)

	case OpCancel:
		actor, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		return r.pool.Cancel(actor)

	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}
