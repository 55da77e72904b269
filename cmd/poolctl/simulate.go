package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"presalepool/internal/audit"
	"presalepool/internal/audit/postgres"
	"presalepool/internal/config"
	"presalepool/internal/external"
	"presalepool/internal/pool"
	"presalepool/internal/sim"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Ops == "" {
		return fmt.Errorf("ops path is required")
	}
	if cfg.Creator == "" {
		return fmt.Errorf("creator address is required")
	}
	if cfg.Self == "" {
		return fmt.Errorf("self address is required")
	}

	creator, err := sim.ParseAddress(cfg.Creator)
	if err != nil {
		return err
	}
	self, err := sim.ParseAddress(cfg.Self)
	if err != nil {
		return err
	}
	admins, err := sim.ParseAddresses(cfg.Admins)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink audit.Sink
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sink = store
	} else {
		sink = audit.NewJsonlSink(cfg.AuditOut)
	}

	registry := external.NewMemRegistry(self)
	env := external.Env{
		Fees:    external.NewMemFeeService(cfg.FeePPM),
		Tokens:  registry,
		Invoker: external.NewMemInvoker(),
	}

	p, err := pool.New(ctx, pool.Config{Self: self, Creator: creator, Admins: admins}, env, sink, logger)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}

	logger.Info("simulate start",
		zap.String("ops", cfg.Ops),
		zap.String("creator", creator.Hex()),
		zap.Int("admins", len(admins)),
		zap.Uint32("fee_ppm", cfg.FeePPM),
		zap.String("audit_out", cfg.AuditOut),
	)

	runner := sim.NewRunner(p, registry, cfg.Self, logger)
	result, err := runner.Run(ctx, cfg.Ops)
	if err != nil {
		return err
	}

	summary := p.Summary()
	logger.Info("simulate complete",
		zap.Int("applied", result.Applied),
		zap.Int("rejected", result.Rejected),
		zap.String("state", summary.State),
		zap.String("contribution", summary.Contribution),
		zap.String("balance", summary.Balance),
	)

	if cfg.SummaryOut != "" {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		if err := os.WriteFile(cfg.SummaryOut, data, 0o644); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	return nil
}
