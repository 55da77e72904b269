package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"presalepool/internal/chain"
	"presalepool/internal/sim"
)

func runTokenInfo(cmd *cobra.Command, _ []string) error {
	rpcURL, _ := cmd.Flags().GetString("rpc")
	tokenStr, _ := cmd.Flags().GetString("token")
	holderStr, _ := cmd.Flags().GetString("holder")
	logLevel, _ := cmd.Flags().GetString("log-level")

	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if rpcURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if tokenStr == "" {
		return fmt.Errorf("token address is required")
	}

	token, err := sim.ParseAddress(tokenStr)
	if err != nil {
		return err
	}
	holder := common.Address{}
	if holderStr != "" {
		holder, err = sim.ParseAddress(holderStr)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, rpcURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	info, err := client.FetchTokenInfo(ctx, token, holder)
	if err != nil {
		return fmt.Errorf("fetch token info: %w", err)
	}

	logger.Info("token info",
		zap.String("token", info.Address),
		zap.String("symbol", info.Symbol),
		zap.Uint8("decimals", info.Decimals),
		zap.String("balance", info.Balance),
	)

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token info: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
