package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "poolctl",
		Short:        "Fund-pooling engine tooling",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scripted operation log against an in-memory pool",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("ops", "", "scenario JSONL path")
	simulateCmd.Flags().String("creator", "", "pool creator address")
	simulateCmd.Flags().StringSlice("admin", nil, "additional admin addresses (comma-separated)")
	simulateCmd.Flags().String("self", "", "pool's own address, used for token balance reads")
	simulateCmd.Flags().Uint32("fee-ppm", 10_000, "service fee rate in parts per million")
	simulateCmd.Flags().String("audit-out", "./data/audit.jsonl", "audit trail JSONL path")
	simulateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the audit trail")
	simulateCmd.Flags().String("summary-out", "", "optional pool summary JSON output path")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	tokenInfoCmd := &cobra.Command{
		Use:   "token-info",
		Short: "Read an ERC-20 token's metadata and balance over RPC",
		RunE:  runTokenInfo,
	}

	tokenInfoCmd.Flags().String("rpc", "", "RPC URL")
	tokenInfoCmd.Flags().String("token", "", "token contract address")
	tokenInfoCmd.Flags().String("holder", "", "optional holder address for a balance read")
	tokenInfoCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(tokenInfoCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
