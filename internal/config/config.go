package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SimulateConfig holds configuration for the simulate command, loaded
// from flags, env, or config file.
type SimulateConfig struct {
	Ops        string
	Creator    string
	Admins     []string
	Self       string
	FeePPM     uint32
	AuditOut   string
	PGDSN      string
	SummaryOut string
	LogLevel   string
}

// LoadSimulate merges config file, environment variables, and flags.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("fee-ppm", uint32(10_000))
	v.SetDefault("audit-out", "./data/audit.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return SimulateConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return SimulateConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return SimulateConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := SimulateConfig{
		Ops:        v.GetString("ops"),
		Creator:    v.GetString("creator"),
		Admins:     getStringSlice(v, "admin"),
		Self:       v.GetString("self"),
		FeePPM:     v.GetUint32("fee-ppm"),
		AuditOut:   v.GetString("audit-out"),
		PGDSN:      v.GetString("pg-dsn"),
		SummaryOut: v.GetString("summary-out"),
		LogLevel:   v.GetString("log-level"),
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
