package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Risk.MaxTradeUSD != 25 {
		t.Errorf("MaxTradeUSD = %v, want 25", cfg.Risk.MaxTradeUSD)
	}
	if cfg.Risk.ConfidenceFloor != 0.70 {
		t.Errorf("ConfidenceFloor = %v, want 0.70", cfg.Risk.ConfidenceFloor)
	}
	if cfg.Risk.SizingFraction != 0.50 {
		t.Errorf("SizingFraction = %v, want 0.50", cfg.Risk.SizingFraction)
	}
	if cfg.Resolver.EquivalenceMap["WETH"] != "ETH" {
		t.Errorf("EquivalenceMap[WETH] = %q, want ETH", cfg.Resolver.EquivalenceMap["WETH"])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
risk:
  max_trade_usd: 100
  daily_loss_limit_usd: 200
resolver:
  chain_priority: [solana, ethereum]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MAX_TRADE_USD", "42.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Risk.MaxTradeUSD != 42.5 {
		t.Errorf("env override lost: MaxTradeUSD = %v, want 42.5", cfg.Risk.MaxTradeUSD)
	}
	if cfg.Risk.DailyLossLimitUSD != 200 {
		t.Errorf("DailyLossLimitUSD = %v, want 200", cfg.Risk.DailyLossLimitUSD)
	}
	if len(cfg.Resolver.ChainPriority) != 2 || cfg.Resolver.ChainPriority[0] != "solana" {
		t.Errorf("ChainPriority = %v", cfg.Resolver.ChainPriority)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative max trade", func(c *Config) { c.Risk.MaxTradeUSD = -1 }},
		{"zero loss limit", func(c *Config) { c.Risk.DailyLossLimitUSD = -5 }},
		{"confidence floor above 1", func(c *Config) { c.Risk.ConfidenceFloor = 1.5 }},
		{"zero sizing fraction", func(c *Config) { c.Risk.SizingFraction = -0.1 }},
		{"slippage at 1", func(c *Config) { c.Execution.MaxSlippage = 1.0 }},
		{"empty chain priority", func(c *Config) { c.Resolver.ChainPriority = nil }},
		{"negative trust weight", func(c *Config) {
			c.Consensus.TrustWeights = map[string]float64{"judge-a": -1}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
