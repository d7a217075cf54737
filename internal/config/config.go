package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Venue is one static per-chain DEX entry used to seed gas estimates.
type Venue struct {
	DEX           string  `yaml:"dex"`
	RouterAddress string  `yaml:"router_address"`
	GasCostUSD    float64 `yaml:"gas_cost_usd"`
}

// Config holds all application configuration.
type Config struct {
	Risk struct {
		MaxTradeUSD       float64 `yaml:"max_trade_usd"`
		DailyLossLimitUSD float64 `yaml:"daily_loss_limit_usd"`
		ConfidenceFloor   float64 `yaml:"confidence_floor"`
		SizingFraction    float64 `yaml:"sizing_fraction"`
	} `yaml:"risk"`
	Consensus struct {
		MinOpinionConfidence float64            `yaml:"min_opinion_confidence"`
		TrustWeights         map[string]float64 `yaml:"trust_weights"`
		JudgeTimeoutSec      int                `yaml:"judge_timeout_sec"`
	} `yaml:"consensus"`
	Execution struct {
		MaxSlippage float64 `yaml:"max_slippage"`
		MaxAttempts int     `yaml:"max_attempts"` // 0 means one per candidate
		GatewayURL  string  `yaml:"gateway_url"`  // swap execution endpoint
	} `yaml:"execution"`
	Resolver struct {
		ChainPriority  []string           `yaml:"chain_priority"`
		EquivalenceMap map[string]string  `yaml:"equivalence_map"` // wrapped -> underlying
		Venues         map[string][]Venue `yaml:"venues"`          // chain -> venue book
	} `yaml:"resolver"`
	Market struct {
		SearchBaseURL string `yaml:"search_base_url"`
		PriceFeedURL  string `yaml:"price_feed_url"` // websocket endpoint
	} `yaml:"market"`
	Judges []struct {
		ID      string `yaml:"id"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"judges"`
	Pipeline struct {
		IntervalSec     int      `yaml:"interval_sec"`
		CycleTimeoutSec int      `yaml:"cycle_timeout_sec"`
		Watchlist       []string `yaml:"watchlist"`
		DailyResetCron  string   `yaml:"daily_reset_cron"`
	} `yaml:"pipeline"`
	Database struct {
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickHouseDSN string `yaml:"clickhouse_dsn"`
	} `yaml:"database"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("MAX_TRADE_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.MaxTradeUSD = f
		}
	}
	if v := os.Getenv("DAILY_LOSS_LIMIT_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.DailyLossLimitUSD = f
		}
	}
	if v := os.Getenv("CONFIDENCE_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.ConfidenceFloor = f
		}
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Database.ClickHouseDSN = v
	}
	if v := os.Getenv("MARKET_SEARCH_URL"); v != "" {
		cfg.Market.SearchBaseURL = v
	}
	if v := os.Getenv("PRICE_FEED_URL"); v != "" {
		cfg.Market.PriceFeedURL = v
	}
	if v := os.Getenv("EXECUTION_GATEWAY_URL"); v != "" {
		cfg.Execution.GatewayURL = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	// Defaults
	if cfg.Risk.MaxTradeUSD == 0 {
		cfg.Risk.MaxTradeUSD = 25
	}
	if cfg.Risk.DailyLossLimitUSD == 0 {
		cfg.Risk.DailyLossLimitUSD = 50
	}
	if cfg.Risk.ConfidenceFloor == 0 {
		cfg.Risk.ConfidenceFloor = 0.70
	}
	if cfg.Risk.SizingFraction == 0 {
		cfg.Risk.SizingFraction = 0.50
	}
	if cfg.Consensus.MinOpinionConfidence == 0 {
		cfg.Consensus.MinOpinionConfidence = 0.65
	}
	if cfg.Consensus.JudgeTimeoutSec == 0 {
		cfg.Consensus.JudgeTimeoutSec = 20
	}
	if cfg.Execution.MaxSlippage == 0 {
		cfg.Execution.MaxSlippage = 0.02
	}
	if len(cfg.Resolver.ChainPriority) == 0 {
		cfg.Resolver.ChainPriority = []string{"ethereum", "bsc", "polygon", "solana"}
	}
	if cfg.Resolver.EquivalenceMap == nil {
		cfg.Resolver.EquivalenceMap = map[string]string{
			"WETH":   "ETH",
			"WBNB":   "BNB",
			"WMATIC": "MATIC",
			"WBTC":   "BTC",
		}
	}
	if cfg.Pipeline.IntervalSec == 0 {
		cfg.Pipeline.IntervalSec = 60
	}
	if cfg.Pipeline.CycleTimeoutSec == 0 {
		cfg.Pipeline.CycleTimeoutSec = 300
	}
	if cfg.Pipeline.DailyResetCron == "" {
		cfg.Pipeline.DailyResetCron = "0 0 * * *" // midnight UTC
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9090"
	}

	return cfg, nil
}

// Validate checks limits before the first cycle runs. Any violation is fatal
// at startup.
func (c *Config) Validate() error {
	if c.Risk.MaxTradeUSD <= 0 {
		return fmt.Errorf("risk.max_trade_usd must be positive")
	}
	if c.Risk.DailyLossLimitUSD <= 0 {
		return fmt.Errorf("risk.daily_loss_limit_usd must be positive")
	}
	if c.Risk.ConfidenceFloor < 0 || c.Risk.ConfidenceFloor > 1 {
		return fmt.Errorf("risk.confidence_floor must be in [0,1]")
	}
	if c.Risk.SizingFraction <= 0 || c.Risk.SizingFraction > 1 {
		return fmt.Errorf("risk.sizing_fraction must be in (0,1]")
	}
	if c.Execution.MaxSlippage < 0 || c.Execution.MaxSlippage >= 1 {
		return fmt.Errorf("execution.max_slippage must be in [0,1)")
	}
	if len(c.Resolver.ChainPriority) == 0 {
		return fmt.Errorf("resolver.chain_priority must not be empty")
	}
	for _, w := range c.Consensus.TrustWeights {
		if w < 0 {
			return fmt.Errorf("consensus.trust_weights must be non-negative")
		}
	}
	if c.Pipeline.IntervalSec <= 0 {
		return fmt.Errorf("pipeline.interval_sec must be positive")
	}
	if c.Pipeline.CycleTimeoutSec <= 0 {
		return fmt.Errorf("pipeline.cycle_timeout_sec must be positive")
	}
	return nil
}
