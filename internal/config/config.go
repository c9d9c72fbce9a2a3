package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Secrets (from .env)
	WalletAddress       string
	PrivateKey          string
	EthereumAPIEndpoint string
	AggregatorAPIKey    string
	WebhookURL          string
	BotName             string
	APIKey              string
	CORSAllowOrigin     string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Blockchain
	ChainID       int
	WETHAddress   string
	GasLimit      int
	GasMultiplier float64

	// Execution
	LiveSwapsEnabled     bool
	AggregatorQuoteURL   string
	AggregatorSwapURL    string
	DefaultSlippageBps   int
	SubmitMaxAttempts    int
	SubmitBackoffSeconds int
	ConfirmPollAttempts  int
	ConfirmPollSeconds   int

	// Auto-buy
	AutoBuyEnabled            bool
	AutoBuyAmountETH          float64
	MinTokenLiquidityUSD      float64
	MinTokenMarketCapUSD      float64
	SeenCacheSize             int
	DiscoveryURL              string
	TokenWatchIntervalSeconds int

	// Position monitoring
	MonitorIntervalSeconds int
	TakeProfitFraction     float64
	StopLossFraction       float64
	ProbeFraction          float64

	// API
	APIPort int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		WalletAddress:       envStr("WALLET_ADDRESS", ""),
		PrivateKey:          envStr("PRIVATE_KEY", ""),
		EthereumAPIEndpoint: envStr("ETHEREUM_API_ENDPOINT", ""),
		AggregatorAPIKey:    envStr("AGGREGATOR_API_KEY", ""),
		WebhookURL:          envStr("WEBHOOK_URL", ""),
		BotName:             envStr("BOT_NAME", "SableTrader"),
		APIKey:              envStr("API_KEY", ""),
		CORSAllowOrigin:     envStr("CORS_ALLOW_ORIGIN", "*"),

		// Database
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "sable_trader"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		// Blockchain
		ChainID:       envInt("CHAIN_ID", 1),
		WETHAddress:   "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		GasLimit:      envInt("GAS_LIMIT", 350000),
		GasMultiplier: envFloat("GAS_MULTIPLIER", 1.2),

		// Execution
		LiveSwapsEnabled:     envBool("LIVE_SWAPS_ENABLED", false),
		AggregatorQuoteURL:   envStr("AGGREGATOR_QUOTE_URL", ""),
		AggregatorSwapURL:    envStr("AGGREGATOR_SWAP_URL", ""),
		DefaultSlippageBps:   envInt("DEFAULT_SLIPPAGE_BPS", 100),
		SubmitMaxAttempts:    envInt("SUBMIT_MAX_ATTEMPTS", 3),
		SubmitBackoffSeconds: envInt("SUBMIT_BACKOFF_SECONDS", 2),
		ConfirmPollAttempts:  envInt("CONFIRM_POLL_ATTEMPTS", 24),
		ConfirmPollSeconds:   envInt("CONFIRM_POLL_SECONDS", 5),

		// Auto-buy
		AutoBuyEnabled:            envBool("AUTO_BUY_ENABLED", false),
		AutoBuyAmountETH:          envFloat("AUTO_BUY_AMOUNT_ETH", 0.1),
		MinTokenLiquidityUSD:      envFloat("MIN_TOKEN_LIQUIDITY_USD", 5000),
		MinTokenMarketCapUSD:      envFloat("MIN_TOKEN_MARKETCAP_USD", 300000),
		SeenCacheSize:             envInt("SEEN_CACHE_SIZE", 512),
		DiscoveryURL:              envStr("DISCOVERY_URL", ""),
		TokenWatchIntervalSeconds: envInt("TOKEN_WATCH_INTERVAL_SECONDS", 10),

		// Position monitoring
		MonitorIntervalSeconds: envInt("MONITOR_INTERVAL_SECONDS", 5),
		TakeProfitFraction:     envFloat("TAKE_PROFIT_FRACTION", 0.10),
		StopLossFraction:       envFloat("STOP_LOSS_FRACTION", 0.05),
		ProbeFraction:          envFloat("PROBE_FRACTION", 0.05),

		// API
		APIPort: envInt("API_PORT", 8080),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.WalletAddress == "" {
		errs = append(errs, "WALLET_ADDRESS is required")
	}
	if c.LiveSwapsEnabled {
		if c.PrivateKey == "" {
			errs = append(errs, "PRIVATE_KEY is required when LIVE_SWAPS_ENABLED=true")
		}
		if c.EthereumAPIEndpoint == "" {
			errs = append(errs, "ETHEREUM_API_ENDPOINT is required when LIVE_SWAPS_ENABLED=true")
		}
	}
	if c.AggregatorQuoteURL == "" || c.AggregatorSwapURL == "" {
		errs = append(errs, "AGGREGATOR_QUOTE_URL and AGGREGATOR_SWAP_URL are required")
	}
	if c.TakeProfitFraction <= 0 || c.TakeProfitFraction > 10 {
		errs = append(errs, fmt.Sprintf("TAKE_PROFIT_FRACTION %.4f out of range — a fraction like 0.10, not a percent", c.TakeProfitFraction))
	}
	if c.StopLossFraction <= 0 || c.StopLossFraction >= 1 {
		errs = append(errs, fmt.Sprintf("STOP_LOSS_FRACTION %.4f out of range — a fraction like 0.05, not a percent", c.StopLossFraction))
	}
	if c.ProbeFraction <= 0 || c.ProbeFraction > 1 {
		errs = append(errs, fmt.Sprintf("PROBE_FRACTION %.4f out of range (0, 1]", c.ProbeFraction))
	}

	if c.AutoBuyEnabled && c.DiscoveryURL == "" {
		fmt.Println("[WARN] AUTO_BUY_ENABLED=true but DISCOVERY_URL not set — auto-buy will stay idle")
	}
	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set — REST API has no authentication")
	}
	if c.WebhookURL == "" {
		fmt.Println("[WARN] WEBHOOK_URL not set — trade notifications disabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== Sable Exposure Manager Configuration ===")

	if c.LiveSwapsEnabled {
		fmt.Println("  LIVE SWAPS MODE")
	} else {
		fmt.Println("════════════════════════════════════════")
		fmt.Println("  SIMULATION MODE ENABLED")
		fmt.Println("  No real transactions will execute")
		fmt.Println("════════════════════════════════════════")
	}

	fmt.Println("--------------------------------------")
	fmt.Printf("Chain ID: %d\n", c.ChainID)
	if len(c.WalletAddress) > 16 {
		fmt.Printf("Wallet: %s...%s\n", c.WalletAddress[:10], c.WalletAddress[len(c.WalletAddress)-6:])
	}
	fmt.Printf("Quote Leg: WETH (%s...)\n", truncAddr(c.WETHAddress))
	fmt.Printf("Slippage: %d bps\n", c.DefaultSlippageBps)
	fmt.Println("--------------------------------------")
	fmt.Println("Position Monitoring:")
	fmt.Printf("  Interval: %ds\n", c.MonitorIntervalSeconds)
	fmt.Printf("  Take Profit: %.1f%%\n", c.TakeProfitFraction*100)
	fmt.Printf("  Stop Loss: %.1f%%\n", c.StopLossFraction*100)
	fmt.Printf("  Probe Size: %.1f%% of exposure\n", c.ProbeFraction*100)
	fmt.Println("--------------------------------------")
	fmt.Println("Auto-Buy:")
	fmt.Printf("  Enabled: %v\n", c.AutoBuyEnabled)
	if c.AutoBuyEnabled {
		fmt.Printf("  Buy Size: %.4f ETH\n", c.AutoBuyAmountETH)
		fmt.Printf("  Liquidity Floor: $%.0f\n", c.MinTokenLiquidityUSD)
		fmt.Printf("  Market Cap Floor: $%.0f\n", c.MinTokenMarketCapUSD)
		fmt.Printf("  Feed Poll: every %ds\n", c.TokenWatchIntervalSeconds)
	}
	fmt.Println("--------------------------------------")
	fmt.Printf("Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Println("======================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func truncAddr(addr string) string {
	if len(addr) > 10 {
		return addr[:10]
	}
	return addr
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
