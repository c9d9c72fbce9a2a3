package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sablebot/sable-backend/internal/aggregator"
	"github.com/sablebot/sable-backend/internal/api"
	"github.com/sablebot/sable-backend/internal/config"
	"github.com/sablebot/sable-backend/internal/db"
	"github.com/sablebot/sable-backend/internal/discovery"
	"github.com/sablebot/sable-backend/internal/ethereum"
	"github.com/sablebot/sable-backend/internal/executor"
	"github.com/sablebot/sable-backend/internal/monitor"
	"github.com/sablebot/sable-backend/internal/notifications"
	"github.com/sablebot/sable-backend/internal/repository"
	"github.com/sablebot/sable-backend/internal/trigger"
)

const banner = `
╔══════════════════════════════════════╗
║     SABLE Exposure Manager v0.3      ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Database
	fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
	pool, err := db.Connect(cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		pool.Close()
		fmt.Println("[DB] Connection pool closed")
	}()

	if err := db.Migrate(pool); err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Migration failed: %v\n", err)
		os.Exit(1)
	}
	if err := db.TestConnection(pool); err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Test query failed: %v\n", err)
		os.Exit(1)
	}

	// Repos
	tradeRepo := repository.NewTradeRepo(pool)

	// Notifications
	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName)

	// Swap aggregator
	agg := aggregator.NewClient(cfg.AggregatorQuoteURL, cfg.AggregatorSwapURL, cfg.AggregatorAPIKey)

	// Discovery feed (also serves token decimals in simulation mode)
	feed := discovery.NewClient(cfg.DiscoveryURL)

	// Chain client only in live mode; simulation never signs anything.
	var chain executor.Chain
	var decimals executor.DecimalsSource = feed
	if cfg.LiveSwapsEnabled {
		ethClient, err := ethereum.NewClient(cfg.EthereumAPIEndpoint, cfg.PrivateKey,
			int64(cfg.ChainID), cfg.GasLimit, cfg.GasMultiplier)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[ETH] Client init failed: %v\n", err)
			os.Exit(1)
		}
		chain = ethClient
		decimals = ethClient
	}

	exec, err := executor.New(executor.Config{
		WETHAddress:     cfg.WETHAddress,
		Wallet:          cfg.WalletAddress,
		LiveSwaps:       cfg.LiveSwapsEnabled,
		SlippageBps:     cfg.DefaultSlippageBps,
		SubmitAttempts:  cfg.SubmitMaxAttempts,
		SubmitBackoff:   time.Duration(cfg.SubmitBackoffSeconds) * time.Second,
		ConfirmPolls:    cfg.ConfirmPollAttempts,
		ConfirmInterval: time.Duration(cfg.ConfirmPollSeconds) * time.Second,
	}, agg, agg, chain, tradeRepo, decimals, notify)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[EXEC] Init failed: %v\n", err)
		os.Exit(1)
	}

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Position monitor
	mon := monitor.New(monitor.Config{
		Interval:      time.Duration(cfg.MonitorIntervalSeconds) * time.Second,
		TakeProfit:    cfg.TakeProfitFraction,
		StopLoss:      cfg.StopLossFraction,
		ProbeFraction: cfg.ProbeFraction,
		SlippageBps:   cfg.DefaultSlippageBps,
		Wallet:        cfg.WalletAddress,
		WETHAddress:   cfg.WETHAddress,
	}, tradeRepo, agg, exec, decimals)
	mon.Start()

	// 2. Auto-buy watcher
	var watcher *discovery.Watcher
	if cfg.AutoBuyEnabled && cfg.DiscoveryURL != "" {
		buyer := trigger.New(trigger.Config{
			AmountETH:       cfg.AutoBuyAmountETH,
			MinLiquidityUSD: cfg.MinTokenLiquidityUSD,
			MinMarketCapUSD: cfg.MinTokenMarketCapUSD,
			SlippageBps:     cfg.DefaultSlippageBps,
			Wallet:          cfg.WalletAddress,
			QuoteAsset:      cfg.WETHAddress,
			SeenCacheSize:   cfg.SeenCacheSize,
		}, exec, notify)

		watcher = discovery.NewWatcher(feed, buyer.OnCandidate, discovery.WatcherConfig{
			Interval: time.Duration(cfg.TokenWatchIntervalSeconds) * time.Second,
			Prime:    buyer.Prime,
		})
		watcher.Start()
	} else {
		fmt.Println("[WATCHER] Skipped - auto-buy disabled")
	}

	// 3. API server
	srv := api.NewServer(pool, exec, mon, api.Options{
		Port:               cfg.APIPort,
		APIKey:             cfg.APIKey,
		CORSOrigin:         cfg.CORSAllowOrigin,
		Wallet:             cfg.WalletAddress,
		DefaultSlippageBps: cfg.DefaultSlippageBps,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	if watcher != nil {
		watcher.Stop()
	}
	mon.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	notify.Flush()
	fmt.Println("Shutdown complete")
}
