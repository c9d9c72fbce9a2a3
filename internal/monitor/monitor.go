package monitor

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sablebot/sable-backend/internal/aggregator"
	"github.com/sablebot/sable-backend/internal/ethereum"
	"github.com/sablebot/sable-backend/internal/models"
	"github.com/sablebot/sable-backend/internal/position"
)

// PositionSource supplies the open positions to evaluate. Satisfied by
// repository.TradeRepo.
type PositionSource interface {
	Positions(ctx context.Context) ([]position.Position, error)
}

type Oracle interface {
	Quote(ctx context.Context, inputAsset, outputAsset string, amount *big.Int, slippageBps int) (*aggregator.Quote, error)
}

// Trader closes positions. Satisfied by executor.Executor.
type Trader interface {
	Execute(ctx context.Context, intent models.TradeIntent) (*models.ExecutionResult, error)
}

type DecimalsSource interface {
	TokenDecimals(ctx context.Context, asset string) (int, error)
}

type Config struct {
	Interval      time.Duration // e.g. 5*time.Second
	TakeProfit    float64       // fraction, e.g. 0.10
	StopLoss      float64       // fraction, e.g. 0.05
	ProbeFraction float64       // share of exposure priced per check
	SlippageBps   int
	Wallet        string
	WETHAddress   string
}

type thresholds struct {
	takeProfit float64
	stopLoss   float64
}

// Monitor re-prices every open position on an interval and closes any
// whose unrealized pnl breaches its take-profit or stop-loss level.
type Monitor struct {
	cfg       Config
	positions PositionSource
	oracle    Oracle
	trader    Trader
	decimals  DecimalsSource

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	overrides map[string]thresholds

	ticking atomic.Bool
}

func New(cfg Config, positions PositionSource, oracle Oracle, trader Trader, decimals DecimalsSource) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.TakeProfit <= 0 {
		cfg.TakeProfit = 0.10
	}
	if cfg.StopLoss <= 0 {
		cfg.StopLoss = 0.05
	}
	if cfg.ProbeFraction <= 0 || cfg.ProbeFraction > 1 {
		cfg.ProbeFraction = 0.05
	}
	return &Monitor{
		cfg:       cfg,
		positions: positions,
		oracle:    oracle,
		trader:    trader,
		decimals:  decimals,
		overrides: make(map[string]thresholds),
	}
}

// SetThresholds installs per-asset take-profit and stop-loss levels,
// replacing the global defaults for that asset. Both are fractions of
// the entry price.
func (m *Monitor) SetThresholds(asset string, takeProfit, stopLoss float64) error {
	if takeProfit <= 0 || stopLoss <= 0 {
		return fmt.Errorf("thresholds must be positive fractions")
	}
	if takeProfit > 10 || stopLoss >= 1 {
		return fmt.Errorf("threshold out of range: tp %.4f, sl %.4f", takeProfit, stopLoss)
	}
	m.mu.Lock()
	m.overrides[asset] = thresholds{takeProfit: takeProfit, stopLoss: stopLoss}
	m.mu.Unlock()
	fmt.Printf("[MONITOR] Thresholds for %s: tp %.2f%%, sl %.2f%%\n", asset, takeProfit*100, stopLoss*100)
	return nil
}

func (m *Monitor) thresholdsFor(asset string) thresholds {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.overrides[asset]; ok {
		return t
	}
	return thresholds{takeProfit: m.cfg.TakeProfit, stopLoss: m.cfg.StopLoss}
}

func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		fmt.Println("[MONITOR] Already running")
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	go func() {
		m.Tick(context.Background())

		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				m.Tick(context.Background())
			}
		}
	}()

	fmt.Printf("[MONITOR] Started (every %s, tp %.2f%%, sl %.2f%%)\n",
		m.cfg.Interval, m.cfg.TakeProfit*100, m.cfg.StopLoss*100)
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.stopCh)
	m.running = false
	fmt.Println("[MONITOR] Stopped")
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Tick runs one evaluation pass. A pass that is still in flight when
// the next interval fires is not stacked: the late pass is skipped.
func (m *Monitor) Tick(ctx context.Context) {
	if !m.ticking.CompareAndSwap(false, true) {
		fmt.Println("[MONITOR] Previous pass still running, skipping")
		return
	}
	defer m.ticking.Store(false)

	positions, err := m.positions.Positions(ctx)
	if err != nil {
		fmt.Printf("[MONITOR] Could not load positions: %v\n", err)
		return
	}

	for _, pos := range positions {
		if !pos.Open() {
			continue
		}
		if pos.AvgEntryPrice <= 0 {
			fmt.Printf("[MONITOR] SKIPPED %s: no entry price on record\n", pos.Asset)
			continue
		}
		m.evaluate(ctx, pos)
	}
}

func (m *Monitor) evaluate(ctx context.Context, pos position.Position) {
	dec, err := m.decimals.TokenDecimals(ctx, pos.Asset)
	if err != nil {
		fmt.Printf("[MONITOR] SKIPPED %s: decimals lookup failed: %v\n", pos.Asset, err)
		return
	}

	current, err := m.probePrice(ctx, pos, dec)
	if err != nil {
		fmt.Printf("[MONITOR] SKIPPED %s: %v\n", pos.Asset, err)
		return
	}

	pnl := (current - pos.AvgEntryPrice) / pos.AvgEntryPrice
	t := m.thresholdsFor(pos.Asset)

	var reason string
	switch {
	case pnl >= t.takeProfit:
		reason = models.ReasonTakeProfit
	case pnl <= -t.stopLoss:
		reason = models.ReasonStopLoss
	default:
		return
	}

	fmt.Printf("[MONITOR] %s breach on %s: entry %.8f, now %.8f (%+.2f%%)\n",
		reason, pos.Asset, pos.AvgEntryPrice, current, pnl*100)

	intent := models.TradeIntent{
		Side:          models.SideSell,
		Asset:         pos.Asset,
		BaseAmountWei: new(big.Int).Set(pos.NetExposureWei),
		SlippageBps:   m.cfg.SlippageBps,
		Wallet:        m.cfg.Wallet,
		RefPrice:      pos.AvgEntryPrice,
		Reason:        reason,
	}

	res, err := m.trader.Execute(ctx, intent)
	if err != nil {
		fmt.Printf("[MONITOR] Close of %s failed: %v\n", pos.Asset, err)
		return
	}
	if !res.Success {
		fmt.Printf("[MONITOR] Close of %s not executed: %s\n", pos.Asset, res.FailureReason)
		return
	}
	fmt.Printf("[MONITOR] RECORDED %s close of %s: ref %s\n", reason, pos.Asset, res.ExecutionRef)
}

// probePrice quotes a small slice of the position into WETH and reads
// the implied unit price off the quote. The probe never trades: it
// only prices.
func (m *Monitor) probePrice(ctx context.Context, pos position.Position, dec int) (float64, error) {
	probeTokens := pos.NetExposureETH * m.cfg.ProbeFraction / pos.AvgEntryPrice
	probeUnits := ethereum.ToTokenUnits(probeTokens, dec)
	if probeUnits == nil || probeUnits.Sign() <= 0 {
		return 0, fmt.Errorf("exposure too small to probe")
	}

	quote, err := m.oracle.Quote(ctx, pos.Asset, m.cfg.WETHAddress, probeUnits, m.cfg.SlippageBps)
	if err != nil {
		return 0, fmt.Errorf("probe quote failed: %w", err)
	}

	tokens := ethereum.FromTokenUnits(quote.InAmount, dec)
	eth := ethereum.FromWei(quote.OutAmount)
	if tokens <= 0 || eth <= 0 {
		return 0, fmt.Errorf("probe quote returned empty legs")
	}
	return eth / tokens, nil
}
