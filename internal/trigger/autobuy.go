package trigger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sablebot/sable-backend/internal/discovery"
	"github.com/sablebot/sable-backend/internal/ethereum"
	"github.com/sablebot/sable-backend/internal/models"
	"github.com/sablebot/sable-backend/internal/notifications"
)

// Trader executes a trade intent. Satisfied by executor.Executor.
type Trader interface {
	Execute(ctx context.Context, intent models.TradeIntent) (*models.ExecutionResult, error)
}

type Config struct {
	AmountETH       float64 // fixed buy size per new token
	MinLiquidityUSD float64
	MinMarketCapUSD float64
	SlippageBps     int
	Wallet          string
	QuoteAsset      string // never bought: it funds the buys
	SeenCacheSize   int
}

// AutoBuyer reacts to newly listed tokens: each address is considered
// exactly once, and a fixed-size buy is placed when the listing clears
// the liquidity and market-cap floors.
type AutoBuyer struct {
	cfg    Config
	trader Trader
	sink   notifications.Sink

	mu    sync.Mutex
	seen  map[string]struct{}
	order []string // insertion order, oldest first
}

func New(cfg Config, trader Trader, sink notifications.Sink) *AutoBuyer {
	if cfg.AmountETH <= 0 {
		cfg.AmountETH = 0.1
	}
	if cfg.MinLiquidityUSD <= 0 {
		cfg.MinLiquidityUSD = 5000
	}
	if cfg.MinMarketCapUSD <= 0 {
		cfg.MinMarketCapUSD = 300000
	}
	if cfg.SeenCacheSize <= 0 {
		cfg.SeenCacheSize = 512
	}
	if sink == nil {
		sink = notifications.NopSink{}
	}
	return &AutoBuyer{
		cfg:    cfg,
		trader: trader,
		sink:   sink,
		seen:   make(map[string]struct{}, cfg.SeenCacheSize),
	}
}

// Prime marks a feed listing as already known without considering it
// for purchase. The watcher routes the feed's initial listing here so
// only tokens appearing after startup are ever bought.
func (a *AutoBuyer) Prime(_ context.Context, token discovery.Token) {
	addr := strings.ToLower(token.Address)
	if addr == "" {
		return
	}
	a.markSeen(addr)
}

// OnCandidate handles one feed entry. Only eligible tokens are marked
// seen: a listing first observed below the floors is re-screened every
// pass and still bought once it clears them. The mark lands before the
// buy is attempted, so on a crash mid-buy the token is skipped on the
// next pass rather than bought twice.
func (a *AutoBuyer) OnCandidate(ctx context.Context, token discovery.Token) {
	addr := strings.ToLower(token.Address)
	if addr == "" || strings.EqualFold(addr, a.cfg.QuoteAsset) {
		return
	}

	if a.Seen(addr) {
		return
	}

	if !a.eligible(token) {
		return
	}

	if !a.markSeen(addr) {
		return
	}

	fmt.Printf("[AUTOBUY] %s (%s) passed screening: liq $%.0f, mcap $%.0f — buying %.4f ETH\n",
		token.Symbol, token.Address, token.LiquidityUSD, token.MarketCapUSD, a.cfg.AmountETH)

	intent := models.TradeIntent{
		Side:          models.SideBuy,
		Asset:         token.Address,
		BaseAmountWei: ethereum.ToWei(a.cfg.AmountETH),
		SlippageBps:   a.cfg.SlippageBps,
		Wallet:        a.cfg.Wallet,
		Reason:        models.ReasonAutoBuy,
	}

	res, err := a.trader.Execute(ctx, intent)
	if err != nil {
		fmt.Printf("[AUTOBUY] Buy of %s failed: %v\n", token.Symbol, err)
		a.sink.Publish("auto_buy_failed", map[string]any{
			"asset":  token.Address,
			"symbol": token.Symbol,
			"error":  err.Error(),
		})
		return
	}
	if !res.Success {
		fmt.Printf("[AUTOBUY] Buy of %s not executed: %s\n", token.Symbol, res.FailureReason)
		a.sink.Publish("auto_buy_failed", map[string]any{
			"asset":  token.Address,
			"symbol": token.Symbol,
			"reason": res.FailureReason,
		})
		return
	}

	fmt.Printf("[AUTOBUY] Bought %s: ref %s\n", token.Symbol, res.ExecutionRef)
}

// Seen reports whether an address has already been considered.
func (a *AutoBuyer) Seen(address string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.seen[strings.ToLower(address)]
	return ok
}

// markSeen records the address and reports whether it was new. The set
// is bounded: when full, the oldest entry is evicted first.
func (a *AutoBuyer) markSeen(addr string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.seen[addr]; ok {
		return false
	}

	for len(a.order) >= a.cfg.SeenCacheSize {
		oldest := a.order[0]
		a.order = a.order[1:]
		delete(a.seen, oldest)
	}

	a.seen[addr] = struct{}{}
	a.order = append(a.order, addr)
	return true
}

func (a *AutoBuyer) eligible(token discovery.Token) bool {
	if token.LiquidityUSD < a.cfg.MinLiquidityUSD {
		fmt.Printf("[AUTOBUY] SKIPPED %s: liquidity $%.0f below $%.0f floor\n",
			token.Symbol, token.LiquidityUSD, a.cfg.MinLiquidityUSD)
		return false
	}
	if token.MarketCapUSD < a.cfg.MinMarketCapUSD {
		fmt.Printf("[AUTOBUY] SKIPPED %s: market cap $%.0f below $%.0f floor\n",
			token.Symbol, token.MarketCapUSD, a.cfg.MinMarketCapUSD)
		return false
	}
	return true
}
