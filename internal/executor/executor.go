package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/sablebot/sable-backend/internal/aggregator"
	"github.com/sablebot/sable-backend/internal/ethereum"
	"github.com/sablebot/sable-backend/internal/models"
	"github.com/sablebot/sable-backend/internal/notifications"
)

// Oracle supplies priced routes from the swap aggregator.
type Oracle interface {
	Quote(ctx context.Context, inputAsset, outputAsset string, amount *big.Int, slippageBps int) (*aggregator.Quote, error)
}

// SwapBuilder turns a quoted route into a signable transaction payload.
type SwapBuilder interface {
	BuildSwap(ctx context.Context, q *aggregator.Quote, wallet string) (*aggregator.SwapTx, error)
}

// Chain submits signed transactions and confirms them. Nil in simulation
// mode: the simulated path never reaches it.
type Chain interface {
	SendCalldata(ctx context.Context, to string, value *big.Int, data []byte, gas uint64) (string, error)
	WaitForReceipt(ctx context.Context, txHash string, polls int, interval time.Duration) error
}

// Ledger appends executed trades. Exactly one append per successful
// execution, zero on any failure path.
type Ledger interface {
	Record(ctx context.Context, t *models.TradeRecord) (*models.TradeRecord, error)
}

// DecimalsSource resolves token decimals, cacheable forever.
type DecimalsSource interface {
	TokenDecimals(ctx context.Context, asset string) (int, error)
}

type Config struct {
	WETHAddress     string
	Wallet          string
	LiveSwaps       bool
	SlippageBps     int
	SubmitAttempts  int
	SubmitBackoff   time.Duration
	ConfirmPolls    int
	ConfirmInterval time.Duration
}

// Executor turns trade intents into ledger entries. All mutating paths
// (manual trades, auto-buys, auto-closes) funnel through Execute.
type Executor struct {
	cfg      Config
	oracle   Oracle
	builder  SwapBuilder
	chain    Chain
	ledger   Ledger
	decimals DecimalsSource
	sink     notifications.Sink

	// The signing wallet is a single shared resource; live submissions
	// are serialized through walletMu.
	walletMu sync.Mutex

	lockMu     sync.Mutex
	assetLocks map[string]*sync.Mutex
}

func New(cfg Config, oracle Oracle, builder SwapBuilder, chain Chain, ledger Ledger, decimals DecimalsSource, sink notifications.Sink) (*Executor, error) {
	if cfg.LiveSwaps && chain == nil {
		return nil, fmt.Errorf("live swaps enabled but no chain client configured")
	}
	if cfg.SubmitAttempts <= 0 {
		cfg.SubmitAttempts = 3
	}
	if cfg.SubmitBackoff <= 0 {
		cfg.SubmitBackoff = 2 * time.Second
	}
	if cfg.ConfirmPolls <= 0 {
		cfg.ConfirmPolls = 24
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = 5 * time.Second
	}
	if sink == nil {
		sink = notifications.NopSink{}
	}
	return &Executor{
		cfg:        cfg,
		oracle:     oracle,
		builder:    builder,
		chain:      chain,
		ledger:     ledger,
		decimals:   decimals,
		sink:       sink,
		assetLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Execute runs the full quote → (build → sign → submit → confirm) → record
// pipeline for one intent. The returned error is non-nil only for ledger
// write failures: a confirmed swap with no local record is a reconciliation
// risk that must surface loudly. All other failures are reported on the
// result and leave the ledger untouched.
func (e *Executor) Execute(ctx context.Context, intent models.TradeIntent) (*models.ExecutionResult, error) {
	if err := validateIntent(intent); err != nil {
		fmt.Printf("[EXEC] Rejected intent: %v\n", err)
		return &models.ExecutionResult{Success: false, FailureReason: models.FailBadIntent}, nil
	}

	// Serialize per asset: an auto-buy and an auto-close for the same
	// token must not interleave.
	lock := e.lockFor(intent.Asset)
	lock.Lock()
	defer lock.Unlock()

	dec, err := e.decimals.TokenDecimals(ctx, intent.Asset)
	if err != nil {
		fmt.Printf("[EXEC] Decimals lookup failed for %s: %v\n", intent.Asset, err)
		return &models.ExecutionResult{Success: false, FailureReason: models.FailDecimals}, nil
	}

	quote := intent.Quote
	if quote == nil {
		quote, err = e.fetchQuote(ctx, intent, dec)
		if err != nil {
			fmt.Printf("[EXEC] Quote failed for %s %s: %v\n", intent.Side, intent.Asset, err)
			return &models.ExecutionResult{Success: false, FailureReason: models.FailNoQuote}, nil
		}
	}

	price := derivePrice(intent.Side, quote, dec)

	var ref string
	simulated := !e.cfg.LiveSwaps
	if simulated {
		// Non-destructive default: fabricate a receipt, never touch the
		// network beyond the quote.
		ref = fmt.Sprintf("sim-%d", time.Now().UnixMilli())
	} else {
		ref, err = e.executeLive(ctx, intent, quote)
		if err != nil {
			reason := models.FailSubmit
			switch {
			case isBuildErr(err):
				reason = models.FailBuildFailed
			case isConfirmErr(err):
				reason = models.FailConfirm
			}
			fmt.Printf("[EXEC] Live swap failed for %s %s: %v\n", intent.Side, intent.Asset, err)
			return &models.ExecutionResult{Success: false, FailureReason: reason}, nil
		}
	}

	record := &models.TradeRecord{
		Side:          intent.Side,
		Asset:         intent.Asset,
		BaseAmountWei: new(big.Int).Set(intent.BaseAmountWei),
		BaseAmountETH: ethereum.FromWei(intent.BaseAmountWei),
		Wallet:        intent.Wallet,
		Simulated:     simulated,
		TxHash:        &ref,
		Reason:        intent.Reason,
		Timestamp:     time.Now(),
	}
	if price > 0 {
		record.Price = &price
	}
	// PnL accrues only at exit; opening trades record zero.
	pnl := 0.0
	if intent.Side == models.SideSell && intent.RefPrice > 0 && price > 0 {
		pnl = (price - intent.RefPrice) / intent.RefPrice
	}
	record.PnlFraction = &pnl

	recorded, err := e.ledger.Record(ctx, record)
	if err != nil {
		return &models.ExecutionResult{
			Success:       false,
			Simulated:     simulated,
			FailureReason: models.FailLedgerWrite,
			ExecutionRef:  ref,
		}, fmt.Errorf("ledger write after confirmed swap %s: %w", ref, err)
	}

	e.sink.Publish("trade_executed", recorded)

	return &models.ExecutionResult{
		Success:      true,
		Simulated:    simulated,
		ExecutionRef: ref,
		Trade:        recorded,
	}, nil
}

func (e *Executor) fetchQuote(ctx context.Context, intent models.TradeIntent, dec int) (*aggregator.Quote, error) {
	if intent.Side == models.SideBuy {
		return e.oracle.Quote(ctx, e.cfg.WETHAddress, intent.Asset, intent.BaseAmountWei, intent.SlippageBps)
	}

	// Sells are sized in token units derived from the ETH exposure and
	// the reference entry price.
	tokens := ethereum.FromWei(intent.BaseAmountWei) / intent.RefPrice
	units := ethereum.ToTokenUnits(tokens, dec)
	if units.Sign() <= 0 {
		return nil, fmt.Errorf("sell sizing produced zero token units")
	}
	return e.oracle.Quote(ctx, intent.Asset, e.cfg.WETHAddress, units, intent.SlippageBps)
}

func (e *Executor) executeLive(ctx context.Context, intent models.TradeIntent, quote *aggregator.Quote) (string, error) {
	swapTx, err := e.builder.BuildSwap(ctx, quote, intent.Wallet)
	if err != nil {
		return "", &buildError{err}
	}

	var txHash string
	var lastErr error

	e.walletMu.Lock()
	for attempt := 1; attempt <= e.cfg.SubmitAttempts; attempt++ {
		txHash, lastErr = e.chain.SendCalldata(ctx, swapTx.To, swapTx.ValueWei, swapTx.Data, swapTx.Gas)
		if lastErr == nil {
			break
		}
		if attempt == e.cfg.SubmitAttempts {
			break
		}
		delay := time.Duration(attempt) * e.cfg.SubmitBackoff
		fmt.Printf("[EXEC] Submit attempt %d/%d failed: %v — retrying in %s\n",
			attempt, e.cfg.SubmitAttempts, lastErr, delay)
		select {
		case <-ctx.Done():
			e.walletMu.Unlock()
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	e.walletMu.Unlock()

	if lastErr != nil {
		return "", fmt.Errorf("submit exhausted %d attempts: %w", e.cfg.SubmitAttempts, lastErr)
	}

	if err := e.chain.WaitForReceipt(ctx, txHash, e.cfg.ConfirmPolls, e.cfg.ConfirmInterval); err != nil {
		// Unconfirmed transactions are never written to the ledger.
		return "", &confirmError{fmt.Errorf("confirm %s: %w", txHash, err)}
	}
	return txHash, nil
}

func (e *Executor) lockFor(asset string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	if m, ok := e.assetLocks[asset]; ok {
		return m
	}
	m := &sync.Mutex{}
	e.assetLocks[asset] = m
	return m
}

func validateIntent(intent models.TradeIntent) error {
	if intent.Side != models.SideBuy && intent.Side != models.SideSell {
		return fmt.Errorf("invalid side %q", intent.Side)
	}
	if intent.Asset == "" {
		return fmt.Errorf("missing asset")
	}
	if intent.BaseAmountWei == nil || intent.BaseAmountWei.Sign() <= 0 {
		return fmt.Errorf("base amount must be positive")
	}
	if intent.Side == models.SideSell && intent.RefPrice <= 0 && intent.Quote == nil {
		return fmt.Errorf("sell intent needs a reference price or a pre-fetched quote")
	}
	return nil
}

// derivePrice computes the ETH-per-token unit price implied by a quote.
func derivePrice(side string, q *aggregator.Quote, dec int) float64 {
	var eth, tokens float64
	if side == models.SideBuy {
		eth = ethereum.FromWei(q.InAmount)
		tokens = ethereum.FromTokenUnits(q.OutAmount, dec)
	} else {
		eth = ethereum.FromWei(q.OutAmount)
		tokens = ethereum.FromTokenUnits(q.InAmount, dec)
	}
	if tokens <= 0 {
		return 0
	}
	return eth / tokens
}

type buildError struct{ err error }

func (b *buildError) Error() string { return b.err.Error() }
func (b *buildError) Unwrap() error { return b.err }

type confirmError struct{ err error }

func (c *confirmError) Error() string { return c.err.Error() }
func (c *confirmError) Unwrap() error { return c.err }

func isBuildErr(err error) bool {
	var b *buildError
	return errors.As(err, &b)
}

func isConfirmErr(err error) bool {
	var c *confirmError
	return errors.As(err, &c)
}
