package models

import (
	"math/big"

	"github.com/sablebot/sable-backend/internal/aggregator"
)

// TradeIntent is the ephemeral input to the order executor. It is produced
// by the auto-buy trigger, the position monitor, or the trade API, consumed
// once, and never persisted.
type TradeIntent struct {
	Side          string
	Asset         string
	BaseAmountWei *big.Int // ETH exposure moved, in wei
	SlippageBps   int
	Wallet        string

	// RefPrice is the reference unit price (ETH per token) used to size
	// sell swaps in token units and to compute realized PnL on closes.
	// Zero for buys.
	RefPrice float64

	// Reason tags the resulting ledger entry (manual, auto_buy,
	// take_profit, stop_loss).
	Reason string

	// Quote, when non-nil, is reused instead of fetching a fresh one.
	Quote *aggregator.Quote
}

// Failure reasons carried on ExecutionResult.
const (
	FailNoQuote     = "no_quote"
	FailDecimals    = "decimals_failed"
	FailBuildFailed = "build_failed"
	FailSubmit      = "submit_failed"
	FailConfirm     = "confirm_failed"
	FailLedgerWrite = "ledger_write_failed"
	FailBadIntent   = "bad_intent"
)

// ExecutionResult reports the outcome of one executor invocation.
type ExecutionResult struct {
	Success       bool         `json:"success"`
	Simulated     bool         `json:"simulated"`
	FailureReason string       `json:"failureReason,omitempty"`
	ExecutionRef  string       `json:"executionRef,omitempty"` // tx hash or synthetic sim id
	Trade         *TradeRecord `json:"trade,omitempty"`
}
