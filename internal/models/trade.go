package models

import (
	"math/big"
	"time"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade reasons recorded on the ledger entry for downstream reporting.
const (
	ReasonManual     = "manual"
	ReasonAutoBuy    = "auto_buy"
	ReasonTakeProfit = "take_profit"
	ReasonStopLoss   = "stop_loss"
)

// TradeRecord is one executed swap on the append-only ledger.
// Once recorded it is never mutated or deleted.
type TradeRecord struct {
	ID            string    `json:"id"`
	Side          string    `json:"side"` // "buy" or "sell"
	Asset         string    `json:"asset"`
	BaseAmountWei *big.Int  `json:"baseAmountWei"`
	BaseAmountETH float64   `json:"baseAmountEth"`
	Price         *float64  `json:"price,omitempty"` // ETH per token unit
	PnlFraction   *float64  `json:"pnlFraction,omitempty"`
	Wallet        string    `json:"wallet"`
	Simulated     bool      `json:"simulated"`
	TxHash        *string   `json:"txHash,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Stats is the single running-totals document, updated transactionally
// with every ledger append.
type Stats struct {
	TradeVolumeETH         float64   `json:"tradeVolumeEth"`
	RealizedProfitETH      float64   `json:"realizedProfitEth"`
	RealizedProfitFraction float64   `json:"realizedProfitFraction"`
	OpenPositions          int       `json:"openPositions"` // buys minus sells, signed
	LastUpdated            time.Time `json:"lastUpdated"`
}
