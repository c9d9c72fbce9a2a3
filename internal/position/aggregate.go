package position

import (
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/sablebot/sable-backend/internal/ethereum"
	"github.com/sablebot/sable-backend/internal/models"
)

// Position is the derived exposure for one asset. Positions are never
// persisted: they are recomputed from the ledger at read time, so they
// cannot desynchronize from it.
type Position struct {
	Asset          string   `json:"asset"`
	NetExposureWei *big.Int `json:"netExposureWei"`
	NetExposureETH float64  `json:"netExposureEth"`

	// AvgEntryPrice is the volume-weighted mean of buy-side prices only.
	// Sells do not move it.
	AvgEntryPrice float64 `json:"avgEntryPrice"`

	BuyCount    int       `json:"buyCount"`
	SellCount   int       `json:"sellCount"`
	LastTradeAt time.Time `json:"lastTradeAt"`
}

// Open reports whether the asset still carries positive exposure.
func (p Position) Open() bool {
	return p.NetExposureWei != nil && p.NetExposureWei.Sign() > 0
}

// Compute derives per-asset positions from the full trade history.
// Net exposure is exact (integer wei); the average entry price weights
// each buy by its wei amount and ignores buys with no recorded price.
// Assets with zero or negative exposure are still reported; consumers
// treat them as closed.
func Compute(trades []models.TradeRecord) []Position {
	type acc struct {
		net       *big.Int
		weightSum *big.Float // Σ buyWei with a known price
		priceSum  *big.Float // Σ buyWei × price
		buys      int
		sells     int
		last      time.Time
	}

	byAsset := make(map[string]*acc)
	for _, t := range trades {
		if t.BaseAmountWei == nil {
			continue
		}
		a, ok := byAsset[t.Asset]
		if !ok {
			a = &acc{
				net:       new(big.Int),
				weightSum: new(big.Float),
				priceSum:  new(big.Float),
			}
			byAsset[t.Asset] = a
		}

		switch t.Side {
		case models.SideBuy:
			a.net.Add(a.net, t.BaseAmountWei)
			a.buys++
			if t.Price != nil && *t.Price > 0 {
				w := new(big.Float).SetInt(t.BaseAmountWei)
				a.weightSum.Add(a.weightSum, w)
				a.priceSum.Add(a.priceSum, new(big.Float).Mul(w, big.NewFloat(*t.Price)))
			}
		case models.SideSell:
			a.net.Sub(a.net, t.BaseAmountWei)
			a.sells++
		default:
			continue
		}
		if t.Timestamp.After(a.last) {
			a.last = t.Timestamp
		}
	}

	out := make([]Position, 0, len(byAsset))
	for asset, a := range byAsset {
		avg := 0.0
		if a.weightSum.Sign() > 0 {
			avg, _ = new(big.Float).Quo(a.priceSum, a.weightSum).Float64()
		}
		out = append(out, Position{
			Asset:          asset,
			NetExposureWei: a.net,
			NetExposureETH: ethereum.FromWei(a.net),
			AvgEntryPrice:  avg,
			BuyCount:       a.buys,
			SellCount:      a.sells,
			LastTradeAt:    a.last,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

// Find returns the position for one asset, or nil if the asset has no
// trade history. Address comparison is case-insensitive.
func Find(positions []Position, asset string) *Position {
	for i := range positions {
		if strings.EqualFold(positions[i].Asset, asset) {
			return &positions[i]
		}
	}
	return nil
}
