package position

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/sablebot/sable-backend/internal/models"
)

func fp(v float64) *float64 { return &v }

func trade(side, asset string, wei int64, price *float64) models.TradeRecord {
	return models.TradeRecord{
		Side:          side,
		Asset:         asset,
		BaseAmountWei: big.NewInt(wei),
		Price:         price,
		Timestamp:     time.Now(),
	}
}

func TestCompute_NetExposureExact(t *testing.T) {
	trades := []models.TradeRecord{
		trade(models.SideBuy, "0xaaa", 300, fp(1.0)),
		trade(models.SideBuy, "0xaaa", 700, fp(1.0)),
		trade(models.SideSell, "0xaaa", 250, nil),
		trade(models.SideBuy, "0xbbb", 100, fp(2.0)),
	}

	positions := Compute(trades)
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}

	a := Find(positions, "0xaaa")
	if a == nil {
		t.Fatal("missing position for 0xaaa")
	}
	if a.NetExposureWei.Int64() != 750 {
		t.Fatalf("net exposure: got %d, want 750", a.NetExposureWei.Int64())
	}
	if a.BuyCount != 2 || a.SellCount != 1 {
		t.Fatalf("counts: %d buys, %d sells", a.BuyCount, a.SellCount)
	}
	if !a.Open() {
		t.Fatal("position with positive exposure should be open")
	}
}

func TestCompute_AvgEntryIsVolumeWeighted(t *testing.T) {
	trades := []models.TradeRecord{
		trade(models.SideBuy, "0xaaa", 100, fp(1.0)),
		trade(models.SideBuy, "0xaaa", 300, fp(2.0)),
	}

	p := Find(Compute(trades), "0xaaa")
	// (100×1.0 + 300×2.0) / 400 = 1.75
	if math.Abs(p.AvgEntryPrice-1.75) > 1e-12 {
		t.Fatalf("avg entry: got %f, want 1.75", p.AvgEntryPrice)
	}
}

func TestCompute_SellsDoNotMoveAvgEntry(t *testing.T) {
	base := []models.TradeRecord{
		trade(models.SideBuy, "0xaaa", 100, fp(1.0)),
		trade(models.SideBuy, "0xaaa", 100, fp(3.0)),
	}
	withSells := append([]models.TradeRecord{}, base...)
	withSells = append(withSells,
		trade(models.SideSell, "0xaaa", 50, fp(5.0)),
		trade(models.SideSell, "0xaaa", 30, fp(0.5)),
	)

	avgBase := Find(Compute(base), "0xaaa").AvgEntryPrice
	avgSells := Find(Compute(withSells), "0xaaa").AvgEntryPrice

	if avgBase != avgSells {
		t.Fatalf("avg entry moved by sells: %f vs %f", avgBase, avgSells)
	}
	if math.Abs(avgBase-2.0) > 1e-12 {
		t.Fatalf("avg entry: got %f, want 2.0", avgBase)
	}
}

func TestCompute_UnpricedBuysExcludedFromAvg(t *testing.T) {
	trades := []models.TradeRecord{
		trade(models.SideBuy, "0xaaa", 100, fp(2.0)),
		trade(models.SideBuy, "0xaaa", 900, nil), // price unknown at write time
	}
	p := Find(Compute(trades), "0xaaa")

	if p.NetExposureWei.Int64() != 1000 {
		t.Fatalf("net exposure should include unpriced buys: %d", p.NetExposureWei.Int64())
	}
	if p.AvgEntryPrice != 2.0 {
		t.Fatalf("avg entry should only weight priced buys: %f", p.AvgEntryPrice)
	}
}

func TestCompute_OversoldReportedClosed(t *testing.T) {
	trades := []models.TradeRecord{
		trade(models.SideBuy, "0xaaa", 100, fp(1.0)),
		trade(models.SideSell, "0xaaa", 150, nil),
	}
	p := Find(Compute(trades), "0xaaa")
	if p == nil {
		t.Fatal("oversold asset should still be reported")
	}
	if p.Open() {
		t.Fatal("negative exposure must not count as open")
	}
	if p.NetExposureWei.Int64() != -50 {
		t.Fatalf("net exposure: got %d, want -50", p.NetExposureWei.Int64())
	}
}

func TestCompute_Deterministic(t *testing.T) {
	trades := []models.TradeRecord{
		trade(models.SideBuy, "0xccc", 10, fp(1)),
		trade(models.SideBuy, "0xaaa", 10, fp(1)),
		trade(models.SideBuy, "0xbbb", 10, fp(1)),
	}
	positions := Compute(trades)
	if positions[0].Asset != "0xaaa" || positions[2].Asset != "0xccc" {
		t.Fatalf("positions not sorted by asset: %v", []string{positions[0].Asset, positions[1].Asset, positions[2].Asset})
	}
}
