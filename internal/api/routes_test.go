package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sablebot/sable-backend/internal/ethereum"
	"github.com/sablebot/sable-backend/internal/models"
)

type fakeTrader struct {
	intents []models.TradeIntent
	result  *models.ExecutionResult
}

func (f *fakeTrader) Execute(_ context.Context, intent models.TradeIntent) (*models.ExecutionResult, error) {
	f.intents = append(f.intents, intent)
	if f.result != nil {
		return f.result, nil
	}
	return &models.ExecutionResult{Success: true, Simulated: true, ExecutionRef: "sim-1"}, nil
}

type fakeThresholds struct {
	asset  string
	tp, sl float64
	err    error
}

func (f *fakeThresholds) SetThresholds(asset string, tp, sl float64) error {
	if f.err != nil {
		return f.err
	}
	f.asset, f.tp, f.sl = asset, tp, sl
	return nil
}

func TestHandleRequestTrade_ValidBuy(t *testing.T) {
	trader := &fakeTrader{}
	s := &Server{trader: trader, opts: Options{Wallet: "0xabc", DefaultSlippageBps: 100}}

	body := `{"side":"buy","asset":"0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984","amountEth":0.25}`
	req := httptest.NewRequest(http.MethodPost, "/v1/trade", strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.handleRequestTrade(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(trader.intents) != 1 {
		t.Fatalf("expected one intent, got %d", len(trader.intents))
	}

	intent := trader.intents[0]
	if intent.Side != models.SideBuy || intent.Reason != models.ReasonManual {
		t.Fatalf("intent: %+v", intent)
	}
	if intent.BaseAmountWei.Cmp(ethereum.ToWei(0.25)) != 0 {
		t.Fatalf("amount: %s", intent.BaseAmountWei)
	}
	if intent.SlippageBps != 100 {
		t.Fatalf("default slippage not applied: %d", intent.SlippageBps)
	}
	if intent.Wallet != "0xabc" {
		t.Fatalf("wallet: %q", intent.Wallet)
	}

	var res models.ExecutionResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Simulated {
		t.Fatal("expected simulated result passthrough")
	}
}

func TestHandleRequestTrade_Rejections(t *testing.T) {
	cases := []string{
		`{"side":"hold","asset":"0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984","amountEth":1}`,
		`{"side":"buy","asset":"not-hex","amountEth":1}`,
		`{"side":"buy","asset":"0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984","amountEth":0}`,
		`{not json`,
	}

	for i, body := range cases {
		trader := &fakeTrader{}
		s := &Server{trader: trader, opts: Options{}}
		req := httptest.NewRequest(http.MethodPost, "/v1/trade", strings.NewReader(body))
		rr := httptest.NewRecorder()
		s.handleRequestTrade(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("case %d: expected 400, got %d", i, rr.Code)
		}
		if len(trader.intents) != 0 {
			t.Fatalf("case %d: rejected request must not reach the executor", i)
		}
	}
}

func TestHandleRequestTrade_ExecutionFailureIs502(t *testing.T) {
	trader := &fakeTrader{result: &models.ExecutionResult{Success: false, FailureReason: models.FailNoQuote}}
	s := &Server{trader: trader, opts: Options{}}

	body := `{"side":"buy","asset":"0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984","amountEth":1}`
	req := httptest.NewRequest(http.MethodPost, "/v1/trade", strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.handleRequestTrade(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for upstream failure, got %d", rr.Code)
	}
}

func TestHandleSetThresholds(t *testing.T) {
	th := &fakeThresholds{}
	s := &Server{thresholds: th, opts: Options{}}

	body := `{"takeProfit":0.15,"stopLoss":0.07}`
	req := httptest.NewRequest(http.MethodPut, "/v1/positions/0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984/thresholds", strings.NewReader(body))
	req.SetPathValue("asset", "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984")
	rr := httptest.NewRecorder()
	s.handleSetThresholds(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if th.tp != 0.15 || th.sl != 0.07 {
		t.Fatalf("thresholds not forwarded: tp=%g sl=%g", th.tp, th.sl)
	}
}

func TestHandleSetThresholds_Invalid(t *testing.T) {
	th := &fakeThresholds{err: fmt.Errorf("threshold out of range")}
	s := &Server{thresholds: th, opts: Options{}}

	body := `{"takeProfit":15,"stopLoss":5}`
	req := httptest.NewRequest(http.MethodPut, "/v1/positions/0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984/thresholds", strings.NewReader(body))
	req.SetPathValue("asset", "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984")
	rr := httptest.NewRecorder()
	s.handleSetThresholds(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandleSetThresholds_BadAsset(t *testing.T) {
	s := &Server{thresholds: &fakeThresholds{}, opts: Options{}}

	req := httptest.NewRequest(http.MethodPut, "/v1/positions/nope/thresholds", strings.NewReader(`{}`))
	req.SetPathValue("asset", "nope")
	rr := httptest.NewRecorder()
	s.handleSetThresholds(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
