package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sablebot/sable-backend/internal/ethereum"
	"github.com/sablebot/sable-backend/internal/models"
)

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)

	trades, err := s.tradeRepo.List(r.Context(), limit)
	if err != nil {
		fmt.Printf("Error fetching trades: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.statsRepo.Get(r.Context())
	if err != nil {
		fmt.Printf("Error fetching stats: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type tradeRequest struct {
	Side        string  `json:"side"`
	Asset       string  `json:"asset"`
	AmountETH   float64 `json:"amountEth"`
	SlippageBps int     `json:"slippageBps"`
	RefPrice    float64 `json:"refPrice"`
}

func (s *Server) handleRequestTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Side != models.SideBuy && req.Side != models.SideSell {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid side %q, expected buy|sell", req.Side))
		return
	}
	if !common.IsHexAddress(req.Asset) {
		writeError(w, http.StatusBadRequest, "asset must be a hex address")
		return
	}
	if req.AmountETH <= 0 {
		writeError(w, http.StatusBadRequest, "amountEth must be positive")
		return
	}

	slippage := req.SlippageBps
	if slippage <= 0 {
		slippage = s.opts.DefaultSlippageBps
	}

	intent := models.TradeIntent{
		Side:          req.Side,
		Asset:         req.Asset,
		BaseAmountWei: ethereum.ToWei(req.AmountETH),
		SlippageBps:   slippage,
		Wallet:        s.opts.Wallet,
		RefPrice:      req.RefPrice,
		Reason:        models.ReasonManual,
	}

	res, err := s.trader.Execute(r.Context(), intent)
	if err != nil {
		fmt.Printf("Error executing trade: %v\n", err)
		writeError(w, http.StatusInternalServerError, "trade execution failed")
		return
	}

	status := http.StatusOK
	if !res.Success {
		if res.FailureReason == models.FailBadIntent {
			status = http.StatusBadRequest
		} else {
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, res)
}
