package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sablebot/sable-backend/internal/models"
	"github.com/sablebot/sable-backend/internal/position"
)

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.tradeRepo.Positions(r.Context())
	if err != nil {
		fmt.Printf("Error computing positions: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to compute positions")
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	asset := r.PathValue("asset")
	if !common.IsHexAddress(asset) {
		writeError(w, http.StatusBadRequest, "asset must be a hex address")
		return
	}

	positions, err := s.tradeRepo.Positions(r.Context())
	if err != nil {
		fmt.Printf("Error computing positions: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to compute positions")
		return
	}

	pos := position.Find(positions, asset)
	if pos == nil || !pos.Open() {
		writeError(w, http.StatusNotFound, "no open position for asset")
		return
	}
	if pos.AvgEntryPrice <= 0 {
		writeError(w, http.StatusConflict, "position has no entry price on record")
		return
	}

	intent := models.TradeIntent{
		Side:          models.SideSell,
		Asset:         pos.Asset,
		BaseAmountWei: pos.NetExposureWei,
		SlippageBps:   s.opts.DefaultSlippageBps,
		Wallet:        s.opts.Wallet,
		RefPrice:      pos.AvgEntryPrice,
		Reason:        models.ReasonManual,
	}

	res, err := s.trader.Execute(r.Context(), intent)
	if err != nil {
		fmt.Printf("Error closing position %s: %v\n", asset, err)
		writeError(w, http.StatusInternalServerError, "close failed")
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

type thresholdsRequest struct {
	TakeProfit float64 `json:"takeProfit"`
	StopLoss   float64 `json:"stopLoss"`
}

func (s *Server) handleSetThresholds(w http.ResponseWriter, r *http.Request) {
	asset := r.PathValue("asset")
	if !common.IsHexAddress(asset) {
		writeError(w, http.StatusBadRequest, "asset must be a hex address")
		return
	}

	var req thresholdsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.thresholds.SetThresholds(asset, req.TakeProfit, req.StopLoss); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"asset":      asset,
		"takeProfit": req.TakeProfit,
		"stopLoss":   req.StopLoss,
	})
}
