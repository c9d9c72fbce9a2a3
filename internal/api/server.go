package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sablebot/sable-backend/internal/models"
	"github.com/sablebot/sable-backend/internal/repository"
)

const maxQueryLimit = 1000

// Trader executes trade intents on behalf of the REST surface.
// Satisfied by executor.Executor.
type Trader interface {
	Execute(ctx context.Context, intent models.TradeIntent) (*models.ExecutionResult, error)
}

// ThresholdSetter installs per-asset exit levels. Satisfied by
// monitor.Monitor.
type ThresholdSetter interface {
	SetThresholds(asset string, takeProfit, stopLoss float64) error
}

type Options struct {
	Port               int
	APIKey             string
	CORSOrigin         string
	Wallet             string
	DefaultSlippageBps int
}

type Server struct {
	pool       *pgxpool.Pool
	tradeRepo  *repository.TradeRepo
	statsRepo  *repository.StatsRepo
	trader     Trader
	thresholds ThresholdSetter
	httpServer *http.Server
	opts       Options
}

func NewServer(pool *pgxpool.Pool, trader Trader, thresholds ThresholdSetter, opts Options) *Server {
	s := &Server{
		pool:       pool,
		tradeRepo:  repository.NewTradeRepo(pool),
		statsRepo:  repository.NewStatsRepo(pool),
		trader:     trader,
		thresholds: thresholds,
		opts:       opts,
	}

	mux := http.NewServeMux()

	// Ledger routes
	mux.HandleFunc("GET /v1/trades", s.handleTrades)
	mux.HandleFunc("GET /v1/stats", s.handleStats)

	// Position routes
	mux.HandleFunc("GET /v1/positions", s.handlePositions)
	mux.HandleFunc("POST /v1/positions/{asset}/close", s.handleClosePosition)
	mux.HandleFunc("PUT /v1/positions/{asset}/thresholds", s.handleSetThresholds)

	// Execution routes
	mux.HandleFunc("POST /v1/trade", s.handleRequestTrade)

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	handler := s.authMiddleware(corsMiddleware(mux, opts.CORSOrigin))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	fmt.Printf("[API] REST API server started on http://localhost%s\n", s.httpServer.Addr)
	fmt.Printf("[API] Health check: http://localhost%s/health\n", s.httpServer.Addr)
	if s.opts.APIKey != "" {
		fmt.Println("[API] Authentication: enabled (Bearer token)")
	} else {
		fmt.Println("[API] Authentication: disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.opts.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
