package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sablebot/sable-backend/internal/httputil"
)

// Token is one entry from the discovery feed: an ERC-20 listing with
// the market stats the auto-buy eligibility checks run against.
type Token struct {
	Address      string  `json:"address"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Decimals     int     `json:"decimals"`
	LiquidityUSD float64 `json:"liquidityUsd"`
	MarketCapUSD float64 `json:"marketCapUsd"`
	PriceUSD     float64 `json:"priceUsd"`
	ListedAt     int64   `json:"listedAt"`
}

type Client struct {
	feedURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig

	mu        sync.Mutex
	cached    []Token
	byAddress map[string]Token
	lastFetch time.Time
	cacheTTL  time.Duration
}

func NewClient(feedURL string) *Client {
	c := &Client{
		feedURL:    feedURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		cacheTTL:   5 * time.Minute,
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
		byAddress: make(map[string]Token),
	}
	c.seedFallback()
	return c
}

// FetchTokens returns the current feed listing. Results are cached; a
// stale cache is served when the feed itself is unreachable so the
// watcher and price lookups keep working through feed outages.
func (c *Client) FetchTokens(ctx context.Context, forceRefresh bool) ([]Token, error) {
	c.mu.Lock()
	if !forceRefresh && len(c.cached) > 0 && time.Since(c.lastFetch) < c.cacheTTL {
		out := make([]Token, len(c.cached))
		copy(out, c.cached)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	if c.feedURL == "" {
		return nil, fmt.Errorf("discovery feed URL not configured")
	}

	var payload struct {
		Tokens []Token `json:"tokens"`
	}
	err := httputil.GetJSON(ctx, c.httpClient, c.retry, c.feedURL, nil, nil, &payload)
	if err != nil {
		c.mu.Lock()
		stale := make([]Token, len(c.cached))
		copy(stale, c.cached)
		c.mu.Unlock()
		if len(stale) > 0 {
			fmt.Printf("[DISCOVERY] Feed fetch failed (%v), serving %d stale entries\n", err, len(stale))
			return stale, nil
		}
		return nil, fmt.Errorf("fetch token feed: %w", err)
	}

	valid := payload.Tokens[:0]
	for _, tok := range payload.Tokens {
		if !common.IsHexAddress(tok.Address) {
			fmt.Printf("[DISCOVERY] Skipping entry with bad address %q\n", tok.Address)
			continue
		}
		if tok.Decimals <= 0 || tok.Decimals > 36 {
			tok.Decimals = 18
		}
		tok.Address = strings.ToLower(tok.Address)
		valid = append(valid, tok)
	}

	c.mu.Lock()
	c.cached = valid
	for _, tok := range valid {
		c.byAddress[tok.Address] = tok
	}
	c.lastFetch = time.Now()
	c.mu.Unlock()

	fmt.Printf("[DISCOVERY] Feed refreshed: %d tokens\n", len(valid))
	return valid, nil
}

// Lookup returns the cached entry for an address, if the feed has
// listed it.
func (c *Client) Lookup(address string) (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.byAddress[strings.ToLower(address)]
	return tok, ok
}

// TokenDecimals answers from the feed cache, defaulting to 18 for
// unknown assets. Used as the decimals source when no chain client is
// configured (simulation mode).
func (c *Client) TokenDecimals(_ context.Context, address string) (int, error) {
	if tok, ok := c.Lookup(address); ok {
		return tok.Decimals, nil
	}
	return 18, nil
}

// seedFallback pre-populates the address index with the majors so
// decimals lookups work before the first successful feed fetch.
func (c *Client) seedFallback() {
	for _, tok := range []Token{
		{Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18},
		{Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	} {
		c.byAddress[tok.Address] = tok
	}
}
