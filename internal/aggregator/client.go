package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sablebot/sable-backend/internal/httputil"
)

// Quote is a priced route for converting one token amount into another.
// Route is the aggregator's opaque payload, echoed verbatim to the
// swap-build endpoint.
type Quote struct {
	InputAsset     string
	OutputAsset    string
	InAmount       *big.Int
	OutAmount      *big.Int
	PriceImpactPct float64
	Route          json.RawMessage
}

// SwapTx is an executable transaction payload returned by the swap-build
// endpoint, ready to be signed and submitted.
type SwapTx struct {
	To       string
	Data     []byte
	ValueWei *big.Int
	Gas      uint64
}

// Client talks to the swap aggregator's quote and swap-build endpoints.
type Client struct {
	quoteURL   string
	swapURL    string
	apiKey     string
	httpClient *http.Client
	swapClient *http.Client
	retry      httputil.RetryConfig
}

func NewClient(quoteURL, swapURL, apiKey string) *Client {
	return &Client{
		quoteURL:   quoteURL,
		swapURL:    swapURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 12 * time.Second},
		swapClient: &http.Client{Timeout: 15 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   1 * time.Second,
			MaxDelay:    4 * time.Second,
		},
	}
}

type quoteResponse struct {
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct float64         `json:"priceImpactPct"`
	Route          json.RawMessage `json:"route"`
}

// Quote fetches the best route for swapping amount units of inputAsset into
// outputAsset. Failures are non-fatal to callers: the expected response is
// to skip the cycle, not escalate.
func (c *Client) Quote(ctx context.Context, inputAsset, outputAsset string, amount *big.Int, slippageBps int) (*Quote, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid quote amount")
	}

	params := url.Values{}
	params.Set("inputToken", inputAsset)
	params.Set("outputToken", outputAsset)
	params.Set("amount", amount.String())
	params.Set("slippageBps", fmt.Sprintf("%d", slippageBps))

	var resp quoteResponse
	if err := httputil.GetJSON(ctx, c.httpClient, c.retry, c.quoteURL, params, c.headers(), &resp); err != nil {
		return nil, fmt.Errorf("aggregator quote: %w", err)
	}

	in, ok := new(big.Int).SetString(resp.InAmount, 10)
	if !ok {
		return nil, fmt.Errorf("aggregator quote: malformed inAmount %q", resp.InAmount)
	}
	out, ok := new(big.Int).SetString(resp.OutAmount, 10)
	if !ok || out.Sign() <= 0 {
		return nil, fmt.Errorf("aggregator quote: malformed outAmount %q", resp.OutAmount)
	}
	if len(resp.Route) == 0 {
		return nil, fmt.Errorf("aggregator quote: no route for %s -> %s", inputAsset, outputAsset)
	}

	return &Quote{
		InputAsset:     inputAsset,
		OutputAsset:    outputAsset,
		InAmount:       in,
		OutAmount:      out,
		PriceImpactPct: resp.PriceImpactPct,
		Route:          resp.Route,
	}, nil
}

type swapResponse struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
	Gas   uint64 `json:"gas"`
}

// BuildSwap exchanges a quoted route for a signable transaction payload.
func (c *Client) BuildSwap(ctx context.Context, q *Quote, wallet string) (*SwapTx, error) {
	if q == nil {
		return nil, fmt.Errorf("nil quote")
	}

	payload := map[string]any{
		"route":  q.Route,
		"wallet": wallet,
	}

	var resp swapResponse
	if err := httputil.PostJSON(ctx, c.swapClient, c.retry, c.swapURL, payload, c.headers(), &resp); err != nil {
		return nil, fmt.Errorf("aggregator swap build: %w", err)
	}

	if !common.IsHexAddress(resp.To) {
		return nil, fmt.Errorf("aggregator swap build: bad target address %q", resp.To)
	}
	data := common.FromHex(resp.Data)
	if len(data) == 0 {
		return nil, fmt.Errorf("aggregator swap build: empty calldata")
	}

	value := big.NewInt(0)
	if resp.Value != "" {
		v, ok := new(big.Int).SetString(resp.Value, 10)
		if !ok {
			return nil, fmt.Errorf("aggregator swap build: malformed value %q", resp.Value)
		}
		value = v
	}

	return &SwapTx{
		To:       resp.To,
		Data:     data,
		ValueWei: value,
		Gas:      resp.Gas,
	}, nil
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-api-key": c.apiKey}
}
