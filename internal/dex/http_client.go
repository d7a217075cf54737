package dex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds one swap submission end to end.
const DefaultTimeout = 45 * time.Second

// HTTPClient submits swaps to an execution gateway over HTTP. The gateway
// multiplexes chains and DEX routers behind one endpoint; the idempotency
// key travels in a header so the gateway can dedupe ambiguous retries.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// Option configures HTTPClient.
type Option func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates an execution gateway client.
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// swapRequestBody is the wire format for swap submissions.
type swapRequestBody struct {
	Chain       string  `json:"chain"`
	DEX         string  `json:"dex"`
	Contract    string  `json:"contract"`
	Action      string  `json:"action"`
	AmountUSD   float64 `json:"amount_usd"`
	MaxSlippage float64 `json:"max_slippage"`
}

// swapResponseBody is the wire format for swap results.
type swapResponseBody struct {
	Status           string  `json:"status"` // "filled" | "insufficient_liquidity" | "slippage_exceeded"
	TxHash           string  `json:"tx_hash"`
	QuotedPriceUSD   float64 `json:"quoted_price_usd"`
	RealizedPriceUSD float64 `json:"realized_price_usd"`
	Detail           string  `json:"detail,omitempty"`
}

// SubmitSwap submits one swap. Swap submissions are never retried here:
// a retry after an ambiguous response must reuse the same AttemptID, which
// is the router's call to make between venue attempts.
func (c *HTTPClient) SubmitSwap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	body, err := json.Marshal(swapRequestBody{
		Chain:       req.Chain,
		DEX:         req.DEX,
		Contract:    req.Contract,
		Action:      string(req.Action),
		AmountUSD:   req.AmountUSD,
		MaxSlippage: req.MaxSlippage,
	})
	if err != nil {
		return SwapResult{}, fmt.Errorf("marshal swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return SwapResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.AttemptID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return SwapResult{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return SwapResult{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return SwapResult{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed swapResponseBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return SwapResult{}, fmt.Errorf("unmarshal swap response: %w", err)
	}

	switch parsed.Status {
	case "filled":
		return SwapResult{
			TxHash:           parsed.TxHash,
			QuotedPriceUSD:   parsed.QuotedPriceUSD,
			RealizedPriceUSD: parsed.RealizedPriceUSD,
		}, nil
	case "insufficient_liquidity":
		return SwapResult{}, ErrInsufficientLiquidity
	case "slippage_exceeded":
		return SwapResult{}, ErrSlippageExceeded
	default:
		return SwapResult{}, fmt.Errorf("venue error: %s (%s)", parsed.Status, parsed.Detail)
	}
}

var _ Client = (*HTTPClient)(nil)
