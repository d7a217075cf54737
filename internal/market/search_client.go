package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"dexpilot/internal/domain"
)

const (
	// DefaultSearchTimeout bounds one search request.
	DefaultSearchTimeout = 10 * time.Second

	// DefaultMaxRetries is the number of retries after a failed request.
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the base delay between retries.
	DefaultRetryDelay = 300 * time.Millisecond
)

// SearchClient queries an external token-metadata and DEX-pair search
// service over HTTP.
type SearchClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// SearchOption configures a SearchClient.
type SearchOption func(*SearchClient)

// WithSearchTimeout sets the per-request timeout.
func WithSearchTimeout(timeout time.Duration) SearchOption {
	return func(c *SearchClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithSearchMaxRetries sets the retry count.
func WithSearchMaxRetries(n int) SearchOption {
	return func(c *SearchClient) {
		c.maxRetries = n
	}
}

// WithSearchHTTPClient sets a custom HTTP client.
func WithSearchHTTPClient(hc *http.Client) SearchOption {
	return func(c *SearchClient) {
		c.httpClient = hc
	}
}

// NewSearchClient creates a search client for the given base URL.
func NewSearchClient(baseURL string, opts ...SearchOption) *SearchClient {
	c := &SearchClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultSearchTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenHit struct {
	Chain        string  `json:"chain"`
	DEX          string  `json:"dex"`
	Address      string  `json:"address"`
	Symbol       string  `json:"symbol"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	GasCostUSD   float64 `json:"gas_cost_usd"`
	SlippageEst  float64 `json:"slippage_est"`
}

// SearchToken returns DEX pairs matching the symbol on one chain. An empty
// result is not an error.
func (c *SearchClient) SearchToken(ctx context.Context, chain, symbol string) ([]domain.TokenCandidate, error) {
	endpoint := fmt.Sprintf("%s/tokens/search?chain=%s&symbol=%s",
		c.baseURL, url.QueryEscape(chain), url.QueryEscape(symbol))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("search token %s on %s: %w", symbol, chain, err)
	}

	var hits []tokenHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.TokenCandidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.TokenCandidate{
			Chain:        h.Chain,
			DEX:          h.DEX,
			Address:      h.Address,
			LiquidityUSD: h.LiquidityUSD,
			GasCostUSD:   h.GasCostUSD,
			SlippageEst:  h.SlippageEst,
			DiscoveredAt: time.Now().UnixMilli(),
		})
	}
	return out, nil
}

// Metadata is the auxiliary token metadata used as a safety signal.
type Metadata struct {
	Website        string   `json:"website"`
	Socials        []string `json:"socials"`
	FirstSeenMilli int64    `json:"first_seen_ms"`
}

// GetMetadata returns auxiliary metadata for a symbol. Best-effort; callers
// treat an error as "metadata unavailable".
func (c *SearchClient) GetMetadata(ctx context.Context, symbol string) (Metadata, error) {
	endpoint := fmt.Sprintf("%s/tokens/meta?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return Metadata{}, fmt.Errorf("get metadata %s: %w", symbol, err)
	}

	var meta Metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata response: %w", err)
	}
	return meta, nil
}

// GetLiquidity returns the current quoted pool liquidity in USD for a
// (chain, address) pair.
func (c *SearchClient) GetLiquidity(ctx context.Context, chain, address string) (float64, error) {
	endpoint := fmt.Sprintf("%s/liquidity?chain=%s&address=%s",
		c.baseURL, url.QueryEscape(chain), url.QueryEscape(address))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return 0, fmt.Errorf("get liquidity %s/%s: %w", chain, address, err)
	}

	var resp struct {
		LiquidityUSD float64 `json:"liquidity_usd"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode liquidity response: %w", err)
	}
	return resp.LiquidityUSD, nil
}

func (c *SearchClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		body, err := c.doGet(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *SearchClient) doGet(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
