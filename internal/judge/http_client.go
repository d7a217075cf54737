package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dexpilot/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout    = 20 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
)

// HTTPJudge queries a black-box opinion endpoint over HTTP. The endpoint
// receives the market context and returns a structured opinion.
type HTTPJudge struct {
	id         string
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// Option configures HTTPJudge.
type Option func(*HTTPJudge)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(j *HTTPJudge) {
		j.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) Option {
	return func(j *HTTPJudge) {
		j.maxRetries = n
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(j *HTTPJudge) {
		j.client = client
	}
}

// NewHTTPJudge creates a judge backed by an HTTP opinion endpoint.
func NewHTTPJudge(id, baseURL string, opts ...Option) *HTTPJudge {
	j := &HTTPJudge{
		id:         id,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// ID returns the judge's source identifier.
func (j *HTTPJudge) ID() string {
	return j.id
}

// opinionResponse is the wire format returned by the opinion endpoint.
type opinionResponse struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// ProduceOpinion posts the market context and parses the structured opinion.
func (j *HTTPJudge) ProduceOpinion(ctx context.Context, mctx MarketContext) (domain.Opinion, error) {
	body, err := json.Marshal(mctx)
	if err != nil {
		return domain.Opinion{}, fmt.Errorf("marshal market context: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= j.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Opinion{}, ctx.Err()
			case <-time.After(j.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/opinion", bytes.NewReader(body))
		if err != nil {
			return domain.Opinion{}, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := j.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var parsed opinionResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			lastErr = fmt.Errorf("unmarshal opinion: %w", err)
			continue
		}

		op := domain.Opinion{
			SourceID:   j.id,
			Action:     domain.Action(parsed.Action),
			Token:      mctx.Token,
			Confidence: parsed.Confidence,
			Rationale:  parsed.Rationale,
		}
		if !op.Action.IsValid() {
			return domain.Opinion{}, fmt.Errorf("judge %s returned unknown action %q", j.id, parsed.Action)
		}
		return op, nil
	}

	return domain.Opinion{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

var _ Judge = (*HTTPJudge)(nil)
