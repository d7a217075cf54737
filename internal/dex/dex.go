package dex

import (
	"context"
	"errors"

	"dexpilot/internal/domain"
)

// Venue-level failures. Each triggers fallback to the next ranked venue.
var (
	// ErrInsufficientLiquidity means the pool cannot absorb the trade size.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrSlippageExceeded means the venue refused the fill because the price
	// moved beyond the allowed slippage. No fill occurred.
	ErrSlippageExceeded = errors.New("slippage exceeded")
)

// SwapRequest describes one swap submission to a venue.
type SwapRequest struct {
	// AttemptID is the client-supplied idempotency key. Resubmitting with
	// the same ID after an ambiguous network response never double-fills.
	AttemptID string

	Chain       string
	DEX         string
	Contract    string
	Action      domain.Action
	AmountUSD   float64
	MaxSlippage float64
}

// SwapResult is a reported fill.
type SwapResult struct {
	TxHash           string
	QuotedPriceUSD   float64
	RealizedPriceUSD float64
}

// Client submits swaps to chain/DEX venues. Implementations must be
// idempotent-safe under retry via the request's AttemptID.
type Client interface {
	SubmitSwap(ctx context.Context, req SwapRequest) (SwapResult, error)
}
