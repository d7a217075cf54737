package judge

import (
	"context"

	"dexpilot/internal/domain"
)

// MarketContext is the evidence bundle handed to each judge for one cycle.
type MarketContext struct {
	Token      string                  `json:"token"`
	Safety     domain.SafetyAssessment `json:"safety"`
	PriceUSD   float64                 `json:"price_usd,omitempty"`
	Volatility float64                 `json:"volatility,omitempty"`
	Headlines  []string                `json:"headlines,omitempty"`
}

// Judge produces one independent trading opinion per decision cycle.
// Implementations must honor ctx deadlines; a judge that cannot answer in
// time is treated as abstaining, not as a pipeline error.
type Judge interface {
	// ID returns the stable source identifier used for trust weighting.
	ID() string

	// ProduceOpinion returns this judge's opinion on the token.
	ProduceOpinion(ctx context.Context, mctx MarketContext) (domain.Opinion, error)
}
