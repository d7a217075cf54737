package risk

import (
	"dexpilot/internal/domain"
)

// Default limits.
const (
	DefaultConfidenceFloor = 0.70
	DefaultSizingFraction  = 0.50
)

// Rejection reasons. These appear verbatim in outcome records.
const (
	ReasonBelowConfidenceFloor = "below confidence floor"
	ReasonHoldAction           = "hold action never executes"
	ReasonLimitExhausted       = "limit exhausted"
	ReasonDailyLossBreach      = "daily loss limit would be breached"
)

// Verdict is the guard's ruling on one decision.
type Verdict struct {
	Approved  bool
	AmountUSD float64 // sized trade amount, 0 when rejected
	Reason    string  // rejection reason, empty when approved
}

// Guard validates decisions against hard risk limits. It never mutates
// RiskState; state is committed separately after a terminal outcome.
type Guard struct {
	confidenceFloor float64
	sizingFraction  float64
}

// GuardOptions configures a Guard.
type GuardOptions struct {
	ConfidenceFloor float64
	SizingFraction  float64
}

// NewGuard creates a risk guard.
func NewGuard(opts GuardOptions) *Guard {
	floor := opts.ConfidenceFloor
	if floor == 0 {
		floor = DefaultConfidenceFloor
	}
	fraction := opts.SizingFraction
	if fraction == 0 {
		fraction = DefaultSizingFraction
	}
	return &Guard{
		confidenceFloor: floor,
		sizingFraction:  fraction,
	}
}

// Validate applies the checks in order, short-circuiting on first failure:
// confidence floor, non-HOLD action, sized amount within the per-trade cap,
// and worst-case daily loss projection.
func (g *Guard) Validate(decision domain.Decision, state domain.RiskState) Verdict {
	if decision.Confidence < g.confidenceFloor {
		return Verdict{Reason: ReasonBelowConfidenceFloor}
	}

	if decision.Action == domain.ActionHold {
		return Verdict{Reason: ReasonHoldAction}
	}

	// Theoretical max is bounded by both the per-trade cap and the remaining
	// daily loss headroom; the sized amount is a conservative fraction of it.
	theoreticalMax := state.MaxTradeUSD
	if headroom := state.LossHeadroomUSD(); headroom < theoreticalMax {
		theoreticalMax = headroom
	}
	sized := g.sizingFraction * theoreticalMax
	if sized > state.MaxTradeUSD {
		sized = state.MaxTradeUSD
	}
	if sized <= 0 {
		return Verdict{Reason: ReasonLimitExhausted}
	}

	// Worst case assumes the full trade amount is lost.
	if state.DailyPnLUSD-sized < -state.DailyLossLimitUSD {
		return Verdict{Reason: ReasonDailyLossBreach}
	}

	return Verdict{Approved: true, AmountUSD: sized}
}
