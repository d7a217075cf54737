package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"dexpilot/internal/dex"
	"dexpilot/internal/domain"
	"dexpilot/internal/idhash"
	"dexpilot/internal/observability"
)

// Router attempts an approved trade across ranked venues with ordered
// fallback. A single venue outage never aborts the cycle while an
// alternative venue remains.
type Router struct {
	client      dex.Client
	maxSlippage float64
	maxAttempts int // 0 means one attempt per candidate
	metrics     *observability.Metrics
	logger      *log.Logger
	verbose     bool
}

// Options configures a Router.
type Options struct {
	Client      dex.Client
	MaxSlippage float64
	MaxAttempts int

	Metrics *observability.Metrics // optional
	Logger  *log.Logger
	Verbose bool
}

// New creates an execution router.
func New(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		client:      opts.Client,
		maxSlippage: opts.MaxSlippage,
		maxAttempts: opts.MaxAttempts,
		metrics:     opts.Metrics,
		logger:      logger,
		verbose:     opts.Verbose,
	}
}

// Execute routes an approved decision through the best venue. Candidates are
// ranked by effective cost (gas plus the slippage estimate applied to the
// trade amount) and attempted sequentially; fills are terminal, failures fall
// through to the next venue.
func (r *Router) Execute(ctx context.Context, cycleID string, decision domain.Decision, amountUSD float64, candidates []domain.TokenCandidate) domain.ExecutionOutcome {
	outcome := domain.ExecutionOutcome{
		CycleID:   cycleID,
		Decision:  decision,
		AmountUSD: amountUSD,
	}

	if len(candidates) == 0 {
		outcome.Status = domain.OutcomeFailed
		outcome.ErrorDetail = "no venues"
		outcome.CompletedAt = time.Now().UnixMilli()
		return outcome
	}

	ranked := rankByEffectiveCost(candidates, amountUSD)

	attempts := r.maxAttempts
	if attempts <= 0 || attempts > len(ranked) {
		attempts = len(ranked)
	}

	for i := 0; i < attempts; i++ {
		// Cooperative cancellation between venue attempts only; a submitted
		// attempt always runs to its own completion.
		if err := ctx.Err(); err != nil {
			outcome.Status = domain.OutcomeFailed
			outcome.ErrorDetail = cancelDetail(err)
			outcome.CompletedAt = time.Now().UnixMilli()
			return outcome
		}

		venue := ranked[i]
		attemptID := idhash.ComputeAttemptID(cycleID, venue.Chain, venue.DEX, venue.Address, i)

		r.log("cycle %s attempt %d: %s amount=%.2f", cycleID, i, venue.Venue(), amountUSD)
		if r.metrics != nil {
			r.metrics.VenueAttempts.WithLabelValues(venue.Chain, venue.DEX).Inc()
		}

		result, err := r.client.SubmitSwap(ctx, dex.SwapRequest{
			AttemptID:   attemptID,
			Chain:       venue.Chain,
			DEX:         venue.DEX,
			Contract:    venue.Address,
			Action:      decision.Action,
			AmountUSD:   amountUSD,
			MaxSlippage: r.maxSlippage,
		})
		if err != nil {
			r.log("cycle %s venue %s failed: %v", cycleID, venue.Venue(), err)
			outcome.VenueErrors = append(outcome.VenueErrors, domain.VenueError{
				Chain:   venue.Chain,
				DEX:     venue.DEX,
				Address: venue.Address,
				Reason:  err.Error(),
			})
			continue
		}

		// A fill is terminal: no retry on another venue may follow.
		v := venue
		outcome.Venue = &v
		outcome.Status, outcome.RealizedCostUSD, outcome.ErrorDetail = settle(decision.Action, venue, result, amountUSD, r.maxSlippage)
		outcome.CompletedAt = time.Now().UnixMilli()
		return outcome
	}

	outcome.Status = domain.OutcomeFailed
	outcome.ErrorDetail = "all venues exhausted"
	outcome.CompletedAt = time.Now().UnixMilli()
	return outcome
}

// settle classifies a reported fill and computes its realized cost.
// A fill at worse-than-quoted price within maxSlippage is PARTIAL; it is
// reported, not retried. A worse fill beyond maxSlippage breaks the venue
// contract (slippage-exceeded must not fill) and is flagged as an anomaly
// on the outcome detail, still settled as a fill.
func settle(action domain.Action, venue domain.TokenCandidate, result dex.SwapResult, amountUSD, maxSlippage float64) (domain.OutcomeStatus, float64, string) {
	cost := venue.GasCostUSD

	if result.QuotedPriceUSD <= 0 {
		return domain.OutcomeSuccess, cost, ""
	}

	deviation := (result.RealizedPriceUSD - result.QuotedPriceUSD) / result.QuotedPriceUSD
	worse := (action == domain.ActionBuy && deviation > 0) ||
		(action == domain.ActionSell && deviation < 0)

	cost += math.Abs(deviation) * amountUSD
	if !worse {
		return domain.OutcomeSuccess, cost, ""
	}
	if maxSlippage > 0 && math.Abs(deviation) > maxSlippage {
		detail := fmt.Sprintf("venue anomaly: fill deviation %.4f exceeds max slippage %.4f", math.Abs(deviation), maxSlippage)
		return domain.OutcomePartial, cost, detail
	}
	return domain.OutcomePartial, cost, ""
}

// rankByEffectiveCost sorts candidates ascending by
// estimated_gas_cost + amount * slippage_estimate. Ties keep resolver order,
// which already encodes chain priority and liquidity.
func rankByEffectiveCost(candidates []domain.TokenCandidate, amountUSD float64) []domain.TokenCandidate {
	ranked := make([]domain.TokenCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return effectiveCost(ranked[i], amountUSD) < effectiveCost(ranked[j], amountUSD)
	})
	return ranked
}

func effectiveCost(c domain.TokenCandidate, amountUSD float64) float64 {
	return c.GasCostUSD + amountUSD*c.SlippageEst
}

func cancelDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "cancelled"
}

func (r *Router) log(format string, args ...interface{}) {
	if r.verbose {
		r.logger.Printf("[router] "+format, args...)
	}
}
