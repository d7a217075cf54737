// Package pipeline runs one full decision cycle: resolve, score, gather
// opinions, decide, validate against risk limits, execute, commit.
package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"dexpilot/internal/consensus"
	"dexpilot/internal/domain"
	"dexpilot/internal/execution"
	"dexpilot/internal/judge"
	"dexpilot/internal/market"
	"dexpilot/internal/observability"
	"dexpilot/internal/resolver"
	"dexpilot/internal/risk"
	"dexpilot/internal/safety"
	"dexpilot/internal/storage"
)

// PriceSource supplies live price and volatility signals for a token.
type PriceSource interface {
	PriceUSD(token string) (float64, bool)
	Volatility(token string) *float64
}

// MetadataSource supplies auxiliary token metadata.
type MetadataSource interface {
	GetMetadata(ctx context.Context, symbol string) (market.Metadata, error)
}

// Runner owns one decision cycle end to end. It is not safe for concurrent
// RunCycle calls; the scheduler guarantees cycles never overlap.
type Runner struct {
	resolver *resolver.Resolver
	scorer   *safety.Scorer
	gatherer *consensus.Gatherer
	engine   *consensus.Engine
	guard    *risk.Guard
	riskMgr  *risk.Manager
	router   *execution.Router

	outcomes storage.OutcomeStore
	prices   PriceSource
	metadata MetadataSource

	cycleTimeout time.Duration
	metrics      *observability.Metrics
	logger       *log.Logger
	verbose      bool
}

// Options configures a Runner. Resolver, Scorer, Gatherer, Engine, Guard,
// RiskManager, Router, and Outcomes are required; Prices and Metadata are
// best-effort and may be nil.
type Options struct {
	Resolver    *resolver.Resolver
	Scorer      *safety.Scorer
	Gatherer    *consensus.Gatherer
	Engine      *consensus.Engine
	Guard       *risk.Guard
	RiskManager *risk.Manager
	Router      *execution.Router

	Outcomes storage.OutcomeStore
	Prices   PriceSource
	Metadata MetadataSource

	CycleTimeout time.Duration
	Metrics      *observability.Metrics
	Logger       *log.Logger
	Verbose      bool
}

// DefaultCycleTimeout bounds one cycle end to end.
const DefaultCycleTimeout = 5 * time.Minute

// New creates a pipeline runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	timeout := opts.CycleTimeout
	if timeout <= 0 {
		timeout = DefaultCycleTimeout
	}
	return &Runner{
		resolver:     opts.Resolver,
		scorer:       opts.Scorer,
		gatherer:     opts.Gatherer,
		engine:       opts.Engine,
		guard:        opts.Guard,
		riskMgr:      opts.RiskManager,
		router:       opts.Router,
		outcomes:     opts.Outcomes,
		prices:       opts.Prices,
		metadata:     opts.Metadata,
		cycleTimeout: timeout,
		metrics:      opts.Metrics,
		logger:       logger,
		verbose:      opts.Verbose,
	}
}

// RunCycle executes one full decision cycle for a token and returns its
// terminal outcome. Every terminal outcome is archived; risk state is
// committed only for executed fills.
func (r *Runner) RunCycle(ctx context.Context, token string) domain.ExecutionOutcome {
	ctx, cancel := context.WithTimeout(ctx, r.cycleTimeout)
	defer cancel()

	cycleID := uuid.NewString()
	start := time.Now()

	r.log("cycle %s: token %s", cycleID, token)

	res := r.resolver.Resolve(ctx, token)
	if r.metrics != nil {
		r.metrics.ResolutionsTotal.WithLabelValues(string(res.Kind)).Inc()
	}

	assessment := r.scorer.Score(token, r.collectSignals(ctx, token, res))
	r.log("cycle %s: safety %.1f (%s), %d candidates", cycleID, assessment.Score, assessment.Band, len(res.Candidates))

	mctx := judge.MarketContext{Token: token, Safety: assessment}
	if r.prices != nil {
		if p, ok := r.prices.PriceUSD(token); ok {
			mctx.PriceUSD = p
		}
		if v := r.prices.Volatility(token); v != nil {
			mctx.Volatility = *v
		}
	}

	opinions := r.gatherer.Gather(ctx, mctx)
	if r.metrics != nil {
		for _, op := range opinions {
			r.metrics.OpinionsGathered.WithLabelValues(op.SourceID).Inc()
		}
	}

	// An expired deadline means the cycle is abandoned. The mass abstention
	// above would otherwise read as a vacuous HOLD and surface as a risk
	// rejection instead of a timeout.
	if err := ctx.Err(); err != nil {
		outcome := domain.ExecutionOutcome{
			CycleID:     cycleID,
			Decision:    domain.Decision{Action: domain.ActionHold, Token: token, CreatedAt: time.Now().UnixMilli()},
			Status:      domain.OutcomeFailed,
			ErrorDetail: abortDetail(err),
			CompletedAt: time.Now().UnixMilli(),
		}
		r.log("cycle %s: abandoned (%s)", cycleID, outcome.ErrorDetail)
		r.finish(ctx, outcome, start)
		return outcome
	}

	decision := r.engine.Decide(opinions)
	if decision.Token == "" {
		decision.Token = token
	}
	r.log("cycle %s: decision %s confidence %.2f (%d opinions)",
		cycleID, decision.Action, decision.Confidence, len(opinions))
	if r.metrics != nil {
		r.metrics.DecisionsByAction.WithLabelValues(string(decision.Action)).Inc()
	}

	verdict := r.guard.Validate(decision, r.riskMgr.Snapshot())
	if !verdict.Approved {
		outcome := domain.ExecutionOutcome{
			CycleID:     cycleID,
			Decision:    decision,
			Status:      domain.OutcomeRejected,
			ErrorDetail: verdict.Reason,
			CompletedAt: time.Now().UnixMilli(),
		}
		r.log("cycle %s: rejected (%s)", cycleID, verdict.Reason)
		if r.metrics != nil {
			r.metrics.RiskRejections.WithLabelValues(verdict.Reason).Inc()
		}
		r.finish(ctx, outcome, start)
		return outcome
	}

	if r.metrics != nil {
		r.metrics.TradeSizeUSD.Observe(verdict.AmountUSD)
	}

	outcome := r.router.Execute(ctx, cycleID, decision, verdict.AmountUSD, res.Candidates)
	if outcome.Executed() {
		if err := r.riskMgr.Commit(ctx, &outcome); err != nil {
			r.logger.Printf("[pipeline] cycle %s: commit risk state: %v", cycleID, err)
		}
	}

	r.finish(ctx, outcome, start)
	return outcome
}

// finish archives the outcome and records cycle metrics.
func (r *Runner) finish(ctx context.Context, outcome domain.ExecutionOutcome, start time.Time) {
	if r.outcomes != nil {
		// Archival must survive the cycle deadline; a timed-out cycle still
		// leaves a record.
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := r.outcomes.Insert(actx, &outcome); err != nil {
			r.logger.Printf("[pipeline] cycle %s: archive outcome: %v", outcome.CycleID, err)
		}
	}

	if r.metrics != nil {
		r.metrics.CyclesTotal.WithLabelValues(string(outcome.Status)).Inc()
		r.metrics.CycleDuration.Observe(time.Since(start).Seconds())
		r.metrics.OutcomesTotal.WithLabelValues(string(outcome.Status)).Inc()
		r.metrics.DailyPnLUSD.Set(r.riskMgr.Snapshot().DailyPnLUSD)
		if outcome.Executed() {
			r.metrics.LastSuccessfulCycle.SetToCurrentTime()
			r.metrics.RealizedCostUSD.Observe(outcome.RealizedCostUSD)
		}
		for _, ve := range outcome.VenueErrors {
			r.metrics.VenueFailures.WithLabelValues(ve.Chain, ve.DEX).Inc()
		}
	}

	r.log("cycle %s: %s", outcome.CycleID, outcome.Status)
}

// collectSignals assembles the best-effort inputs for one safety assessment.
func (r *Runner) collectSignals(ctx context.Context, token string, res resolver.Resolution) safety.Signals {
	var sig safety.Signals

	if liq := maxLiquidity(res.Candidates); liq > 0 {
		sig.LiquidityUSD = &liq
	}

	if r.prices != nil {
		sig.Volatility = r.prices.Volatility(token)
	}

	if r.metadata != nil {
		meta, err := r.metadata.GetMetadata(ctx, token)
		if err != nil {
			r.log("metadata %s: %v", token, err)
		} else {
			sig.MetadataSeen = true
			sig.HasWebsite = meta.Website != ""
			sig.HasSocials = len(meta.Socials) > 0
			if meta.FirstSeenMilli > 0 {
				age := time.Since(time.UnixMilli(meta.FirstSeenMilli)).Hours()
				if age > 0 {
					sig.AgeHours = &age
				}
			}
		}
	}

	if sig.AgeHours == nil {
		if age := oldestDiscovery(res.Candidates); age != nil {
			sig.AgeHours = age
		}
	}

	return sig
}

func maxLiquidity(candidates []domain.TokenCandidate) float64 {
	var max float64
	for _, c := range candidates {
		if c.LiquidityUSD > max {
			max = c.LiquidityUSD
		}
	}
	return max
}

func oldestDiscovery(candidates []domain.TokenCandidate) *float64 {
	var oldest int64
	for _, c := range candidates {
		if c.DiscoveredAt > 0 && (oldest == 0 || c.DiscoveredAt < oldest) {
			oldest = c.DiscoveredAt
		}
	}
	if oldest == 0 {
		return nil
	}
	age := time.Since(time.UnixMilli(oldest)).Hours()
	return &age
}

func abortDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "cancelled"
}

func (r *Runner) log(format string, args ...interface{}) {
	if r.verbose {
		r.logger.Printf("[pipeline] "+format, args...)
	}
}
