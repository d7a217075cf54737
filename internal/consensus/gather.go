package consensus

import (
	"context"
	"log"
	"sync"
	"time"

	"dexpilot/internal/domain"
	"dexpilot/internal/judge"
	"dexpilot/internal/observability"
)

// GathererOptions configures a Gatherer.
type GathererOptions struct {
	Judges []judge.Judge

	// JudgeTimeout bounds each judge individually. A judge that misses the
	// deadline abstains from the cycle.
	JudgeTimeout time.Duration

	Metrics *observability.Metrics // optional
	Logger  *log.Logger
	Verbose bool
}

// Gatherer queries all judges concurrently and collects their opinions.
// Failed or late judges abstain; abstention is never a cycle error.
type Gatherer struct {
	judges       []judge.Judge
	judgeTimeout time.Duration
	metrics      *observability.Metrics
	logger       *log.Logger
	verbose      bool
}

// NewGatherer creates a gatherer.
func NewGatherer(opts GathererOptions) *Gatherer {
	timeout := opts.JudgeTimeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Gatherer{
		judges:       opts.Judges,
		judgeTimeout: timeout,
		metrics:      opts.Metrics,
		logger:       logger,
		verbose:      opts.Verbose,
	}
}

// Gather runs every judge in its own goroutine and joins the results.
// Opinions come back in judge configuration order regardless of which
// judge answered first.
func (g *Gatherer) Gather(ctx context.Context, mctx judge.MarketContext) []domain.Opinion {
	results := make([]*domain.Opinion, len(g.judges))

	var wg sync.WaitGroup
	for i, j := range g.judges {
		wg.Add(1)
		go func(i int, j judge.Judge) {
			defer wg.Done()

			jctx, cancel := context.WithTimeout(ctx, g.judgeTimeout)
			defer cancel()

			op, err := j.ProduceOpinion(jctx, mctx)
			if err != nil {
				g.log("judge %s abstained: %v", j.ID(), err)
				if g.metrics != nil {
					g.metrics.JudgeAbstentions.WithLabelValues(j.ID()).Inc()
				}
				return
			}
			results[i] = &op
		}(i, j)
	}
	wg.Wait()

	opinions := make([]domain.Opinion, 0, len(g.judges))
	for _, op := range results {
		if op != nil {
			opinions = append(opinions, *op)
		}
	}
	return opinions
}

func (g *Gatherer) log(format string, args ...interface{}) {
	if g.verbose {
		g.logger.Printf("[consensus] "+format, args...)
	}
}
