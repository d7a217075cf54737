package judge

import (
	"context"
	"time"

	"dexpilot/internal/domain"
)

// StubJudge returns a fixed opinion. Used in simulate mode and tests.
type StubJudge struct {
	SourceID   string
	Action     domain.Action
	Confidence float64
	Rationale  string
	Delay      time.Duration // optional artificial latency
	Err        error         // returned instead of an opinion when set
}

// ID returns the stub's source identifier.
func (s *StubJudge) ID() string {
	return s.SourceID
}

// ProduceOpinion returns the configured opinion after the configured delay.
func (s *StubJudge) ProduceOpinion(ctx context.Context, mctx MarketContext) (domain.Opinion, error) {
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return domain.Opinion{}, ctx.Err()
		case <-time.After(s.Delay):
		}
	}
	if s.Err != nil {
		return domain.Opinion{}, s.Err
	}
	return domain.Opinion{
		SourceID:   s.SourceID,
		Action:     s.Action,
		Token:      mctx.Token,
		Confidence: s.Confidence,
		Rationale:  s.Rationale,
	}, nil
}

var _ Judge = (*StubJudge)(nil)
