package consensus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"dexpilot/internal/domain"
	"dexpilot/internal/judge"
	"dexpilot/internal/observability"
)

func TestGather_CollectsAllOpinions(t *testing.T) {
	g := NewGatherer(GathererOptions{
		Judges: []judge.Judge{
			&judge.StubJudge{SourceID: "a", Action: domain.ActionBuy, Confidence: 0.9},
			&judge.StubJudge{SourceID: "b", Action: domain.ActionBuy, Confidence: 0.8},
			&judge.StubJudge{SourceID: "c", Action: domain.ActionHold, Confidence: 0.5},
		},
		JudgeTimeout: time.Second,
	})

	opinions := g.Gather(context.Background(), judge.MarketContext{Token: "WETH"})

	if len(opinions) != 3 {
		t.Fatalf("got %d opinions, want 3", len(opinions))
	}
	// Configuration order is preserved.
	if opinions[0].SourceID != "a" || opinions[1].SourceID != "b" || opinions[2].SourceID != "c" {
		t.Errorf("wrong order: %s, %s, %s", opinions[0].SourceID, opinions[1].SourceID, opinions[2].SourceID)
	}
}

func TestGather_FailedJudgeAbstains(t *testing.T) {
	g := NewGatherer(GathererOptions{
		Judges: []judge.Judge{
			&judge.StubJudge{SourceID: "a", Action: domain.ActionBuy, Confidence: 0.9},
			&judge.StubJudge{SourceID: "b", Err: errors.New("model overloaded")},
		},
		JudgeTimeout: time.Second,
	})

	opinions := g.Gather(context.Background(), judge.MarketContext{Token: "WETH"})

	if len(opinions) != 1 {
		t.Fatalf("got %d opinions, want 1", len(opinions))
	}
	if opinions[0].SourceID != "a" {
		t.Errorf("SourceID = %s, want a", opinions[0].SourceID)
	}
}

func TestGather_SlowJudgeAbstains(t *testing.T) {
	g := NewGatherer(GathererOptions{
		Judges: []judge.Judge{
			&judge.StubJudge{SourceID: "fast", Action: domain.ActionSell, Confidence: 0.7},
			&judge.StubJudge{SourceID: "slow", Action: domain.ActionBuy, Confidence: 0.9, Delay: 500 * time.Millisecond},
		},
		JudgeTimeout: 50 * time.Millisecond,
	})

	opinions := g.Gather(context.Background(), judge.MarketContext{Token: "WETH"})

	if len(opinions) != 1 {
		t.Fatalf("got %d opinions, want 1", len(opinions))
	}
	if opinions[0].SourceID != "fast" {
		t.Errorf("SourceID = %s, want fast", opinions[0].SourceID)
	}
}

func TestGather_AllAbstainYieldsEmpty(t *testing.T) {
	g := NewGatherer(GathererOptions{
		Judges: []judge.Judge{
			&judge.StubJudge{SourceID: "a", Err: errors.New("down")},
			&judge.StubJudge{SourceID: "b", Err: errors.New("down")},
		},
		JudgeTimeout: time.Second,
	})

	opinions := g.Gather(context.Background(), judge.MarketContext{Token: "WETH"})

	if len(opinions) != 0 {
		t.Fatalf("got %d opinions, want 0", len(opinions))
	}
}

func TestGather_CountsAbstentions(t *testing.T) {
	metrics := observability.NewMetricsWith("gathertest", prometheus.NewRegistry())

	g := NewGatherer(GathererOptions{
		Judges: []judge.Judge{
			&judge.StubJudge{SourceID: "a", Action: domain.ActionBuy, Confidence: 0.9},
			&judge.StubJudge{SourceID: "b", Err: errors.New("model overloaded")},
		},
		JudgeTimeout: time.Second,
		Metrics:      metrics,
	})

	g.Gather(context.Background(), judge.MarketContext{Token: "WETH"})

	if v := testutil.ToFloat64(metrics.JudgeAbstentions.WithLabelValues("b")); v != 1 {
		t.Errorf("abstentions for b = %v, want 1", v)
	}
	if v := testutil.ToFloat64(metrics.JudgeAbstentions.WithLabelValues("a")); v != 0 {
		t.Errorf("abstentions for a = %v, want 0", v)
	}
}
