package consensus

import (
	"math"
	"testing"

	"dexpilot/internal/domain"
)

func TestDecide_ZeroOpinions(t *testing.T) {
	e := New(Options{})

	d := e.Decide(nil)

	if d.Action != domain.ActionHold {
		t.Errorf("Action = %s, want HOLD", d.Action)
	}
	if d.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", d.Confidence)
	}
	if len(d.Contributing) != 0 {
		t.Errorf("Contributing = %d opinions, want 0", len(d.Contributing))
	}
}

func TestDecide_UnanimousAgreement(t *testing.T) {
	e := New(Options{})

	opinions := []domain.Opinion{
		{SourceID: "a", Action: domain.ActionBuy, Token: "WETH", Confidence: 0.9},
		{SourceID: "b", Action: domain.ActionBuy, Token: "WETH", Confidence: 0.7},
		{SourceID: "c", Action: domain.ActionBuy, Token: "WETH", Confidence: 0.8},
	}

	d := e.Decide(opinions)

	if d.Action != domain.ActionBuy {
		t.Errorf("Action = %s, want BUY", d.Action)
	}
	want := (0.9 + 0.7 + 0.8) / 3
	if math.Abs(d.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", d.Confidence, want)
	}
	if len(d.Contributing) != 3 {
		t.Errorf("Contributing = %d opinions, want 3", len(d.Contributing))
	}
}

func TestDecide_MajorityWins(t *testing.T) {
	e := New(Options{})

	// BUY group mean 0.85 beats HOLD 0.5.
	opinions := []domain.Opinion{
		{SourceID: "a", Action: domain.ActionBuy, Token: "WETH", Confidence: 0.9},
		{SourceID: "b", Action: domain.ActionBuy, Token: "WETH", Confidence: 0.8},
		{SourceID: "c", Action: domain.ActionHold, Token: "WETH", Confidence: 0.5},
	}

	d := e.Decide(opinions)

	if d.Action != domain.ActionBuy {
		t.Errorf("Action = %s, want BUY", d.Action)
	}
	if math.Abs(d.Confidence-0.85) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.85", d.Confidence)
	}
	if d.Token != "WETH" {
		t.Errorf("Token = %q, want WETH", d.Token)
	}
	if len(d.Contributing) != 2 {
		t.Errorf("Contributing = %d opinions, want 2", len(d.Contributing))
	}
}

func TestDecide_TrustWeights(t *testing.T) {
	e := New(Options{
		TrustWeights: map[string]float64{"trusted": 3.0, "noisy": 0.5},
	})

	opinions := []domain.Opinion{
		{SourceID: "trusted", Action: domain.ActionSell, Token: "PEPE", Confidence: 0.8},
		{SourceID: "noisy", Action: domain.ActionSell, Token: "PEPE", Confidence: 0.6},
	}

	d := e.Decide(opinions)

	want := (3.0*0.8 + 0.5*0.6) / 3.5
	if math.Abs(d.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", d.Confidence, want)
	}
	if d.Action != domain.ActionSell {
		t.Errorf("Action = %s, want SELL", d.Action)
	}
}

func TestDecide_TieBrokenTowardHold(t *testing.T) {
	e := New(Options{})

	// BUY and HOLD groups both aggregate to 0.8.
	opinions := []domain.Opinion{
		{SourceID: "a", Action: domain.ActionBuy, Token: "WETH", Confidence: 0.8},
		{SourceID: "b", Action: domain.ActionHold, Token: "WETH", Confidence: 0.8},
	}

	d := e.Decide(opinions)

	if d.Action != domain.ActionHold {
		t.Errorf("Action = %s, want HOLD on tie", d.Action)
	}
}

func TestDecide_NonHoldTieStillHolds(t *testing.T) {
	e := New(Options{})

	// BUY and SELL tie with no HOLD opinion present.
	opinions := []domain.Opinion{
		{SourceID: "a", Action: domain.ActionBuy, Token: "WETH", Confidence: 0.75},
		{SourceID: "b", Action: domain.ActionSell, Token: "WETH", Confidence: 0.75},
	}

	d := e.Decide(opinions)

	if d.Action != domain.ActionHold {
		t.Errorf("Action = %s, want HOLD on non-HOLD tie", d.Action)
	}
}

func TestDecide_MinConfidenceFilter(t *testing.T) {
	e := New(Options{MinOpinionConfidence: 0.65})

	opinions := []domain.Opinion{
		{SourceID: "a", Action: domain.ActionBuy, Token: "WETH", Confidence: 0.9},
		{SourceID: "b", Action: domain.ActionSell, Token: "WETH", Confidence: 0.4}, // dropped
	}

	d := e.Decide(opinions)

	if d.Action != domain.ActionBuy {
		t.Errorf("Action = %s, want BUY after low-confidence filter", d.Action)
	}
	if len(d.Contributing) != 1 {
		t.Errorf("Contributing = %d opinions, want 1", len(d.Contributing))
	}
}

func TestDecide_AllFilteredYieldsHold(t *testing.T) {
	e := New(Options{MinOpinionConfidence: 0.65})

	opinions := []domain.Opinion{
		{SourceID: "a", Action: domain.ActionBuy, Token: "WETH", Confidence: 0.3},
		{SourceID: "b", Action: domain.ActionBuy, Token: "WETH", Confidence: 0.2},
	}

	d := e.Decide(opinions)

	if d.Action != domain.ActionHold || d.Confidence != 0 {
		t.Errorf("got %s/%v, want HOLD/0 when every opinion is filtered", d.Action, d.Confidence)
	}
}

func TestDecide_InvalidOpinionsIgnored(t *testing.T) {
	e := New(Options{})

	opinions := []domain.Opinion{
		{SourceID: "a", Action: "YOLO", Token: "WETH", Confidence: 0.9},
		{SourceID: "b", Action: domain.ActionBuy, Token: "WETH", Confidence: 1.7},
		{SourceID: "c", Action: domain.ActionSell, Token: "WETH", Confidence: 0.7},
	}

	d := e.Decide(opinions)

	if d.Action != domain.ActionSell {
		t.Errorf("Action = %s, want SELL (only valid opinion)", d.Action)
	}
	if d.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want 0.7", d.Confidence)
	}
}
