package consensus

import (
	"time"

	"dexpilot/internal/domain"
)

// Options configures the consensus engine.
type Options struct {
	// TrustWeights maps a judge source ID to its weight in the aggregate.
	// Sources without an entry get weight 1.0.
	TrustWeights map[string]float64

	// MinOpinionConfidence drops opinions below this confidence before
	// grouping. Zero keeps everything.
	MinOpinionConfidence float64
}

// Engine reduces independent opinions to one trust-weighted decision.
type Engine struct {
	weights map[string]float64
	minConf float64
}

// New creates a consensus engine.
func New(opts Options) *Engine {
	return &Engine{
		weights: opts.TrustWeights,
		minConf: opts.MinOpinionConfidence,
	}
}

// Decide groups opinions by action and selects the action group with the
// highest weighted mean confidence. Zero usable opinions yield HOLD with
// confidence 0; ties are broken in favor of HOLD, the conservative action.
func (e *Engine) Decide(opinions []domain.Opinion) domain.Decision {
	now := time.Now().UnixMilli()

	groups := make(map[domain.Action][]domain.Opinion)
	for _, op := range opinions {
		if !op.Action.IsValid() || op.Confidence < 0 || op.Confidence > 1 {
			continue
		}
		if op.Confidence < e.minConf {
			continue
		}
		groups[op.Action] = append(groups[op.Action], op)
	}

	if len(groups) == 0 {
		return domain.Decision{
			Action:     domain.ActionHold,
			Token:      firstToken(opinions),
			Confidence: 0,
			CreatedAt:  now,
		}
	}

	type scored struct {
		action     domain.Action
		confidence float64
		members    []domain.Opinion
	}

	var best []scored
	for _, action := range []domain.Action{domain.ActionBuy, domain.ActionSell, domain.ActionHold} {
		members, ok := groups[action]
		if !ok {
			continue
		}
		conf, ok := e.weightedMean(members)
		if !ok {
			continue
		}
		s := scored{action: action, confidence: conf, members: members}
		switch {
		case len(best) == 0 || s.confidence > best[0].confidence:
			best = []scored{s}
		case s.confidence == best[0].confidence:
			best = append(best, s)
		}
	}

	if len(best) == 0 {
		return domain.Decision{
			Action:     domain.ActionHold,
			Token:      firstToken(opinions),
			Confidence: 0,
			CreatedAt:  now,
		}
	}

	winner := best[0]
	if len(best) > 1 {
		// Equal aggregate confidence across actions: hold.
		winner = scored{action: domain.ActionHold, confidence: best[0].confidence}
		for _, s := range best {
			if s.action == domain.ActionHold {
				winner = s
				break
			}
		}
	}

	return domain.Decision{
		Action:       winner.action,
		Token:        pickToken(winner.members, opinions),
		Confidence:   winner.confidence,
		Contributing: winner.members,
		CreatedAt:    now,
	}
}

// weightedMean computes sum(w*c)/sum(w) over a group. Returns false when the
// group carries no weight.
func (e *Engine) weightedMean(members []domain.Opinion) (float64, bool) {
	var num, den float64
	for _, op := range members {
		w := 1.0
		if e.weights != nil {
			if v, ok := e.weights[op.SourceID]; ok {
				w = v
			}
		}
		num += w * op.Confidence
		den += w
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

func pickToken(members []domain.Opinion, all []domain.Opinion) string {
	if len(members) > 0 {
		return members[0].Token
	}
	return firstToken(all)
}

func firstToken(opinions []domain.Opinion) string {
	if len(opinions) > 0 {
		return opinions[0].Token
	}
	return ""
}
