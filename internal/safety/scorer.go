package safety

import (
	"dexpilot/internal/domain"
)

// Factor weights. Must sum to 1.0.
const (
	WeightLiquidity  = 0.35
	WeightAge        = 0.25
	WeightVolatility = 0.25
	WeightMetadata   = 0.15
)

// Signals are the best-effort inputs to one assessment. A nil pointer means
// the input was unavailable; missing data degrades the score toward higher
// risk rather than failing.
type Signals struct {
	LiquidityUSD *float64 // pool depth in USD
	AgeHours     *float64 // time since first observed
	Volatility   *float64 // recent price volatility as a fraction, e.g. 0.05
	HasWebsite   bool
	HasSocials   bool
	MetadataSeen bool // false when metadata lookup itself failed
}

// Scorer computes bounded safety scores. Stateless and deterministic given
// identical inputs.
type Scorer struct{}

// NewScorer creates a new safety scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes a SafetyAssessment for a token from market signals.
// If every input is unavailable the result is the EXTREME band, not an error.
func (s *Scorer) Score(token string, sig Signals) domain.SafetyAssessment {
	factors := []domain.SafetyFactor{
		liquidityFactor(sig.LiquidityUSD),
		ageFactor(sig.AgeHours),
		volatilityFactor(sig.Volatility),
		metadataFactor(sig),
	}

	score := factors[0].Score*WeightLiquidity +
		factors[1].Score*WeightAge +
		factors[2].Score*WeightVolatility +
		factors[3].Score*WeightMetadata
	score = clamp(score)

	band := domain.BandForScore(score)
	if sig.LiquidityUSD == nil && sig.AgeHours == nil && sig.Volatility == nil && !sig.MetadataSeen {
		// Absence of all data is itself a risk signal.
		band = domain.RiskBandExtreme
	}

	return domain.SafetyAssessment{
		Token:   token,
		Score:   score,
		Band:    band,
		Factors: factors,
	}
}

func liquidityFactor(liq *float64) domain.SafetyFactor {
	f := domain.SafetyFactor{Name: "liquidity"}
	if liq == nil {
		f.Detail = "no liquidity data"
		return f
	}
	switch {
	case *liq >= 1_000_000:
		f.Score = 100
	case *liq >= 250_000:
		f.Score = 80
	case *liq >= 50_000:
		f.Score = 60
	case *liq >= 10_000:
		f.Score = 40
	case *liq > 0:
		f.Score = 20
	}
	return f
}

func ageFactor(age *float64) domain.SafetyFactor {
	f := domain.SafetyFactor{Name: "age"}
	if age == nil {
		f.Detail = "no age data"
		return f
	}
	switch {
	case *age >= 24*30:
		f.Score = 100
	case *age >= 24*7:
		f.Score = 75
	case *age >= 24:
		f.Score = 50
	case *age >= 1:
		f.Score = 25
	default:
		f.Score = 10
	}
	return f
}

func volatilityFactor(vol *float64) domain.SafetyFactor {
	f := domain.SafetyFactor{Name: "volatility"}
	if vol == nil {
		f.Detail = "no volatility data"
		return f
	}
	// Lower volatility scores higher.
	switch {
	case *vol <= 0.02:
		f.Score = 100
	case *vol <= 0.05:
		f.Score = 75
	case *vol <= 0.10:
		f.Score = 50
	case *vol <= 0.25:
		f.Score = 25
	}
	return f
}

func metadataFactor(sig Signals) domain.SafetyFactor {
	f := domain.SafetyFactor{Name: "metadata"}
	if !sig.MetadataSeen {
		f.Detail = "no metadata available"
		return f
	}
	if sig.HasWebsite {
		f.Score += 60
	}
	if sig.HasSocials {
		f.Score += 40
	}
	return f
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
