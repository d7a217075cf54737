package domain

// RiskBand is a coarse classification of a token's estimated trading risk.
type RiskBand string

const (
	RiskBandLow     RiskBand = "LOW"
	RiskBandMedium  RiskBand = "MEDIUM"
	RiskBandHigh    RiskBand = "HIGH"
	RiskBandExtreme RiskBand = "EXTREME"
)

// Band thresholds on the 0-100 safety score.
const (
	BandLowMin    = 80.0
	BandMediumMin = 50.0
	BandHighMin   = 25.0
)

// BandForScore maps a safety score to its risk band.
func BandForScore(score float64) RiskBand {
	switch {
	case score >= BandLowMin:
		return RiskBandLow
	case score >= BandMediumMin:
		return RiskBandMedium
	case score >= BandHighMin:
		return RiskBandHigh
	default:
		return RiskBandExtreme
	}
}

// SafetyFactor is one contributing sub-score of a safety assessment.
type SafetyFactor struct {
	Name   string  // "liquidity" | "age" | "volatility" | "metadata"
	Score  float64 // [0,100], already clamped
	Detail string  // short note, e.g. "no liquidity data"
}

// SafetyAssessment is the scored risk profile of a token. Recomputed each
// cycle, never cached indefinitely.
type SafetyAssessment struct {
	Token   string
	Score   float64 // [0,100]
	Band    RiskBand
	Factors []SafetyFactor
}
