package domain

// TradeSummary is one committed trade within a daily ledger entry.
type TradeSummary struct {
	CycleID        string
	Token          string
	Action         Action
	AmountUSD      float64
	RealizedPnLUSD float64 // negative for realized cost
	Status         OutcomeStatus
	ExecutedAt     int64 // Unix timestamp in milliseconds
}

// RiskState is the process-wide risk budget for one calendar day.
// Mutated only by the risk manager after a terminal execution outcome;
// reset at the daily boundary.
type RiskState struct {
	Date              string // "YYYY-MM-DD" in UTC
	DailyPnLUSD       float64
	DailyLossLimitUSD float64
	MaxTradeUSD       float64
	TradesToday       []TradeSummary
}

// LossHeadroomUSD is the remaining budget before the daily loss limit
// is breached. Zero or negative means the day is exhausted.
func (s RiskState) LossHeadroomUSD() float64 {
	return s.DailyLossLimitUSD + s.DailyPnLUSD
}
