package domain

// OutcomeStatus is the terminal status of one decision cycle.
type OutcomeStatus string

const (
	OutcomeSuccess  OutcomeStatus = "SUCCESS"
	OutcomePartial  OutcomeStatus = "PARTIAL" // filled worse than quoted, within slippage
	OutcomeRejected OutcomeStatus = "REJECTED"
	OutcomeFailed   OutcomeStatus = "FAILED"
)

// VenueError records one failed execution attempt during venue fallback.
type VenueError struct {
	Chain   string
	DEX     string
	Address string
	Reason  string
}

// ExecutionOutcome is the terminal record of one cycle. Immutable once
// emitted; RiskState is committed only for SUCCESS and PARTIAL outcomes.
type ExecutionOutcome struct {
	CycleID         string
	Decision        Decision
	Venue           *TokenCandidate // venue used, nil when nothing executed
	Status          OutcomeStatus
	AmountUSD       float64      // approved trade size, 0 when rejected
	RealizedCostUSD float64      // gas plus slippage cost actually paid
	VenueErrors     []VenueError // per-venue failures during fallback
	ErrorDetail     string       // rejection reason or terminal failure detail
	CompletedAt     int64        // Unix timestamp in milliseconds
}

// Executed reports whether the outcome represents an on-chain fill.
func (o ExecutionOutcome) Executed() bool {
	return o.Status == OutcomeSuccess || o.Status == OutcomePartial
}
