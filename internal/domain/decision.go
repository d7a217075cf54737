package domain

// Action is a proposed trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// IsValid reports whether a is a known action.
func (a Action) IsValid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold:
		return true
	}
	return false
}

// Opinion is one judge's view on a token for a single decision cycle.
// Immutable once recorded.
type Opinion struct {
	SourceID   string  // judge identifier
	Action     Action  // BUY | SELL | HOLD
	Token      string  // target token symbol or address
	Confidence float64 // [0,1]
	Rationale  string  // free-text explanation
}

// Decision is the consensus over one cycle's opinions. Read-only after
// creation; discarded or archived after execution.
type Decision struct {
	Action       Action
	Token        string
	Confidence   float64   // aggregate confidence [0,1]
	Contributing []Opinion // winning action group, in submission order
	CreatedAt    int64     // Unix timestamp in milliseconds
}
