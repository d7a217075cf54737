package storage

import (
	"context"

	"dexpilot/internal/domain"
)

// RiskLedgerStore persists the daily risk ledger, one record per calendar
// date (UTC). RiskState is reconstructed from today's record on restart.
type RiskLedgerStore interface {
	// SaveDay inserts or replaces the ledger record for state.Date.
	SaveDay(ctx context.Context, state *domain.RiskState) error

	// GetDay retrieves the ledger record for a date ("YYYY-MM-DD").
	// Returns ErrNotFound if no record exists for that date.
	GetDay(ctx context.Context, date string) (*domain.RiskState, error)

	// GetRecentDays retrieves up to limit records ordered by date DESC.
	GetRecentDays(ctx context.Context, limit int) ([]*domain.RiskState, error)
}

// OutcomeStore archives terminal execution outcomes for offline analysis.
type OutcomeStore interface {
	// Insert adds a new outcome. Returns ErrDuplicateKey if cycle_id exists.
	Insert(ctx context.Context, o *domain.ExecutionOutcome) error

	// GetByCycleID retrieves an outcome by cycle ID. Returns ErrNotFound if not exists.
	GetByCycleID(ctx context.Context, cycleID string) (*domain.ExecutionOutcome, error)

	// GetRecent retrieves up to limit outcomes ordered by completion time DESC.
	GetRecent(ctx context.Context, limit int) ([]*domain.ExecutionOutcome, error)
}
