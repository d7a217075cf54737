package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"dexpilot/internal/domain"
	"dexpilot/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using ClickHouse.
// Outcomes are append-only analytics records; uniqueness on cycle_id is
// enforced by an explicit check before insert since MergeTree does not
// enforce it at insert time.
type OutcomeStore struct {
	conn *Conn
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(conn *Conn) *OutcomeStore {
	return &OutcomeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

// Insert adds a new outcome. Returns ErrDuplicateKey if cycle_id exists.
func (s *OutcomeStore) Insert(ctx context.Context, o *domain.ExecutionOutcome) error {
	if o == nil || o.CycleID == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, o.CycleID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	contributing, err := json.Marshal(o.Decision.Contributing)
	if err != nil {
		return fmt.Errorf("marshal contributing opinions: %w", err)
	}
	venueErrors, err := json.Marshal(o.VenueErrors)
	if err != nil {
		return fmt.Errorf("marshal venue errors: %w", err)
	}

	var venueChain, venueDEX, venueAddress string
	if o.Venue != nil {
		venueChain = o.Venue.Chain
		venueDEX = o.Venue.DEX
		venueAddress = o.Venue.Address
	}

	query := `
		INSERT INTO execution_outcomes (
			cycle_id, action, token, confidence, contributing,
			venue_chain, venue_dex, venue_address,
			status, amount_usd, realized_cost_usd,
			venue_errors, error_detail, completed_at
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?, ?
		)
	`

	err = s.conn.Exec(ctx, query,
		o.CycleID, string(o.Decision.Action), o.Decision.Token, o.Decision.Confidence, string(contributing),
		venueChain, venueDEX, venueAddress,
		string(o.Status), o.AmountUSD, o.RealizedCostUSD,
		string(venueErrors), o.ErrorDetail, o.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution outcome: %w", err)
	}
	return nil
}

// GetByCycleID retrieves an outcome by cycle ID. Returns ErrNotFound if not exists.
func (s *OutcomeStore) GetByCycleID(ctx context.Context, cycleID string) (*domain.ExecutionOutcome, error) {
	query := selectOutcome + `
		WHERE cycle_id = ?
		LIMIT 1
	`

	row := s.conn.QueryRow(ctx, query, cycleID)
	o, err := scanOutcome(row)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	return o, nil
}

// GetRecent retrieves up to limit outcomes ordered by completion time DESC.
func (s *OutcomeStore) GetRecent(ctx context.Context, limit int) ([]*domain.ExecutionOutcome, error) {
	query := selectOutcome + `
		ORDER BY completed_at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*domain.ExecutionOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}

	return outcomes, nil
}

// exists checks whether an outcome with the given cycle ID exists.
func (s *OutcomeStore) exists(ctx context.Context, cycleID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM execution_outcomes WHERE cycle_id = ?`, cycleID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

const selectOutcome = `
	SELECT
		cycle_id, action, token, confidence, contributing,
		venue_chain, venue_dex, venue_address,
		status, amount_usd, realized_cost_usd,
		venue_errors, error_detail, completed_at
	FROM execution_outcomes
`

// chRow is the minimal scan interface shared by QueryRow and Query results.
type chRow interface {
	Scan(dest ...interface{}) error
}

// scanOutcome scans a single row into an ExecutionOutcome.
func scanOutcome(row chRow) (*domain.ExecutionOutcome, error) {
	var (
		o                                  domain.ExecutionOutcome
		action, status                     string
		contributing, venueErrors          string
		venueChain, venueDEX, venueAddress string
	)

	err := row.Scan(
		&o.CycleID, &action, &o.Decision.Token, &o.Decision.Confidence, &contributing,
		&venueChain, &venueDEX, &venueAddress,
		&status, &o.AmountUSD, &o.RealizedCostUSD,
		&venueErrors, &o.ErrorDetail, &o.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Decision.Action = domain.Action(action)
	o.Status = domain.OutcomeStatus(status)
	if contributing != "" {
		if err := json.Unmarshal([]byte(contributing), &o.Decision.Contributing); err != nil {
			return nil, fmt.Errorf("unmarshal contributing opinions: %w", err)
		}
	}
	if venueErrors != "" {
		if err := json.Unmarshal([]byte(venueErrors), &o.VenueErrors); err != nil {
			return nil, fmt.Errorf("unmarshal venue errors: %w", err)
		}
	}
	if venueAddress != "" || venueChain != "" {
		o.Venue = &domain.TokenCandidate{
			Chain:   venueChain,
			DEX:     venueDEX,
			Address: venueAddress,
		}
	}

	return &o, nil
}
