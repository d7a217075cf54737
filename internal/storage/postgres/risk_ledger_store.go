package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dexpilot/internal/domain"
	"dexpilot/internal/storage"
)

// RiskLedgerStore implements storage.RiskLedgerStore using PostgreSQL.
// One row per calendar date; the trade list is stored as JSONB.
type RiskLedgerStore struct {
	pool *Pool
}

// NewRiskLedgerStore creates a new RiskLedgerStore.
func NewRiskLedgerStore(pool *Pool) *RiskLedgerStore {
	return &RiskLedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RiskLedgerStore = (*RiskLedgerStore)(nil)

// SaveDay inserts or replaces the ledger record for state.Date.
func (s *RiskLedgerStore) SaveDay(ctx context.Context, state *domain.RiskState) error {
	if state == nil || state.Date == "" {
		return storage.ErrInvalidInput
	}

	trades, err := json.Marshal(state.TradesToday)
	if err != nil {
		return fmt.Errorf("marshal trades: %w", err)
	}

	query := `
		INSERT INTO risk_ledger (
			ledger_date, daily_pnl_usd, daily_loss_limit_usd, max_trade_usd, trades
		) VALUES (
			$1, $2, $3, $4, $5
		)
		ON CONFLICT (ledger_date) DO UPDATE SET
			daily_pnl_usd = EXCLUDED.daily_pnl_usd,
			daily_loss_limit_usd = EXCLUDED.daily_loss_limit_usd,
			max_trade_usd = EXCLUDED.max_trade_usd,
			trades = EXCLUDED.trades
	`

	_, err = s.pool.Exec(ctx, query,
		state.Date, state.DailyPnLUSD, state.DailyLossLimitUSD, state.MaxTradeUSD, trades,
	)
	if err != nil {
		return fmt.Errorf("save risk ledger day: %w", err)
	}
	return nil
}

// GetDay retrieves the ledger record for a date. Returns ErrNotFound if not exists.
func (s *RiskLedgerStore) GetDay(ctx context.Context, date string) (*domain.RiskState, error) {
	query := `
		SELECT ledger_date, daily_pnl_usd, daily_loss_limit_usd, max_trade_usd, trades
		FROM risk_ledger
		WHERE ledger_date = $1
	`

	row := s.pool.QueryRow(ctx, query, date)
	state, err := scanRiskState(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get risk ledger day: %w", err)
	}
	return state, nil
}

// GetRecentDays retrieves up to limit records ordered by date DESC.
func (s *RiskLedgerStore) GetRecentDays(ctx context.Context, limit int) ([]*domain.RiskState, error) {
	query := `
		SELECT ledger_date, daily_pnl_usd, daily_loss_limit_usd, max_trade_usd, trades
		FROM risk_ledger
		ORDER BY ledger_date DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent risk ledger days: %w", err)
	}
	defer rows.Close()

	var result []*domain.RiskState
	for rows.Next() {
		state, err := scanRiskState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan risk ledger row: %w", err)
		}
		result = append(result, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk ledger rows: %w", err)
	}

	return result, nil
}

// scanRiskState scans a single row into a RiskState.
func scanRiskState(row pgx.Row) (*domain.RiskState, error) {
	var (
		state  domain.RiskState
		trades []byte
	)

	err := row.Scan(
		&state.Date, &state.DailyPnLUSD, &state.DailyLossLimitUSD, &state.MaxTradeUSD, &trades,
	)
	if err != nil {
		return nil, err
	}

	if len(trades) > 0 {
		if err := json.Unmarshal(trades, &state.TradesToday); err != nil {
			return nil, fmt.Errorf("unmarshal trades: %w", err)
		}
	}

	return &state, nil
}
