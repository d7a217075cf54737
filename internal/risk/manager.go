package risk

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dexpilot/internal/domain"
	"dexpilot/internal/storage"
)

// dateLayout is the ledger key format, always UTC.
const dateLayout = "2006-01-02"

// Manager owns the process-wide RiskState under single-writer discipline.
// All reads and mutations go through the manager; the execution router and
// other components never touch the state directly.
type Manager struct {
	mu    sync.Mutex
	state domain.RiskState

	store             storage.RiskLedgerStore
	maxTradeUSD       float64
	dailyLossLimitUSD float64
	now               func() time.Time
	logger            *log.Logger
	verbose           bool
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Store             storage.RiskLedgerStore
	MaxTradeUSD       float64
	DailyLossLimitUSD float64

	// Now overrides the clock. Defaults to time.Now; used in tests.
	Now func() time.Time

	Logger  *log.Logger
	Verbose bool
}

// NewManager creates a risk state manager.
func NewManager(opts ManagerOptions) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		store:             opts.Store,
		maxTradeUSD:       opts.MaxTradeUSD,
		dailyLossLimitUSD: opts.DailyLossLimitUSD,
		now:               now,
		logger:            logger,
		verbose:           opts.Verbose,
	}
	m.state = m.freshState(m.today())
	return m
}

// Load reconstructs today's RiskState from the ledger. A missing record
// means a fresh day, not an error.
func (m *Manager) Load(ctx context.Context) error {
	date := m.today()

	stored, err := m.store.GetDay(ctx, date)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.mu.Lock()
			m.state = m.freshState(date)
			m.mu.Unlock()
			return nil
		}
		return fmt.Errorf("load risk state: %w", err)
	}

	m.mu.Lock()
	m.state = *stored
	// Configured limits win over persisted ones after a config change.
	m.state.MaxTradeUSD = m.maxTradeUSD
	m.state.DailyLossLimitUSD = m.dailyLossLimitUSD
	m.mu.Unlock()

	m.log("loaded risk state for %s: pnl=%.2f trades=%d", date, stored.DailyPnLUSD, len(stored.TradesToday))
	return nil
}

// Snapshot returns a copy of the current state for validation. The copy is
// safe to read without holding the manager's lock.
func (m *Manager) Snapshot() domain.RiskState {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollIfNewDayLocked()

	snap := m.state
	snap.TradesToday = make([]domain.TradeSummary, len(m.state.TradesToday))
	copy(snap.TradesToday, m.state.TradesToday)
	return snap
}

// Commit applies a terminal outcome to the state and persists the ledger.
// Only executed outcomes (SUCCESS, PARTIAL) consume risk budget; rejected
// and failed cycles never mutate state.
func (m *Manager) Commit(ctx context.Context, outcome *domain.ExecutionOutcome) error {
	if outcome == nil || !outcome.Executed() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollIfNewDayLocked()

	m.state.DailyPnLUSD -= outcome.RealizedCostUSD
	m.state.TradesToday = append(m.state.TradesToday, domain.TradeSummary{
		CycleID:        outcome.CycleID,
		Token:          outcome.Decision.Token,
		Action:         outcome.Decision.Action,
		AmountUSD:      outcome.AmountUSD,
		RealizedPnLUSD: -outcome.RealizedCostUSD,
		Status:         outcome.Status,
		ExecutedAt:     outcome.CompletedAt,
	})

	if err := m.store.SaveDay(ctx, &m.state); err != nil {
		return fmt.Errorf("persist risk ledger: %w", err)
	}

	m.log("committed %s cycle %s: amount=%.2f cost=%.2f pnl=%.2f",
		outcome.Status, outcome.CycleID, outcome.AmountUSD, outcome.RealizedCostUSD, m.state.DailyPnLUSD)
	return nil
}

// ResetDay forces the daily boundary roll and persists the fresh record.
// Called by the scheduler at midnight UTC; Snapshot and Commit also roll
// lazily so a missed tick cannot leak yesterday's budget.
func (m *Manager) ResetDay(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = m.freshState(m.today())
	if err := m.store.SaveDay(ctx, &m.state); err != nil {
		return fmt.Errorf("persist fresh risk ledger: %w", err)
	}

	m.log("daily reset: %s", m.state.Date)
	return nil
}

// Stats summarizes today's committed trades.
type Stats struct {
	Date        string  `json:"date"`
	TotalTrades int     `json:"total_trades"`
	Succeeded   int     `json:"succeeded"`
	Partial     int     `json:"partial"`
	WinRate     float64 `json:"win_rate"`
	DailyPnLUSD float64 `json:"daily_pnl_usd"`
}

// Stats returns today's trading statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollIfNewDayLocked()

	s := Stats{
		Date:        m.state.Date,
		TotalTrades: len(m.state.TradesToday),
		DailyPnLUSD: m.state.DailyPnLUSD,
	}
	for _, t := range m.state.TradesToday {
		switch t.Status {
		case domain.OutcomeSuccess:
			s.Succeeded++
		case domain.OutcomePartial:
			s.Partial++
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Succeeded) / float64(s.TotalTrades)
	}
	return s
}

// rollIfNewDayLocked resets state when the UTC date has changed.
// Caller must hold m.mu.
func (m *Manager) rollIfNewDayLocked() {
	if date := m.today(); date != m.state.Date {
		m.log("date rolled %s -> %s, resetting risk state", m.state.Date, date)
		m.state = m.freshState(date)
	}
}

func (m *Manager) freshState(date string) domain.RiskState {
	return domain.RiskState{
		Date:              date,
		DailyLossLimitUSD: m.dailyLossLimitUSD,
		MaxTradeUSD:       m.maxTradeUSD,
	}
}

func (m *Manager) today() string {
	return m.now().UTC().Format(dateLayout)
}

func (m *Manager) log(format string, args ...interface{}) {
	if m.verbose {
		m.logger.Printf("[risk] "+format, args...)
	}
}
