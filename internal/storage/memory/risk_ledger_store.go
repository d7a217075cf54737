package memory

import (
	"context"
	"sort"
	"sync"

	"dexpilot/internal/domain"
	"dexpilot/internal/storage"
)

// RiskLedgerStore is an in-memory implementation of storage.RiskLedgerStore.
type RiskLedgerStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RiskState // keyed by date
}

// NewRiskLedgerStore creates a new in-memory risk ledger store.
func NewRiskLedgerStore() *RiskLedgerStore {
	return &RiskLedgerStore{
		data: make(map[string]*domain.RiskState),
	}
}

// SaveDay inserts or replaces the ledger record for state.Date.
func (s *RiskLedgerStore) SaveDay(_ context.Context, state *domain.RiskState) error {
	if state == nil || state.Date == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[state.Date] = copyState(state)
	return nil
}

// GetDay retrieves the ledger record for a date. Returns ErrNotFound if not exists.
func (s *RiskLedgerStore) GetDay(_ context.Context, date string) (*domain.RiskState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.data[date]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyState(state), nil
}

// GetRecentDays retrieves up to limit records ordered by date DESC.
func (s *RiskLedgerStore) GetRecentDays(_ context.Context, limit int) ([]*domain.RiskState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RiskState, 0, len(s.data))
	for _, state := range s.data {
		result = append(result, copyState(state))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date > result[j].Date
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func copyState(state *domain.RiskState) *domain.RiskState {
	c := *state
	c.TradesToday = make([]domain.TradeSummary, len(state.TradesToday))
	copy(c.TradesToday, state.TradesToday)
	return &c
}

var _ storage.RiskLedgerStore = (*RiskLedgerStore)(nil)
