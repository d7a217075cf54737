package memory

import (
	"context"
	"sort"
	"sync"

	"dexpilot/internal/domain"
	"dexpilot/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeStore.
type OutcomeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ExecutionOutcome // keyed by cycle_id
}

// NewOutcomeStore creates a new in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		data: make(map[string]*domain.ExecutionOutcome),
	}
}

// Insert adds a new outcome. Returns ErrDuplicateKey if cycle_id exists.
func (s *OutcomeStore) Insert(_ context.Context, o *domain.ExecutionOutcome) error {
	if o == nil || o.CycleID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.CycleID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[o.CycleID] = copyOutcome(o)
	return nil
}

// GetByCycleID retrieves an outcome by cycle ID. Returns ErrNotFound if not exists.
func (s *OutcomeStore) GetByCycleID(_ context.Context, cycleID string) (*domain.ExecutionOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[cycleID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyOutcome(o), nil
}

// GetRecent retrieves up to limit outcomes ordered by completion time DESC.
func (s *OutcomeStore) GetRecent(_ context.Context, limit int) ([]*domain.ExecutionOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ExecutionOutcome, 0, len(s.data))
	for _, o := range s.data {
		result = append(result, copyOutcome(o))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CompletedAt > result[j].CompletedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func copyOutcome(o *domain.ExecutionOutcome) *domain.ExecutionOutcome {
	c := *o
	if o.Venue != nil {
		venue := *o.Venue
		c.Venue = &venue
	}
	c.VenueErrors = make([]domain.VenueError, len(o.VenueErrors))
	copy(c.VenueErrors, o.VenueErrors)
	c.Decision.Contributing = make([]domain.Opinion, len(o.Decision.Contributing))
	copy(c.Decision.Contributing, o.Decision.Contributing)
	return &c
}

var _ storage.OutcomeStore = (*OutcomeStore)(nil)
