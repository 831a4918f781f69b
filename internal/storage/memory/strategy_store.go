package memory

import (
	"context"
	"sort"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// StrategyStore is an in-memory implementation of storage.StrategyStore.
type StrategyStore struct {
	db *DB
}

// NewStrategyStore creates a strategy store over db.
func NewStrategyStore(db *DB) *StrategyStore {
	return &StrategyStore{db: db}
}

// GetByID retrieves a strategy. Returns ErrNotFound if not exists.
func (s *StrategyStore) GetByID(_ context.Context, strategyID string) (*domain.Strategy, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	st, ok := s.db.strategies[strategyID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyStrategy(st), nil
}

// GetAll retrieves all strategies ordered by id ASC.
func (s *StrategyStore) GetAll(_ context.Context) ([]*domain.Strategy, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	result := make([]*domain.Strategy, 0, len(s.db.strategies))
	for _, st := range s.db.strategies {
		result = append(result, copyStrategy(st))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var _ storage.StrategyStore = (*StrategyStore)(nil)
