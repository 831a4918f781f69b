package memory

import (
	"context"
	"sort"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// StatsStore is an in-memory implementation of storage.StatsStore.
type StatsStore struct {
	db *DB
}

// NewStatsStore creates a stats store over db.
func NewStatsStore(db *DB) *StatsStore {
	return &StatsStore{db: db}
}

// ReplaceStats upserts all given rows of one strategy atomically.
func (s *StatsStore) ReplaceStats(_ context.Context, strategyID string, stats []*domain.StrategyStats) error {
	for _, st := range stats {
		if st == nil || st.StrategyID != strategyID || !st.Window.IsValid() {
			return storage.ErrInvalidInput
		}
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.strategies[strategyID]; !ok {
		return storage.ErrNotFound
	}
	for _, st := range stats {
		s.db.stats[statsKey(strategyID, st.Window)] = copyStats(st)
	}
	return nil
}

// GetByStrategy retrieves all window rows of a strategy in window order.
func (s *StatsStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.StrategyStats, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result []*domain.StrategyStats
	for _, w := range domain.AllWindows {
		if st, ok := s.db.stats[statsKey(strategyID, w)]; ok {
			result = append(result, copyStats(st))
		}
	}
	return result, nil
}

// GetByWindow retrieves the rows of every strategy for one window, ordered by strategy id.
func (s *StatsStore) GetByWindow(_ context.Context, window domain.Window) ([]*domain.StrategyStats, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result []*domain.StrategyStats
	for _, st := range s.db.stats {
		if st.Window == window {
			result = append(result, copyStats(st))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StrategyID < result[j].StrategyID
	})
	return result, nil
}

var _ storage.StatsStore = (*StatsStore)(nil)
