package memory

import (
	"context"
	"sort"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	db *DB
}

// NewSignalStore creates a signal store over db.
func NewSignalStore(db *DB) *SignalStore {
	return &SignalStore{db: db}
}

// MaxID returns the highest ingested signal id, or -1 when empty.
func (s *SignalStore) MaxID(_ context.Context) (int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	maxID := domain.NoSignalID
	for id := range s.db.signals {
		if id > maxID {
			maxID = id
		}
	}
	return maxID, nil
}

// GetByStrategy retrieves signals of a strategy with id > afterID, ordered by id ASC.
func (s *SignalStore) GetByStrategy(_ context.Context, strategyID string, afterID int64) ([]*domain.Signal, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.db.signals {
		if sig.StrategyID == strategyID && sig.ID > afterID {
			sigCopy := *sig
			result = append(result, &sigCopy)
		}
	}
	sortSignals(result)
	return result, nil
}

// GetByTimeRange retrieves signals within [start, end] (inclusive), ordered by id ASC.
func (s *SignalStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Signal, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.db.signals {
		if sig.Timestamp >= start && sig.Timestamp <= end {
			sigCopy := *sig
			result = append(result, &sigCopy)
		}
	}
	sortSignals(result)
	return result, nil
}

func sortSignals(signals []*domain.Signal) {
	sort.Slice(signals, func(i, j int) bool {
		return signals[i].ID < signals[j].ID
	})
}

var _ storage.SignalStore = (*SignalStore)(nil)
