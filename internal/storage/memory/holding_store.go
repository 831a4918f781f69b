package memory

import (
	"context"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// HoldingStore is an in-memory implementation of storage.HoldingStore.
type HoldingStore struct {
	db *DB
}

// NewHoldingStore creates a holding store over db.
func NewHoldingStore(db *DB) *HoldingStore {
	return &HoldingStore{db: db}
}

// GetByStrategy retrieves holdings ordered by asset ASC.
func (s *HoldingStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.Holding, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	rows := s.db.holdings[strategyID]
	result := make([]*domain.Holding, 0, len(rows))
	for _, h := range rows {
		hCopy := *h
		result = append(result, &hCopy)
	}
	return result, nil
}

var _ storage.HoldingStore = (*HoldingStore)(nil)
