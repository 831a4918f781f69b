package memory

import (
	"context"
	"sort"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a snapshot store over db.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// GetByStrategy retrieves snapshots ordered by signal_ts ASC.
func (s *SnapshotStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.PositionSnapshot, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	return s.db.snapshotsOf(strategyID), nil
}

// GetLatest retrieves the snapshot with the highest signal_ts.
func (s *SnapshotStore) GetLatest(_ context.Context, strategyID string) (*domain.PositionSnapshot, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	snaps := s.db.snapshotsOf(strategyID)
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}
	return snaps[len(snaps)-1], nil
}

// snapshotsOf returns copies ordered by signal_ts. Caller holds the lock.
func (db *DB) snapshotsOf(strategyID string) []*domain.PositionSnapshot {
	var result []*domain.PositionSnapshot
	for _, snap := range db.snapshots {
		if snap.StrategyID == strategyID {
			result = append(result, copySnapshot(snap))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SignalTs < result[j].SignalTs
	})
	return result
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
