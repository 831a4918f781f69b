package memory

import (
	"context"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// SegmentStore is an in-memory implementation of storage.SegmentStore.
type SegmentStore struct {
	db *DB
}

// NewSegmentStore creates a segment store over db.
func NewSegmentStore(db *DB) *SegmentStore {
	return &SegmentStore{db: db}
}

// GetByStrategy retrieves all segments of a strategy, ordered by end_ts ASC.
func (s *SegmentStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.Segment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	segs := s.db.segments[strategyID]
	result := make([]*domain.Segment, 0, len(segs))
	for _, seg := range segs {
		segCopy := *seg
		result = append(result, &segCopy)
	}
	return result, nil
}

// GetByTimeRange retrieves segments with end_ts within [start, end] (inclusive).
func (s *SegmentStore) GetByTimeRange(_ context.Context, strategyID string, start, end int64) ([]*domain.Segment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result []*domain.Segment
	for _, seg := range s.db.segments[strategyID] {
		if seg.EndTs >= start && seg.EndTs <= end {
			segCopy := *seg
			result = append(result, &segCopy)
		}
	}
	return result, nil
}

var _ storage.SegmentStore = (*SegmentStore)(nil)
