package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

const segmentColumns = `strategy_id, start_ts, end_ts, duration_sec, raw_return, hourly_equiv_return, value_index_end`

// SegmentStore implements storage.SegmentStore using PostgreSQL.
// Segments are written only by Committer.CommitReplay.
type SegmentStore struct {
	pool *Pool
}

// NewSegmentStore creates a new SegmentStore.
func NewSegmentStore(pool *Pool) *SegmentStore {
	return &SegmentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SegmentStore = (*SegmentStore)(nil)

// GetByStrategy retrieves all segments of a strategy, ordered by end_ts ASC.
func (s *SegmentStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.Segment, error) {
	query := `SELECT ` + segmentColumns + `
		FROM strategy_segments
		WHERE strategy_id = $1
		ORDER BY end_ts ASC, start_ts ASC`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get segments by strategy: %w", err)
	}
	defer rows.Close()

	return scanSegments(rows)
}

// GetByTimeRange retrieves segments with end_ts within [start, end] (inclusive).
func (s *SegmentStore) GetByTimeRange(ctx context.Context, strategyID string, start, end int64) ([]*domain.Segment, error) {
	query := `SELECT ` + segmentColumns + `
		FROM strategy_segments
		WHERE strategy_id = $1 AND end_ts >= $2 AND end_ts <= $3
		ORDER BY end_ts ASC, start_ts ASC`

	rows, err := s.pool.Query(ctx, query, strategyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get segments by time range: %w", err)
	}
	defer rows.Close()

	return scanSegments(rows)
}

func scanSegments(rows pgx.Rows) ([]*domain.Segment, error) {
	var segments []*domain.Segment
	for rows.Next() {
		var seg domain.Segment
		err := rows.Scan(
			&seg.StrategyID,
			&seg.StartTs,
			&seg.EndTs,
			&seg.DurationSec,
			&seg.RawReturn,
			&seg.HourlyEquivReturn,
			&seg.ValueIndexEnd,
		)
		if err != nil {
			return nil, fmt.Errorf("scan segment row: %w", err)
		}
		segments = append(segments, &seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segment rows: %w", err)
	}
	return segments, nil
}
