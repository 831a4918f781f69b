package metrics

import (
	"context"
	"fmt"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// Aggregator computes and stores per-window statistics from segments.
type Aggregator struct {
	segmentStore storage.SegmentStore
	statsStore   storage.StatsStore
	policy       Policy
}

// NewAggregator creates a new statistics aggregator.
func NewAggregator(segmentStore storage.SegmentStore, statsStore storage.StatsStore, policy Policy) *Aggregator {
	return &Aggregator{
		segmentStore: segmentStore,
		statsStore:   statsStore,
		policy:       policy,
	}
}

// Compute returns the rows of every window for a strategy as of now.
func (a *Aggregator) Compute(ctx context.Context, strategyID string, now int64) ([]*domain.StrategyStats, error) {
	segments, err := a.segmentStore.GetByStrategy(ctx, strategyID)
	if err != nil {
		return nil, fmt.Errorf("load segments: %w", err)
	}

	rows := ComputeAllWindows(segments, now, a.policy)
	for _, r := range rows {
		r.StrategyID = strategyID
	}
	return rows, nil
}

// ComputeAndStore computes every window and replaces the stored rows in one
// transaction, so no window row is left stale.
func (a *Aggregator) ComputeAndStore(ctx context.Context, strategyID string, now int64) ([]*domain.StrategyStats, error) {
	rows, err := a.Compute(ctx, strategyID, now)
	if err != nil {
		return nil, err
	}
	if err := a.statsStore.ReplaceStats(ctx, strategyID, rows); err != nil {
		return nil, fmt.Errorf("store stats: %w", err)
	}
	return rows, nil
}
