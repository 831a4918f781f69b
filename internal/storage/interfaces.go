package storage

import (
	"context"

	"signal-leaderboard/internal/domain"
)

// SignalStore provides read access to the signals ledger.
// Writes go through IngestionCommitter.
type SignalStore interface {
	// MaxID returns the highest ingested signal id, or -1 when empty.
	MaxID(ctx context.Context) (int64, error)

	// GetByStrategy retrieves signals of a strategy with id > afterID, ordered by id ASC.
	GetByStrategy(ctx context.Context, strategyID string, afterID int64) ([]*domain.Signal, error)

	// GetByTimeRange retrieves signals within [start, end] (inclusive), ordered by id ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Signal, error)
}

// StrategyStore provides read access to strategies.
type StrategyStore interface {
	// GetByID retrieves a strategy. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, strategyID string) (*domain.Strategy, error)

	// GetAll retrieves all strategies ordered by id ASC.
	GetAll(ctx context.Context) ([]*domain.Strategy, error)
}

// SegmentStore provides read access to strategy_segments.
type SegmentStore interface {
	// GetByStrategy retrieves all segments of a strategy, ordered by end_ts ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.Segment, error)

	// GetByTimeRange retrieves segments with end_ts within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, strategyID string, start, end int64) ([]*domain.Segment, error)
}

// HoldingStore provides read access to strategy_holdings.
type HoldingStore interface {
	// GetByStrategy retrieves holdings ordered by asset ASC. Empty when never replayed.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.Holding, error)
}

// SnapshotStore provides read access to strategy_position_snapshots.
type SnapshotStore interface {
	// GetByStrategy retrieves snapshots ordered by signal_ts ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.PositionSnapshot, error)

	// GetLatest retrieves the snapshot with the highest signal_ts.
	// Returns ErrNotFound if the strategy has none.
	GetLatest(ctx context.Context, strategyID string) (*domain.PositionSnapshot, error)
}

// StatsStore provides access to strategy_stats.
type StatsStore interface {
	// ReplaceStats upserts all given rows of one strategy in a single transaction.
	ReplaceStats(ctx context.Context, strategyID string, stats []*domain.StrategyStats) error

	// GetByStrategy retrieves all window rows of a strategy.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.StrategyStats, error)

	// GetByWindow retrieves the rows of every strategy for one window.
	GetByWindow(ctx context.Context, window domain.Window) ([]*domain.StrategyStats, error)
}

// PriceStore provides access to the price series.
type PriceStore interface {
	// InsertBulk adds points, ignoring (asset, timestamp) pairs that already exist.
	// Returns the number of rows actually inserted.
	InsertBulk(ctx context.Context, points []*domain.PricePoint) (int, error)

	// GetByAsset retrieves all points of an asset, ordered by timestamp ASC.
	GetByAsset(ctx context.Context, asset string) ([]*domain.PricePoint, error)

	// GetByTimeRange retrieves points of an asset within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, asset string, start, end int64) ([]*domain.PricePoint, error)

	// GetAll retrieves every point, ordered by (asset, timestamp) ASC.
	GetAll(ctx context.Context) ([]*domain.PricePoint, error)

	// GetLatestTimestamp returns the newest timestamp of an asset.
	// hourlyOnly restricts to rows on the hourly grid.
	// Returns ErrNotFound if the asset has no matching rows.
	GetLatestTimestamp(ctx context.Context, asset string, hourlyOnly bool) (int64, error)
}

// IngestionBatch is one atomic unit of signal ingestion.
type IngestionBatch struct {
	Signals   []*domain.Signal
	Snapshots []*domain.PositionSnapshot // approximate, Exact=false
}

// IngestionCommitter writes one ingestion batch atomically.
type IngestionCommitter interface {
	// CommitIngestion inserts signals (ignoring known ids), folds the newly
	// inserted ones into strategy aggregates and writes approximate snapshots.
	// Exact snapshots are never overwritten by approximate ones.
	CommitIngestion(ctx context.Context, batch *IngestionBatch) error
}

// ReplayCommit is the result of one replay pass of one strategy.
type ReplayCommit struct {
	StrategyID        string
	PriorSegmentEndTs *int64 // watermark the replay started from

	Segments  []*domain.Segment
	Snapshots []*domain.PositionSnapshot // exact, Exact=true
	Holdings  []*domain.Holding

	ValueIndex          float64
	LastSegmentEndTs    int64
	LastAppliedSignalID int64
	Opened              bool
}

// ReplayCommitter writes one replay pass atomically.
type ReplayCommitter interface {
	// CommitReplay inserts segments (ignoring existing keys), upserts snapshots,
	// replaces holdings and advances the watermark in one transaction.
	// Returns ErrConflict if the stored watermark differs from PriorSegmentEndTs.
	CommitReplay(ctx context.Context, c *ReplayCommit) error
}
