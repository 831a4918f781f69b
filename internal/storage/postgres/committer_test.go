package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

func TestCommitIngestion_AggregatesAndSnapshots(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	stores := NewStores(pool, nil)

	err := stores.Ingestion.CommitIngestion(ctx, &storage.IngestionBatch{
		Signals: []*domain.Signal{
			testSignal(0, "s1", 1000),
			testSignal(1, "s1", 2000),
			testSignal(2, "s2", 1500),
		},
		Snapshots: []*domain.PositionSnapshot{
			{StrategyID: "s1", SignalTs: 1000, Message: "first", Positions: []domain.Position{
				{Asset: "BTC", Percent: 100, Direction: domain.DirectionShort, Leverage: 2},
			}},
		},
	})
	require.NoError(t, err)

	s1, err := stores.Strategies.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, s1.NumSignals)
	assert.Equal(t, int64(1000), s1.FirstSignalTs)
	assert.Equal(t, int64(2000), s1.LastSignalTs)
	assert.Equal(t, 1.0, s1.LastValueIndex)
	assert.Equal(t, domain.NoSignalID, s1.LastAppliedSignalID)
	assert.Nil(t, s1.LastSegmentEndTs)

	// Re-delivered signals are not double counted.
	err = stores.Ingestion.CommitIngestion(ctx, &storage.IngestionBatch{
		Signals: []*domain.Signal{testSignal(1, "s1", 2000), testSignal(3, "s1", 500)},
	})
	require.NoError(t, err)

	s1, err = stores.Strategies.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, s1.NumSignals)
	assert.Equal(t, int64(500), s1.FirstSignalTs)

	maxID, err := stores.Signals.MaxID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), maxID)

	pending, err := stores.Signals.GetByStrategy(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(1), pending[0].ID)
	assert.Equal(t, domain.DirectionShort, pending[0].Direction)
	assert.Equal(t, "note", pending[0].Message)

	snap, err := stores.Snapshots.GetLatest(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, snap.Exact)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, domain.DirectionShort, snap.Positions[0].Direction)
}

func TestCommitIngestion_ApproximateNeverReplacesExact(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	stores := NewStores(pool, nil)

	require.NoError(t, stores.Ingestion.CommitIngestion(ctx, &storage.IngestionBatch{
		Signals: []*domain.Signal{testSignal(0, "s1", 1000)},
	}))
	require.NoError(t, stores.Replay.CommitReplay(ctx, &storage.ReplayCommit{
		StrategyID: "s1",
		Snapshots: []*domain.PositionSnapshot{
			{StrategyID: "s1", SignalTs: 1000, Exact: true, Positions: []domain.Position{{Asset: "BTC", Percent: 100}}},
		},
		ValueIndex:       1,
		LastSegmentEndTs: 3600,
	}))

	require.NoError(t, stores.Ingestion.CommitIngestion(ctx, &storage.IngestionBatch{
		Snapshots: []*domain.PositionSnapshot{
			{StrategyID: "s1", SignalTs: 1000, Positions: []domain.Position{{Asset: "ETH", Percent: 100}}},
		},
	}))

	snap, err := stores.Snapshots.GetLatest(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, snap.Exact)
	assert.Equal(t, "BTC", snap.Positions[0].Asset)
}

func TestCommitReplay_CompareAndSet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	stores := NewStores(pool, nil)

	require.NoError(t, stores.Ingestion.CommitIngestion(ctx, &storage.IngestionBatch{
		Signals: []*domain.Signal{testSignal(0, "s1", 1000)},
	}))

	commit := &storage.ReplayCommit{
		StrategyID: "s1",
		Segments: []*domain.Segment{
			{StrategyID: "s1", StartTs: 0, EndTs: 3600, DurationSec: 3600, RawReturn: 0.01, HourlyEquivReturn: 0.01, ValueIndexEnd: 1.01},
		},
		Holdings: []*domain.Holding{
			{StrategyID: "s1", Asset: "BTC", Value: 1.01, Direction: domain.DirectionLong, Leverage: 1},
		},
		ValueIndex:          1.01,
		LastSegmentEndTs:    3600,
		LastAppliedSignalID: 0,
		Opened:              true,
	}
	require.NoError(t, stores.Replay.CommitReplay(ctx, commit))

	// Same prior watermark again: the strategy moved on.
	err := stores.Replay.CommitReplay(ctx, commit)
	assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)

	st, err := stores.Strategies.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, st.LastSegmentEndTs)
	assert.Equal(t, int64(3600), *st.LastSegmentEndTs)
	assert.True(t, st.Opened)
	assert.Equal(t, 1.01, st.LastValueIndex)
	assert.Equal(t, int64(0), st.LastAppliedSignalID)

	segs, err := stores.Segments.GetByStrategy(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, segs, 1)

	// Resume from the stored watermark replaces holdings wholesale.
	next := &storage.ReplayCommit{
		StrategyID:        "s1",
		PriorSegmentEndTs: ptr(int64(3600)),
		Segments: []*domain.Segment{
			{StrategyID: "s1", StartTs: 3600, EndTs: 7200, DurationSec: 3600, ValueIndexEnd: 1.01},
		},
		Holdings: []*domain.Holding{
			{StrategyID: "s1", Asset: "USD", Value: 1.01, Direction: domain.DirectionCash, Leverage: 1, IsUSD: true},
		},
		ValueIndex:       1.01,
		LastSegmentEndTs: 7200,
		Opened:           true,
	}
	require.NoError(t, stores.Replay.CommitReplay(ctx, next))

	holdings, err := stores.Holdings.GetByStrategy(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "USD", holdings[0].Asset)
	assert.True(t, holdings[0].IsUSD)

	inRange, err := stores.Segments.GetByTimeRange(ctx, "s1", 7200, 7200)
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, int64(3600), inRange[0].StartTs)
}

func TestCommitReplay_UnknownStrategy(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	err := NewCommitter(pool).CommitReplay(context.Background(), &storage.ReplayCommit{
		StrategyID:       "missing",
		LastSegmentEndTs: 3600,
	})
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}
