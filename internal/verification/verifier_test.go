package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/orchestrator"
	"signal-leaderboard/internal/storage"
	"signal-leaderboard/internal/storage/memory"
)

const h0 = int64(1699999200)

func hour(n int) int64 { return h0 + int64(n)*domain.SecondsPerHour }

func signalAt(id int64, dir domain.Direction, ts int64) *domain.Signal {
	return &domain.Signal{
		ID: id, StrategyID: "s1", Trader: "0xabc", StrategyName: "alpha",
		Asset: "BTC", Direction: dir, Leverage: 1, WeightRaw: 100, Timestamp: ts,
	}
}

func seed(t *testing.T, stores *storage.Stores) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, stores.Ingestion.CommitIngestion(ctx, &storage.IngestionBatch{
		Signals: []*domain.Signal{signalAt(0, domain.DirectionLong, h0+100)},
	}))

	var points []*domain.PricePoint
	for i, p := range []float64{100, 110, 121, 121} {
		points = append(points, &domain.PricePoint{Asset: "BTC", Timestamp: hour(i), PriceUSD: p})
	}
	_, err := stores.Prices.InsertBulk(ctx, points)
	require.NoError(t, err)
}

func runPass(t *testing.T, stores *storage.Stores, now int64) {
	t.Helper()
	o := orchestrator.New(orchestrator.Options{
		Stores:   stores,
		Registry: domain.DefaultAssets,
		NowFunc:  func() time.Time { return time.Unix(now, 0) },
	})
	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Errors)
}

func TestReplayVerifier_IncrementalMatchesFullReplay(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	seed(t, stores)

	runPass(t, stores, hour(1)+500)
	runPass(t, stores, hour(3)+500)

	v := NewReplayVerifier(stores, domain.DefaultAssets)
	result, err := v.VerifyStrategy(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, result.Match, "divergences: %v", result.Divergences)
	assert.Equal(t, 3, result.StoredSegments)
	assert.Equal(t, 3, result.ReplayedSegments)
	assert.InDelta(t, 1.21, result.ReplayedValue, 1e-9)
}

func TestReplayVerifier_LateSignalDiverges(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	seed(t, stores)

	runPass(t, stores, hour(2)+500)

	// Delivered after [h0, h2] was already written.
	require.NoError(t, stores.Ingestion.CommitIngestion(ctx, &storage.IngestionBatch{
		Signals: []*domain.Signal{signalAt(1, domain.DirectionShort, h0+200)},
	}))
	runPass(t, stores, hour(3)+500)

	report, err := NewReplayVerifier(stores, nil).VerifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalStrategies)
	assert.Equal(t, 1, report.DivergentStrategies)
	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].Match)
	assert.NotEmpty(t, report.Results[0].Divergences)
}

func TestReplayVerifier_NeverReplayed(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	require.NoError(t, stores.Ingestion.CommitIngestion(ctx, &storage.IngestionBatch{
		Signals: []*domain.Signal{signalAt(0, domain.DirectionLong, h0+100)},
	}))

	result, err := NewReplayVerifier(stores, nil).VerifyStrategy(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, result.Match)
	assert.Zero(t, result.StoredSegments)

	_, err = NewReplayVerifier(stores, nil).VerifyStrategy(ctx, "nope")
	assert.ErrorIs(t, err, ErrStrategyNotFound)
}

func TestCompareSegments(t *testing.T) {
	seg := func(start int64, raw, vi float64) *domain.Segment {
		return &domain.Segment{StrategyID: "s1", StartTs: start, EndTs: start + 3600, RawReturn: raw, ValueIndexEnd: vi}
	}

	t.Run("within tolerance", func(t *testing.T) {
		stored := []*domain.Segment{seg(0, 0.1, 1.1)}
		replayed := []*domain.Segment{seg(0, 0.1+5e-8, 1.1)}
		assert.Empty(t, CompareSegments(stored, replayed))
	})

	t.Run("value mismatch", func(t *testing.T) {
		stored := []*domain.Segment{seg(0, 0.1, 1.1)}
		replayed := []*domain.Segment{seg(0, -0.1, 0.9)}
		got := CompareSegments(stored, replayed)
		require.Len(t, got, 2)
		assert.Equal(t, "RawReturn", got[0].Field)
		assert.Equal(t, "ValueIndexEnd", got[1].Field)
	})

	t.Run("missing and extra", func(t *testing.T) {
		stored := []*domain.Segment{seg(0, 0, 1), seg(3600, 0, 1)}
		replayed := []*domain.Segment{seg(0, 0, 1), seg(7200, 0, 1)}
		got := CompareSegments(stored, replayed)
		require.Len(t, got, 2)
		assert.Equal(t, FieldDivergence{StartTs: 3600, Field: "Segment", Expected: "present", Actual: "missing"}, got[0])
		assert.Equal(t, FieldDivergence{StartTs: 7200, Field: "Segment", Expected: "missing", Actual: "present"}, got[1])
	})
}
