package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/observability"
	"signal-leaderboard/internal/storage"
)

const (
	// DefaultMaxRangeSeconds keeps each request inside the hourly-granularity
	// limit of the range endpoint.
	DefaultMaxRangeSeconds int64 = 90 * 24 * 3600

	// DefaultLookback seeds the series when no strategy exists yet.
	DefaultLookback = 7 * 24 * time.Hour
)

// Backfiller extends the stored price series of every priced asset up to
// the last completed hour. Assets are isolated: one asset failing does not
// stop the others.
type Backfiller struct {
	source     Source
	prices     storage.PriceStore
	strategies storage.StrategyStore
	signals    storage.SignalStore
	registry   domain.AssetRegistry
	lookback   time.Duration
	maxRange   int64
	logger     *zap.Logger
}

// BackfillerOptions contains configuration for creating a Backfiller.
type BackfillerOptions struct {
	Source     Source
	Prices     storage.PriceStore
	Strategies storage.StrategyStore
	Signals    storage.SignalStore // optional; enables signal-time rows
	Registry   domain.AssetRegistry
	Lookback   time.Duration
	MaxRange   int64 // seconds per request
	Logger     *zap.Logger
}

// NewBackfiller creates a new price backfiller.
func NewBackfiller(opts BackfillerOptions) *Backfiller {
	registry := opts.Registry
	if registry == nil {
		registry = domain.DefaultAssets
	}

	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	maxRange := opts.MaxRange
	if maxRange < domain.SecondsPerHour {
		maxRange = DefaultMaxRangeSeconds
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Backfiller{
		source:     opts.Source,
		prices:     opts.Prices,
		strategies: opts.Strategies,
		signals:    opts.Signals,
		registry:   registry,
		lookback:   lookback,
		maxRange:   maxRange,
		logger:     logger,
	}
}

// AssetResult is the outcome of one asset's backfill.
type AssetResult struct {
	Asset  string
	Points int
	Err    error
}

// Result contains statistics from a backfill pass.
type Result struct {
	Assets       []AssetResult
	PointsStored int
	Failed       int
	Errors       []string
	Duration     time.Duration
}

// BackfillAll backfills every priced asset of the registry. Per-asset
// failures are recorded in the result; the returned error is reserved for
// failures shared by all assets.
func (b *Backfiller) BackfillAll(ctx context.Context, now int64) (*Result, error) {
	start := time.Now()
	result := &Result{}

	earliest, err := b.earliestNeeded(ctx, now)
	if err != nil {
		return result, err
	}

	assets := b.registry.PricedAssets()
	sort.Strings(assets)

	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		n, err := b.BackfillAsset(ctx, asset, earliest, now)
		result.Assets = append(result.Assets, AssetResult{Asset: asset, Points: n, Err: err})
		result.PointsStored += n
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", asset, err))
			observability.RecordPriceFetchFailure(asset)
			b.logger.Warn("price backfill failed", zap.String("asset", asset), zap.Error(err))
			continue
		}
		observability.RecordPricePoints(asset, n)
	}

	result.Duration = time.Since(start)
	b.logger.Info("price backfill complete",
		zap.Int("assets", len(assets)),
		zap.Int("points", result.PointsStored),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// earliestNeeded is the first hour any strategy may replay from.
func (b *Backfiller) earliestNeeded(ctx context.Context, now int64) (int64, error) {
	earliest := now - int64(b.lookback/time.Second)
	if b.strategies == nil {
		return domain.HourFloor(earliest), nil
	}

	strategies, err := b.strategies.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load strategies: %w", err)
	}
	if len(strategies) > 0 {
		earliest = strategies[0].FirstSignalTs
		for _, s := range strategies[1:] {
			if s.FirstSignalTs < earliest {
				earliest = s.FirstSignalTs
			}
		}
	}
	return domain.HourFloor(earliest), nil
}

// BackfillAsset stores hourly rows after the asset's latest stored hour (or
// from earliest when it has none) up to the last completed hour, plus
// signal-time rows for signals in the fetched span. Each request chunk is
// inserted as one unit.
func (b *Backfiller) BackfillAsset(ctx context.Context, asset string, earliest, now int64) (int, error) {
	coinID, ok := b.registry.CoinID(asset)
	if !ok {
		return 0, fmt.Errorf("asset %s has no price source id", asset)
	}

	start := domain.HourFloor(earliest)
	latest, err := b.prices.GetLatestTimestamp(ctx, asset, true)
	switch {
	case err == nil:
		start = latest + domain.SecondsPerHour
	case errors.Is(err, storage.ErrNotFound):
	default:
		return 0, fmt.Errorf("latest price of %s: %w", asset, err)
	}

	end := domain.HourFloor(now)
	if start > end {
		return 0, nil
	}

	stored := 0
	for chunkStart := start; chunkStart <= end; chunkStart += b.maxRange {
		chunkEnd := chunkStart + b.maxRange - domain.SecondsPerHour
		if chunkEnd > end {
			chunkEnd = end
		}

		fetchFrom := chunkStart - domain.SecondsPerHour
		fetchTo := chunkEnd + CanonicalTolerance
		if fetchTo > now {
			fetchTo = now
		}

		samples, err := b.source.FetchPricesInRange(ctx, coinID, fetchFrom, fetchTo)
		if err != nil {
			return stored, fmt.Errorf("fetch %s [%d, %d]: %w", coinID, fetchFrom, fetchTo, err)
		}
		sort.SliceStable(samples, func(i, j int) bool {
			return samples[i].Timestamp < samples[j].Timestamp
		})

		points := HourlyPoints(asset, samples, chunkStart, chunkEnd)

		signalRows, err := b.signalRows(ctx, asset, samples, fetchFrom, chunkEnd)
		if err != nil {
			return stored, err
		}
		points = append(points, signalRows...)

		if len(points) == 0 {
			continue
		}
		n, err := b.prices.InsertBulk(ctx, points)
		if err != nil {
			return stored, fmt.Errorf("store %s prices: %w", asset, err)
		}
		stored += n
	}
	return stored, nil
}

// signalRows prices signals of asset posted in (from, to].
func (b *Backfiller) signalRows(ctx context.Context, asset string, samples []Sample, from, to int64) ([]*domain.PricePoint, error) {
	if b.signals == nil || len(samples) == 0 {
		return nil, nil
	}

	signals, err := b.signals.GetByTimeRange(ctx, from+1, to)
	if err != nil {
		return nil, fmt.Errorf("load signals for %s: %w", asset, err)
	}

	var times []int64
	for _, sig := range signals {
		if domain.NormalizeAsset(sig.Asset) == asset {
			times = append(times, sig.Timestamp)
		}
	}
	return SignalPoints(asset, samples, times), nil
}
