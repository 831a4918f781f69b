// Package orchestrator runs the hourly pass.
// It coordinates: price backfill → extension check → replay → statistics → notify
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/lookup"
	"signal-leaderboard/internal/metrics"
	"signal-leaderboard/internal/observability"
	"signal-leaderboard/internal/pricefeed"
	"signal-leaderboard/internal/replay"
	"signal-leaderboard/internal/storage"
)

// ErrPassRunning is returned when a pass is requested while another runs.
var ErrPassRunning = errors.New("hourly pass already running")

// PriceBackfiller extends the price series before replay.
type PriceBackfiller interface {
	BackfillAll(ctx context.Context, now int64) (*pricefeed.Result, error)
}

// PassEvent describes a finished pass for subscribers.
type PassEvent struct {
	RunID      string
	FinishedAt int64
	Extended   []string // strategies that received new segments
	Computed   []string // strategies whose stats were rewritten
}

// Notifier publishes pass results.
type Notifier interface {
	PassCompleted(ctx context.Context, ev *PassEvent) error
}

// Orchestrator coordinates the hourly pass.
// Flow: backfill → extension-needed → replay → stats for every strategy → notify
type Orchestrator struct {
	// Stores
	strategyStore storage.StrategyStore
	priceStore    storage.PriceStore

	replayRunner *replay.Runner
	aggregator   *metrics.Aggregator
	backfiller   PriceBackfiller
	notifier     Notifier

	logger  *zap.Logger
	nowFunc func() time.Time

	running atomic.Bool
	lastMu  sync.RWMutex
	last    *RunResult
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	Stores *storage.Stores

	Registry domain.AssetRegistry
	Policy   metrics.Policy

	// Optional collaborators; nil skips the phase.
	Backfiller PriceBackfiller
	Notifier   Notifier

	Logger  *zap.Logger
	NowFunc func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	nowFunc := opts.NowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}

	policy := opts.Policy
	if policy == (metrics.Policy{}) {
		policy = metrics.DefaultPolicy
	}

	s := opts.Stores
	return &Orchestrator{
		strategyStore: s.Strategies,
		priceStore:    s.Prices,
		replayRunner:  replay.NewRunner(s.Signals, s.Holdings, s.Replay, opts.Registry, logger),
		aggregator:    metrics.NewAggregator(s.Segments, s.Stats, policy),
		backfiller:    opts.Backfiller,
		notifier:      opts.Notifier,
		logger:        logger,
		nowFunc:       nowFunc,
	}
}

// RunResult contains results from one hourly pass.
type RunResult struct {
	RunID              string        `json:"run_id"`
	StartedAt          int64         `json:"started_at"`
	Duration           time.Duration `json:"duration_ns"`
	PricePointsStored  int           `json:"price_points_stored"`
	PriceAssetsFailed  int           `json:"price_assets_failed"`
	LatestPricedHour   int64         `json:"latest_priced_hour"` // 0 when no hourly price exists
	StrategiesChecked  int           `json:"strategies_checked"`
	StrategiesExtended int           `json:"strategies_extended"`
	SegmentsWritten    int           `json:"segments_written"`
	StatsComputed      int           `json:"stats_computed"`
	Errors             []string      `json:"errors,omitempty"`
}

// Run executes one hourly pass.
// Phases:
//  1. Backfill prices (per-asset isolated)
//  2. Load the price book and hourly grid
//  3. Extend every strategy behind the latest priced hour or its latest signal
//  4. Recompute window stats of every strategy
//  5. Notify subscribers
//
// Per-strategy failures are collected in RunResult.Errors and retried on the
// next pass from the durable watermark.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrPassRunning
	}
	defer o.running.Store(false)

	started := o.nowFunc()
	now := started.Unix()
	result := &RunResult{RunID: uuid.NewString(), StartedAt: now}
	log := o.logger.With(zap.String("run_id", result.RunID))

	// Phase 1: Price backfill
	if o.backfiller != nil {
		bf, err := o.backfiller.BackfillAll(ctx, now)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("backfill: %v", err))
		}
		if bf != nil {
			result.PricePointsStored = bf.PointsStored
			result.PriceAssetsFailed = bf.Failed
			result.Errors = append(result.Errors, bf.Errors...)
		}
	}

	// Phase 2: Price book
	points, err := o.priceStore.GetAll(ctx)
	if err != nil {
		o.finish(result, started, "failure")
		return result, fmt.Errorf("phase 2 (load prices) failed: %w", err)
	}
	book := lookup.NewBook(points)
	grid := book.HourlyGrid()
	if len(grid) > 0 {
		result.LatestPricedHour = grid[len(grid)-1]
	}

	strategies, err := o.strategyStore.GetAll(ctx)
	if err != nil {
		o.finish(result, started, "failure")
		return result, fmt.Errorf("phase 3 (load strategies) failed: %w", err)
	}
	result.StrategiesChecked = len(strategies)

	// Phase 3: Extension
	var extended []string
	if len(grid) > 0 {
		for _, s := range strategies {
			if err := ctx.Err(); err != nil {
				o.finish(result, started, "failure")
				return result, err
			}
			if !s.NeedsExtension(result.LatestPricedHour) {
				continue
			}
			res, err := o.replayRunner.Extend(ctx, s, grid, book, now)
			if err != nil {
				if errors.Is(err, storage.ErrConflict) {
					observability.RecordReplayConflict()
				}
				observability.RecordStrategyFailed("replay")
				result.Errors = append(result.Errors, fmt.Sprintf("replay %s: %v", s.ID, err))
				log.Warn("strategy extension failed", zap.String("strategy_id", s.ID), zap.Error(err))
				continue
			}
			if res.SegmentsWritten > 0 {
				result.StrategiesExtended++
				result.SegmentsWritten += res.SegmentsWritten
				extended = append(extended, s.ID)
				observability.RecordStrategyReplayed(res.SegmentsWritten)
			}
		}
	}

	// Phase 4: Statistics for every strategy; windows move with now even
	// without new segments.
	var computed []string
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			o.finish(result, started, "failure")
			return result, err
		}
		if _, err := o.aggregator.ComputeAndStore(ctx, s.ID, now); err != nil {
			observability.RecordStrategyFailed("stats")
			result.Errors = append(result.Errors, fmt.Sprintf("stats %s: %v", s.ID, err))
			log.Warn("stats computation failed", zap.String("strategy_id", s.ID), zap.Error(err))
			continue
		}
		result.StatsComputed++
		computed = append(computed, s.ID)
		observability.RecordStatsComputed()
	}

	// Phase 5: Notify
	if o.notifier != nil {
		ev := &PassEvent{
			RunID:      result.RunID,
			FinishedAt: o.nowFunc().Unix(),
			Extended:   extended,
			Computed:   computed,
		}
		if err := o.notifier.PassCompleted(ctx, ev); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("notify: %v", err))
			log.Warn("pass notification failed", zap.Error(err))
		}
	}

	status := "success"
	if len(result.Errors) > 0 {
		status = "partial"
	}
	o.finish(result, started, status)

	log.Info("hourly pass completed",
		zap.Int64("latest_priced_hour", result.LatestPricedHour),
		zap.Int("price_points", result.PricePointsStored),
		zap.Int("strategies", result.StrategiesChecked),
		zap.Int("extended", result.StrategiesExtended),
		zap.Int("segments", result.SegmentsWritten),
		zap.Int("stats", result.StatsComputed),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration))

	return result, nil
}

func (o *Orchestrator) finish(result *RunResult, started time.Time, status string) {
	result.Duration = o.nowFunc().Sub(started)
	observability.RecordPassRun("hourly", status, result.Duration.Seconds(), o.nowFunc().Unix())

	o.lastMu.Lock()
	o.last = result
	o.lastMu.Unlock()
}

// Running reports whether a pass is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// LastResult returns the most recent pass result, or nil before the first.
func (o *Orchestrator) LastResult() *RunResult {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	return o.last
}
