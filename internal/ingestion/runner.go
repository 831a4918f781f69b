package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"signal-leaderboard/internal/chain"
	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/idhash"
	"signal-leaderboard/internal/observability"
	"signal-leaderboard/internal/storage"
)

// DefaultBatchSize is the ledger page size per committed batch.
const DefaultBatchSize = 200

// Runner copies new ledger signals into storage with approximate snapshots.
// It never runs the replay engine.
type Runner struct {
	reader    chain.SignalReader
	signals   storage.SignalStore
	committer storage.IngestionCommitter
	approx    *approximator
	batchSize int
	interval  time.Duration
	logger    *zap.Logger
	nowFunc   func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Reader     chain.SignalReader
	Signals    storage.SignalStore
	Strategies storage.StrategyStore
	Holdings   storage.HoldingStore
	Snapshots  storage.SnapshotStore
	Committer  storage.IngestionCommitter
	Registry   domain.AssetRegistry
	BatchSize  int           // Default: 200
	Interval   time.Duration // Default: 15s poll interval for Run
	Logger     *zap.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	registry := opts.Registry
	if registry == nil {
		registry = domain.DefaultAssets
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		reader:    opts.Reader,
		signals:   opts.Signals,
		committer: opts.Committer,
		approx:    newApproximator(opts.Strategies, opts.Holdings, opts.Snapshots, registry),
		batchSize: batchSize,
		interval:  interval,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// Result contains statistics from one ingestion run.
type Result struct {
	FromID           int64 // first id fetched; -1 when nothing was pending
	ToID             int64 // last id committed; -1 when nothing was committed
	SignalsIngested  int
	SnapshotsWritten int
	BatchesCommitted int
	LedgerCount      int64
}

// RunOnce ingests every ledger signal after the highest stored id.
// Each page is committed atomically; a failure leaves earlier pages in place
// and the next run resumes after them.
func (r *Runner) RunOnce(ctx context.Context) (*Result, error) {
	result := &Result{FromID: domain.NoSignalID, ToID: domain.NoSignalID}

	maxID, err := r.signals.MaxID(ctx)
	if err != nil {
		observability.RecordIngestionError("max_id")
		return result, fmt.Errorf("load max signal id: %w", err)
	}

	count, err := r.reader.SignalsCount(ctx)
	if err != nil {
		observability.RecordIngestionError("count")
		return result, fmt.Errorf("read signals count: %w", err)
	}
	result.LedgerCount = count
	observability.UpdateLedgerHead(count)

	from := maxID + 1
	if from >= count {
		return result, nil
	}
	result.FromID = from

	// Chained state is only valid within one run; replay may have moved
	// holdings since the previous one.
	r.approx.Reset()

	for start := from; start < count; start += int64(r.batchSize) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + int64(r.batchSize)
		if end > count {
			end = count
		}

		n, snaps, err := r.ingestRange(ctx, start, end)
		if err != nil {
			return result, err
		}
		result.SignalsIngested += n
		result.SnapshotsWritten += snaps
		result.BatchesCommitted++
		result.ToID = end - 1
	}

	r.logger.Info("signals ingested",
		zap.Int64("from_id", result.FromID),
		zap.Int64("to_id", result.ToID),
		zap.Int("signals", result.SignalsIngested),
		zap.Int("snapshots", result.SnapshotsWritten),
		zap.Int("batches", result.BatchesCommitted))

	return result, nil
}

// ingestRange fetches, validates and commits ids [from, to).
func (r *Runner) ingestRange(ctx context.Context, from, to int64) (int, int, error) {
	signals, err := r.reader.SignalsRange(ctx, from, to)
	if err != nil {
		observability.RecordIngestionError("fetch")
		return 0, 0, fmt.Errorf("read signals [%d, %d): %w", from, to, err)
	}

	SortSignals(signals)
	if err := ValidateSignalRange(signals, from, to); err != nil {
		observability.RecordIngestionError("validate")
		return 0, 0, fmt.Errorf("signals [%d, %d): %w", from, to, err)
	}

	for _, sig := range signals {
		sig.Trader = domain.NormalizeTrader(sig.Trader)
		sig.Asset = domain.NormalizeAsset(sig.Asset)
		sig.StrategyID = idhash.ComputeStrategyID(sig.Trader, sig.StrategyName)
	}

	snaps, err := r.approx.Snapshots(ctx, signals)
	if err != nil {
		observability.RecordIngestionError("approximate")
		return 0, 0, err
	}

	batch := &storage.IngestionBatch{Signals: signals, Snapshots: snaps}
	if err := r.committer.CommitIngestion(ctx, batch); err != nil {
		// Chained state may now be ahead of storage.
		r.approx.Reset()
		observability.RecordIngestionError("commit")
		return 0, 0, fmt.Errorf("commit signals [%d, %d): %w", from, to, err)
	}

	observability.RecordSignalsIngested(len(signals), len(snaps), r.nowFunc().Unix())
	return len(signals), len(snaps), nil
}

// Run polls the ledger every interval and whenever nudge fires, until ctx
// is cancelled. nudge may be nil. Run errors are logged and retried on the
// next tick.
func (r *Runner) Run(ctx context.Context, nudge <-chan struct{}) error {
	r.logger.Info("ingestion runner started",
		zap.Duration("interval", r.interval),
		zap.Int("batch_size", r.batchSize))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("ingestion runner stopping")
			return ctx.Err()
		case <-ticker.C:
			r.runLogged(ctx)
		case _, ok := <-nudge:
			if !ok {
				// Subscription gone; keep polling.
				nudge = nil
				continue
			}
			r.runLogged(ctx)
		}
	}
}

func (r *Runner) runLogged(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
		r.logger.Warn("ingestion run failed", zap.Error(err))
	}
}
