package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// Committer writes ingestion batches and replay passes in single transactions.
type Committer struct {
	pool *Pool
}

// NewCommitter creates a new Committer.
func NewCommitter(pool *Pool) *Committer {
	return &Committer{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.IngestionCommitter = (*Committer)(nil)
	_ storage.ReplayCommitter    = (*Committer)(nil)
)

const (
	insertSignalSQL = `
		INSERT INTO signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	upsertStrategySQL = `
		INSERT INTO strategies (id, trader, name, first_signal_ts, last_signal_ts, num_signals, last_applied_signal_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			first_signal_ts = LEAST(strategies.first_signal_ts, EXCLUDED.first_signal_ts),
			last_signal_ts = GREATEST(strategies.last_signal_ts, EXCLUDED.last_signal_ts),
			num_signals = strategies.num_signals + EXCLUDED.num_signals
	`

	// Approximate rows never replace exact ones.
	upsertApproxSnapshotSQL = `
		INSERT INTO strategy_position_snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (strategy_id, signal_ts) DO UPDATE SET
			positions = EXCLUDED.positions,
			message = EXCLUDED.message,
			exact = EXCLUDED.exact
		WHERE NOT strategy_position_snapshots.exact OR EXCLUDED.exact
	`

	upsertSnapshotSQL = `
		INSERT INTO strategy_position_snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (strategy_id, signal_ts) DO UPDATE SET
			positions = EXCLUDED.positions,
			message = EXCLUDED.message,
			exact = EXCLUDED.exact
	`

	advanceWatermarkSQL = `
		UPDATE strategies SET
			last_segment_end_ts = $2,
			last_value_index = $3,
			last_applied_signal_id = $4,
			opened = $5
		WHERE id = $1 AND last_segment_end_ts IS NOT DISTINCT FROM $6
	`

	insertSegmentSQL = `
		INSERT INTO strategy_segments (` + segmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (strategy_id, start_ts, end_ts) DO NOTHING
	`

	insertHoldingSQL = `
		INSERT INTO strategy_holdings (strategy_id, asset, value, direction, leverage, is_usd)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
)

// CommitIngestion inserts signals (ignoring known ids), folds the newly
// inserted ones into strategy aggregates and writes approximate snapshots.
func (c *Committer) CommitIngestion(ctx context.Context, batch *storage.IngestionBatch) error {
	if batch == nil {
		return storage.ErrInvalidInput
	}
	for _, sig := range batch.Signals {
		if sig == nil || sig.StrategyID == "" {
			return storage.ErrInvalidInput
		}
	}

	err := c.pool.inTx(ctx, func(tx pgx.Tx) error {
		var inserted []*domain.Signal
		for _, sig := range batch.Signals {
			tag, err := tx.Exec(ctx, insertSignalSQL,
				sig.ID, sig.StrategyID, sig.Trader, sig.StrategyName, sig.Asset,
				int16(sig.Direction), sig.Leverage, sig.WeightRaw, sig.Message, sig.Timestamp,
			)
			if err != nil {
				return fmt.Errorf("insert signal %d: %w", sig.ID, err)
			}
			if tag.RowsAffected() == 1 {
				inserted = append(inserted, sig)
			}
		}

		for _, a := range domain.SummarizeActivity(inserted) {
			_, err := tx.Exec(ctx, upsertStrategySQL,
				a.StrategyID, a.Trader, a.Name, a.FirstSignalTs, a.LastSignalTs, a.NumSignals, domain.NoSignalID,
			)
			if err != nil {
				return fmt.Errorf("upsert strategy %s: %w", a.StrategyID, err)
			}
		}

		for _, snap := range batch.Snapshots {
			positions, err := encodePositions(snap.Positions)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, upsertApproxSnapshotSQL,
				snap.StrategyID, snap.SignalTs, positions, snap.Message, snap.Exact,
			); err != nil {
				return fmt.Errorf("upsert snapshot %s@%d: %w", snap.StrategyID, snap.SignalTs, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit ingestion: %w", err)
	}
	return nil
}

// CommitReplay inserts segments (ignoring existing keys), upserts snapshots,
// replaces holdings and advances the watermark in one transaction.
// The watermark update runs first and locks the strategy row; a moved
// watermark aborts the transaction with ErrConflict.
func (c *Committer) CommitReplay(ctx context.Context, rc *storage.ReplayCommit) error {
	if rc == nil || rc.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	err := c.pool.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, advanceWatermarkSQL,
			rc.StrategyID, rc.LastSegmentEndTs, rc.ValueIndex, rc.LastAppliedSignalID, rc.Opened,
			rc.PriorSegmentEndTs,
		)
		if err != nil {
			return fmt.Errorf("advance watermark: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM strategies WHERE id = $1)`, rc.StrategyID).Scan(&exists); err != nil {
				return fmt.Errorf("check strategy: %w", err)
			}
			if !exists {
				return storage.ErrNotFound
			}
			return storage.ErrConflict
		}

		batch := &pgx.Batch{}
		for _, seg := range rc.Segments {
			batch.Queue(insertSegmentSQL,
				rc.StrategyID, seg.StartTs, seg.EndTs, seg.DurationSec,
				seg.RawReturn, seg.HourlyEquivReturn, seg.ValueIndexEnd,
			)
		}
		for _, snap := range rc.Snapshots {
			positions, err := encodePositions(snap.Positions)
			if err != nil {
				return err
			}
			batch.Queue(upsertSnapshotSQL, rc.StrategyID, snap.SignalTs, positions, snap.Message, snap.Exact)
		}
		batch.Queue(`DELETE FROM strategy_holdings WHERE strategy_id = $1`, rc.StrategyID)
		for _, h := range rc.Holdings {
			batch.Queue(insertHoldingSQL,
				rc.StrategyID, domain.NormalizeAsset(h.Asset), h.Value, int16(h.Direction), h.Leverage, h.IsUSD,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("write replay rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit replay %s: %w", rc.StrategyID, err)
	}
	return nil
}
