package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

const signalColumns = `id, strategy_id, trader, strategy_name, asset, direction, leverage, weight_raw, message, timestamp`

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// MaxID returns the highest ingested signal id, or -1 when empty.
func (s *SignalStore) MaxID(ctx context.Context) (int64, error) {
	var maxID int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), $1) FROM signals`, domain.NoSignalID).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("get max signal id: %w", err)
	}
	return maxID, nil
}

// GetByStrategy retrieves signals of a strategy with id > afterID, ordered by id ASC.
func (s *SignalStore) GetByStrategy(ctx context.Context, strategyID string, afterID int64) ([]*domain.Signal, error) {
	query := `SELECT ` + signalColumns + `
		FROM signals
		WHERE strategy_id = $1 AND id > $2
		ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, strategyID, afterID)
	if err != nil {
		return nil, fmt.Errorf("get signals by strategy: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// GetByTimeRange retrieves signals within [start, end] (inclusive), ordered by id ASC.
func (s *SignalStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Signal, error) {
	query := `SELECT ` + signalColumns + `
		FROM signals
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get signals by time range: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// scanSignals scans multiple rows into a slice of Signal.
func scanSignals(rows pgx.Rows) ([]*domain.Signal, error) {
	var signals []*domain.Signal

	for rows.Next() {
		var sig domain.Signal
		var direction int16

		err := rows.Scan(
			&sig.ID,
			&sig.StrategyID,
			&sig.Trader,
			&sig.StrategyName,
			&sig.Asset,
			&direction,
			&sig.Leverage,
			&sig.WeightRaw,
			&sig.Message,
			&sig.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		sig.Direction = domain.Direction(direction)

		signals = append(signals, &sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}

	return signals, nil
}
