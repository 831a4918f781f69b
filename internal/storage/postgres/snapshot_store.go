package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

const snapshotColumns = `strategy_id, signal_ts, positions, message, exact`

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// GetByStrategy retrieves snapshots ordered by signal_ts ASC.
func (s *SnapshotStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.PositionSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM strategy_position_snapshots
		WHERE strategy_id = $1
		ORDER BY signal_ts ASC`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get snapshots: %w", err)
	}
	defer rows.Close()

	var out []*domain.PositionSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return out, nil
}

// GetLatest retrieves the snapshot with the highest signal_ts.
func (s *SnapshotStore) GetLatest(ctx context.Context, strategyID string) (*domain.PositionSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM strategy_position_snapshots
		WHERE strategy_id = $1
		ORDER BY signal_ts DESC
		LIMIT 1`

	snap, err := scanSnapshot(s.pool.QueryRow(ctx, query, strategyID))
	if isNotFoundError(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return snap, nil
}

func scanSnapshot(row pgx.Row) (*domain.PositionSnapshot, error) {
	var snap domain.PositionSnapshot
	var positions []byte
	if err := row.Scan(&snap.StrategyID, &snap.SignalTs, &positions, &snap.Message, &snap.Exact); err != nil {
		if isNotFoundError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan snapshot row: %w", err)
	}
	if err := json.Unmarshal(positions, &snap.Positions); err != nil {
		return nil, fmt.Errorf("decode snapshot positions: %w", err)
	}
	if snap.Positions == nil {
		snap.Positions = []domain.Position{}
	}
	return &snap, nil
}

func encodePositions(positions []domain.Position) ([]byte, error) {
	if positions == nil {
		positions = []domain.Position{}
	}
	data, err := json.Marshal(positions)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot positions: %w", err)
	}
	return data, nil
}
