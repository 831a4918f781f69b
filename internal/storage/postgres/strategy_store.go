package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

const strategyColumns = `id, trader, name, first_signal_ts, last_signal_ts, num_signals,
	last_value_index, last_segment_end_ts, last_applied_signal_id, opened, is_liquidated`

// StrategyStore implements storage.StrategyStore using PostgreSQL.
type StrategyStore struct {
	pool *Pool
}

// NewStrategyStore creates a new StrategyStore.
func NewStrategyStore(pool *Pool) *StrategyStore {
	return &StrategyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StrategyStore = (*StrategyStore)(nil)

// GetByID retrieves a strategy. Returns ErrNotFound if not exists.
func (s *StrategyStore) GetByID(ctx context.Context, strategyID string) (*domain.Strategy, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+strategyColumns+` FROM strategies WHERE id = $1`, strategyID)

	st, err := scanStrategy(row)
	if isNotFoundError(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get strategy: %w", err)
	}
	return st, nil
}

// GetAll retrieves all strategies ordered by id ASC.
func (s *StrategyStore) GetAll(ctx context.Context) ([]*domain.Strategy, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+strategyColumns+` FROM strategies ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("get strategies: %w", err)
	}
	defer rows.Close()

	var out []*domain.Strategy
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strategy row: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strategy rows: %w", err)
	}
	return out, nil
}

func scanStrategy(row pgx.Row) (*domain.Strategy, error) {
	var st domain.Strategy
	err := row.Scan(
		&st.ID,
		&st.Trader,
		&st.Name,
		&st.FirstSignalTs,
		&st.LastSignalTs,
		&st.NumSignals,
		&st.LastValueIndex,
		&st.LastSegmentEndTs,
		&st.LastAppliedSignalID,
		&st.Opened,
		&st.IsLiquidated,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
