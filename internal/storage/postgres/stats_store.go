package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

const statsColumns = `strategy_id, window_name, last_updated_ts, sharpe_annual, vol_annual, vol_hourly, total_return, max_drawdown`

// StatsStore implements storage.StatsStore using PostgreSQL.
type StatsStore struct {
	pool *Pool
}

// NewStatsStore creates a new StatsStore.
func NewStatsStore(pool *Pool) *StatsStore {
	return &StatsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StatsStore = (*StatsStore)(nil)

// ReplaceStats upserts all given rows of one strategy in a single transaction.
func (s *StatsStore) ReplaceStats(ctx context.Context, strategyID string, stats []*domain.StrategyStats) error {
	for _, st := range stats {
		if st == nil || st.StrategyID != strategyID || !st.Window.IsValid() {
			return storage.ErrInvalidInput
		}
	}

	query := `
		INSERT INTO strategy_stats (` + statsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (strategy_id, window_name) DO UPDATE SET
			last_updated_ts = EXCLUDED.last_updated_ts,
			sharpe_annual = EXCLUDED.sharpe_annual,
			vol_annual = EXCLUDED.vol_annual,
			vol_hourly = EXCLUDED.vol_hourly,
			total_return = EXCLUDED.total_return,
			max_drawdown = EXCLUDED.max_drawdown
	`

	err := s.pool.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, st := range stats {
			batch.Queue(query,
				st.StrategyID, string(st.Window), st.LastUpdatedTs,
				st.SharpeAnnual, st.VolAnnual, st.VolHourly,
				st.TotalReturn, st.MaxDrawdown,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if isForeignKeyError(err) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("replace stats: %w", err)
	}
	return nil
}

// GetByStrategy retrieves all window rows of a strategy.
func (s *StatsStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.StrategyStats, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+statsColumns+` FROM strategy_stats WHERE strategy_id = $1`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get stats by strategy: %w", err)
	}
	defer rows.Close()

	return scanStats(rows)
}

// GetByWindow retrieves the rows of every strategy for one window.
func (s *StatsStore) GetByWindow(ctx context.Context, window domain.Window) ([]*domain.StrategyStats, error) {
	query := `SELECT ` + statsColumns + ` FROM strategy_stats WHERE window_name = $1 ORDER BY strategy_id ASC`

	rows, err := s.pool.Query(ctx, query, string(window))
	if err != nil {
		return nil, fmt.Errorf("get stats by window: %w", err)
	}
	defer rows.Close()

	return scanStats(rows)
}

func scanStats(rows pgx.Rows) ([]*domain.StrategyStats, error) {
	var out []*domain.StrategyStats
	for rows.Next() {
		var st domain.StrategyStats
		var window string
		err := rows.Scan(
			&st.StrategyID,
			&window,
			&st.LastUpdatedTs,
			&st.SharpeAnnual,
			&st.VolAnnual,
			&st.VolHourly,
			&st.TotalReturn,
			&st.MaxDrawdown,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		st.Window = domain.Window(window)
		out = append(out, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}
	return out, nil
}
