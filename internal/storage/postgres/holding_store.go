package postgres

import (
	"context"
	"fmt"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// HoldingStore implements storage.HoldingStore using PostgreSQL.
type HoldingStore struct {
	pool *Pool
}

// NewHoldingStore creates a new HoldingStore.
func NewHoldingStore(pool *Pool) *HoldingStore {
	return &HoldingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HoldingStore = (*HoldingStore)(nil)

// GetByStrategy retrieves holdings ordered by asset ASC.
func (s *HoldingStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.Holding, error) {
	query := `
		SELECT strategy_id, asset, value, direction, leverage, is_usd
		FROM strategy_holdings
		WHERE strategy_id = $1
		ORDER BY asset ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*domain.Holding
	for rows.Next() {
		var h domain.Holding
		var direction int16
		if err := rows.Scan(&h.StrategyID, &h.Asset, &h.Value, &direction, &h.Leverage, &h.IsUSD); err != nil {
			return nil, fmt.Errorf("scan holding row: %w", err)
		}
		h.Direction = domain.Direction(direction)
		holdings = append(holdings, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holding rows: %w", err)
	}
	return holdings, nil
}
