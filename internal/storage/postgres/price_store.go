package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk adds points, ignoring (asset, timestamp) pairs that already exist.
func (s *PriceStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	for _, p := range points {
		if p == nil || p.Asset == "" || p.PriceUSD <= 0 {
			return 0, storage.ErrInvalidInput
		}
	}

	query := `
		INSERT INTO price_points (asset, timestamp, price_usd)
		VALUES ($1, $2, $3)
		ON CONFLICT (asset, timestamp) DO NOTHING
	`

	inserted := 0
	err := s.pool.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range points {
			batch.Queue(query, domain.NormalizeAsset(p.Asset), p.Timestamp, p.PriceUSD)
		}
		results := tx.SendBatch(ctx, batch)
		for range points {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return err
			}
			inserted += int(tag.RowsAffected())
		}
		return results.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("insert price points: %w", err)
	}
	return inserted, nil
}

// GetByAsset retrieves all points of an asset, ordered by timestamp ASC.
func (s *PriceStore) GetByAsset(ctx context.Context, asset string) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset, timestamp, price_usd
		FROM price_points
		WHERE asset = $1
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.NormalizeAsset(asset))
	if err != nil {
		return nil, fmt.Errorf("get prices by asset: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetByTimeRange retrieves points of an asset within [start, end] (inclusive).
func (s *PriceStore) GetByTimeRange(ctx context.Context, asset string, start, end int64) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset, timestamp, price_usd
		FROM price_points
		WHERE asset = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.NormalizeAsset(asset), start, end)
	if err != nil {
		return nil, fmt.Errorf("get prices by time range: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetAll retrieves every point, ordered by (asset, timestamp) ASC.
func (s *PriceStore) GetAll(ctx context.Context) ([]*domain.PricePoint, error) {
	rows, err := s.pool.Query(ctx, `SELECT asset, timestamp, price_usd FROM price_points ORDER BY asset ASC, timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("get all prices: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetLatestTimestamp returns the newest timestamp of an asset.
func (s *PriceStore) GetLatestTimestamp(ctx context.Context, asset string, hourlyOnly bool) (int64, error) {
	query := `
		SELECT MAX(timestamp)
		FROM price_points
		WHERE asset = $1 AND (NOT $2 OR timestamp % 3600 = 0)
	`

	var latest *int64
	if err := s.pool.QueryRow(ctx, query, domain.NormalizeAsset(asset), hourlyOnly).Scan(&latest); err != nil {
		return 0, fmt.Errorf("get latest price timestamp: %w", err)
	}
	if latest == nil {
		return 0, storage.ErrNotFound
	}
	return *latest, nil
}

func scanPrices(rows pgx.Rows) ([]*domain.PricePoint, error) {
	var out []*domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.Asset, &p.Timestamp, &p.PriceUSD); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}
	return out, nil
}
