package clickhouse

import (
	"context"
	"fmt"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse.
// The table is a ReplacingMergeTree; reads use FINAL so that rows repeated
// by concurrent writers collapse to one.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk adds points, skipping (asset, timestamp) pairs already stored
// or repeated within the batch. Returns the number of rows written.
func (s *PriceStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	for _, p := range points {
		if p == nil || p.Asset == "" || p.PriceUSD <= 0 {
			return 0, storage.ErrInvalidInput
		}
	}

	type key struct {
		asset string
		ts    int64
	}
	byAsset := make(map[string][]*domain.PricePoint)
	for _, p := range points {
		asset := domain.NormalizeAsset(p.Asset)
		byAsset[asset] = append(byAsset[asset], p)
	}

	seen := make(map[key]struct{}, len(points))
	for asset, group := range byAsset {
		lo, hi := group[0].Timestamp, group[0].Timestamp
		for _, p := range group {
			if p.Timestamp < lo {
				lo = p.Timestamp
			}
			if p.Timestamp > hi {
				hi = p.Timestamp
			}
		}
		existing, err := s.timestamps(ctx, asset, lo, hi)
		if err != nil {
			return 0, fmt.Errorf("check existing prices: %w", err)
		}
		for _, ts := range existing {
			seen[key{asset, ts}] = struct{}{}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_points (asset, timestamp, price_usd)`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	inserted := 0
	for _, p := range points {
		k := key{domain.NormalizeAsset(p.Asset), p.Timestamp}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if err := batch.Append(k.asset, p.Timestamp, p.PriceUSD); err != nil {
			_ = batch.Abort()
			return 0, fmt.Errorf("append to batch: %w", err)
		}
		inserted++
	}

	if inserted == 0 {
		_ = batch.Abort()
		return 0, nil
	}
	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}
	return inserted, nil
}

// GetByAsset retrieves all points of an asset, ordered by timestamp ASC.
func (s *PriceStore) GetByAsset(ctx context.Context, asset string) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset, timestamp, price_usd
		FROM price_points FINAL
		WHERE asset = ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, domain.NormalizeAsset(asset))
	if err != nil {
		return nil, fmt.Errorf("query prices by asset: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetByTimeRange retrieves points of an asset within [start, end] (inclusive).
func (s *PriceStore) GetByTimeRange(ctx context.Context, asset string, start, end int64) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset, timestamp, price_usd
		FROM price_points FINAL
		WHERE asset = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, domain.NormalizeAsset(asset), start, end)
	if err != nil {
		return nil, fmt.Errorf("query prices by time range: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetAll retrieves every point, ordered by (asset, timestamp) ASC.
func (s *PriceStore) GetAll(ctx context.Context) ([]*domain.PricePoint, error) {
	rows, err := s.conn.Query(ctx, `SELECT asset, timestamp, price_usd FROM price_points FINAL ORDER BY asset ASC, timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all prices: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetLatestTimestamp returns the newest timestamp of an asset.
func (s *PriceStore) GetLatestTimestamp(ctx context.Context, asset string, hourlyOnly bool) (int64, error) {
	query := `SELECT count(), max(timestamp) FROM price_points WHERE asset = ?`
	if hourlyOnly {
		query += ` AND timestamp % 3600 = 0`
	}

	var count uint64
	var latest int64
	if err := s.conn.QueryRow(ctx, query, domain.NormalizeAsset(asset)).Scan(&count, &latest); err != nil {
		return 0, fmt.Errorf("query latest price timestamp: %w", err)
	}
	if count == 0 {
		return 0, storage.ErrNotFound
	}
	return latest, nil
}

func (s *PriceStore) timestamps(ctx context.Context, asset string, start, end int64) ([]int64, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT DISTINCT timestamp FROM price_points WHERE asset = ? AND timestamp >= ? AND timestamp <= ?`,
		asset, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func scanPrices(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.Asset, &p.Timestamp, &p.PriceUSD); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}
	return points, nil
}
