package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"signal-leaderboard/internal/domain"
	"signal-leaderboard/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PricePoint // keyed by (asset, timestamp)
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[string]*domain.PricePoint),
	}
}

// priceKey generates a unique key for a price point.
func priceKey(asset string, ts int64) string {
	return fmt.Sprintf("%s|%d", asset, ts)
}

// InsertBulk adds points, ignoring existing (asset, timestamp) pairs.
func (s *PriceStore) InsertBulk(_ context.Context, points []*domain.PricePoint) (int, error) {
	for _, p := range points {
		if p == nil || p.Asset == "" || p.PriceUSD <= 0 {
			return 0, storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, p := range points {
		asset := domain.NormalizeAsset(p.Asset)
		key := priceKey(asset, p.Timestamp)
		if _, exists := s.data[key]; exists {
			continue
		}
		pointCopy := *p
		pointCopy.Asset = asset
		s.data[key] = &pointCopy
		inserted++
	}
	return inserted, nil
}

// GetByAsset retrieves all points of an asset, ordered by timestamp ASC.
func (s *PriceStore) GetByAsset(_ context.Context, asset string) ([]*domain.PricePoint, error) {
	return s.filter(func(p *domain.PricePoint) bool {
		return p.Asset == domain.NormalizeAsset(asset)
	}), nil
}

// GetByTimeRange retrieves points of an asset within [start, end] (inclusive).
func (s *PriceStore) GetByTimeRange(_ context.Context, asset string, start, end int64) ([]*domain.PricePoint, error) {
	return s.filter(func(p *domain.PricePoint) bool {
		return p.Asset == domain.NormalizeAsset(asset) && p.Timestamp >= start && p.Timestamp <= end
	}), nil
}

// GetAll retrieves every point, ordered by (asset, timestamp) ASC.
func (s *PriceStore) GetAll(_ context.Context) ([]*domain.PricePoint, error) {
	return s.filter(func(*domain.PricePoint) bool { return true }), nil
}

// GetLatestTimestamp returns the newest timestamp of an asset.
func (s *PriceStore) GetLatestTimestamp(_ context.Context, asset string, hourlyOnly bool) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset = domain.NormalizeAsset(asset)
	found := false
	var latest int64
	for _, p := range s.data {
		if p.Asset != asset || (hourlyOnly && !domain.IsHourBoundary(p.Timestamp)) {
			continue
		}
		if !found || p.Timestamp > latest {
			latest = p.Timestamp
			found = true
		}
	}
	if !found {
		return 0, storage.ErrNotFound
	}
	return latest, nil
}

func (s *PriceStore) filter(keep func(*domain.PricePoint) bool) []*domain.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if keep(p) {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Asset != result[j].Asset {
			return result[i].Asset < result[j].Asset
		}
		return result[i].Timestamp < result[j].Timestamp
	})
	return result
}

var _ storage.PriceStore = (*PriceStore)(nil)
