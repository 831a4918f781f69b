package pricefeed

import (
	"sort"

	"signal-leaderboard/internal/domain"
)

// CanonicalTolerance is the look-back and fallback window, in seconds,
// around an hour boundary.
const CanonicalTolerance int64 = 600

// HourlyPoints picks one price per hour boundary in [fromHour, toHour]:
// the latest sample in [h-600, h], else the nearest sample within 600s on
// either side. Hours with no eligible sample are left out. samples must be
// sorted by timestamp.
func HourlyPoints(asset string, samples []Sample, fromHour, toHour int64) []*domain.PricePoint {
	fromHour = ceilHour(fromHour)
	var out []*domain.PricePoint

	for h := fromHour; h <= toHour; h += domain.SecondsPerHour {
		s, ok := canonicalAt(samples, h)
		if !ok {
			continue
		}
		price, _ := s.Price.Float64()
		if price <= 0 {
			continue
		}
		out = append(out, &domain.PricePoint{Asset: asset, Timestamp: h, PriceUSD: price})
	}
	return out
}

func canonicalAt(samples []Sample, h int64) (Sample, bool) {
	// First index with Timestamp > h.
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].Timestamp > h
	})

	if i > 0 && samples[i-1].Timestamp >= h-CanonicalTolerance {
		return samples[i-1], true
	}

	var best Sample
	bestDist := CanonicalTolerance + 1
	if i > 0 {
		if d := h - samples[i-1].Timestamp; d < bestDist {
			best, bestDist = samples[i-1], d
		}
	}
	if i < len(samples) {
		if d := samples[i].Timestamp - h; d < bestDist {
			best, bestDist = samples[i], d
		}
	}
	return best, bestDist <= CanonicalTolerance
}

// SnapAt returns the last sample at or before target, else the first after.
// samples must be sorted by timestamp.
func SnapAt(samples []Sample, target int64) (Sample, bool) {
	if len(samples) == 0 {
		return Sample{}, false
	}
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].Timestamp > target
	})
	if i > 0 {
		return samples[i-1], true
	}
	return samples[0], true
}

// SignalPoints returns one row per distinct off-grid signal timestamp, priced
// by SnapAt. On-grid timestamps are owned by HourlyPoints.
func SignalPoints(asset string, samples []Sample, signalTimes []int64) []*domain.PricePoint {
	seen := make(map[int64]struct{}, len(signalTimes))
	var out []*domain.PricePoint
	for _, ts := range signalTimes {
		if domain.IsHourBoundary(ts) {
			continue
		}
		if _, ok := seen[ts]; ok {
			continue
		}
		seen[ts] = struct{}{}

		s, ok := SnapAt(samples, ts)
		if !ok {
			continue
		}
		price, _ := s.Price.Float64()
		if price <= 0 {
			continue
		}
		out = append(out, &domain.PricePoint{Asset: asset, Timestamp: ts, PriceUSD: price})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

func ceilHour(ts int64) int64 {
	f := domain.HourFloor(ts)
	if f == ts {
		return ts
	}
	return f + domain.SecondsPerHour
}
