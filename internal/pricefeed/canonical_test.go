package pricefeed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const h = int64(1699999200) // hour boundary

func samplesAt(pairs ...float64) []Sample {
	out := make([]Sample, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Sample{Timestamp: int64(pairs[i]), Price: decimal.NewFromFloat(pairs[i+1])})
	}
	return out
}

func TestHourlyPoints(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
		want    float64
		found   bool
	}{
		{"exact", samplesAt(float64(h-300), 1, float64(h), 2, float64(h+60), 3), 2, true},
		{"latest in lookback", samplesAt(float64(h-599), 1, float64(h-120), 2, float64(h+30), 3), 2, true},
		{"lookback edge inclusive", samplesAt(float64(h-600), 4, float64(h+300), 5), 4, true},
		{"fallback after", samplesAt(float64(h-900), 1, float64(h+200), 6), 6, true},
		{"fallback after edge", samplesAt(float64(h+600), 7), 7, true},
		{"nothing in tolerance", samplesAt(float64(h-601), 1, float64(h+601), 2), 0, false},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := HourlyPoints("BTC", tt.samples, h, h)
			if !tt.found {
				assert.Empty(t, points)
				return
			}
			require.Len(t, points, 1)
			assert.Equal(t, "BTC", points[0].Asset)
			assert.Equal(t, h, points[0].Timestamp)
			assert.Equal(t, tt.want, points[0].PriceUSD)
		})
	}
}

func TestHourlyPoints_RangeAndGaps(t *testing.T) {
	samples := samplesAt(
		float64(h), 10,
		float64(h+3600), 11,
		// no sample near h+7200
		float64(h+3*3600-100), 13,
	)

	points := HourlyPoints("ETH", samples, h-1800, h+3*3600)
	require.Len(t, points, 3)
	assert.Equal(t, h, points[0].Timestamp)
	assert.Equal(t, h+3600, points[1].Timestamp)
	assert.Equal(t, h+3*3600, points[2].Timestamp)
	assert.Equal(t, 13.0, points[2].PriceUSD)
}

func TestHourlyPoints_SkipsNonPositive(t *testing.T) {
	points := HourlyPoints("BTC", samplesAt(float64(h), 0), h, h)
	assert.Empty(t, points)
}

func TestSnapAt(t *testing.T) {
	samples := samplesAt(100, 1, 200, 2, 300, 3)

	s, ok := SnapAt(samples, 250)
	require.True(t, ok)
	assert.Equal(t, int64(200), s.Timestamp)

	s, ok = SnapAt(samples, 300)
	require.True(t, ok)
	assert.Equal(t, int64(300), s.Timestamp)

	s, ok = SnapAt(samples, 50)
	require.True(t, ok)
	assert.Equal(t, int64(100), s.Timestamp, "falls forward when nothing precedes")

	_, ok = SnapAt(nil, 50)
	assert.False(t, ok)
}

func TestSignalPoints(t *testing.T) {
	samples := samplesAt(float64(h), 10, float64(h+1800), 12)

	points := SignalPoints("BTC", samples, []int64{h + 1900, h + 10, h + 10, h + 3600})
	require.Len(t, points, 2)
	assert.Equal(t, h+10, points[0].Timestamp)
	assert.Equal(t, 10.0, points[0].PriceUSD)
	assert.Equal(t, h+1900, points[1].Timestamp)
	assert.Equal(t, 12.0, points[1].PriceUSD)
}
