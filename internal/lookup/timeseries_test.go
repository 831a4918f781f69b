package lookup

import (
	"testing"

	"signal-leaderboard/internal/domain"
)

func TestPriceAt_EmptySlice(t *testing.T) {
	_, err := PriceAt(1000, nil)
	if err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}

	_, err = PriceAt(1000, []*domain.PricePoint{})
	if err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}
}

func TestPriceAt_ExactMatch(t *testing.T) {
	prices := []*domain.PricePoint{
		{Timestamp: 1000, PriceUSD: 1.0},
		{Timestamp: 2000, PriceUSD: 2.0},
		{Timestamp: 3000, PriceUSD: 3.0},
	}

	price, err := PriceAt(2000, prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 2.0 {
		t.Errorf("expected 2.0, got %f", price)
	}
}

func TestPriceAt_BeforeTarget(t *testing.T) {
	prices := []*domain.PricePoint{
		{Timestamp: 1000, PriceUSD: 1.0},
		{Timestamp: 2000, PriceUSD: 2.0},
		{Timestamp: 3000, PriceUSD: 3.0},
	}

	// Target 2500 should return price at 2000
	price, err := PriceAt(2500, prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 2.0 {
		t.Errorf("expected 2.0, got %f", price)
	}
}

func TestPriceAt_BeforeFirst(t *testing.T) {
	prices := []*domain.PricePoint{
		{Timestamp: 1000, PriceUSD: 1.0},
		{Timestamp: 2000, PriceUSD: 2.0},
	}

	// No sample at or before target: no information
	_, err := PriceAt(500, prices)
	if err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}
}

func TestPriceAt_AfterLast(t *testing.T) {
	prices := []*domain.PricePoint{
		{Timestamp: 1000, PriceUSD: 1.0},
		{Timestamp: 2000, PriceUSD: 2.0},
	}

	price, err := PriceAt(99999, prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 2.0 {
		t.Errorf("expected 2.0, got %f", price)
	}
}

func TestSeries_UnsortedInputAndDuplicates(t *testing.T) {
	s := NewSeries([]*domain.PricePoint{
		{Timestamp: 3000, PriceUSD: 3.0},
		{Timestamp: 1000, PriceUSD: 1.0},
		{Timestamp: 2000, PriceUSD: 2.0},
		{Timestamp: 2000, PriceUSD: 2.5},
		nil,
	})

	if s.Len() != 3 {
		t.Fatalf("expected 3 samples, got %d", s.Len())
	}

	if p, ok := s.At(2000); !ok || p != 2.5 {
		t.Errorf("expected 2.5 at 2000 (last duplicate wins), got %f ok=%v", p, ok)
	}
	if p, ok := s.At(2999); !ok || p != 2.5 {
		t.Errorf("expected 2.5 at 2999, got %f ok=%v", p, ok)
	}
	if _, ok := s.At(999); ok {
		t.Error("expected no price before first sample")
	}
}

func TestBook_PriceAtNormalizesAsset(t *testing.T) {
	b := NewBook([]*domain.PricePoint{
		{Asset: "btc", Timestamp: 3600, PriceUSD: 100},
		{Asset: "ETH", Timestamp: 3600, PriceUSD: 10},
	})

	if p, ok := b.PriceAt("BTC", 4000); !ok || p != 100 {
		t.Errorf("expected BTC 100, got %f ok=%v", p, ok)
	}
	if p, ok := b.PriceAt(" eth ", 3600); !ok || p != 10 {
		t.Errorf("expected ETH 10, got %f ok=%v", p, ok)
	}
	if _, ok := b.PriceAt("SOL", 3600); ok {
		t.Error("expected no SOL price")
	}
}

func TestHourlyGrid_SkipsSignalTimeRows(t *testing.T) {
	points := []*domain.PricePoint{
		{Asset: "BTC", Timestamp: 7200, PriceUSD: 1},
		{Asset: "BTC", Timestamp: 3600, PriceUSD: 1},
		{Asset: "BTC", Timestamp: 5000, PriceUSD: 1}, // signal-time row
		{Asset: "ETH", Timestamp: 7200, PriceUSD: 1},
		{Asset: "ETH", Timestamp: 10800, PriceUSD: 1},
	}

	want := []int64{3600, 7200, 10800}

	got := HourlyGrid(points)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("grid[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	fromBook := NewBook(points).HourlyGrid()
	if len(fromBook) != len(want) {
		t.Fatalf("book grid: expected %v, got %v", want, fromBook)
	}
}

func TestFirstAtOrAfter(t *testing.T) {
	grid := []int64{3600, 7200, 10800}

	tests := []struct {
		ts   int64
		want int
	}{
		{0, 0},
		{3600, 0},
		{3601, 1},
		{7200, 1},
		{10800, 2},
		{10801, 3},
	}
	for _, tt := range tests {
		if got := FirstAtOrAfter(grid, tt.ts); got != tt.want {
			t.Errorf("FirstAtOrAfter(%d) = %d, want %d", tt.ts, got, tt.want)
		}
	}
}
