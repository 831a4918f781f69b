package allocation

import "signal-leaderboard/internal/domain"

// Origin names where a current position was read from.
type Origin string

const (
	OriginHoldings Origin = "holdings"
	OriginSnapshot Origin = "snapshot"
	OriginCash     Origin = "cash"
)

// Current is the best known position of a strategy.
type Current struct {
	Book      Book
	Opened    bool
	Origin    Origin
	Timestamp int64 // holdings watermark or snapshot signal time; 0 for cash
}

// CurrentPosition picks the freshest known position: holdings when their
// watermark is at or after the latest snapshot, else the latest snapshot,
// else an implicit all-cash book. latest may be nil.
func CurrentPosition(s *domain.Strategy, holdings []*domain.Holding, latest *domain.PositionSnapshot) Current {
	hasHoldings := s != nil && s.LastSegmentEndTs != nil && len(holdings) > 0

	if hasHoldings && (latest == nil || *s.LastSegmentEndTs >= latest.SignalTs) {
		return Current{
			Book:      FromHoldings(holdings),
			Opened:    s.Opened,
			Origin:    OriginHoldings,
			Timestamp: *s.LastSegmentEndTs,
		}
	}
	if latest != nil {
		return Current{
			Book:      FromPositions(latest.Positions),
			Opened:    true,
			Origin:    OriginSnapshot,
			Timestamp: latest.SignalTs,
		}
	}
	return Current{
		Book:   NewCashBook(100),
		Origin: OriginCash,
	}
}

// PercentBook rescales the book to percent units summing to 100.
func (b Book) PercentBook() Book {
	return FromPositions(b.Positions())
}
