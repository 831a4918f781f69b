// Package pricefeed fetches USD price samples and turns them into the
// canonical hourly grid and signal-time rows of the price series.
package pricefeed

import (
	"context"

	"github.com/shopspring/decimal"
)

// Sample is one raw price observation.
type Sample struct {
	Timestamp int64 // unix seconds
	Price     decimal.Decimal
}

// Source fetches chronological price samples of one coin.
type Source interface {
	// FetchPricesInRange returns samples with timestamps in [from, to], ordered ASC.
	FetchPricesInRange(ctx context.Context, coinID string, from, to int64) ([]Sample, error)
}
