package domain

// PricePoint is one USD price sample of an asset.
// Corresponds to prices table. Hourly-grid rows have Timestamp%3600 == 0;
// other rows are signal-time samples.
type PricePoint struct {
	Asset     string
	Timestamp int64 // unix seconds
	PriceUSD  float64
}
