package domain

import "strings"

// CashAsset is the USD cash bucket symbol.
const CashAsset = "USD"

// AssetRegistry maps supported asset symbols to price-feed coin IDs.
// The cash asset maps to an empty coin ID and is never priced.
type AssetRegistry map[string]string

// DefaultAssets is the registry used when configuration does not override it.
var DefaultAssets = AssetRegistry{
	"BTC":     "bitcoin",
	"ETH":     "ethereum",
	"SOL":     "solana",
	"BNB":     "binancecoin",
	"XRP":     "ripple",
	"DOGE":    "dogecoin",
	"ADA":     "cardano",
	"AVAX":    "avalanche-2",
	"LINK":    "chainlink",
	CashAsset: "",
}

// NormalizeAsset trims and upper-cases an asset symbol.
func NormalizeAsset(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// IsCash reports whether symbol is the cash asset.
func IsCash(symbol string) bool {
	return NormalizeAsset(symbol) == CashAsset
}

// Supports reports whether symbol is a supported asset.
func (r AssetRegistry) Supports(symbol string) bool {
	_, ok := r[NormalizeAsset(symbol)]
	return ok
}

// CoinID returns the price-feed identifier for symbol.
func (r AssetRegistry) CoinID(symbol string) (string, bool) {
	id, ok := r[NormalizeAsset(symbol)]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// PricedAssets returns all non-cash symbols in the registry.
func (r AssetRegistry) PricedAssets() []string {
	out := make([]string, 0, len(r))
	for symbol, id := range r {
		if id == "" || symbol == CashAsset {
			continue
		}
		out = append(out, symbol)
	}
	return out
}
