package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"signal-leaderboard/internal/domain"
)

// strategyIDLen is the number of hex characters kept from the hash.
const strategyIDLen = 32

// ComputeStrategyID computes a deterministic strategy_id using SHA256.
// Formula: SHA256(lower(trader)|strategy_name)
// Returns the first 32 hex characters of the hash.
func ComputeStrategyID(trader, strategyName string) string {
	data := fmt.Sprintf("%s|%s",
		domain.NormalizeTrader(trader),
		strategyName,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:strategyIDLen]
}
