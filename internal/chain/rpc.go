package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// RPCClient defines the EVM JSON-RPC calls the signal reader needs.
type RPCClient interface {
	// Call executes eth_call against the latest block and returns the raw output.
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// BlockNumber returns the latest block number.
	BlockNumber(ctx context.Context) (uint64, error)
}

// WSClient defines the EVM WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Addresses restricts logs to these emitting contracts.
	Addresses []common.Address
	// EventIDs restricts logs to any of these first topics. Empty means all.
	EventIDs []common.Hash
}

// LogNotification is one log delivered by a subscription.
type LogNotification struct {
	Address     common.Address
	BlockNumber uint64
	TxHash      common.Hash
	Topics      []common.Hash
	Removed     bool
}
