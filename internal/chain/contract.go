package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"signal-leaderboard/internal/domain"
)

// SignalReader reads the append-only signal ledger.
type SignalReader interface {
	// SignalsCount returns the number of signals recorded on chain.
	SignalsCount(ctx context.Context) (int64, error)

	// SignalsRange returns signals with index in [from, to), ordered by index.
	SignalsRange(ctx context.Context, from, to int64) ([]*domain.Signal, error)
}

// SignalLedgerABI is the subset of the ledger contract ABI used here.
const SignalLedgerABI = `[
  {"type":"function","name":"getSignalsCount","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getSignalsRange","stateMutability":"view",
   "inputs":[{"name":"from","type":"uint256"},{"name":"to","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"trader","type":"address"},
     {"name":"strategyName","type":"string"},
     {"name":"asset","type":"string"},
     {"name":"direction","type":"uint8"},
     {"name":"leverage","type":"uint8"},
     {"name":"weight","type":"uint256"},
     {"name":"message","type":"string"},
     {"name":"timestamp","type":"uint256"}]}]},
  {"type":"event","name":"SignalPosted","anonymous":false,
   "inputs":[{"name":"index","type":"uint256","indexed":true},
             {"name":"trader","type":"address","indexed":true}]}
]`

// contractSignal mirrors the ledger's signal tuple.
type contractSignal struct {
	Trader       common.Address
	StrategyName string
	Asset        string
	Direction    uint8
	Leverage     uint8
	Weight       *big.Int
	Message      string
	Timestamp    *big.Int
}

// ContractReader implements SignalReader over eth_call.
type ContractReader struct {
	rpc     RPCClient
	address common.Address
	abi     abi.ABI
}

// NewContractReader creates a reader for the ledger at address.
func NewContractReader(rpc RPCClient, address string) (*ContractReader, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}
	parsed, err := abi.JSON(strings.NewReader(SignalLedgerABI))
	if err != nil {
		return nil, fmt.Errorf("parse ledger abi: %w", err)
	}
	return &ContractReader{
		rpc:     rpc,
		address: common.HexToAddress(address),
		abi:     parsed,
	}, nil
}

// Address returns the ledger contract address.
func (r *ContractReader) Address() common.Address {
	return r.address
}

// SignalPostedID returns the topic of the SignalPosted event.
func (r *ContractReader) SignalPostedID() common.Hash {
	return r.abi.Events["SignalPosted"].ID
}

// Head returns the latest block number seen by the RPC endpoint.
func (r *ContractReader) Head(ctx context.Context) (uint64, error) {
	n, err := r.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return n, nil
}

// SignalsCount returns the number of signals recorded on chain.
func (r *ContractReader) SignalsCount(ctx context.Context) (int64, error) {
	out, err := r.call(ctx, "getSignalsCount")
	if err != nil {
		return 0, err
	}

	count := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if !count.IsInt64() {
		return 0, fmt.Errorf("signals count overflows int64: %s", count)
	}
	return count.Int64(), nil
}

// SignalsRange returns signals with index in [from, to).
func (r *ContractReader) SignalsRange(ctx context.Context, from, to int64) ([]*domain.Signal, error) {
	if from < 0 || to < from {
		return nil, fmt.Errorf("invalid range [%d, %d)", from, to)
	}
	if to == from {
		return nil, nil
	}

	out, err := r.call(ctx, "getSignalsRange", big.NewInt(from), big.NewInt(to))
	if err != nil {
		return nil, err
	}

	raw := *abi.ConvertType(out[0], new([]contractSignal)).(*[]contractSignal)
	signals := make([]*domain.Signal, 0, len(raw))
	for i, cs := range raw {
		signals = append(signals, toSignal(from+int64(i), cs))
	}
	return signals, nil
}

func (r *ContractReader) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	raw, err := r.rpc.Call(ctx, r.address, data)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := r.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("unpack %s: empty output", method)
	}
	return out, nil
}

func toSignal(id int64, cs contractSignal) *domain.Signal {
	return &domain.Signal{
		ID:           id,
		Trader:       domain.NormalizeTrader(cs.Trader.Hex()),
		StrategyName: cs.StrategyName,
		Asset:        domain.NormalizeAsset(cs.Asset),
		Direction:    domain.DirectionFromContract(cs.Direction),
		Leverage:     int(cs.Leverage),
		WeightRaw:    bigToFloat(cs.Weight),
		Message:      cs.Message,
		Timestamp:    bigToInt64(cs.Timestamp),
	}
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func bigToInt64(v *big.Int) int64 {
	if v == nil || !v.IsInt64() {
		return 0
	}
	return v.Int64()
}

var _ SignalReader = (*ContractReader)(nil)
