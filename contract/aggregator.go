package contract

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"h2hServer/config"
)

// Chainlink AggregatorV3Interface, read-only subset
const AggregatorABI = `[
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"description","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"internalType":"uint80","name":"roundId","type":"uint80"},
		{"internalType":"int256","name":"answer","type":"int256"},
		{"internalType":"uint256","name":"startedAt","type":"uint256"},
		{"internalType":"uint256","name":"updatedAt","type":"uint256"},
		{"internalType":"uint80","name":"answeredInRound","type":"uint80"}
	],"stateMutability":"view","type":"function"}
]`

// Round is one answer of a price aggregator.
type Round struct {
	RoundID   *big.Int
	Answer    *big.Int
	UpdatedAt time.Time
}

// Aggregator wraps read calls to a Chainlink price aggregator.
type Aggregator struct {
	Contract *bind.BoundContract
	ABI      abi.ABI
	Address  common.Address

	client *ethclient.Client
}

// NewAggregator binds address on caller.
func NewAggregator(caller bind.ContractCaller, address common.Address) (*Aggregator, error) {
	parsed, err := abi.JSON(strings.NewReader(AggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse aggregator ABI: %w", err)
	}
	return &Aggregator{
		Contract: bind.NewBoundContract(address, parsed, caller, nil, nil),
		ABI:      parsed,
		Address:  address,
	}, nil
}

// DialAggregator connects to rpcURL and binds the aggregator at address.
func DialAggregator(rpcURL string, address common.Address) (*Aggregator, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.ChainCallTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	a, err := NewAggregator(client, address)
	if err != nil {
		client.Close()
		return nil, err
	}
	a.client = client
	return a, nil
}

func (a *Aggregator) Decimals(ctx context.Context) (uint8, error) {
	var out []any
	if err := a.Contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("decimals call failed: %w", err)
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", out[0])
	}
	return d, nil
}

func (a *Aggregator) Description(ctx context.Context) (string, error) {
	var out []any
	if err := a.Contract.Call(&bind.CallOpts{Context: ctx}, &out, "description"); err != nil {
		return "", fmt.Errorf("description call failed: %w", err)
	}
	s, _ := out[0].(string)
	return s, nil
}

func (a *Aggregator) LatestRound(ctx context.Context) (Round, error) {
	var out []any
	if err := a.Contract.Call(&bind.CallOpts{Context: ctx}, &out, "latestRoundData"); err != nil {
		return Round{}, fmt.Errorf("latestRoundData call failed: %w", err)
	}
	if len(out) != 5 {
		return Round{}, fmt.Errorf("latestRoundData returned %d values", len(out))
	}
	roundID, ok1 := out[0].(*big.Int)
	answer, ok2 := out[1].(*big.Int)
	updatedAt, ok3 := out[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return Round{}, fmt.Errorf("unexpected latestRoundData types")
	}
	return Round{
		RoundID:   roundID,
		Answer:    answer,
		UpdatedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
	}, nil
}

// Close releases the RPC connection when the aggregator dialed it.
func (a *Aggregator) Close() {
	if a.client != nil {
		a.client.Close()
	}
}
