package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"h2hServer/contract"

	"github.com/redis/go-redis/v9"
)

var ErrNoSample = errors.New("no price sample available")

// Sample is a fixed-point price: Value / 10^Decimals.
type Sample struct {
	Value    *big.Int
	Decimals uint8
}

// Rescale converts the sample to decimals, truncating extra precision.
func (s Sample) Rescale(decimals uint8) *big.Int {
	v := new(big.Int).Set(s.Value)
	switch {
	case decimals > s.Decimals:
		v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-s.Decimals)), nil))
	case decimals < s.Decimals:
		v.Quo(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.Decimals-decimals)), nil))
	}
	return v
}

// ParseDecimal parses "1523.25" into Sample{152325, 2}.
func ParseDecimal(s string) (Sample, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return Sample{}, fmt.Errorf("empty price")
	}
	if len(frac) > 255 {
		return Sample{}, fmt.Errorf("price %q has too many decimals", s)
	}
	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || strings.ContainsAny(whole+frac, "+-") {
		return Sample{}, fmt.Errorf("invalid price %q", s)
	}
	return Sample{Value: v, Decimals: uint8(len(frac))}, nil
}

// Source produces the latest off-program price.
type Source interface {
	Latest(ctx context.Context) (Sample, error)
}

// RedisSource reads a decimal price string from a key another process keeps
// current.
type RedisSource struct {
	client *redis.Client
	key    string
}

func NewRedisSource(client *redis.Client, key string) *RedisSource {
	return &RedisSource{client: client, key: key}
}

func (s *RedisSource) Latest(ctx context.Context) (Sample, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return Sample{}, ErrNoSample
	}
	if err != nil {
		return Sample{}, fmt.Errorf("failed to get price: %w", err)
	}
	return ParseDecimal(raw)
}

// Aggregator is the read surface of a Chainlink price aggregator.
type Aggregator interface {
	Decimals(ctx context.Context) (uint8, error)
	LatestRound(ctx context.Context) (contract.Round, error)
}

// ChainlinkSource reads the latest round of an on-chain aggregator.
type ChainlinkSource struct {
	agg Aggregator

	mu       sync.Mutex
	decimals *uint8
}

func NewChainlinkSource(agg Aggregator) *ChainlinkSource {
	return &ChainlinkSource{agg: agg}
}

func (s *ChainlinkSource) Latest(ctx context.Context) (Sample, error) {
	d, err := s.aggregatorDecimals(ctx)
	if err != nil {
		return Sample{}, err
	}
	round, err := s.agg.LatestRound(ctx)
	if err != nil {
		return Sample{}, err
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return Sample{}, ErrNoSample
	}
	return Sample{Value: round.Answer, Decimals: d}, nil
}

// decimals never change for a deployed aggregator
func (s *ChainlinkSource) aggregatorDecimals(ctx context.Context) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decimals != nil {
		return *s.decimals, nil
	}
	d, err := s.agg.Decimals(ctx)
	if err != nil {
		return 0, err
	}
	s.decimals = &d
	return d, nil
}
