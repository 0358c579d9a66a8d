package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/big"
	"math/rand"
	"sync"
)

const (
	SimBigMoveChance = 0.01 // 1% chance of a jump
	SimBigMoveBps    = 600  // ±6.00% jump
	SimSmallMinBps   = 5    // ±0.05% minimum drift
	SimSmallMaxBps   = 80   // ±0.80% maximum drift

	bpsScale = 10_000
)

// NewSeededRNG derives a deterministic generator from seed.
func NewSeededRNG(seed string) *rand.Rand {
	hash := sha256.Sum256([]byte(seed))
	seedInt := int64(binary.BigEndian.Uint64(hash[:8]))
	return rand.New(rand.NewSource(seedInt))
}

// SimulatedSource walks a price with seeded random moves. Up and down are
// equally likely, and the same seed and start always replay the same path.
type SimulatedSource struct {
	mu    sync.Mutex
	rng   *rand.Rand
	price *big.Int
	dec   uint8
}

func NewSimulatedSource(seed string, start Sample) *SimulatedSource {
	return &SimulatedSource{
		rng:   NewSeededRNG(seed + "-price"),
		price: new(big.Int).Set(start.Value),
		dec:   start.Decimals,
	}
}

// NextMoveBps draws the next move in basis points.
func NextMoveBps(rng *rand.Rand) int64 {
	var magnitude int64
	if rng.Float64() < SimBigMoveChance {
		magnitude = SimBigMoveBps
	} else {
		magnitude = SimSmallMinBps + rng.Int63n(SimSmallMaxBps-SimSmallMinBps+1)
	}
	if rng.Float64() < 0.5 {
		return -magnitude
	}
	return magnitude
}

func (s *SimulatedSource) Latest(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bps := NextMoveBps(s.rng)
	next := new(big.Int).Mul(s.price, big.NewInt(bpsScale+bps))
	next.Quo(next, big.NewInt(bpsScale))
	if next.Sign() <= 0 {
		next.SetInt64(1)
	}
	s.price = next

	return Sample{Value: new(big.Int).Set(next), Decimals: s.dec}, nil
}
