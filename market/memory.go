package market

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errReadOnly = errors.New("write in read-only transaction")

type balanceKey struct {
	denomination Address
	account      Address
}

type memState struct {
	config    *Config
	feed      *PriceFeed
	ledger    []Game
	hasLedger bool
	vault     *Vault
	balances  map[balanceKey]uint64
	transfers []Transfer
}

func (s *memState) clone() *memState {
	next := &memState{
		config:    s.config,
		ledger:    slices.Clone(s.ledger),
		hasLedger: s.hasLedger,
		vault:     s.vault,
		balances:  maps.Clone(s.balances),
		transfers: slices.Clone(s.transfers),
	}
	if s.feed != nil {
		next.feed = &PriceFeed{Decimals: s.feed.Decimals, Prices: slices.Clone(s.feed.Prices)}
	}
	return next
}

// MemoryStore keeps the whole program state in process. Update runs against a
// copy that replaces the live state only when fn succeeds.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{balances: make(map[balanceKey]uint64)}}
}

func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	if err := fn(&memTx{state: next, writable: true}); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&memTx{state: s.state})
}

// Mint credits account out of thin air. It is the provisioning hook used by
// seeding and tests; the program itself never mints.
func (s *MemoryStore) Mint(ctx context.Context, denomination, account Address, amount uint64) error {
	return s.Update(ctx, func(tx Tx) error {
		m := tx.(*memTx)
		key := balanceKey{denomination, account}
		if m.state.balances[key] > math.MaxUint64-amount {
			return ErrArithmeticOverflow
		}
		m.state.balances[key] += amount
		return nil
	})
}

// Transfers returns the token journal in order.
func (s *MemoryStore) Transfers() []Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.transfers)
}

type memTx struct {
	state    *memState
	writable bool
}

func (t *memTx) write() error {
	if !t.writable {
		return errReadOnly
	}
	return nil
}

func (t *memTx) Config(ctx context.Context) (Config, error) {
	if t.state.config == nil {
		return Config{}, ErrNotInitialized
	}
	return *t.state.config, nil
}

func (t *memTx) CreateConfig(ctx context.Context, cfg Config) error {
	if err := t.write(); err != nil {
		return err
	}
	if t.state.config != nil {
		return ErrAlreadyInitialized
	}
	t.state.config = &cfg
	return nil
}

func (t *memTx) FeedInfo(ctx context.Context) (FeedInfo, error) {
	if t.state.feed == nil {
		return FeedInfo{}, ErrNotInitialized
	}
	return FeedInfo{Decimals: t.state.feed.Decimals, Length: uint32(len(t.state.feed.Prices))}, nil
}

func (t *memTx) CreateFeed(ctx context.Context, decimals uint8, initial uint64) error {
	if err := t.write(); err != nil {
		return err
	}
	if t.state.feed != nil {
		return ErrAlreadyInitialized
	}
	t.state.feed = &PriceFeed{Decimals: decimals, Prices: []uint64{initial}}
	return nil
}

func (t *memTx) Price(ctx context.Context, index uint32) (uint64, error) {
	if t.state.feed == nil {
		return 0, ErrNotInitialized
	}
	if int(index) >= len(t.state.feed.Prices) {
		return 0, fmt.Errorf("price %d of %d: %w", index, len(t.state.feed.Prices), ErrPriceOutOfRange)
	}
	return t.state.feed.Prices[index], nil
}

func (t *memTx) Prices(ctx context.Context) ([]uint64, error) {
	if t.state.feed == nil {
		return nil, ErrNotInitialized
	}
	return slices.Clone(t.state.feed.Prices), nil
}

func (t *memTx) AppendPrice(ctx context.Context, value uint64) (uint32, error) {
	if err := t.write(); err != nil {
		return 0, err
	}
	if t.state.feed == nil {
		return 0, ErrNotInitialized
	}
	if len(t.state.feed.Prices) >= math.MaxUint32 {
		return 0, ErrArithmeticOverflow
	}
	t.state.feed.Prices = append(t.state.feed.Prices, value)
	return uint32(len(t.state.feed.Prices) - 1), nil
}

func (t *memTx) GameCount(ctx context.Context) (uint32, error) {
	if !t.state.hasLedger {
		return 0, ErrNotInitialized
	}
	return uint32(len(t.state.ledger)), nil
}

func (t *memTx) CreateLedger(ctx context.Context) error {
	if err := t.write(); err != nil {
		return err
	}
	if t.state.hasLedger {
		return ErrAlreadyInitialized
	}
	t.state.hasLedger = true
	return nil
}

func (t *memTx) Game(ctx context.Context, index uint32) (Game, error) {
	if !t.state.hasLedger {
		return Game{}, ErrNotInitialized
	}
	if int(index) >= len(t.state.ledger) {
		return Game{}, ErrGameNotFound
	}
	return t.state.ledger[index].Clone(), nil
}

func (t *memTx) Games(ctx context.Context, offset, limit uint32) ([]Game, error) {
	if !t.state.hasLedger {
		return nil, ErrNotInitialized
	}
	n := uint32(len(t.state.ledger))
	if offset >= n {
		return []Game{}, nil
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	games := make([]Game, 0, end-offset)
	for _, g := range t.state.ledger[offset:end] {
		games = append(games, g.Clone())
	}
	return games, nil
}

func (t *memTx) AppendGame(ctx context.Context, g Game) (uint32, error) {
	if err := t.write(); err != nil {
		return 0, err
	}
	if !t.state.hasLedger {
		return 0, ErrNotInitialized
	}
	if len(t.state.ledger) >= math.MaxUint32 {
		return 0, ErrArithmeticOverflow
	}
	t.state.ledger = append(t.state.ledger, g.Clone())
	return uint32(len(t.state.ledger) - 1), nil
}

func (t *memTx) PutGame(ctx context.Context, index uint32, g Game) error {
	if err := t.write(); err != nil {
		return err
	}
	if !t.state.hasLedger {
		return ErrNotInitialized
	}
	if int(index) >= len(t.state.ledger) {
		return ErrGameNotFound
	}
	t.state.ledger[index] = g.Clone()
	return nil
}

func (t *memTx) Vault(ctx context.Context) (Vault, error) {
	if t.state.vault == nil {
		return Vault{}, ErrNotInitialized
	}
	return *t.state.vault, nil
}

func (t *memTx) CreateVault(ctx context.Context, v Vault) error {
	if err := t.write(); err != nil {
		return err
	}
	if t.state.vault != nil {
		return ErrAlreadyInitialized
	}
	t.state.vault = &v
	return nil
}

func (t *memTx) Balance(ctx context.Context, denomination, account Address) (uint64, error) {
	return t.state.balances[balanceKey{denomination, account}], nil
}

func (t *memTx) Transfer(ctx context.Context, denomination, from, to Address, amount uint64) error {
	if err := t.write(); err != nil {
		return err
	}
	fromKey := balanceKey{denomination, from}
	toKey := balanceKey{denomination, to}

	if t.state.balances[fromKey] < amount {
		return ErrInsufficientFunds
	}
	t.state.balances[fromKey] -= amount
	if t.state.balances[toKey] > math.MaxUint64-amount {
		return ErrArithmeticOverflow
	}
	t.state.balances[toKey] += amount

	t.state.transfers = append(t.state.transfers, Transfer{
		Ref:          uuid.New().String(),
		Denomination: denomination,
		From:         from,
		To:           to,
		Amount:       amount,
		CreatedAt:    time.Now().UTC(),
	})
	return nil
}
