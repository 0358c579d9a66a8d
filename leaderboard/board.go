// Package leaderboard ranks participants by realized profit from settled
// games.
package leaderboard

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"h2hServer/market"
)

// Entry is one participant's standing. Pnl is a signed decimal string in
// token base units.
type Entry struct {
	Rank    int            `json:"rank"`
	Address market.Address `json:"address"`
	Pnl     string         `json:"pnl"`
	Wins    int            `json:"wins"`
	Losses  int            `json:"losses"`
}

type record struct {
	pnl    *big.Int
	wins   int
	losses int
}

// Board implements market.Observer. A settlement moves the loser's stake to
// the winner, so each settled game adds Amount to one side and subtracts it
// from the other.
type Board struct {
	mu      sync.RWMutex
	records map[market.Address]*record
}

func New() *Board {
	return &Board{records: make(map[market.Address]*record)}
}

// Rebuild replaces the board with standings computed from the ledger.
func (b *Board) Rebuild(ctx context.Context, program *market.Program) error {
	games, err := program.Games(ctx, 0, 0)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = make(map[market.Address]*record)
	for _, g := range games {
		b.apply(g)
	}
	return nil
}

func (b *Board) Observe(ev market.Event) {
	if ev.Type != market.EventGameSettled || ev.Game == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apply(*ev.Game)
}

func (b *Board) get(addr market.Address) *record {
	r, ok := b.records[addr]
	if !ok {
		r = &record{pnl: new(big.Int)}
		b.records[addr] = r
	}
	return r
}

func (b *Board) apply(g market.Game) {
	if g.Status() != market.StatusSettled || g.Opponent == nil {
		return
	}
	winner, loser := g.Host, *g.Opponent
	if !*g.Result {
		winner, loser = loser, winner
	}
	amount := new(big.Int).SetUint64(g.Amount)

	w := b.get(winner)
	w.pnl.Add(w.pnl, amount)
	w.wins++

	l := b.get(loser)
	l.pnl.Sub(l.pnl, amount)
	l.losses++
}

func (b *Board) ranked() []Entry {
	entries := make([]Entry, 0, len(b.records))
	pnls := make(map[market.Address]*big.Int, len(b.records))
	for addr, r := range b.records {
		entries = append(entries, Entry{Address: addr, Pnl: r.pnl.String(), Wins: r.wins, Losses: r.losses})
		pnls[addr] = r.pnl
	}
	sort.Slice(entries, func(i, j int) bool {
		if c := pnls[entries[i].Address].Cmp(pnls[entries[j].Address]); c != 0 {
			return c > 0
		}
		return entries[i].Address.Cmp(entries[j].Address) < 0
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Top returns the best limit entries.
func (b *Board) Top(limit int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := b.ranked()
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Position returns addr's entry, or false if it never settled a game.
func (b *Board) Position(addr market.Address) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.records[addr]; !ok {
		return Entry{}, false
	}
	for _, e := range b.ranked() {
		if e.Address == addr {
			return e, true
		}
	}
	return Entry{}, false
}
