package market

import (
	"context"
	"time"
)

// Store runs units of work against the persisted program state. Update must
// apply every write made by fn or none of them; View must see a consistent
// snapshot.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the view of the four persisted regions plus the token service inside
// one unit of work. Accessors for a region that was never created return
// ErrNotInitialized.
type Tx interface {
	Config(ctx context.Context) (Config, error)
	CreateConfig(ctx context.Context, cfg Config) error

	FeedInfo(ctx context.Context) (FeedInfo, error)
	CreateFeed(ctx context.Context, decimals uint8, initial uint64) error
	Price(ctx context.Context, index uint32) (uint64, error)
	Prices(ctx context.Context) ([]uint64, error)
	AppendPrice(ctx context.Context, value uint64) (uint32, error)

	GameCount(ctx context.Context) (uint32, error)
	CreateLedger(ctx context.Context) error
	// Game returns ErrGameNotFound for an index past the end of the ledger.
	Game(ctx context.Context, index uint32) (Game, error)
	Games(ctx context.Context, offset, limit uint32) ([]Game, error)
	AppendGame(ctx context.Context, g Game) (uint32, error)
	PutGame(ctx context.Context, index uint32, g Game) error

	Vault(ctx context.Context) (Vault, error)
	CreateVault(ctx context.Context, v Vault) error

	// Balance and Transfer are the token service. Transfer fails with
	// ErrInsufficientFunds when from holds less than amount.
	Balance(ctx context.Context, denomination, account Address) (uint64, error)
	Transfer(ctx context.Context, denomination, from, to Address, amount uint64) error
}

// Transfer is one journaled token movement.
type Transfer struct {
	Ref          string    `json:"ref"`
	Denomination Address   `json:"denomination"`
	From         Address   `json:"from"`
	To           Address   `json:"to"`
	Amount       uint64    `json:"amount,string"`
	CreatedAt    time.Time `json:"createdAt"`
}
