// Package market implements the head-to-head price-prediction escrow: the
// config, price feed, game ledger and vault, and the operations that move
// stakes between participants and the vault.
package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Program executes operations one at a time, each inside a single Store
// update. Every check runs before the first write so a rejected operation
// leaves no trace.
type Program struct {
	store     Store
	log       *zap.Logger
	observers []Observer
	record    func(op string, err error)
	now       func() time.Time

	mu sync.Mutex
}

type Option func(*Program)

func WithLogger(log *zap.Logger) Option {
	return func(p *Program) { p.log = log }
}

func WithObserver(o Observer) Option {
	return func(p *Program) { p.observers = append(p.observers, o) }
}

// WithRecorder registers a hook called after every operation, successful or
// not.
func WithRecorder(fn func(op string, err error)) Option {
	return func(p *Program) { p.record = fn }
}

func WithClock(now func() time.Time) Option {
	return func(p *Program) { p.now = now }
}

func NewProgram(store Store, opts ...Option) *Program {
	p := &Program{
		store:  store,
		log:    zap.NewNop(),
		record: func(string, error) {},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Program) execute(ctx context.Context, op string, caller Address, fn func(tx Tx) (Event, error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ev Event
	err := p.store.Update(ctx, func(tx Tx) error {
		var err error
		ev, err = fn(tx)
		return err
	})
	p.record(op, err)
	if err != nil {
		p.log.Debug("operation rejected",
			zap.String("op", op),
			zap.Stringer("caller", caller),
			zap.String("code", Code(err)),
			zap.Error(err),
		)
		return err
	}

	ev.Caller = caller
	ev.Time = p.now().UTC()
	fields := []zap.Field{zap.String("op", op), zap.Stringer("caller", caller)}
	if ev.GameIndex != nil {
		fields = append(fields, zap.Uint32("game", *ev.GameIndex))
	}
	p.log.Info("operation committed", fields...)

	for _, o := range p.observers {
		o.Observe(ev)
	}
	return nil
}

/* =========================
   INITIALIZATION
========================= */

func exists(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotInitialized):
		return false, nil
	default:
		return false, err
	}
}

// InitializeConfig creates the config singleton with caller as admin.
func (p *Program) InitializeConfig(ctx context.Context, caller Address, args ConfigArgs) error {
	return p.execute(ctx, "initializeConfig", caller, func(tx Tx) (Event, error) {
		_, err := tx.Config(ctx)
		if ok, err := exists(err); err != nil {
			return Event{}, err
		} else if ok {
			return Event{}, fmt.Errorf("config: %w", ErrAlreadyInitialized)
		}

		if args.BetSize == 0 {
			return Event{}, fmt.Errorf("%w: bet size must be > 0", ErrInvalidConfig)
		}
		if args.Denomination == (Address{}) {
			return Event{}, fmt.Errorf("%w: denomination is required", ErrInvalidConfig)
		}
		if args.ThresholdDecimals > MaxThresholdDecimals {
			return Event{}, fmt.Errorf("%w: threshold decimals must be <= %d", ErrInvalidConfig, MaxThresholdDecimals)
		}

		cfg := Config{
			Admin:        caller,
			Denomination: args.Denomination,
			BetSize:      args.BetSize,
			Thresholds: Thresholds{
				JoinPercent: args.JoinThresholdPercent,
				WinPercent:  args.WinThresholdPercent,
				Decimals:    args.ThresholdDecimals,
			},
		}
		if err := tx.CreateConfig(ctx, cfg); err != nil {
			return Event{}, fmt.Errorf("create config: %w", err)
		}
		return Event{Type: EventConfigInitialized, Amount: cfg.BetSize}, nil
	})
}

// InitializePrices creates the price feed with one seed price.
func (p *Program) InitializePrices(ctx context.Context, caller Address, initialPrice uint64, decimals uint8) error {
	return p.execute(ctx, "initializePrices", caller, func(tx Tx) (Event, error) {
		_, err := tx.FeedInfo(ctx)
		if ok, err := exists(err); err != nil {
			return Event{}, err
		} else if ok {
			return Event{}, fmt.Errorf("prices: %w", ErrAlreadyInitialized)
		}
		if initialPrice == 0 {
			return Event{}, ErrInvalidPrice
		}

		if err := tx.CreateFeed(ctx, decimals, initialPrice); err != nil {
			return Event{}, fmt.Errorf("create price feed: %w", err)
		}
		return Event{Type: EventPricesInitialized, PriceIndex: ptr(uint32(0)), Price: initialPrice}, nil
	})
}

// InitializeGames creates the empty game ledger.
func (p *Program) InitializeGames(ctx context.Context, caller Address) error {
	return p.execute(ctx, "initializeGames", caller, func(tx Tx) (Event, error) {
		_, err := tx.GameCount(ctx)
		if ok, err := exists(err); err != nil {
			return Event{}, err
		} else if ok {
			return Event{}, fmt.Errorf("games: %w", ErrAlreadyInitialized)
		}

		if err := tx.CreateLedger(ctx); err != nil {
			return Event{}, fmt.Errorf("create game ledger: %w", err)
		}
		return Event{Type: EventGamesInitialized}, nil
	})
}

// InitializeVault creates the custodial account for the configured
// denomination.
func (p *Program) InitializeVault(ctx context.Context, caller Address, denomination Address) error {
	return p.execute(ctx, "initializeVault", caller, func(tx Tx) (Event, error) {
		_, err := tx.Vault(ctx)
		if ok, err := exists(err); err != nil {
			return Event{}, err
		} else if ok {
			return Event{}, fmt.Errorf("vault: %w", ErrAlreadyInitialized)
		}

		cfg, err := tx.Config(ctx)
		if err != nil {
			return Event{}, fmt.Errorf("config: %w", err)
		}
		if denomination != cfg.Denomination {
			return Event{}, ErrInvalidDenomination
		}

		vault := Vault{Account: VaultAccount, Denomination: denomination}
		if err := tx.CreateVault(ctx, vault); err != nil {
			return Event{}, fmt.Errorf("create vault: %w", err)
		}
		balance, err := tx.Balance(ctx, denomination, vault.Account)
		if err != nil {
			return Event{}, err
		}
		return Event{Type: EventVaultInitialized, VaultBalance: balance}, nil
	})
}

/* =========================
   PRICE FEED
========================= */

// AddPrice appends value to the feed. Only the admin may call it.
func (p *Program) AddPrice(ctx context.Context, caller Address, value uint64) (uint32, error) {
	var index uint32
	err := p.execute(ctx, "addPrice", caller, func(tx Tx) (Event, error) {
		cfg, err := tx.Config(ctx)
		if err != nil {
			return Event{}, fmt.Errorf("config: %w", err)
		}
		if caller != cfg.Admin {
			return Event{}, ErrUnauthorized
		}
		if value == 0 {
			return Event{}, ErrInvalidPrice
		}

		index, err = tx.AppendPrice(ctx, value)
		if err != nil {
			return Event{}, fmt.Errorf("append price: %w", err)
		}
		return Event{Type: EventPriceAdded, PriceIndex: ptr(index), Price: value}, nil
	})
	return index, err
}

/* =========================
   GAMES
========================= */

type escrow struct {
	cfg   Config
	vault Vault
}

func loadEscrow(ctx context.Context, tx Tx) (escrow, error) {
	cfg, err := tx.Config(ctx)
	if err != nil {
		return escrow{}, fmt.Errorf("config: %w", err)
	}
	vault, err := tx.Vault(ctx)
	if err != nil {
		return escrow{}, fmt.Errorf("vault: %w", err)
	}
	return escrow{cfg: cfg, vault: vault}, nil
}

func (e escrow) deposit(ctx context.Context, tx Tx, from Address, amount uint64) error {
	if err := tx.Transfer(ctx, e.vault.Denomination, from, e.vault.Account, amount); err != nil {
		return fmt.Errorf("escrow %d: %w", amount, err)
	}
	return nil
}

func (e escrow) payout(ctx context.Context, tx Tx, to Address, amount uint64) error {
	if err := tx.Transfer(ctx, e.vault.Denomination, e.vault.Account, to, amount); err != nil {
		return fmt.Errorf("payout %d: %w", amount, err)
	}
	return nil
}

func (e escrow) balance(ctx context.Context, tx Tx) (uint64, error) {
	return tx.Balance(ctx, e.vault.Denomination, e.vault.Account)
}

func loadGame(ctx context.Context, tx Tx, index uint32) (Game, error) {
	count, err := tx.GameCount(ctx)
	if err != nil {
		return Game{}, fmt.Errorf("games: %w", err)
	}
	if index >= count {
		return Game{}, fmt.Errorf("game %d: %w", index, ErrGameNotFound)
	}
	return tx.Game(ctx, index)
}

func loadMove(ctx context.Context, tx Tx, g Game) (Move, error) {
	info, err := tx.FeedInfo(ctx)
	if err != nil {
		return Move{}, fmt.Errorf("prices: %w", err)
	}
	ref, err := tx.Price(ctx, g.PriceIndex)
	if err != nil {
		return Move{}, fmt.Errorf("reference price %d: %w", g.PriceIndex, err)
	}
	cur, err := tx.Price(ctx, info.Last())
	if err != nil {
		return Move{}, fmt.Errorf("current price: %w", err)
	}
	return Move{Reference: ref, Current: cur}, nil
}

// CreateGame escrows the bet size from caller and opens a game against the
// current price. It returns the new game's index.
func (p *Program) CreateGame(ctx context.Context, caller Address, prediction bool) (uint32, error) {
	var index uint32
	err := p.execute(ctx, "createGame", caller, func(tx Tx) (Event, error) {
		e, err := loadEscrow(ctx, tx)
		if err != nil {
			return Event{}, err
		}
		info, err := tx.FeedInfo(ctx)
		if err != nil {
			return Event{}, fmt.Errorf("prices: %w", err)
		}
		if _, err := tx.GameCount(ctx); err != nil {
			return Event{}, fmt.Errorf("games: %w", err)
		}

		if err := e.deposit(ctx, tx, caller, e.cfg.BetSize); err != nil {
			return Event{}, err
		}
		g := NewGame(caller, prediction, e.cfg.BetSize, info.Last())
		index, err = tx.AppendGame(ctx, g)
		if err != nil {
			return Event{}, fmt.Errorf("append game: %w", err)
		}

		balance, err := e.balance(ctx, tx)
		if err != nil {
			return Event{}, err
		}
		return Event{
			Type:         EventGameCreated,
			GameIndex:    ptr(index),
			Game:         &g,
			PriceIndex:   ptr(g.PriceIndex),
			Amount:       g.Amount,
			VaultBalance: balance,
		}, nil
	})
	return index, err
}

// WithdrawFromGame refunds the host of a game nobody has joined and closes it.
func (p *Program) WithdrawFromGame(ctx context.Context, caller Address, index uint32) error {
	return p.execute(ctx, "withdrawFromGame", caller, func(tx Tx) (Event, error) {
		e, err := loadEscrow(ctx, tx)
		if err != nil {
			return Event{}, err
		}
		g, err := loadGame(ctx, tx, index)
		if err != nil {
			return Event{}, err
		}

		if g.IsClosed {
			return Event{}, fmt.Errorf("game %d: %w", index, ErrGameAlreadyClosed)
		}
		if caller != g.Host {
			return Event{}, fmt.Errorf("game %d: %w", index, ErrUnauthorizedWithdrawal)
		}
		if g.Joined() {
			return Event{}, fmt.Errorf("game %d: %w", index, ErrWithdrawalNotAllowed)
		}

		if err := e.payout(ctx, tx, g.Host, g.Amount); err != nil {
			return Event{}, err
		}
		g.close()
		if err := tx.PutGame(ctx, index, g); err != nil {
			return Event{}, fmt.Errorf("put game %d: %w", index, err)
		}

		balance, err := e.balance(ctx, tx)
		if err != nil {
			return Event{}, err
		}
		return Event{
			Type:         EventGameWithdrawn,
			GameIndex:    ptr(index),
			Game:         &g,
			Amount:       g.Amount,
			VaultBalance: balance,
		}, nil
	})
}

// JoinGame takes the opposite side of an open game while the price is still
// within the join threshold of the game's reference price.
func (p *Program) JoinGame(ctx context.Context, caller Address, index uint32) error {
	return p.execute(ctx, "joinGame", caller, func(tx Tx) (Event, error) {
		e, err := loadEscrow(ctx, tx)
		if err != nil {
			return Event{}, err
		}
		g, err := loadGame(ctx, tx, index)
		if err != nil {
			return Event{}, err
		}

		if g.IsClosed {
			return Event{}, fmt.Errorf("game %d: %w", index, ErrGameAlreadyClosed)
		}
		if caller == g.Host {
			return Event{}, fmt.Errorf("game %d: %w", index, ErrCannotJoinOwnGame)
		}
		if g.Joined() {
			return Event{}, fmt.Errorf("game %d: %w", index, ErrGameAlreadyJoined)
		}

		move, err := loadMove(ctx, tx, g)
		if err != nil {
			return Event{}, err
		}
		ok, err := CanJoin(move, e.cfg.Thresholds)
		if err != nil {
			return Event{}, err
		}
		if !ok {
			return Event{}, fmt.Errorf("game %d: %w", index, ErrPriceMovedTooMuch)
		}

		if err := e.deposit(ctx, tx, caller, g.Amount); err != nil {
			return Event{}, err
		}
		g.join(caller)
		if err := tx.PutGame(ctx, index, g); err != nil {
			return Event{}, fmt.Errorf("put game %d: %w", index, err)
		}

		balance, err := e.balance(ctx, tx)
		if err != nil {
			return Event{}, err
		}
		return Event{
			Type:         EventGameJoined,
			GameIndex:    ptr(index),
			Game:         &g,
			Price:        move.Current,
			Amount:       g.Amount,
			VaultBalance: balance,
		}, nil
	})
}

// ClaimWinnings settles a joined game once the price has moved by the win
// threshold and pays both stakes to the winner. Only the winner may call it.
// It returns the amount paid.
func (p *Program) ClaimWinnings(ctx context.Context, caller Address, index uint32) (uint64, error) {
	var paid uint64
	err := p.execute(ctx, "claimWinnings", caller, func(tx Tx) (Event, error) {
		e, err := loadEscrow(ctx, tx)
		if err != nil {
			return Event{}, err
		}
		g, err := loadGame(ctx, tx, index)
		if err != nil {
			return Event{}, err
		}

		if !g.Joined() {
			return Event{}, fmt.Errorf("game %d: %w", index, ErrGameNotStarted)
		}
		if g.IsClosed {
			return Event{}, fmt.Errorf("game %d: %w", index, ErrGameAlreadyClosed)
		}

		move, err := loadMove(ctx, tx, g)
		if err != nil {
			return Event{}, err
		}
		finished, priceWentUp, err := Resolve(move, e.cfg.Thresholds)
		if err != nil {
			return Event{}, err
		}
		if !finished {
			return Event{}, fmt.Errorf("game %d: %w", index, ErrGameNotFinished)
		}

		hostWon := HostWon(g.HostPrediction, priceWentUp)
		winner := g.Host
		if !hostWon {
			winner = *g.Opponent
		}
		if caller != winner {
			return Event{}, fmt.Errorf("game %d: %w", index, ErrSignerNotWinner)
		}

		if g.Amount > math.MaxUint64/2 {
			return Event{}, ErrArithmeticOverflow
		}
		paid = 2 * g.Amount
		if err := e.payout(ctx, tx, winner, paid); err != nil {
			return Event{}, err
		}
		g.settle(hostWon)
		if err := tx.PutGame(ctx, index, g); err != nil {
			return Event{}, fmt.Errorf("put game %d: %w", index, err)
		}

		balance, err := e.balance(ctx, tx)
		if err != nil {
			return Event{}, err
		}
		return Event{
			Type:         EventGameSettled,
			GameIndex:    ptr(index),
			Game:         &g,
			Price:        move.Current,
			Amount:       paid,
			VaultBalance: balance,
		}, nil
	})
	if err != nil {
		return 0, err
	}
	return paid, nil
}

func ptr[T any](v T) *T {
	return &v
}

/* =========================
   QUERIES
========================= */

func (p *Program) Config(ctx context.Context) (cfg Config, err error) {
	err = p.store.View(ctx, func(tx Tx) error {
		cfg, err = tx.Config(ctx)
		return err
	})
	return cfg, err
}

func (p *Program) PriceFeed(ctx context.Context) (feed PriceFeed, err error) {
	err = p.store.View(ctx, func(tx Tx) error {
		info, err := tx.FeedInfo(ctx)
		if err != nil {
			return err
		}
		prices, err := tx.Prices(ctx)
		if err != nil {
			return err
		}
		feed = PriceFeed{Decimals: info.Decimals, Prices: prices}
		return nil
	})
	return feed, err
}

// CurrentPrice returns the last price in the feed and its index.
func (p *Program) CurrentPrice(ctx context.Context) (index uint32, price uint64, decimals uint8, err error) {
	err = p.store.View(ctx, func(tx Tx) error {
		info, err := tx.FeedInfo(ctx)
		if err != nil {
			return err
		}
		index, decimals = info.Last(), info.Decimals
		price, err = tx.Price(ctx, index)
		return err
	})
	return index, price, decimals, err
}

func (p *Program) GameCount(ctx context.Context) (n uint32, err error) {
	err = p.store.View(ctx, func(tx Tx) error {
		n, err = tx.GameCount(ctx)
		return err
	})
	return n, err
}

func (p *Program) Game(ctx context.Context, index uint32) (g Game, err error) {
	err = p.store.View(ctx, func(tx Tx) error {
		g, err = loadGame(ctx, tx, index)
		return err
	})
	return g, err
}

// Games pages through the ledger in index order. A zero limit returns
// everything from offset.
func (p *Program) Games(ctx context.Context, offset, limit uint32) (games []Game, err error) {
	err = p.store.View(ctx, func(tx Tx) error {
		games, err = tx.Games(ctx, offset, limit)
		return err
	})
	return games, err
}

// Vault returns the vault and the balance it currently holds.
func (p *Program) Vault(ctx context.Context) (v Vault, balance uint64, err error) {
	err = p.store.View(ctx, func(tx Tx) error {
		v, err = tx.Vault(ctx)
		if err != nil {
			return err
		}
		balance, err = tx.Balance(ctx, v.Denomination, v.Account)
		return err
	})
	return v, balance, err
}

// Balance returns what account holds of the configured denomination.
func (p *Program) Balance(ctx context.Context, account Address) (balance uint64, err error) {
	err = p.store.View(ctx, func(tx Tx) error {
		cfg, err := tx.Config(ctx)
		if err != nil {
			return err
		}
		balance, err = tx.Balance(ctx, cfg.Denomination, account)
		return err
	})
	return balance, err
}

// Outlook evaluates a game against the current price without changing it.
type Outlook struct {
	Index          uint32     `json:"index"`
	Game           Game       `json:"game"`
	Status         GameStatus `json:"status"`
	ReferencePrice uint64     `json:"referencePrice,string"`
	CurrentPrice   uint64     `json:"currentPrice,string"`
	// absolute move in percent scaled by the config's threshold decimals
	MovePercent uint64   `json:"movePercent,string"`
	Joinable    bool     `json:"joinable"`
	Claimable   bool     `json:"claimable"`
	Winner      *Address `json:"winner,omitempty"`
}

func (p *Program) Outlook(ctx context.Context, index uint32) (o Outlook, err error) {
	err = p.store.View(ctx, func(tx Tx) error {
		cfg, err := tx.Config(ctx)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		g, err := loadGame(ctx, tx, index)
		if err != nil {
			return err
		}
		move, err := loadMove(ctx, tx, g)
		if err != nil {
			return err
		}
		pct, err := move.Percent(cfg.Decimals)
		if err != nil {
			return err
		}

		o = Outlook{
			Index:          index,
			Game:           g,
			Status:         g.Status(),
			ReferencePrice: move.Reference,
			CurrentPrice:   move.Current,
			MovePercent:    pct,
		}
		switch o.Status {
		case StatusOpen:
			if o.Joinable, err = CanJoin(move, cfg.Thresholds); err != nil {
				return err
			}
		case StatusJoined:
			finished, up, err := Resolve(move, cfg.Thresholds)
			if err != nil {
				return err
			}
			if finished {
				o.Claimable = true
				winner := g.Host
				if !HostWon(g.HostPrediction, up) {
					winner = *g.Opponent
				}
				o.Winner = &winner
			}
		}
		return nil
	})
	return o, err
}
