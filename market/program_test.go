package market

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBetSize      = 1000
	testStartBalance = 10_000
	testPrice        = 1500_000_000_000
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	host     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	opponent = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	outsider = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	denom    = common.HexToAddress("0x00000000000000000000000000000000000000e5")
)

type fixture struct {
	ctx    context.Context
	store  *MemoryStore
	prog   *Program
	events []Event
	ops    map[string]int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: NewMemoryStore(),
		ops:   make(map[string]int),
	}
	f.prog = NewProgram(f.store,
		WithObserver(ObserverFunc(func(ev Event) { f.events = append(f.events, ev) })),
		WithRecorder(func(op string, err error) { f.ops[op]++ }),
	)
	return f
}

// newMarket returns a fixture with every region initialized and funded
// participants.
func newMarket(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	require.NoError(t, f.prog.InitializeConfig(f.ctx, admin, ConfigArgs{
		Denomination:         denom,
		BetSize:              testBetSize,
		JoinThresholdPercent: 100,
		WinThresholdPercent:  500,
		ThresholdDecimals:    2,
	}))
	require.NoError(t, f.prog.InitializePrices(f.ctx, admin, testPrice, 9))
	require.NoError(t, f.prog.InitializeGames(f.ctx, admin))
	require.NoError(t, f.prog.InitializeVault(f.ctx, admin, denom))
	for _, who := range []Address{host, opponent, outsider} {
		require.NoError(t, f.store.Mint(f.ctx, denom, who, testStartBalance))
	}
	return f
}

func (f *fixture) balance(t *testing.T, who Address) uint64 {
	t.Helper()
	b, err := f.prog.Balance(f.ctx, who)
	require.NoError(t, err)
	return b
}

func (f *fixture) vaultBalance(t *testing.T) uint64 {
	t.Helper()
	_, b, err := f.prog.Vault(f.ctx)
	require.NoError(t, err)
	return b
}

func (f *fixture) game(t *testing.T, index uint32) Game {
	t.Helper()
	g, err := f.prog.Game(f.ctx, index)
	require.NoError(t, err)
	return g
}

func (f *fixture) addPrice(t *testing.T, value uint64) {
	t.Helper()
	_, err := f.prog.AddPrice(f.ctx, admin, value)
	require.NoError(t, err)
}

func (f *fixture) total(t *testing.T) uint64 {
	t.Helper()
	return f.balance(t, host) + f.balance(t, opponent) + f.balance(t, outsider) + f.vaultBalance(t)
}

func TestInitialization(t *testing.T) {
	t.Run("regions start uninitialized", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.prog.Config(f.ctx)
		assert.ErrorIs(t, err, ErrNotInitialized)
		_, err = f.prog.PriceFeed(f.ctx)
		assert.ErrorIs(t, err, ErrNotInitialized)
		_, err = f.prog.GameCount(f.ctx)
		assert.ErrorIs(t, err, ErrNotInitialized)
		_, _, err = f.prog.Vault(f.ctx)
		assert.ErrorIs(t, err, ErrNotInitialized)
	})

	t.Run("config fields", func(t *testing.T) {
		f := newMarket(t)
		cfg, err := f.prog.Config(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, admin, cfg.Admin)
		assert.Equal(t, denom, cfg.Denomination)
		assert.Equal(t, uint64(testBetSize), cfg.BetSize)
		assert.Equal(t, Thresholds{JoinPercent: 100, WinPercent: 500, Decimals: 2}, cfg.Thresholds)

		feed, err := f.prog.PriceFeed(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, []uint64{testPrice}, feed.Prices)
		assert.Equal(t, uint8(9), feed.Decimals)

		n, err := f.prog.GameCount(f.ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		v, bal, err := f.prog.Vault(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, VaultAccount, v.Account)
		assert.Equal(t, denom, v.Denomination)
		assert.Zero(t, bal)
	})

	t.Run("second initialization fails and changes nothing", func(t *testing.T) {
		f := newMarket(t)
		err := f.prog.InitializeConfig(f.ctx, outsider, ConfigArgs{Denomination: denom, BetSize: 5})
		assert.ErrorIs(t, err, ErrAlreadyInitialized)
		cfg, err := f.prog.Config(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, admin, cfg.Admin)
		assert.Equal(t, uint64(testBetSize), cfg.BetSize)

		assert.ErrorIs(t, f.prog.InitializePrices(f.ctx, admin, 7, 2), ErrAlreadyInitialized)
		assert.ErrorIs(t, f.prog.InitializeGames(f.ctx, admin), ErrAlreadyInitialized)
		assert.ErrorIs(t, f.prog.InitializeVault(f.ctx, admin, denom), ErrAlreadyInitialized)

		feed, err := f.prog.PriceFeed(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, []uint64{testPrice}, feed.Prices)
	})

	t.Run("invalid config", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.prog.InitializeConfig(f.ctx, admin, ConfigArgs{Denomination: denom}), ErrInvalidConfig)
		assert.ErrorIs(t, f.prog.InitializeConfig(f.ctx, admin, ConfigArgs{BetSize: 1}), ErrInvalidConfig)
		assert.ErrorIs(t, f.prog.InitializeConfig(f.ctx, admin, ConfigArgs{
			Denomination: denom, BetSize: 1, ThresholdDecimals: MaxThresholdDecimals + 1,
		}), ErrInvalidConfig)
		_, err := f.prog.Config(f.ctx)
		assert.ErrorIs(t, err, ErrNotInitialized)
	})

	t.Run("zero seed price", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.prog.InitializePrices(f.ctx, admin, 0, 9), ErrInvalidPrice)
	})

	t.Run("vault denomination must match config", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.prog.InitializeVault(f.ctx, admin, denom), ErrNotInitialized)
		require.NoError(t, f.prog.InitializeConfig(f.ctx, admin, ConfigArgs{Denomination: denom, BetSize: 1}))
		assert.ErrorIs(t, f.prog.InitializeVault(f.ctx, admin, outsider), ErrInvalidDenomination)
	})
}

func TestAddPrice(t *testing.T) {
	f := newMarket(t)

	idx, err := f.prog.AddPrice(f.ctx, admin, 1510_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), idx)

	_, err = f.prog.AddPrice(f.ctx, host, 1520_000_000_000)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.prog.AddPrice(f.ctx, admin, 0)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = f.prog.AddPrice(f.ctx, host, 0)
	assert.ErrorIs(t, err, ErrUnauthorized, "authorization is checked before the value")

	idx, price, decimals, err := f.prog.CurrentPrice(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), idx)
	assert.Equal(t, uint64(1510_000_000_000), price)
	assert.Equal(t, uint8(9), decimals)

	feed, err := f.prog.PriceFeed(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{testPrice, 1510_000_000_000}, feed.Prices)
}

func TestCreateAndWithdraw(t *testing.T) {
	f := newMarket(t)

	idx, err := f.prog.CreateGame(f.ctx, host, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), idx)

	g := f.game(t, 0)
	assert.Equal(t, host, g.Host)
	assert.Nil(t, g.Opponent)
	assert.Nil(t, g.Result)
	assert.True(t, g.HostPrediction)
	assert.Equal(t, uint64(testBetSize), g.Amount)
	assert.Equal(t, uint32(0), g.PriceIndex)
	assert.Equal(t, StatusOpen, g.Status())
	assert.Equal(t, uint64(testBetSize), f.vaultBalance(t))
	assert.Equal(t, uint64(testStartBalance-testBetSize), f.balance(t, host))

	assert.ErrorIs(t, f.prog.WithdrawFromGame(f.ctx, opponent, 0), ErrUnauthorizedWithdrawal)
	require.NoError(t, f.prog.WithdrawFromGame(f.ctx, host, 0))

	g = f.game(t, 0)
	assert.True(t, g.IsClosed)
	assert.Nil(t, g.Result)
	assert.Equal(t, StatusWithdrawn, g.Status())
	assert.Zero(t, f.vaultBalance(t))
	assert.Equal(t, uint64(testStartBalance), f.balance(t, host))

	assert.ErrorIs(t, f.prog.WithdrawFromGame(f.ctx, host, 0), ErrGameAlreadyClosed)
	assert.ErrorIs(t, f.prog.JoinGame(f.ctx, opponent, 0), ErrGameAlreadyClosed)
}

func TestCreateGameReferencesCurrentPrice(t *testing.T) {
	f := newMarket(t)
	f.addPrice(t, 1501_000_000_000)
	f.addPrice(t, 1502_000_000_000)

	_, err := f.prog.CreateGame(f.ctx, host, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), f.game(t, 0).PriceIndex)
}

func TestCreateGameInsufficientFunds(t *testing.T) {
	f := newMarket(t)
	poor := common.HexToAddress("0x00000000000000000000000000000000000000f6")
	require.NoError(t, f.store.Mint(f.ctx, denom, poor, testBetSize-1))

	_, err := f.prog.CreateGame(f.ctx, poor, true)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	n, err := f.prog.GameCount(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, uint64(testBetSize-1), f.balance(t, poor))
	assert.Zero(t, f.vaultBalance(t))
}

func TestFullGameHostWins(t *testing.T) {
	f := newMarket(t)

	_, err := f.prog.CreateGame(f.ctx, host, true)
	require.NoError(t, err)
	require.NoError(t, f.prog.JoinGame(f.ctx, opponent, 0))

	g := f.game(t, 0)
	require.NotNil(t, g.Opponent)
	assert.Equal(t, opponent, *g.Opponent)
	assert.Equal(t, StatusJoined, g.Status())
	assert.Equal(t, uint64(2*testBetSize), f.vaultBalance(t))
	assert.ErrorIs(t, f.prog.WithdrawFromGame(f.ctx, host, 0), ErrWithdrawalNotAllowed)

	f.addPrice(t, 1575_000_000_000)

	_, err = f.prog.ClaimWinnings(f.ctx, opponent, 0)
	assert.ErrorIs(t, err, ErrSignerNotWinner)

	paid, err := f.prog.ClaimWinnings(f.ctx, host, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2*testBetSize), paid)

	g = f.game(t, 0)
	assert.True(t, g.IsClosed)
	require.NotNil(t, g.Result)
	assert.True(t, *g.Result)
	assert.Equal(t, StatusSettled, g.Status())
	assert.Zero(t, f.vaultBalance(t))
	assert.Equal(t, uint64(testStartBalance+testBetSize), f.balance(t, host))
	assert.Equal(t, uint64(testStartBalance-testBetSize), f.balance(t, opponent))

	_, err = f.prog.ClaimWinnings(f.ctx, opponent, 0)
	assert.ErrorIs(t, err, ErrGameAlreadyClosed)
	_, err = f.prog.ClaimWinnings(f.ctx, host, 0)
	assert.ErrorIs(t, err, ErrGameAlreadyClosed)
}

func TestFullGameOpponentWins(t *testing.T) {
	f := newMarket(t)

	_, err := f.prog.CreateGame(f.ctx, host, true)
	require.NoError(t, err)
	require.NoError(t, f.prog.JoinGame(f.ctx, opponent, 0))
	f.addPrice(t, 1425_000_000_000)

	_, err = f.prog.ClaimWinnings(f.ctx, host, 0)
	assert.ErrorIs(t, err, ErrSignerNotWinner)

	paid, err := f.prog.ClaimWinnings(f.ctx, opponent, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2*testBetSize), paid)

	g := f.game(t, 0)
	require.NotNil(t, g.Result)
	assert.False(t, *g.Result)
	assert.Equal(t, uint64(testStartBalance+testBetSize), f.balance(t, opponent))
}

func TestJoinGame(t *testing.T) {
	t.Run("rejected once price moved by join threshold", func(t *testing.T) {
		f := newMarket(t)
		_, err := f.prog.CreateGame(f.ctx, host, true)
		require.NoError(t, err)
		f.addPrice(t, 1515_000_000_000)

		assert.ErrorIs(t, f.prog.JoinGame(f.ctx, opponent, 0), ErrPriceMovedTooMuch)
		assert.Nil(t, f.game(t, 0).Opponent)
		assert.Equal(t, uint64(testStartBalance), f.balance(t, opponent))
		assert.Equal(t, uint64(testBetSize), f.vaultBalance(t))
	})

	t.Run("allowed just under join threshold", func(t *testing.T) {
		f := newMarket(t)
		_, err := f.prog.CreateGame(f.ctx, host, true)
		require.NoError(t, err)
		f.addPrice(t, 1514_850_000_000)
		assert.NoError(t, f.prog.JoinGame(f.ctx, opponent, 0))
	})

	t.Run("price returning to reference allows join", func(t *testing.T) {
		f := newMarket(t)
		_, err := f.prog.CreateGame(f.ctx, host, true)
		require.NoError(t, err)
		f.addPrice(t, 1600_000_000_000)
		f.addPrice(t, testPrice)
		assert.NoError(t, f.prog.JoinGame(f.ctx, opponent, 0))
	})

	t.Run("error order", func(t *testing.T) {
		f := newMarket(t)
		assert.ErrorIs(t, f.prog.JoinGame(f.ctx, opponent, 0), ErrGameNotFound)

		_, err := f.prog.CreateGame(f.ctx, host, true)
		require.NoError(t, err)
		f.addPrice(t, 1600_000_000_000)
		assert.ErrorIs(t, f.prog.JoinGame(f.ctx, host, 0), ErrCannotJoinOwnGame)

		f.addPrice(t, testPrice)
		require.NoError(t, f.prog.JoinGame(f.ctx, opponent, 0))
		f.addPrice(t, 1600_000_000_000)
		assert.ErrorIs(t, f.prog.JoinGame(f.ctx, outsider, 0), ErrGameAlreadyJoined)
		assert.ErrorIs(t, f.prog.JoinGame(f.ctx, host, 0), ErrCannotJoinOwnGame)
	})
}

func TestClaimWinnings(t *testing.T) {
	t.Run("premature claim", func(t *testing.T) {
		f := newMarket(t)
		_, err := f.prog.CreateGame(f.ctx, host, true)
		require.NoError(t, err)
		require.NoError(t, f.prog.JoinGame(f.ctx, opponent, 0))
		f.addPrice(t, 1545_000_000_000)

		_, err = f.prog.ClaimWinnings(f.ctx, host, 0)
		assert.ErrorIs(t, err, ErrGameNotFinished)
		assert.Equal(t, uint64(2*testBetSize), f.vaultBalance(t))
		assert.False(t, f.game(t, 0).IsClosed)
	})

	t.Run("unchanged price never settles", func(t *testing.T) {
		f := newMarket(t)
		_, err := f.prog.CreateGame(f.ctx, host, true)
		require.NoError(t, err)
		require.NoError(t, f.prog.JoinGame(f.ctx, opponent, 0))

		_, err = f.prog.ClaimWinnings(f.ctx, host, 0)
		assert.ErrorIs(t, err, ErrGameNotFinished)
	})

	t.Run("error order", func(t *testing.T) {
		f := newMarket(t)
		_, err := f.prog.ClaimWinnings(f.ctx, host, 3)
		assert.ErrorIs(t, err, ErrGameNotFound)

		_, err = f.prog.CreateGame(f.ctx, host, true)
		require.NoError(t, err)
		_, err = f.prog.ClaimWinnings(f.ctx, host, 0)
		assert.ErrorIs(t, err, ErrGameNotStarted)

		require.NoError(t, f.prog.WithdrawFromGame(f.ctx, host, 0))
		_, err = f.prog.ClaimWinnings(f.ctx, host, 0)
		assert.ErrorIs(t, err, ErrGameNotStarted, "a withdrawn game was never started")

		_, err = f.prog.CreateGame(f.ctx, host, false)
		require.NoError(t, err)
		require.NoError(t, f.prog.JoinGame(f.ctx, opponent, 1))
		_, err = f.prog.ClaimWinnings(f.ctx, outsider, 1)
		assert.ErrorIs(t, err, ErrGameNotFinished)

		f.addPrice(t, 1600_000_000_000)
		_, err = f.prog.ClaimWinnings(f.ctx, outsider, 1)
		assert.ErrorIs(t, err, ErrSignerNotWinner)
	})
}

func TestWithdrawErrorOrder(t *testing.T) {
	f := newMarket(t)
	assert.ErrorIs(t, f.prog.WithdrawFromGame(f.ctx, host, 0), ErrGameNotFound)

	_, err := f.prog.CreateGame(f.ctx, host, true)
	require.NoError(t, err)
	require.NoError(t, f.prog.JoinGame(f.ctx, opponent, 0))
	assert.ErrorIs(t, f.prog.WithdrawFromGame(f.ctx, opponent, 0), ErrUnauthorizedWithdrawal)
	assert.ErrorIs(t, f.prog.WithdrawFromGame(f.ctx, host, 0), ErrWithdrawalNotAllowed)

	f.addPrice(t, 1600_000_000_000)
	_, err = f.prog.ClaimWinnings(f.ctx, host, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, f.prog.WithdrawFromGame(f.ctx, opponent, 0), ErrGameAlreadyClosed)
}

func TestConservationAndMonotonicity(t *testing.T) {
	f := newMarket(t)
	start := f.total(t)
	var lastCount uint32
	var lastLen int

	check := func() {
		t.Helper()
		assert.Equal(t, start, f.total(t))

		n, err := f.prog.GameCount(f.ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, lastCount)
		lastCount = n

		feed, err := f.prog.PriceFeed(f.ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(feed.Prices), lastLen)
		lastLen = len(feed.Prices)

		var escrowed uint64
		games, err := f.prog.Games(f.ctx, 0, 0)
		require.NoError(t, err)
		for _, g := range games {
			escrowed += g.Escrowed()
		}
		assert.Equal(t, escrowed, f.vaultBalance(t))
	}

	steps := []func() error{
		func() error { _, err := f.prog.CreateGame(f.ctx, host, true); return err },
		func() error { _, err := f.prog.CreateGame(f.ctx, opponent, false); return err },
		func() error { return f.prog.JoinGame(f.ctx, outsider, 0) },
		func() error { return f.prog.JoinGame(f.ctx, outsider, 0) },
		func() error { return f.prog.WithdrawFromGame(f.ctx, opponent, 1) },
		func() error { _, err := f.prog.AddPrice(f.ctx, admin, 1400_000_000_000); return err },
		func() error { _, err := f.prog.ClaimWinnings(f.ctx, host, 0); return err },
		func() error { _, err := f.prog.ClaimWinnings(f.ctx, outsider, 0); return err },
		func() error { _, err := f.prog.CreateGame(f.ctx, host, false); return err },
		func() error { return f.prog.JoinGame(f.ctx, host, 2) },
	}
	for _, step := range steps {
		_ = step()
		check()
	}

	transfers := f.store.Transfers()
	assert.NotEmpty(t, transfers)
	for _, tr := range transfers {
		assert.NotEmpty(t, tr.Ref)
		assert.Equal(t, denom, tr.Denomination)
	}
}

func TestGamesPaging(t *testing.T) {
	f := newMarket(t)
	for i := 0; i < 5; i++ {
		_, err := f.prog.CreateGame(f.ctx, host, i%2 == 0)
		require.NoError(t, err)
	}

	games, err := f.prog.Games(f.ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.False(t, games[0].HostPrediction)
	assert.True(t, games[1].HostPrediction)

	games, err = f.prog.Games(f.ctx, 4, 10)
	require.NoError(t, err)
	assert.Len(t, games, 1)

	games, err = f.prog.Games(f.ctx, 9, 10)
	require.NoError(t, err)
	assert.Empty(t, games)

	_, err = f.prog.Game(f.ctx, 5)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestEventsAndRecorder(t *testing.T) {
	f := newMarket(t)
	_, err := f.prog.CreateGame(f.ctx, host, true)
	require.NoError(t, err)
	_, err = f.prog.AddPrice(f.ctx, host, 1)
	require.Error(t, err)

	types := make([]EventType, 0, len(f.events))
	for _, ev := range f.events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{
		EventConfigInitialized,
		EventPricesInitialized,
		EventGamesInitialized,
		EventVaultInitialized,
		EventGameCreated,
	}, types)

	last := f.events[len(f.events)-1]
	assert.Equal(t, host, last.Caller)
	require.NotNil(t, last.GameIndex)
	assert.Equal(t, uint32(0), *last.GameIndex)
	assert.Equal(t, uint64(testBetSize), last.VaultBalance)
	assert.False(t, last.Time.IsZero())

	assert.Equal(t, 1, f.ops["createGame"])
	assert.Equal(t, 1, f.ops["addPrice"])
}

func TestCode(t *testing.T) {
	assert.Equal(t, "PriceMovedTooMuch", Code(ErrPriceMovedTooMuch))
	assert.Equal(t, "GameNotFound", Code(errors.Join(errors.New("ctx"), ErrGameNotFound)))
	assert.Equal(t, "", Code(errors.New("other")))
}

func TestPriceOutOfRangeHasNoCode(t *testing.T) {
	f := newMarket(t)
	err := f.store.View(f.ctx, func(tx Tx) error {
		_, err := tx.Price(f.ctx, 1)
		return err
	})
	require.ErrorIs(t, err, ErrPriceOutOfRange)
	assert.NotErrorIs(t, err, ErrInvalidPrice)
	assert.Equal(t, "", Code(err))
}

func TestOutlook(t *testing.T) {
	f := newMarket(t)
	_, err := f.prog.CreateGame(f.ctx, host, false)
	require.NoError(t, err)

	o, err := f.prog.Outlook(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, o.Status)
	assert.True(t, o.Joinable)
	assert.False(t, o.Claimable)
	assert.Zero(t, o.MovePercent)

	require.NoError(t, f.prog.JoinGame(f.ctx, opponent, 0))
	f.addPrice(t, 1545_000_000_000)

	o, err = f.prog.Outlook(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusJoined, o.Status)
	assert.Equal(t, uint64(300), o.MovePercent)
	assert.False(t, o.Claimable)
	assert.Nil(t, o.Winner)

	f.addPrice(t, 1600_000_000_000)
	o, err = f.prog.Outlook(f.ctx, 0)
	require.NoError(t, err)
	assert.True(t, o.Claimable)
	require.NotNil(t, o.Winner)
	assert.Equal(t, opponent, *o.Winner)
	assert.Equal(t, uint64(testPrice), o.ReferencePrice)
	assert.Equal(t, uint64(1600_000_000_000), o.CurrentPrice)

	_, err = f.prog.Outlook(f.ctx, 1)
	assert.ErrorIs(t, err, ErrGameNotFound)
}
