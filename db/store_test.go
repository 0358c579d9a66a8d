package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"h2hServer/market"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	host     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	opponent = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	denom    = common.HexToAddress("0x00000000000000000000000000000000000000e5")
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "h2h.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func initMarket(t *testing.T, s *Store) *market.Program {
	t.Helper()
	ctx := context.Background()
	p := market.NewProgram(s)
	require.NoError(t, p.InitializeConfig(ctx, admin, market.ConfigArgs{
		Denomination:         denom,
		BetSize:              1000,
		JoinThresholdPercent: 100,
		WinThresholdPercent:  500,
		ThresholdDecimals:    2,
	}))
	require.NoError(t, p.InitializePrices(ctx, admin, 1500_000_000_000, 9))
	require.NoError(t, p.InitializeGames(ctx, admin))
	require.NoError(t, p.InitializeVault(ctx, admin, denom))
	require.NoError(t, s.Mint(ctx, denom, host, 10_000))
	require.NoError(t, s.Mint(ctx, denom, opponent, 10_000))
	return p
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "", zap.NewNop())
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := `UPDATE games SET host = ?, opponent = ? WHERE idx = ?`
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, `UPDATE games SET host = $1, opponent = $2 WHERE idx = $3`, postgresDialect.rebind(q))
}

func TestUninitializedRegions(t *testing.T) {
	s := openTestStore(t)
	p := market.NewProgram(s)
	ctx := context.Background()

	_, err := p.Config(ctx)
	assert.ErrorIs(t, err, market.ErrNotInitialized)
	_, err = p.PriceFeed(ctx)
	assert.ErrorIs(t, err, market.ErrNotInitialized)
	_, err = p.GameCount(ctx)
	assert.ErrorIs(t, err, market.ErrNotInitialized)
	_, _, err = p.Vault(ctx)
	assert.ErrorIs(t, err, market.ErrNotInitialized)
}

func TestConfigRoundTrip(t *testing.T) {
	s := openTestStore(t)
	p := initMarket(t, s)
	ctx := context.Background()

	cfg, err := p.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin, cfg.Admin)
	assert.Equal(t, denom, cfg.Denomination)
	assert.Equal(t, uint64(1000), cfg.BetSize)
	assert.Equal(t, market.Thresholds{JoinPercent: 100, WinPercent: 500, Decimals: 2}, cfg.Thresholds)

	assert.ErrorIs(t, p.InitializeConfig(ctx, host, market.ConfigArgs{Denomination: denom, BetSize: 1}), market.ErrAlreadyInitialized)
	assert.ErrorIs(t, p.InitializeGames(ctx, admin), market.ErrAlreadyInitialized)
}

func TestFullGameSettles(t *testing.T) {
	s := openTestStore(t)
	p := initMarket(t, s)
	ctx := context.Background()

	idx, err := p.CreateGame(ctx, host, true)
	require.NoError(t, err)
	require.NoError(t, p.JoinGame(ctx, opponent, idx))

	_, err = p.AddPrice(ctx, admin, 1575_000_000_000)
	require.NoError(t, err)

	_, err = p.ClaimWinnings(ctx, opponent, idx)
	assert.ErrorIs(t, err, market.ErrSignerNotWinner)

	paid, err := p.ClaimWinnings(ctx, host, idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), paid)

	g, err := p.Game(ctx, idx)
	require.NoError(t, err)
	require.NotNil(t, g.Opponent)
	assert.Equal(t, opponent, *g.Opponent)
	require.NotNil(t, g.Result)
	assert.True(t, *g.Result)
	assert.True(t, g.IsClosed)

	hostBal, err := p.Balance(ctx, host)
	require.NoError(t, err)
	oppBal, err := p.Balance(ctx, opponent)
	require.NoError(t, err)
	_, vaultBal, err := p.Vault(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(11_000), hostBal)
	assert.Equal(t, uint64(9_000), oppBal)
	assert.Zero(t, vaultBal)

	transfers, err := s.Transfers(ctx)
	require.NoError(t, err)
	require.Len(t, transfers, 3)
	assert.Equal(t, host, transfers[0].From)
	assert.Equal(t, market.VaultAccount, transfers[2].From)
	assert.Equal(t, host, transfers[2].To)
	assert.Equal(t, uint64(2000), transfers[2].Amount)
}

func TestRejectedOperationRollsBack(t *testing.T) {
	s := openTestStore(t)
	p := initMarket(t, s)
	ctx := context.Background()

	poor := common.HexToAddress("0x00000000000000000000000000000000000000f6")
	require.NoError(t, s.Mint(ctx, denom, poor, 999))
	_, err := p.CreateGame(ctx, poor, true)
	assert.ErrorIs(t, err, market.ErrInsufficientFunds)

	n, err := p.GameCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	bal, err := p.Balance(ctx, poor)
	require.NoError(t, err)
	assert.Equal(t, uint64(999), bal)

	idx, err := p.CreateGame(ctx, host, false)
	require.NoError(t, err)
	_, err = p.AddPrice(ctx, admin, 1515_000_000_000)
	require.NoError(t, err)
	assert.ErrorIs(t, p.JoinGame(ctx, opponent, idx), market.ErrPriceMovedTooMuch)

	g, err := p.Game(ctx, idx)
	require.NoError(t, err)
	assert.Nil(t, g.Opponent)
	oppBal, err := p.Balance(ctx, opponent)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), oppBal)
}

func TestGamesAndPrices(t *testing.T) {
	s := openTestStore(t)
	p := initMarket(t, s)
	ctx := context.Background()

	for _, v := range []uint64{1501_000_000_000, 1502_000_000_000} {
		_, err := p.AddPrice(ctx, admin, v)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := p.CreateGame(ctx, host, i == 1)
		require.NoError(t, err)
	}
	require.NoError(t, p.WithdrawFromGame(ctx, host, 2))

	feed, err := p.PriceFeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1500_000_000_000, 1501_000_000_000, 1502_000_000_000}, feed.Prices)

	games, err := p.Games(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.True(t, games[0].HostPrediction)
	assert.Equal(t, uint32(2), games[0].PriceIndex)
	assert.Equal(t, market.StatusWithdrawn, games[1].Status())

	_, err = p.Game(ctx, 3)
	assert.ErrorIs(t, err, market.ErrGameNotFound)
}

func TestPriceOutOfRange(t *testing.T) {
	s := openTestStore(t)
	initMarket(t, s)
	ctx := context.Background()

	err := s.View(ctx, func(tx market.Tx) error {
		_, err := tx.Price(ctx, 1)
		return err
	})
	require.ErrorIs(t, err, market.ErrPriceOutOfRange)
	assert.Equal(t, "", market.Code(err))
}

func TestReopenKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h2h.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	p := initMarket(t, s)
	_, err = p.CreateGame(ctx, host, true)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	p = market.NewProgram(s)

	n, err := p.GameCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)
	_, bal, err := p.Vault(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), bal)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	s, err := OpenPostgres(context.Background(), url, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(context.Background()))
}
