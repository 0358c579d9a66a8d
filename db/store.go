package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"h2hServer/market"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const timeFormat = time.RFC3339Nano

var errReadOnly = errors.New("write in read-only transaction")

type dialect struct {
	name string
	// numbered placeholders ($1, $2) instead of ?
	numbered  bool
	isolation sql.IsolationLevel
	readOnly  bool
}

var (
	sqliteDialect   = dialect{name: "sqlite"}
	postgresDialect = dialect{name: "postgres", numbered: true, isolation: sql.LevelSerializable, readOnly: true}
)

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store is a market.Store backed by database/sql.
type Store struct {
	sqlDB   *sql.DB
	dialect dialect
	log     *zap.Logger
	onClose func()
}

func newStore(ctx context.Context, sqlDB *sql.DB, d dialect, log *zap.Logger) (*Store, error) {
	s := &Store{sqlDB: sqlDB, dialect: d, log: log}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	s.log.Info("📋 Initializing database schema...", zap.String("dialect", s.dialect.name))
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.sqlDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	s.log.Info("🔌 Closing database connection...", zap.String("dialect", s.dialect.name))
	err := s.sqlDB.Close()
	if s.onClose != nil {
		s.onClose()
	}
	return err
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, fn func(tx market.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) View(ctx context.Context, fn func(tx market.Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) run(ctx context.Context, writable bool, fn func(tx market.Tx) error) error {
	opts := &sql.TxOptions{Isolation: s.dialect.isolation}
	if !writable && s.dialect.readOnly {
		opts.ReadOnly = true
	}
	sqlTx, err := s.sqlDB.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&tx{tx: sqlTx, d: s.dialect, writable: writable}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if !writable {
		return sqlTx.Rollback()
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Mint credits account with amount. It is the provisioning hook for seeding
// and tests.
func (s *Store) Mint(ctx context.Context, denomination, account market.Address, amount uint64) error {
	return s.Update(ctx, func(mtx market.Tx) error {
		t := mtx.(*tx)
		bal, err := t.Balance(ctx, denomination, account)
		if err != nil {
			return err
		}
		if bal > math.MaxUint64-amount {
			return market.ErrArithmeticOverflow
		}
		return t.setBalance(ctx, denomination, account, bal+amount)
	})
}

// Transfers returns the token journal in order.
func (s *Store) Transfers(ctx context.Context) ([]market.Transfer, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT ref, denomination, from_account, to_account, amount, created_at
		FROM transfers
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var out []market.Transfer
	for rows.Next() {
		var (
			tr                   market.Transfer
			denom, from, to, amt string
			createdAt            string
		)
		if err := rows.Scan(&tr.Ref, &denom, &from, &to, &amt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		if tr.Amount, err = parseAmount(amt); err != nil {
			return nil, err
		}
		if tr.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parse transfer time: %w", err)
		}
		tr.Denomination = common.HexToAddress(denom)
		tr.From = common.HexToAddress(from)
		tr.To = common.HexToAddress(to)
		out = append(out, tr)
	}
	return out, rows.Err()
}

/* =========================
   TRANSACTION
========================= */

type tx struct {
	tx       *sql.Tx
	d        dialect
	writable bool
}

func (t *tx) exec(ctx context.Context, query string, args ...any) error {
	if !t.writable {
		return errReadOnly
	}
	_, err := t.tx.ExecContext(ctx, t.d.rebind(query), args...)
	return err
}

func (t *tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.d.rebind(query), args...)
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

func notInitialized(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return market.ErrNotInitialized
	}
	return err
}

func (t *tx) Config(ctx context.Context) (market.Config, error) {
	var (
		cfg          market.Config
		admin, denom string
		betSize      string
	)
	err := t.queryRow(ctx, `
		SELECT admin, denomination, bet_size, join_threshold, win_threshold, threshold_decimals
		FROM market_config WHERE id = 1
	`).Scan(&admin, &denom, &betSize, &cfg.JoinPercent, &cfg.WinPercent, &cfg.Decimals)
	if err != nil {
		return market.Config{}, notInitialized(err)
	}
	cfg.Admin = common.HexToAddress(admin)
	cfg.Denomination = common.HexToAddress(denom)
	if cfg.BetSize, err = parseAmount(betSize); err != nil {
		return market.Config{}, err
	}
	return cfg, nil
}

func (t *tx) CreateConfig(ctx context.Context, cfg market.Config) error {
	if _, err := t.Config(ctx); err == nil {
		return market.ErrAlreadyInitialized
	}
	err := t.exec(ctx, `
		INSERT INTO market_config (id, admin, denomination, bet_size, join_threshold, win_threshold, threshold_decimals)
		VALUES (1, ?, ?, ?, ?, ?, ?)
	`, cfg.Admin.Hex(), cfg.Denomination.Hex(), formatAmount(cfg.BetSize),
		int64(cfg.JoinPercent), int64(cfg.WinPercent), int64(cfg.Decimals))
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}
	return nil
}

func (t *tx) FeedInfo(ctx context.Context) (market.FeedInfo, error) {
	var info market.FeedInfo
	err := t.queryRow(ctx, `SELECT decimals, price_count FROM price_feed WHERE id = 1`).
		Scan(&info.Decimals, &info.Length)
	if err != nil {
		return market.FeedInfo{}, notInitialized(err)
	}
	return info, nil
}

func (t *tx) CreateFeed(ctx context.Context, decimals uint8, initial uint64) error {
	if _, err := t.FeedInfo(ctx); err == nil {
		return market.ErrAlreadyInitialized
	}
	if err := t.exec(ctx, `INSERT INTO price_feed (id, decimals, price_count) VALUES (1, ?, 1)`, int64(decimals)); err != nil {
		return fmt.Errorf("failed to insert price feed: %w", err)
	}
	if err := t.exec(ctx, `INSERT INTO prices (idx, value) VALUES (0, ?)`, formatAmount(initial)); err != nil {
		return fmt.Errorf("failed to insert price: %w", err)
	}
	return nil
}

func (t *tx) Price(ctx context.Context, index uint32) (uint64, error) {
	info, err := t.FeedInfo(ctx)
	if err != nil {
		return 0, err
	}
	if index >= info.Length {
		return 0, fmt.Errorf("price %d of %d: %w", index, info.Length, market.ErrPriceOutOfRange)
	}
	var v string
	if err := t.queryRow(ctx, `SELECT value FROM prices WHERE idx = ?`, int64(index)).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get price %d: %w", index, err)
	}
	return parseAmount(v)
}

func (t *tx) Prices(ctx context.Context) ([]uint64, error) {
	info, err := t.FeedInfo(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, t.d.rebind(`SELECT value FROM prices WHERE idx < ? ORDER BY idx`), int64(info.Length))
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	prices := make([]uint64, 0, info.Length)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		v, err := parseAmount(s)
		if err != nil {
			return nil, err
		}
		prices = append(prices, v)
	}
	return prices, rows.Err()
}

func (t *tx) AppendPrice(ctx context.Context, value uint64) (uint32, error) {
	info, err := t.FeedInfo(ctx)
	if err != nil {
		return 0, err
	}
	if info.Length == math.MaxUint32 {
		return 0, market.ErrArithmeticOverflow
	}
	index := info.Length
	if err := t.exec(ctx, `INSERT INTO prices (idx, value) VALUES (?, ?)`, int64(index), formatAmount(value)); err != nil {
		return 0, fmt.Errorf("failed to insert price: %w", err)
	}
	if err := t.exec(ctx, `UPDATE price_feed SET price_count = ? WHERE id = 1`, int64(index)+1); err != nil {
		return 0, fmt.Errorf("failed to update price feed: %w", err)
	}
	return index, nil
}

func (t *tx) GameCount(ctx context.Context) (uint32, error) {
	var n uint32
	if err := t.queryRow(ctx, `SELECT game_count FROM game_ledger WHERE id = 1`).Scan(&n); err != nil {
		return 0, notInitialized(err)
	}
	return n, nil
}

func (t *tx) CreateLedger(ctx context.Context) error {
	if _, err := t.GameCount(ctx); err == nil {
		return market.ErrAlreadyInitialized
	}
	if err := t.exec(ctx, `INSERT INTO game_ledger (id, game_count) VALUES (1, 0)`); err != nil {
		return fmt.Errorf("failed to insert game ledger: %w", err)
	}
	return nil
}

const gameColumns = `host, opponent, host_prediction, amount, price_index, result, is_closed`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (market.Game, error) {
	var (
		g        market.Game
		host     string
		opponent sql.NullString
		amount   string
		result   sql.NullBool
	)
	if err := row.Scan(&host, &opponent, &g.HostPrediction, &amount, &g.PriceIndex, &result, &g.IsClosed); err != nil {
		return market.Game{}, err
	}
	g.Host = common.HexToAddress(host)
	if opponent.Valid {
		o := common.HexToAddress(opponent.String)
		g.Opponent = &o
	}
	if result.Valid {
		r := result.Bool
		g.Result = &r
	}
	var err error
	if g.Amount, err = parseAmount(amount); err != nil {
		return market.Game{}, err
	}
	return g, nil
}

func gameArgs(g market.Game) []any {
	var opponent sql.NullString
	if g.Opponent != nil {
		opponent = sql.NullString{String: g.Opponent.Hex(), Valid: true}
	}
	var result sql.NullBool
	if g.Result != nil {
		result = sql.NullBool{Bool: *g.Result, Valid: true}
	}
	return []any{g.Host.Hex(), opponent, g.HostPrediction, formatAmount(g.Amount), int64(g.PriceIndex), result, g.IsClosed}
}

func (t *tx) Game(ctx context.Context, index uint32) (market.Game, error) {
	n, err := t.GameCount(ctx)
	if err != nil {
		return market.Game{}, err
	}
	if index >= n {
		return market.Game{}, market.ErrGameNotFound
	}
	g, err := scanGame(t.queryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE idx = ?`, int64(index)))
	if err != nil {
		return market.Game{}, fmt.Errorf("failed to get game %d: %w", index, err)
	}
	return g, nil
}

func (t *tx) Games(ctx context.Context, offset, limit uint32) ([]market.Game, error) {
	n, err := t.GameCount(ctx)
	if err != nil {
		return nil, err
	}
	end := int64(n)
	if limit > 0 && int64(offset)+int64(limit) < end {
		end = int64(offset) + int64(limit)
	}

	rows, err := t.tx.QueryContext(ctx,
		t.d.rebind(`SELECT `+gameColumns+` FROM games WHERE idx >= ? AND idx < ? ORDER BY idx`),
		int64(offset), end)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	games := []market.Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (t *tx) AppendGame(ctx context.Context, g market.Game) (uint32, error) {
	n, err := t.GameCount(ctx)
	if err != nil {
		return 0, err
	}
	if n == math.MaxUint32 {
		return 0, market.ErrArithmeticOverflow
	}
	args := append([]any{int64(n)}, gameArgs(g)...)
	if err := t.exec(ctx, `INSERT INTO games (idx, `+gameColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
		return 0, fmt.Errorf("failed to insert game: %w", err)
	}
	if err := t.exec(ctx, `UPDATE game_ledger SET game_count = ? WHERE id = 1`, int64(n)+1); err != nil {
		return 0, fmt.Errorf("failed to update game ledger: %w", err)
	}
	return n, nil
}

func (t *tx) PutGame(ctx context.Context, index uint32, g market.Game) error {
	n, err := t.GameCount(ctx)
	if err != nil {
		return err
	}
	if index >= n {
		return market.ErrGameNotFound
	}
	args := append(gameArgs(g), int64(index))
	err = t.exec(ctx, `
		UPDATE games
		SET host = ?, opponent = ?, host_prediction = ?, amount = ?, price_index = ?, result = ?, is_closed = ?
		WHERE idx = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update game %d: %w", index, err)
	}
	return nil
}

func (t *tx) Vault(ctx context.Context) (market.Vault, error) {
	var account, denom string
	if err := t.queryRow(ctx, `SELECT account, denomination FROM vault WHERE id = 1`).Scan(&account, &denom); err != nil {
		return market.Vault{}, notInitialized(err)
	}
	return market.Vault{Account: common.HexToAddress(account), Denomination: common.HexToAddress(denom)}, nil
}

func (t *tx) CreateVault(ctx context.Context, v market.Vault) error {
	if _, err := t.Vault(ctx); err == nil {
		return market.ErrAlreadyInitialized
	}
	err := t.exec(ctx, `INSERT INTO vault (id, account, denomination) VALUES (1, ?, ?)`, v.Account.Hex(), v.Denomination.Hex())
	if err != nil {
		return fmt.Errorf("failed to insert vault: %w", err)
	}
	return nil
}

/* =========================
   TOKEN SERVICE
========================= */

func (t *tx) Balance(ctx context.Context, denomination, account market.Address) (uint64, error) {
	var s string
	err := t.queryRow(ctx, `SELECT amount FROM balances WHERE denomination = ? AND account = ?`,
		denomination.Hex(), account.Hex()).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return parseAmount(s)
}

func (t *tx) setBalance(ctx context.Context, denomination, account market.Address, amount uint64) error {
	err := t.exec(ctx, `
		INSERT INTO balances (denomination, account, amount) VALUES (?, ?, ?)
		ON CONFLICT (denomination, account) DO UPDATE SET amount = excluded.amount
	`, denomination.Hex(), account.Hex(), formatAmount(amount))
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

func (t *tx) Transfer(ctx context.Context, denomination, from, to market.Address, amount uint64) error {
	if !t.writable {
		return errReadOnly
	}
	fromBal, err := t.Balance(ctx, denomination, from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return market.ErrInsufficientFunds
	}
	if err := t.setBalance(ctx, denomination, from, fromBal-amount); err != nil {
		return err
	}
	toBal, err := t.Balance(ctx, denomination, to)
	if err != nil {
		return err
	}
	if toBal > math.MaxUint64-amount {
		return market.ErrArithmeticOverflow
	}
	if err := t.setBalance(ctx, denomination, to, toBal+amount); err != nil {
		return err
	}

	var seq int64
	if err := t.queryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM transfers`).Scan(&seq); err != nil {
		return fmt.Errorf("failed to read transfer sequence: %w", err)
	}
	err = t.exec(ctx, `
		INSERT INTO transfers (seq, ref, denomination, from_account, to_account, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, seq+1, uuid.NewString(), denomination.Hex(), from.Hex(), to.Hex(), formatAmount(amount),
		time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to journal transfer: %w", err)
	}
	return nil
}
