package db

// Amounts and prices are stored as decimal TEXT: both SQLite INTEGER and
// PostgreSQL BIGINT are signed 64-bit and cannot hold the full uint64 range.
const schema = `
CREATE TABLE IF NOT EXISTS market_config (
	id INTEGER PRIMARY KEY,
	admin TEXT NOT NULL,
	denomination TEXT NOT NULL,
	bet_size TEXT NOT NULL,
	join_threshold INTEGER NOT NULL,
	win_threshold INTEGER NOT NULL,
	threshold_decimals INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS price_feed (
	id INTEGER PRIMARY KEY,
	decimals INTEGER NOT NULL,
	price_count BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS prices (
	idx BIGINT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS game_ledger (
	id INTEGER PRIMARY KEY,
	game_count BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS games (
	idx BIGINT PRIMARY KEY,
	host TEXT NOT NULL,
	opponent TEXT,
	host_prediction BOOLEAN NOT NULL,
	amount TEXT NOT NULL,
	price_index BIGINT NOT NULL,
	result BOOLEAN,
	is_closed BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS vault (
	id INTEGER PRIMARY KEY,
	account TEXT NOT NULL,
	denomination TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
	denomination TEXT NOT NULL,
	account TEXT NOT NULL,
	amount TEXT NOT NULL,
	PRIMARY KEY (denomination, account)
);

CREATE TABLE IF NOT EXISTS transfers (
	seq BIGINT PRIMARY KEY,
	ref TEXT NOT NULL UNIQUE,
	denomination TEXT NOT NULL,
	from_account TEXT NOT NULL,
	to_account TEXT NOT NULL,
	amount TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transfers_from ON transfers(from_account);
CREATE INDEX IF NOT EXISTS idx_transfers_to ON transfers(to_account);
`
