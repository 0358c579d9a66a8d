package config

import "time"

/* =========================
   NETWORK CONFIGURATION
========================= */

const (
	// Chain used to read the Chainlink aggregator
	DefaultChainRPC = "https://rpc.sepolia.mantle.xyz"

	ChainCallTimeout = 10 * time.Second
)

/* =========================
   MARKET DEFAULTS
   Used by cmd/seed when bootstrapping a fresh store
========================= */

const (
	DefaultBetSize           = 1000
	DefaultJoinThreshold     = 100 // 1.00%
	DefaultWinThreshold      = 500 // 5.00%
	DefaultThresholdDecimals = 2
	DefaultPriceDecimals     = 9
	DefaultInitialPrice      = 1500_000_000_000 // 1500.000000000
	DefaultMintAmount        = 1_000_000
)

/* =========================
   STORE CONFIGURATION
========================= */

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	DefaultSQLitePath = "h2h.db"
)

/* =========================
   ORACLE CONFIGURATION
========================= */

const (
	OracleNone      = "none"
	OracleRedis     = "redis"
	OracleChainlink = "chainlink"
	OracleSimulated = "simulated"

	// Key holding the latest off-chain price as a decimal string
	DefaultOracleRedisKey = "h2h:price:latest"

	DefaultFeedInterval = 15 * time.Second
)

/* =========================
   AUTH CONFIGURATION
========================= */

const (
	// Signed requests older or newer than this are rejected
	DefaultAuthMaxSkew = 5 * time.Minute

	// Replay keys: h2h:nonce:{signature}
	RedisNoncePrefix = "h2h:nonce:"
)

/* =========================
   API CONFIGURATION
========================= */

const (
	DefaultHTTPAddr = "0.0.0.0:8080"

	AllowOrigin = "*"

	DefaultPageLimit = 50
	MaxPageLimit     = 500

	MaxRequestBodyBytes = 64 * 1024
)

/* =========================
   WEBSOCKET CONFIGURATION
========================= */

const (
	WSReadDeadline  = 60 * time.Second
	WSWriteDeadline = 10 * time.Second
	WSPingInterval  = 30 * time.Second

	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024

	MaxMessageSize = 512 // clients only send pings

	// Per-client outbound queue; a client that falls this far behind is dropped
	WSSendQueue = 64
)
