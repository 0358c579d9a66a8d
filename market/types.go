package market

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Address identifies a participant, the admin, a token denomination or a
// program-owned account.
type Address = common.Address

/* =========================
   PROGRAM ACCOUNTS
========================= */

const (
	ConfigSeed = "config"
	PricesSeed = "prices"
	GamesSeed  = "games"
	VaultSeed  = "vault"
)

// MaxThresholdDecimals bounds Config.ThresholdDecimals so the fixed-point
// comparison stays inside 256 bits.
const MaxThresholdDecimals = 18

// DeriveAccount returns the program-owned account for a seed. Nobody holds a
// key for it; only the program moves funds out of it.
func DeriveAccount(seed string) Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("h2h:" + seed)))
}

// VaultAccount is the custodial token account that holds every escrowed stake.
var VaultAccount = DeriveAccount(VaultSeed)

/* =========================
   STATE
========================= */

// Thresholds are percentages scaled by 10^Decimals (500 with 2 decimals = 5%).
type Thresholds struct {
	JoinPercent uint16 `json:"joinThresholdPercent"`
	WinPercent  uint16 `json:"winThresholdPercent"`
	Decimals    uint8  `json:"thresholdDecimals"`
}

// Config is the singleton written once by InitializeConfig.
type Config struct {
	Admin        Address `json:"admin"`
	Denomination Address `json:"denomination"`
	BetSize      uint64  `json:"betSize,string"`
	Thresholds
}

// ConfigArgs are the caller-supplied fields of InitializeConfig.
type ConfigArgs struct {
	Denomination         Address
	BetSize              uint64
	JoinThresholdPercent uint16
	WinThresholdPercent  uint16
	ThresholdDecimals    uint8
}

// FeedInfo is the fixed part of the price feed.
type FeedInfo struct {
	Decimals uint8  `json:"decimals"`
	Length   uint32 `json:"length"`
}

// Last returns the index of the current price.
func (f FeedInfo) Last() uint32 {
	return f.Length - 1
}

// PriceFeed is a full read of the feed.
type PriceFeed struct {
	Decimals uint8    `json:"decimals"`
	Prices   []uint64 `json:"prices"`
}

// Current returns the most recent price.
func (p *PriceFeed) Current() uint64 {
	return p.Prices[len(p.Prices)-1]
}

// Game is one record of the ledger. Opponent and Result are nil until set.
type Game struct {
	Host           Address  `json:"host"`
	Opponent       *Address `json:"opponent"`
	HostPrediction bool     `json:"hostPrediction"`
	Amount         uint64   `json:"amount,string"`
	PriceIndex     uint32   `json:"priceIndex"`
	Result         *bool    `json:"result"`
	IsClosed       bool     `json:"isClosed"`
}

// NewGame returns an open game with no opponent.
func NewGame(host Address, prediction bool, amount uint64, priceIndex uint32) Game {
	return Game{
		Host:           host,
		HostPrediction: prediction,
		Amount:         amount,
		PriceIndex:     priceIndex,
	}
}

// Joined reports whether an opponent is present.
func (g Game) Joined() bool {
	return g.Opponent != nil
}

// Escrowed is the stake the vault holds for this game.
func (g Game) Escrowed() uint64 {
	switch {
	case g.IsClosed:
		return 0
	case g.Joined():
		return 2 * g.Amount
	default:
		return g.Amount
	}
}

// Status names the lifecycle state.
func (g Game) Status() GameStatus {
	switch {
	case g.IsClosed && g.Result != nil:
		return StatusSettled
	case g.IsClosed:
		return StatusWithdrawn
	case g.Joined():
		return StatusJoined
	default:
		return StatusOpen
	}
}

func (g *Game) join(opponent Address) {
	g.Opponent = &opponent
}

func (g *Game) settle(hostWon bool) {
	g.Result = &hostWon
	g.IsClosed = true
}

func (g *Game) close() {
	g.IsClosed = true
}

// Clone returns a deep copy.
func (g Game) Clone() Game {
	if g.Opponent != nil {
		o := *g.Opponent
		g.Opponent = &o
	}
	if g.Result != nil {
		r := *g.Result
		g.Result = &r
	}
	return g
}

type GameStatus string

const (
	StatusOpen      GameStatus = "open"
	StatusJoined    GameStatus = "joined"
	StatusSettled   GameStatus = "settled"
	StatusWithdrawn GameStatus = "withdrawn"
)

// Vault is the custodial account record.
type Vault struct {
	Account      Address `json:"account"`
	Denomination Address `json:"denomination"`
}
