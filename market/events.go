package market

import "time"

type EventType string

const (
	EventConfigInitialized EventType = "config_initialized"
	EventPricesInitialized EventType = "prices_initialized"
	EventGamesInitialized  EventType = "games_initialized"
	EventVaultInitialized  EventType = "vault_initialized"
	EventPriceAdded        EventType = "price_added"
	EventGameCreated       EventType = "game_created"
	EventGameJoined        EventType = "game_joined"
	EventGameWithdrawn     EventType = "game_withdrawn"
	EventGameSettled       EventType = "game_settled"
)

// Event describes a committed operation. Fields that do not apply to the
// event type are left zero.
type Event struct {
	Type         EventType `json:"type"`
	Caller       Address   `json:"caller"`
	GameIndex    *uint32   `json:"gameIndex,omitempty"`
	Game         *Game     `json:"game,omitempty"`
	PriceIndex   *uint32   `json:"priceIndex,omitempty"`
	Price        uint64    `json:"price,omitempty,string"`
	Amount       uint64    `json:"amount,omitempty,string"`
	VaultBalance uint64    `json:"vaultBalance,string"`
	Time         time.Time `json:"time"`
}

// Observer is notified after each commit, in commit order.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }
