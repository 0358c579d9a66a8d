package ws

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"

	"h2hServer/market"

	"go.uber.org/zap"
)

/* =========================
   CHANNELS
   prices      price_added, prices_initialized
   games       every game event
   game:{n}    events for game n
   admin       region initialization
========================= */

const (
	ChannelPrices = "prices"
	ChannelGames  = "games"
	ChannelAdmin  = "admin"

	maxHistory = 50
)

func gameChannel(index uint32) string {
	return "game:" + strconv.FormatUint(uint64(index), 10)
}

// channels lists where ev is delivered.
func channels(ev market.Event) []string {
	switch ev.Type {
	case market.EventPriceAdded:
		return []string{ChannelPrices}
	case market.EventPricesInitialized:
		return []string{ChannelPrices, ChannelAdmin}
	case market.EventConfigInitialized, market.EventGamesInitialized, market.EventVaultInitialized:
		return []string{ChannelAdmin}
	}
	out := []string{ChannelGames}
	if ev.GameIndex != nil {
		out = append(out, gameChannel(*ev.GameIndex))
	}
	return out
}

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type outbound struct {
	channels []string
	data     []byte
}

// Hub fans committed market events out to subscribed websocket clients. It
// implements market.Observer; Observe never blocks the caller.
type Hub struct {
	log *zap.Logger

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}

	// recent frames per channel, replayed on subscribe
	history   map[string][][]byte
	historyMu sync.RWMutex

	clientIDCounter atomic.Int64
	count           atomic.Int64
	onCount         func(int)
}

type HubOption func(*Hub)

// WithClientGauge reports the connected client count after every change.
func WithClientGauge(fn func(int)) HubOption {
	return func(h *Hub) { h.onCount = fn }
}

func NewHub(log *zap.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 256),
		done:       make(chan struct{}),
		history:    make(map[string][][]byte),
		onCount:    func(int) {},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Observe(ev market.Event) {
	data, err := json.Marshal(Message{Type: string(ev.Type), Data: ev})
	if err != nil {
		h.log.Error("❌ Failed to marshal event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	chans := channels(ev)
	h.remember(chans, data)
	if closesGame(ev) {
		h.forget(gameChannel(*ev.GameIndex))
	}

	select {
	case h.broadcast <- outbound{channels: chans, data: data}:
	default:
		h.log.Warn("⚠️  Broadcast queue full, dropping event", zap.String("type", string(ev.Type)))
	}
}

func (h *Hub) remember(chans []string, data []byte) {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()
	for _, ch := range chans {
		hist := append(h.history[ch], data)
		if len(hist) > maxHistory {
			hist = hist[len(hist)-maxHistory:]
		}
		h.history[ch] = hist
	}
}

// closesGame reports whether ev is the last event a game produces.
func closesGame(ev market.Event) bool {
	if ev.GameIndex == nil {
		return false
	}
	return ev.Type == market.EventGameWithdrawn || ev.Type == market.EventGameSettled
}

// forget drops a channel's history. Live subscribers still receive the
// frame already queued for broadcast.
func (h *Hub) forget(channel string) {
	h.historyMu.Lock()
	delete(h.history, channel)
	h.historyMu.Unlock()
}

func (h *Hub) recent(channel string) [][]byte {
	h.historyMu.RLock()
	defer h.historyMu.RUnlock()
	return append([][]byte(nil), h.history[channel]...)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Start dispatches until ctx is cancelled, then disconnects every client.
func (h *Hub) Start(ctx context.Context) {
	h.log.Info("🚀 Event hub started")

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.setCount()
			h.log.Info("🛑 Event hub stopped")
			return

		case c := <-h.register:
			h.clients[c] = true
			h.setCount()
			h.log.Debug("✅ Client registered", zap.String("client", c.id), zap.Int("total", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.setCount()
			h.log.Debug("👋 Client unregistered", zap.String("client", c.id), zap.Int("total", len(h.clients)))

		case msg := <-h.broadcast:
			h.dispatch(msg)
		}
	}
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	h.onCount(len(h.clients))
}

func (h *Hub) dispatch(msg outbound) {
	for c := range h.clients {
		if !c.subscribedAny(msg.channels) {
			continue
		}
		select {
		case c.send <- msg.data:
		default:
			// a client this far behind is dropped rather than stalling the hub
			h.log.Warn("⚠️  Client send buffer full, disconnecting", zap.String("client", c.id))
			delete(h.clients, c)
			close(c.send)
			h.setCount()
		}
	}
}

func (h *Hub) nextClientID() string {
	return "client-" + strconv.FormatInt(h.clientIDCounter.Add(1), 10)
}

var _ market.Observer = (*Hub)(nil)
