package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"h2hServer/config"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one websocket connection and its subscriptions.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subs map[string]bool
	mu   sync.RWMutex

	writeMutex sync.Mutex
}

// ClientMessage is a frame received from a client.
type ClientMessage struct {
	Type string `json:"type"`
	Data struct {
		Channel string `json:"channel"`
	} `json:"data"`
}

func (c *Client) subscribedAny(channels []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range channels {
		if c.subs[ch] {
			return true
		}
	}
	return false
}

func (c *Client) write(messageType int, data []byte) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

// HandleWS upgrades the connection and registers the client. Clients start
// with no subscriptions; the "channel" query parameter may list initial ones
// separated by commas.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("❌ WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		id:   h.nextClientID(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, config.WSSendQueue),
		subs: make(map[string]bool),
	}
	h.log.Debug("📥 WebSocket connection", zap.String("client", c.id), zap.String("remote", r.RemoteAddr))

	for _, ch := range strings.Split(r.URL.Query().Get("channel"), ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			c.subs[ch] = true
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// writePump sends queued frames and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(config.WSPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.hub.log.Debug("❌ Write error", zap.String("client", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles subscription requests until the connection drops.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("❌ Read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.writeJSON(Message{Type: "error", Data: "invalid message"})
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg ClientMessage) {
	channel := strings.TrimSpace(msg.Data.Channel)

	switch msg.Type {
	case "subscribe":
		if channel == "" {
			c.writeJSON(Message{Type: "error", Data: "channel is required"})
			return
		}
		c.mu.Lock()
		c.subs[channel] = true
		c.mu.Unlock()

		c.writeJSON(Message{Type: "subscribed", Data: map[string]string{"channel": channel}})
		for _, frame := range c.hub.recent(channel) {
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		}

	case "unsubscribe":
		c.mu.Lock()
		delete(c.subs, channel)
		c.mu.Unlock()
		c.writeJSON(Message{Type: "unsubscribed", Data: map[string]string{"channel": channel}})

	case "ping":
		c.writeJSON(Message{Type: "pong"})

	default:
		c.writeJSON(Message{Type: "error", Data: "unknown message type: " + msg.Type})
	}
}
