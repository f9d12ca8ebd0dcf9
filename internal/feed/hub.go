// Package feed broadcasts engine output to websocket clients. The Hub
// implements engine.Sink: Publish never blocks, and clients that fall behind
// are disconnected rather than slowing the engine down.
package feed

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nvandessel/socioscope/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Size of client send buffer.
	sendBufferSize = 64

	// Size of the hub's broadcast queue.
	broadcastBufferSize = 256
)

// Channels a client can subscribe to. They match the engine's topics.
const (
	ChannelEvents     = "events"
	ChannelMetrics    = "metrics"
	ChannelDisruption = "disruption"
)

// Channels lists every channel. New clients start subscribed to all of them.
var Channels = []string{ChannelEvents, ChannelMetrics, ChannelDisruption}

// Message types.
const (
	TypeSubscribe = "subscribe"
	TypePing      = "ping"
	TypePong      = "pong"
	TypeError     = "error"
)

// Message is the websocket envelope. Broadcasts carry the channel name as
// their type.
type Message struct {
	Type      string   `json:"type"`
	Data      any      `json:"data,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Channels  []string `json:"channels,omitempty"`
}

type envelope struct {
	channel string
	data    []byte
}

// Hub tracks connected clients and fans broadcasts out to them.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool

	broadcast chan envelope
	done      chan struct{}
	stopOnce  sync.Once

	dropped int
	nowFunc func() time.Time
	logger  *slog.Logger
}

// NewHub creates a hub. Call Run to start delivering messages.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan envelope, broadcastBufferSize),
		done:      make(chan struct{}),
		nowFunc:   time.Now,
		logger:    logging.OrDiscard(logger),
	}
}

// Run delivers broadcasts until Stop is called. On return every client's
// send queue is closed.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			h.closed = true
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case env := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.IsSubscribed(env.channel) {
					continue
				}
				select {
				case c.send <- env.data:
				default:
					h.logger.Warn("feed client too slow, disconnecting", "remote", c.remote)
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many broadcasts were discarded because the queue was full.
func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Publish queues payload for clients subscribed to topic.
func (h *Hub) Publish(topic string, payload any) {
	data, err := json.Marshal(Message{
		Type:      topic,
		Data:      payload,
		Timestamp: h.nowFunc().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Warn("feed payload not encodable", "topic", topic, "error", err)
		return
	}

	select {
	case h.broadcast <- envelope{channel: topic, data: data}:
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
	}
}

// add registers c. It reports false once the hub has stopped.
func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug("feed client connected", "remote", c.remote, "clients", len(h.clients))
	return true
}

// remove unregisters c and closes its queue if the hub has not already.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Debug("feed client disconnected", "remote", c.remote, "clients", len(h.clients))
	}
}

// Client is one websocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	remote string

	subMu         sync.RWMutex
	subscriptions map[string]bool
}

func newClient(hub *Hub, conn *websocket.Conn, remote string) *Client {
	c := &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		remote:        remote,
		subscriptions: make(map[string]bool, len(Channels)),
	}
	for _, ch := range Channels {
		c.subscriptions[ch] = true
	}
	return c
}

// IsSubscribed reports whether the client receives channel.
func (c *Client) IsSubscribed(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[channel]
}

// setSubscriptions replaces the client's channels with the known ones in
// channels and returns them.
func (c *Client) setSubscriptions(channels []string) []string {
	valid := make([]string, 0, len(channels))
	next := make(map[string]bool, len(channels))
	for _, ch := range channels {
		for _, known := range Channels {
			if ch == known && !next[ch] {
				next[ch] = true
				valid = append(valid, ch)
			}
		}
	}
	c.subMu.Lock()
	c.subscriptions = next
	c.subMu.Unlock()
	return valid
}

// readPump handles client messages until the connection fails.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("feed read error", "remote", c.remote, "error", err)
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		c.reply(Message{Type: TypeError, Data: map[string]string{"code": "invalid_json"}})
		return
	}

	switch msg.Type {
	case TypeSubscribe:
		valid := c.setSubscriptions(msg.Channels)
		c.reply(Message{Type: TypeSubscribe, Channels: valid})
	case TypePing:
		c.reply(Message{Type: TypePong})
	default:
		c.reply(Message{Type: TypeError, Data: map[string]string{"code": "unknown_type", "type": msg.Type}})
	}
}

// reply queues a direct response. It is dropped if the queue is full or the
// client is already being torn down.
func (c *Client) reply(msg Message) {
	msg.Timestamp = c.hub.nowFunc().UTC().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump writes queued messages and keepalive pings until the queue is
// closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
