package simulator

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 8
)

// Hub fans market ticks out to connected websocket clients. Quotes are
// public, so every client receives every tick; there is no per-user
// routing.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []Quote

	// done is closed when Run exits so client goroutines stop waiting
	// on the register/unregister channels nobody drains anymore.
	done chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []Quote),
		done:       make(chan struct{}),
	}
}

// Run drives the hub until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case quotes := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- quotes:
				default:
					// Client's buffer is full, drop the connection
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a tick for delivery to all clients.
func (h *Hub) Broadcast(quotes []Quote) {
	h.broadcast <- quotes
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []Quote
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []Quote, clientSendSize),
	}
}

// writePump ships queued ticks to the peer. It exits when the hub closes
// the send channel or a write fails.
func (c *Client) writePump() {
	defer c.conn.Close()
	for quotes := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(map[string]any{
			"type":   "quotes",
			"quotes": quotes,
		}); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards inbound frames; the feed is one-way. Its real job is
// noticing the peer went away and unregistering.
func (c *Client) readPump() {
	defer func() {
		c.detach()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// detach hands the client back to the hub, unless the hub has already shut
// down and drained its channels.
func (c *Client) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}
