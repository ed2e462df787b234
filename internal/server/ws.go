package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsWriteTimeout bounds a broadcast to one slow client. Broadcasts run on
// the collector goroutine, so a stuck client must not hold it up.
const wsWriteTimeout = 250 * time.Millisecond

// WSMessage is the minimal event envelope sent over WebSocket.
//
// The frontend switches on `type` and treats `data` as an arbitrary JSON value.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSClient wraps a websocket connection with a per-connection write mutex.
// Gorilla WebSocket requires that writes are not concurrent on the same Conn.
type WSClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Send writes a message as JSON to this client.
func (c *WSClient) Send(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(msg)
}

// WSHub is a broadcast hub for a set of WebSocket clients.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewWSHub constructs an empty hub.
func NewWSHub() *WSHub {
	return &WSHub{clients: make(map[*WSClient]struct{})}
}

// Add registers a connection with the hub and returns the WSClient wrapper.
func (h *WSHub) Add(conn *websocket.Conn) *WSClient {
	c := &WSClient{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Remove unregisters a client and closes its connection.
func (h *WSHub) Remove(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Len returns the number of connected clients.
func (h *WSHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to all connected clients.
//
// A client whose write fails is dropped: after a write timeout the
// connection is unusable.
func (h *WSHub) Broadcast(msg WSMessage) {
	// Marshal once for consistency across clients
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}

	var failed []*WSClient
	h.mu.RLock()
	deadline := time.Now().Add(wsWriteTimeout)
	for c := range h.clients {
		c.mu.Lock()
		_ = c.conn.SetWriteDeadline(deadline)
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			failed = append(failed, c)
		}
		c.mu.Unlock()
	}
	h.mu.RUnlock()

	for _, c := range failed {
		h.Remove(c)
	}
}

// CloseAll disconnects every client.
func (h *WSHub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()
	for c := range clients {
		_ = c.conn.Close()
	}
}
