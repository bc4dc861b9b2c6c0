package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/palpamed/palpbridge/internal/logging"
)

// writeWait is the time allowed to write a message to a client
const writeWait = 10 * time.Second

// Client is one connected WebSocket peer. The write mutex serializes frame
// writes, which gorilla/websocket requires.
type Client struct {
	conn       *websocket.Conn
	remoteAddr string
	writeMu    sync.Mutex
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
	}
}

// RemoteAddr returns the peer address, used for logging.
func (c *Client) RemoteAddr() string {
	return c.remoteAddr
}

// Send writes a text frame to the client.
func (c *Client) Send(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// SendJSON marshals v and sends it as a text frame.
func (c *Client) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	return c.Send(string(data))
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Hub tracks the set of connected clients and fans device output out to
// all of them.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
	}
}

// Register adds a client to the set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	logging.LogConnection(c.RemoteAddr(), "client_joined")
}

// Unregister removes a client from the set.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	logging.LogConnection(c.RemoteAddr(), "client_left")
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends text to every connected client. Clients whose connection
// has gone away are skipped silently; broadcasting to zero clients is a
// no-op. The client set is snapshotted first so a slow peer cannot hold the
// hub lock across writes.
func (h *Hub) Broadcast(text string) {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.Send(text); err != nil {
			logging.Debug("Broadcast to client failed, skipped",
				zap.String("remote_addr", c.RemoteAddr()),
				zap.Error(err),
			)
		}
	}
}

// CloseAll closes every connection, used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range targets {
		_ = c.Close()
	}
}
