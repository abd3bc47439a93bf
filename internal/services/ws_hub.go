package services

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"chat-backend/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Server-to-client event types
const (
	EventNewMessage     = "newMessage"
	EventMessageViewed  = "messageViewed"
	EventGetOnlineUsers = "getOnlineUsers"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBufferSize = 64
)

var (
	// ErrUserOffline is returned when no connection is registered for a user
	ErrUserOffline = errors.New("user is not connected")
	// errClientUnavailable is returned when a client is closed or its queue is full
	errClientUnavailable = errors.New("client unavailable")
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Client is a single live WebSocket connection owned by a user
type Client struct {
	userID    string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps a WebSocket connection for userID
func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// UserID returns the owner of the connection
func (c *Client) UserID() string {
	return c.userID
}

// Enqueue queues a frame for the write pump. It never blocks and reports whether the frame was accepted.
func (c *Client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Close stops the pumps and closes the underlying connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// Done is closed once the client has been closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump consumes inbound frames until the connection fails.
// Clients send no application messages; reading keeps pong handling alive.
func (c *Client) ReadPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Error().Err(err).Str("user_id", c.userID).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", c.userID).Msg("WebSocket error")
			}
			return
		}
	}
}

// WritePump drains the send queue to the connection and keeps it alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("user_id", c.userID).Msg("Failed to write WebSocket message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WSHub is the presence registry: at most one live connection per user
type WSHub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[string]*Client),
	}
}

// Register registers a connection for its user, closing any connection it replaces
func (h *WSHub) Register(client *Client) {
	h.mu.Lock()
	if existing, exists := h.clients[client.userID]; exists && existing != client {
		existing.Close()
	} else if !exists {
		metrics.WebSocketConnections.Inc()
	}
	h.clients[client.userID] = client
	h.mu.Unlock()

	log.Info().Str("user_id", client.userID).Msg("WebSocket connection registered")
	h.broadcastOnlineUsers()
}

// Unregister removes client if it is still the registered connection for its user.
// A stale client never evicts a newer one. It reports whether anything was removed.
func (h *WSHub) Unregister(client *Client) bool {
	h.mu.Lock()
	current, exists := h.clients[client.userID]
	removed := exists && current == client
	if removed {
		delete(h.clients, client.userID)
		metrics.WebSocketConnections.Dec()
	}
	h.mu.Unlock()

	client.Close()
	if removed {
		log.Info().Str("user_id", client.userID).Msg("WebSocket connection unregistered")
		h.broadcastOnlineUsers()
	}
	return removed
}

// Lookup returns the live connection for userID, if any
func (h *WSHub) Lookup(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[userID]
	return client, ok
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	_, ok := h.Lookup(userID)
	return ok
}

// OnlineUsers returns the sorted IDs of connected users
func (h *WSHub) OnlineUsers() []string {
	h.mu.RLock()
	users := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	h.mu.RUnlock()

	sort.Strings(users)
	return users
}

// SendToUser sends a message to a specific user.
// ErrUserOffline means nobody is registered; other errors mean the frame was not queued.
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	client, ok := h.Lookup(userID)
	if !ok {
		return ErrUserOffline
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if !client.Enqueue(data) {
		return fmt.Errorf("user %s: %w", userID, errClientUnavailable)
	}
	return nil
}

// Broadcast sends a message to every connected user
func (h *WSHub) Broadcast(message WSMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("type", message.Type).Msg("Failed to marshal broadcast")
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.Enqueue(data)
	}
}

// Close closes every registered connection
func (h *WSHub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
		metrics.WebSocketConnections.Dec()
	}
	log.Info().Int("clients_closed", len(clients)).Msg("WebSocket hub stopped")
}

func (h *WSHub) broadcastOnlineUsers() {
	h.Broadcast(WSMessage{Type: EventGetOnlineUsers, Data: h.OnlineUsers()})
}
