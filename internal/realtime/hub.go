// Package realtime pushes events to connected websocket clients. The hub maps user ids
// to their live connections; transports only register and remove clients.
package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Message is the envelope exchanged in both directions.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Hub is the subscription registry: user id to the set of connections joined to that
// user's room.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register tracks a new connection without joining any room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Join subscribes the client to a room. It reports false for clients already removed.
func (h *Hub) Join(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	return true
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(c, room)
}

func (h *Hub) leave(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Remove drops the client from every room and closes its send queue. Safe to call
// more than once.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for room := range c.rooms {
		h.leave(c, room)
	}
	delete(h.clients, c)
	close(c.send)
}

// Push delivers an event to every connection in the user's room and returns how many
// accepted it. A connection whose queue is full is disconnected instead of blocking.
func (h *Hub) Push(userID, event string, data interface{}) int {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.logger.Error("push encode failed", zap.String("event", event), zap.Error(err))
		return 0
	}

	var (
		delivered int
		slow      []*Client
	)
	h.mu.RLock()
	for c := range h.rooms[userID] {
		select {
		case c.send <- payload:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow connection", zap.String("user_id", c.userID), zap.String("conn_id", c.id))
		h.Remove(c)
	}
	return delivered
}

// DisconnectSession closes every connection opened with the given login session.
func (h *Hub) DisconnectSession(sessionID string) int {
	if sessionID == "" {
		return 0
	}
	return h.disconnect(func(c *Client) bool {
		return c.actor != nil && c.actor.SessionID == sessionID
	})
}

// DisconnectUser closes every connection of the user, whatever room it joined.
func (h *Hub) DisconnectUser(userID string) int {
	if userID == "" {
		return 0
	}
	return h.disconnect(func(c *Client) bool { return c.userID == userID })
}

func (h *Hub) disconnect(match func(*Client) bool) int {
	h.mu.RLock()
	var victims []*Client
	for c := range h.clients {
		if match(c) {
			victims = append(victims, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range victims {
		h.Remove(c)
	}
	if len(victims) > 0 {
		h.logger.Info("revoked connections closed", zap.Int("count", len(victims)))
	}
	return len(victims)
}

// Connections returns how many clients joined the user's room.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Online reports whether the user has at least one joined connection.
func (h *Hub) Online(userID string) bool {
	return h.Connections(userID) > 0
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.Remove(c)
	}
}
