package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/domain"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// Client is one websocket connection. rooms and closed are guarded by the hub lock.
type Client struct {
	id     string
	userID string
	actor  *domain.Actor
	conn   *websocket.Conn
	send   chan []byte

	rooms  map[string]struct{}
	closed bool
}

// NewClient creates a connection record. conn may be nil in tests that only exercise the hub.
func NewClient(actor *domain.Actor, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	c := &Client{
		id:    uuid.NewString(),
		actor: actor,
		conn:  conn,
		send:  make(chan []byte, buffer),
		rooms: make(map[string]struct{}),
	}
	if actor != nil {
		c.userID = actor.UserID
	}
	return c
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// Messages exposes the outbound queue; it is closed when the hub removes the client.
func (c *Client) Messages() <-chan []byte { return c.send }

type clientKey struct{}

func withClient(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFrom returns the connection a command arrived on.
func ClientFrom(ctx context.Context) *Client {
	c, _ := ctx.Value(clientKey{}).(*Client)
	return c
}

// inbound is a client command: {"event": name, "data": payload}.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (s *Server) readPump(c *Client) {
	defer func() {
		s.hub.Remove(c)
		_ = c.conn.Close()
	}()

	pongWait := s.pingInterval * 2
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("ws read failed", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		reply := s.handle(c, raw)
		if reply == nil {
			continue
		}
		if !s.enqueue(c, *reply) {
			return
		}
	}
}

func (s *Server) writePump(c *Client) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.hub.Remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.hub.Remove(c)
				return
			}
		}
	}
}

// enqueue queues a direct reply. It reports false when the client is gone or too slow.
func (s *Server) enqueue(c *Client, msg Message) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("reply encode failed", zap.String("event", msg.Event), zap.Error(err))
		return true
	}
	s.hub.mu.RLock()
	if c.closed {
		s.hub.mu.RUnlock()
		return false
	}
	select {
	case c.send <- payload:
		s.hub.mu.RUnlock()
		return true
	default:
		s.hub.mu.RUnlock()
		s.hub.Remove(c)
		return false
	}
}
