package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/pkg/logger"
	"github.com/fastygo/foodbridge/usecase"
)

const commandTimeout = 5 * time.Second

// Authenticator resolves the bearer token presented on connect.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Actor, error)
}

type Config struct {
	Addr         string
	PingInterval time.Duration
	SendBuffer   int
}

// Server upgrades authenticated HTTP requests to websocket connections and routes
// client commands through the dispatcher.
type Server struct {
	hub          *Hub
	auth         Authenticator
	dispatcher   *usecase.Dispatcher
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	sendBuffer   int
	httpServer   *http.Server
	logger       *zap.Logger
}

func NewServer(hub *Hub, auth Authenticator, dispatcher *usecase.Dispatcher, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	s := &Server{
		hub:        hub,
		auth:       auth,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: cfg.PingInterval,
		sendBuffer:   cfg.SendBuffer,
		logger:       logger,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the websocket endpoint at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)
	return mux
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("realtime server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and disconnects every client.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.Close()
	return err
}

// ServeWS authenticates the request, upgrades it and joins the caller to their own room.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	actor, err := s.auth.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		s.logger.Debug("ws auth rejected", zap.Error(err))
		writeHTTPError(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	c := NewClient(actor, conn, s.sendBuffer)
	s.hub.Register(c)
	s.hub.Join(c, actor.UserID)
	s.logger.Info("ws connected",
		zap.String("user_id", actor.UserID),
		zap.String("conn_id", c.id))

	go s.writePump(c)
	go s.readPump(c)
}

// handle runs one inbound command and returns the reply to queue, if any.
func (s *Server) handle(c *Client, raw []byte) *Message {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil || in.Event == "" {
		return &Message{Event: EventError, Data: "malformed message"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	ctx = withClient(ctx, c)
	ctx = logger.ContextWithUserID(ctx, c.userID)

	result, err := s.dispatcher.Dispatch(ctx, in.Event, c.actor, in.Data)
	if err != nil {
		return &Message{Event: EventError, Data: errorText(err)}
	}
	switch reply := result.(type) {
	case nil:
		return nil
	case Message:
		return &reply
	case *Message:
		return reply
	default:
		return &Message{Event: in.Event, Data: reply}
	}
}

func errorText(err error) string {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return dErr.Message
	}
	return "internal error"
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func writeHTTPError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": message})
}
