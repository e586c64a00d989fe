package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ownding/headscale-console/internal/constants"
	"github.com/ownding/headscale-console/internal/hybrid"
	"github.com/ownding/headscale-console/internal/logging"
)

// Message represents a WebSocket message
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	messageTypeStatus = "status"
	pingInterval      = 54 * time.Second
)

type statusSource interface {
	ConnectionStatus(ctx context.Context) hybrid.ConnectionStatus
}

// statusStream pushes a fresh connection status to every websocket client
// on connect and then once per interval.
type statusStream struct {
	source   statusSource
	interval time.Duration
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*websocket.Conn
	done    chan struct{}
	closed  bool
}

func newStatusStream(source statusSource, interval time.Duration, log *logging.Logger) *statusStream {
	return &statusStream{
		source:   source,
		interval: interval,
		log:      log,
		clients:  make(map[string]*websocket.Conn),
		done:     make(chan struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: originAllowed},
	}
}

// ClientCount returns the number of connected clients.
func (s *statusStream) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client and rejects new ones.
func (s *statusStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// HandleWebSocket upgrades the request and runs the write loop until the
// client goes away or the stream is closed.
func (s *statusStream) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	id := uuid.NewString()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[id] = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
		conn.Close()
	}()

	gone := make(chan struct{})
	go s.readPump(conn, gone)
	s.writePump(r.Context(), conn, gone)
}

// readPump drains client frames so close and pong control frames are
// processed, and signals gone when the connection fails.
func (s *statusStream) readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *statusStream) writePump(ctx context.Context, conn *websocket.Conn, gone <-chan struct{}) {
	statusTicker := time.NewTicker(s.interval)
	pingTicker := time.NewTicker(pingInterval)
	defer func() {
		statusTicker.Stop()
		pingTicker.Stop()
	}()

	if !s.push(ctx, conn) {
		return
	}
	for {
		select {
		case <-statusTicker.C:
			if !s.push(ctx, conn) {
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-ctx.Done():
			return
		case <-s.done:
			conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

func (s *statusStream) push(ctx context.Context, conn *websocket.Conn) bool {
	msg := Message{
		Type:      messageTypeStatus,
		Data:      s.source.ConnectionStatus(ctx),
		Timestamp: time.Now().UTC(),
	}
	conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Debug("websocket write failed", "error", err)
		return false
	}
	return true
}
