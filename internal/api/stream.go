package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cyncbridge/cyncbridge/internal/logging"
)

const wsSendBufferSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// Hub fans out reconciliation events to every connected diagnostics
// WebSocket client. It carries no subscription filtering — the
// diagnostics stream is a firehose, not a per-channel pub/sub system.
type Hub struct {
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub builds an empty Hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{logger: logger, clients: make(map[*wsClient]struct{})}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}

// Broadcast sends event to every connected client, dropping it for any
// client whose send buffer is full rather than blocking the caller.
func (h *Hub) Broadcast(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if existed {
		close(c.send)
	}
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBufferSize)}
	s.hub.register(client)

	go client.writePump()
	client.readPump(s.hub)
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump only drains the connection to detect client-initiated
// close; the diagnostics stream is output-only.
func (c *wsClient) readPump(hub *Hub) {
	defer hub.unregister(c)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
