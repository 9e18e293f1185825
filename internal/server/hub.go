package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"blsdata/internal/job"
	"blsdata/internal/logger"
)

const (
	eventBuffer  = 100
	writeTimeout = 5 * time.Second
)

// Hub fans job events out to websocket clients.
type Hub struct {
	clients  map[*websocket.Conn]bool
	events   chan job.Event
	logger   *logger.Logger
	upgrader websocket.Upgrader
	mu       sync.Mutex
}

// NewHub creates a hub. Call Run to start broadcasting.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		events:  make(chan job.Event, eventBuffer),
		logger:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Publish queues an event, dropping it when the buffer is full.
func (h *Hub) Publish(event job.Event) {
	select {
	case h.events <- event:
	default:
		h.logger.Warn("Event buffer full, dropping event")
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// Run broadcasts queued events until ctx ends, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()

			return
		case event := <-h.events:
			h.broadcast(event)
		}
	}
}

// ServeWS upgrades the request and keeps the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(fmt.Sprintf("WebSocket upgrade error: %v", err))

		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug(fmt.Sprintf("Client connected via WebSocket. Total clients: %d", count))

	// Clients only listen; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(conn)
}

func (h *Hub) broadcast(event job.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))

		if err := conn.WriteJSON(event); err != nil {
			h.logger.Debug(fmt.Sprintf("Error sending event to client: %v", err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[conn] {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
