package sse

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/tablebank/internal/model"
)

// Hub fans out events to the SSE observers of a single session
type Hub struct {
	code    model.SessionCode
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub for a session
func NewHub(code model.SessionCode, logger *slog.Logger) *Hub {
	return &Hub{
		code:       code,
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("code", string(code))),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Debug("sse hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("sse observer registered",
				slog.String("observer_id", client.observerID),
				slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("sse observer unregistered",
					slog.String("observer_id", client.observerID),
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.deliver(message)

		case <-h.done:
			// Frames queued before Close still reach the clients
			for drained := false; !drained; {
				select {
				case message := <-h.broadcast:
					h.deliver(message)
				default:
					drained = true
				}
			}
			h.mu.Lock()
			clientCount := len(h.clients)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Debug("sse hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

func (h *Hub) deliver(message []byte) {
	h.mu.RLock()
	dropped := 0
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			dropped++
		}
	}
	h.mu.RUnlock()
	if dropped > 0 {
		h.logger.Warn("sse broadcast partial failure", slog.Int("dropped", dropped))
	}
}

// Register adds a client to the hub. It reports false if the hub is closed.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends a preformatted frame to all clients
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("sse broadcast dropped - hub buffer full")
	}
}

// BroadcastEvent sends an SSE event with a name and data
func (h *Hub) BroadcastEvent(eventName, data string) {
	h.Broadcast(formatSSEMessage(eventName, data))
}

// Close shuts down the hub, ending every observer stream
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatSSEMessage formats an SSE frame, prefixing every data line
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteString("\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// HubManager manages hubs for all sessions
type HubManager struct {
	hubs   map[model.SessionCode]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.SessionCode]*Hub),
		logger: logger.With(slog.String("component", "sse")),
	}
}

// GetOrCreateHub returns the hub for a session, creating one if it doesn't exist
func (m *HubManager) GetOrCreateHub(code model.SessionCode) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[code]; ok {
		return hub
	}

	hub := NewHub(code, m.logger)
	m.hubs[code] = hub
	go hub.Run()
	return hub
}

// GetHub returns the hub for a session, or nil if it doesn't exist
func (m *HubManager) GetHub(code model.SessionCode) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[code]
}

// RemoveHub removes and closes a hub
func (m *HubManager) RemoveHub(code model.SessionCode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[code]; ok {
		hub.Close()
		delete(m.hubs, code)
		m.logger.Info("sse hub removed", slog.String("code", string(code)))
	}
}

// CleanupEmptyHubs removes hubs with no clients
func (m *HubManager) CleanupEmptyHubs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	removedCount := 0
	for code, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, code)
			removedCount++
		}
	}
	if removedCount > 0 {
		m.logger.Info("sse empty hubs cleaned up", slog.Int("removed", removedCount))
	}
}

// RunCleanup calls CleanupEmptyHubs every interval until ctx is cancelled
func (m *HubManager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupEmptyHubs()
		}
	}
}

// Len returns the number of live hubs
func (m *HubManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hubs)
}
