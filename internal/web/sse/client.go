package sse

import (
	"net/http"
	"time"
)

const (
	// Time between keepalive comments
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Event is a named SSE frame sent to a single observer
type Event struct {
	Name string
	Data string
}

// Client represents a connected SSE observer
type Client struct {
	hub         *Hub
	observerID  string
	send        chan []byte
	connectedAt time.Time
}

// NewClient creates a new SSE client
func NewClient(hub *Hub, observerID string) *Client {
	return &Client{
		hub:         hub,
		observerID:  observerID,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// ServeSSE streams hub events to the request until the client goes away or the
// hub closes. snapshot, if set, is taken after the client is registered and its
// events are written before any queued broadcast.
func ServeSSE(w http.ResponseWriter, r *http.Request, hub *Hub, observerID string, snapshot func() []Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no")

	// Streams outlive the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	client := NewClient(hub, observerID)
	if !hub.Register(client) {
		http.Error(w, "Session closed", http.StatusGone)
		return
	}
	defer hub.Unregister(client)

	_, _ = w.Write([]byte("event: connected\ndata: {\"status\":\"connected\"}\n\n"))
	if snapshot != nil {
		for _, ev := range snapshot() {
			_, _ = w.Write(formatSSEMessage(ev.Name, ev.Data))
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				// Hub closed
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
