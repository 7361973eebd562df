package sse

import (
	"log/slog"

	"github.com/mcoot/tablebank/internal/dispatch"
	"github.com/mcoot/tablebank/internal/model"
)

// Broadcaster mirrors dispatcher broadcasts to SSE observers
type Broadcaster struct {
	hubManager *HubManager
	logger     *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hubManager *HubManager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubManager: hubManager,
		logger:     logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// Publish forwards a broadcast message to the session's hub, if it has one.
// The message type becomes the SSE event name and the payload its data.
func (b *Broadcaster) Publish(code model.SessionCode, msg dispatch.Message) {
	hub := b.hubManager.GetHub(code)
	if hub == nil {
		return
	}
	data := string(msg.Payload)
	if data == "" {
		data = "{}"
	}
	hub.BroadcastEvent(msg.Type, data)
}

// Close ends every observer stream for a session that no longer exists
func (b *Broadcaster) Close(code model.SessionCode) {
	hub := b.hubManager.GetHub(code)
	if hub == nil {
		return
	}
	b.logger.Debug("closing sse hub for ended session", slog.String("code", string(code)))
	hub.BroadcastEvent("session-closed", "{}")
	b.hubManager.RemoveHub(code)
}

var _ dispatch.Observer = (*Broadcaster)(nil)
