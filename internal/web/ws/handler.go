package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mcoot/tablebank/internal/dispatch"
	"github.com/mcoot/tablebank/internal/model"
)

// Dispatcher is the part of the dispatcher a WebSocket connection drives
type Dispatcher interface {
	Connect(ctx context.Context, sender dispatch.Sender) (model.ConnectionID, error)
	Submit(ctx context.Context, conn model.ConnectionID, msg dispatch.Message) error
	Disconnect(ctx context.Context, conn model.ConnectionID) error
}

// Handler upgrades HTTP requests to WebSocket connections bound to the dispatcher
type Handler struct {
	ctx        context.Context
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a new Handler. ctx bounds the lifetime of every
// connection it accepts.
func NewHandler(ctx context.Context, dispatcher Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{
		ctx:        ctx,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With(slog.String("component", "ws")),
	}
}

// ServeHTTP handles GET /ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		h.logger.Debug("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := newClient(conn, h.logger.With(slog.String("remote_addr", r.RemoteAddr)))
	go client.writeLoop()

	id, err := h.dispatcher.Connect(h.ctx, client)
	if err != nil {
		h.logger.Warn("websocket connection refused", slog.Any("error", err))
		client.close()
		return
	}
	client.id = id
	client.logger.Info("websocket connected", slog.String("connection_id", string(id)))

	go client.readLoop(h.ctx, h.dispatcher)
}
