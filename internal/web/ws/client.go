package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/tablebank/internal/dispatch"
	"github.com/mcoot/tablebank/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer
	pongWait = 60 * time.Second

	// Ping period, must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Largest inbound frame accepted
	maxMessageSize = 64 * 1024

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Client is one WebSocket connection. It implements dispatch.Sender.
type Client struct {
	conn   *websocket.Conn
	id     model.ConnectionID
	logger *slog.Logger

	mu     sync.Mutex
	send   chan dispatch.Message
	closed bool
}

func newClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		conn:   conn,
		logger: logger,
		send:   make(chan dispatch.Message, sendBufferSize),
	}
}

// Send queues a message without blocking. It reports false when the buffer is
// full or the connection has closed.
func (c *Client) Send(msg dispatch.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close stops the write loop after it drains queued messages
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readLoop submits inbound frames to the dispatcher until the peer goes away
func (c *Client) readLoop(ctx context.Context, d Dispatcher) {
	logger := c.logger.With(slog.String("connection_id", string(c.id)))
	defer func() {
		if err := d.Disconnect(ctx, c.id); err != nil {
			logger.Debug("disconnect not processed", slog.Any("error", err))
		}
		c.close()
		logger.Info("websocket disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// writeLoop answers the close frame once queued messages have drained
	c.conn.SetCloseHandler(func(int, string) error { return nil })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket closed unexpectedly", slog.Any("error", err))
			}
			return
		}

		var msg dispatch.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.rejectFrame()
			continue
		}

		if err := d.Submit(ctx, c.id, msg); err != nil {
			logger.Debug("intent not processed", slog.String("type", msg.Type), slog.Any("error", err))
			return
		}
	}
}

// rejectFrame answers a frame that is not a JSON message envelope
func (c *Client) rejectFrame() {
	msg, err := dispatch.NewMessage(dispatch.TypeError, dispatch.ErrorPayload{
		Code:    model.ErrInvalidIntent.Code,
		Kind:    model.ErrInvalidIntent.Kind,
		Message: model.ErrInvalidIntent.Message,
	})
	if err != nil {
		return
	}
	c.Send(msg)
}

// writeLoop pumps queued messages to the socket and keeps it alive with pings
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
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
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write failed", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ dispatch.Sender = (*Client)(nil)
