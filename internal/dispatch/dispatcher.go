package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/tablebank/internal/dependencies/idgen"
	"github.com/mcoot/tablebank/internal/model"
	"github.com/mcoot/tablebank/internal/services/ledger"
	"github.com/mcoot/tablebank/internal/services/lobby"
)

// ErrStopped is returned when the dispatcher loop is no longer running
var ErrStopped = errors.New("dispatcher stopped")

// eventBufferSize bounds the queue of events waiting for the loop
const eventBufferSize = 256

// Observer receives a copy of every session broadcast (the SSE mirror)
type Observer interface {
	Publish(code model.SessionCode, msg Message)
	Close(code model.SessionCode)
}

type eventKind int

const (
	eventConnect eventKind = iota
	eventDisconnect
	eventIntent
	eventQuery
)

type event struct {
	kind   eventKind
	conn   model.ConnectionID
	sender Sender
	msg    Message
	query  func(ctx context.Context)
	done   chan struct{}
}

// Dispatcher owns all session state transitions. A single goroutine (Run)
// handles every connect, disconnect, intent, and query to completion, so
// check, mutate, and broadcast never interleave between callers.
type Dispatcher struct {
	lobbies  lobby.ControllerInterface
	ledger   ledger.ControllerInterface
	ids      idgen.Generator
	observer Observer
	registry *Registry
	logger   *slog.Logger

	events  chan *event
	stopped chan struct{}
}

// New creates a new Dispatcher. observer may be nil.
func New(
	lobbies lobby.ControllerInterface,
	ledger ledger.ControllerInterface,
	ids idgen.Generator,
	observer Observer,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		lobbies:  lobbies,
		ledger:   ledger,
		ids:      ids,
		observer: observer,
		registry: NewRegistry(),
		logger:   logger.With(slog.String("component", "dispatch")),
		events:   make(chan *event, eventBufferSize),
		stopped:  make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled. It must be called exactly once.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.stopped)
	d.logger.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped", slog.Int("connections", d.registry.Len()))
			return
		case ev := <-d.events:
			d.handle(ctx, ev)
			close(ev.done)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev *event) {
	switch ev.kind {
	case eventConnect:
		ev.conn = model.ConnectionID(d.ids.NewID())
		d.registry.Add(ev.conn, ev.sender)
		d.unicast(ev.conn, TypeConnected, ConnectedPayload{ConnectionID: ev.conn})
		d.logger.Debug("connection opened", slog.String("connection_id", string(ev.conn)))
	case eventDisconnect:
		d.disconnect(ctx, ev.conn)
	case eventIntent:
		d.dispatch(ctx, ev.conn, ev.msg)
	case eventQuery:
		ev.query(ctx)
	}
}

// submit hands an event to the loop and waits until it has been handled
func (d *Dispatcher) submit(ctx context.Context, ev *event) error {
	ev.done = make(chan struct{})
	select {
	case d.events <- ev:
	case <-d.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ev.done:
		return nil
	case <-d.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect registers a new connection and returns its ID. The sender receives
// a connected message first.
func (d *Dispatcher) Connect(ctx context.Context, sender Sender) (model.ConnectionID, error) {
	ev := &event{kind: eventConnect, sender: sender}
	if err := d.submit(ctx, ev); err != nil {
		return "", err
	}
	return ev.conn, nil
}

// Disconnect removes a connection and applies the disconnect policy to its seat
func (d *Dispatcher) Disconnect(ctx context.Context, conn model.ConnectionID) error {
	return d.submit(ctx, &event{kind: eventDisconnect, conn: conn})
}

// Submit processes one inbound message from a connection. Failures are reported
// to that connection as error-message frames, not returned.
func (d *Dispatcher) Submit(ctx context.Context, conn model.ConnectionID, msg Message) error {
	return d.submit(ctx, &event{kind: eventIntent, conn: conn, msg: msg})
}

// QueryLobby returns the current lobby snapshot for a code
func (d *Dispatcher) QueryLobby(ctx context.Context, code model.SessionCode) (LobbyView, error) {
	var view LobbyView
	err := d.query(ctx, func(ctx context.Context) error {
		l, err := d.lobbies.Get(ctx, lobby.NormalizeCode(string(code)))
		if err != nil {
			return err
		}
		view = NewLobbyView(l)
		return nil
	})
	return view, err
}

// QueryGame returns the current game snapshot for a code
func (d *Dispatcher) QueryGame(ctx context.Context, code model.SessionCode) (GameView, error) {
	var view GameView
	err := d.query(ctx, func(ctx context.Context) error {
		session, err := d.ledger.Get(ctx, lobby.NormalizeCode(string(code)))
		if err != nil {
			return err
		}
		view = NewGameView(session)
		return nil
	})
	return view, err
}

// QueryTransactions returns the ledger for a code, oldest first
func (d *Dispatcher) QueryTransactions(ctx context.Context, code model.SessionCode) (TransactionHistory, error) {
	var history TransactionHistory
	err := d.query(ctx, func(ctx context.Context) error {
		session, err := d.ledger.Get(ctx, lobby.NormalizeCode(string(code)))
		if err != nil {
			return err
		}
		history = NewTransactionHistory(session)
		return nil
	})
	return history, err
}

func (d *Dispatcher) query(ctx context.Context, fn func(ctx context.Context) error) error {
	var result error
	err := d.submit(ctx, &event{kind: eventQuery, query: func(ctx context.Context) {
		result = fn(ctx)
	}})
	if err != nil {
		return err
	}
	return result
}

// Outbound helpers

func (d *Dispatcher) unicast(conn model.ConnectionID, msgType string, payload any) {
	sender := d.registry.Sender(conn)
	if sender == nil {
		return
	}
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		d.logger.Error("failed to encode message", slog.String("type", msgType), slog.Any("error", err))
		return
	}
	if !sender.Send(msg) {
		d.logger.Warn("message dropped - connection buffer full",
			slog.String("connection_id", string(conn)),
			slog.String("type", msgType))
	}
}

// broadcast sends a message to every connection bound to the session and its observers
func (d *Dispatcher) broadcast(code model.SessionCode, msgType string, payload any) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		d.logger.Error("failed to encode message", slog.String("type", msgType), slog.Any("error", err))
		return
	}
	dropped := 0
	for _, conn := range d.registry.Members(code) {
		if !d.registry.Sender(conn).Send(msg) {
			dropped++
		}
	}
	if dropped > 0 {
		d.logger.Warn("broadcast partial failure",
			slog.String("code", string(code)),
			slog.String("type", msgType),
			slog.Int("dropped", dropped))
	}
	if d.observer != nil {
		d.observer.Publish(code, msg)
	}
}

func (d *Dispatcher) broadcastLobby(l *model.Lobby) {
	d.broadcast(l.Code, TypeLobbyUpdated, NewLobbyView(l))
}

func (d *Dispatcher) broadcastGame(session *model.GameSession) {
	d.broadcast(session.Code, TypeGameUpdated, NewGameView(session))
}

// reject reports a failed intent to the initiating connection only
func (d *Dispatcher) reject(conn model.ConnectionID, intent IntentType, err error) {
	payload := ErrorPayload{Kind: model.KindInternal, Code: "INTERNAL_ERROR", Message: "internal error"}
	if domainErr, ok := model.AsError(err); ok {
		payload = ErrorPayload{Kind: domainErr.Kind, Code: domainErr.Code, Message: domainErr.Message}
		d.logger.Debug("intent rejected",
			slog.String("connection_id", string(conn)),
			slog.String("intent", string(intent)),
			slog.String("error_code", domainErr.Code))
	} else {
		d.logger.Error("intent failed",
			slog.String("connection_id", string(conn)),
			slog.String("intent", string(intent)),
			slog.Any("error", err))
	}
	d.unicast(conn, TypeError, payload)
}
