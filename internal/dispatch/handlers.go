package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/tablebank/internal/model"
	"github.com/mcoot/tablebank/internal/services/lobby"
)

// dispatch routes one inbound message to its handler
func (d *Dispatcher) dispatch(ctx context.Context, conn model.ConnectionID, msg Message) {
	if d.registry.Sender(conn) == nil {
		d.logger.Warn("message from unknown connection", slog.String("connection_id", string(conn)))
		return
	}

	intent := IntentType(msg.Type)
	var err error
	switch intent {
	case IntentCreateLobby:
		err = d.handleCreateLobby(ctx, conn, msg)
	case IntentJoinLobby:
		err = d.handleJoinLobby(ctx, conn, msg)
	case IntentLeaveLobby:
		err = d.handleLeaveLobby(ctx, conn)
	case IntentResume:
		err = d.handleResume(ctx, conn, msg)
	case IntentUpdateSettings:
		err = d.handleUpdateSettings(ctx, conn, msg)
	case IntentKickPlayer:
		err = d.handleKickPlayer(ctx, conn, msg)
	case IntentSetPlayerOrder:
		err = d.handleSetPlayerOrder(ctx, conn, msg)
	case IntentStartGame:
		err = d.handleStartGame(ctx, conn, msg, false)
	case IntentRestartGame:
		err = d.handleStartGame(ctx, conn, msg, true)
	case IntentTransferMoney:
		err = d.handleTransferMoney(ctx, conn, msg)
	case IntentBankAction:
		err = d.handleBankAction(ctx, conn, msg)
	case IntentEndTurn:
		err = d.handleEndTurn(ctx, conn, msg)
	case IntentUndoTransaction:
		err = d.handleUndoTransaction(ctx, conn, msg)
	case IntentUndoSpecificTransaction:
		err = d.handleUndoSpecificTransaction(ctx, conn, msg)
	case IntentGetLobbyState:
		err = d.handleGetLobbyState(ctx, conn, msg)
	case IntentGetGameState:
		err = d.handleGetGameState(ctx, conn, msg)
	case IntentGetTransactions:
		err = d.handleGetTransactions(ctx, conn, msg)
	default:
		err = model.ErrInvalidIntent
	}

	if err != nil {
		d.reject(conn, intent, err)
	}
}

// requireBinding checks that the connection is seated in the named session
func (d *Dispatcher) requireBinding(conn model.ConnectionID, code string) (Binding, error) {
	b, ok := d.registry.Lookup(conn)
	if !ok || b.Code != lobby.NormalizeCode(code) {
		return Binding{}, model.ErrNotInSession
	}
	return b, nil
}

// decodeBound decodes a payload carrying a code and checks the caller's binding
func (d *Dispatcher) decodeBound(conn model.ConnectionID, msg Message, payload any, code func() string) (Binding, error) {
	if err := msg.Decode(payload); err != nil {
		return Binding{}, err
	}
	return d.requireBinding(conn, code())
}

// Membership

func (d *Dispatcher) handleCreateLobby(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p CreateLobbyPayload
	if err := msg.Decode(&p); err != nil {
		return err
	}
	result, err := d.lobbies.Create(ctx, p.Name)
	if err != nil {
		return err
	}
	return d.moveSeat(ctx, conn, result)
}

func (d *Dispatcher) handleJoinLobby(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p JoinLobbyPayload
	if err := msg.Decode(&p); err != nil {
		return err
	}
	result, err := d.lobbies.Join(ctx, model.SessionCode(p.Code), p.Name)
	if err != nil {
		return err
	}
	return d.moveSeat(ctx, conn, result)
}

// moveSeat releases the connection's previous seat once the new one exists, then
// binds it to the new seat. A failed release withdraws the new seat again.
func (d *Dispatcher) moveSeat(ctx context.Context, conn model.ConnectionID, result *lobby.JoinResult) error {
	code := result.Lobby.Code
	prev, bound := d.registry.Lookup(conn)
	if err := d.leaveCurrent(ctx, conn); err != nil {
		if _, _, undoErr := d.lobbies.Leave(ctx, code, result.Player.ID); undoErr != nil {
			d.logger.Error("failed to withdraw seat",
				slog.String("code", string(code)),
				slog.String("player_id", string(result.Player.ID)),
				slog.Any("error", undoErr))
		}
		return err
	}
	if bound && prev.Code == code {
		l, err := d.lobbies.Get(ctx, code)
		if err != nil {
			return err
		}
		result.Lobby = l
	}
	d.seat(ctx, conn, result)
	return nil
}

// seat binds a joined connection, hands it its seat token, and announces the join
func (d *Dispatcher) seat(ctx context.Context, conn model.ConnectionID, result *lobby.JoinResult) {
	code := result.Lobby.Code
	d.registry.Bind(conn, code, result.Player.ID)
	d.unicast(conn, TypeJoined, JoinedPayload{
		Code:      code,
		PlayerID:  result.Player.ID,
		SeatToken: result.SeatToken,
	})
	d.broadcastLobby(result.Lobby)

	if result.Lobby.State == model.LobbyStateStarted {
		d.sendGame(ctx, conn, code)
	}
}

// sendGame unicasts the current game snapshot, if a game exists
func (d *Dispatcher) sendGame(ctx context.Context, conn model.ConnectionID, code model.SessionCode) {
	session, err := d.ledger.Get(ctx, code)
	if err != nil {
		if !errors.Is(err, model.ErrSessionNotFound) {
			d.logger.Error("failed to load session", slog.String("code", string(code)), slog.Any("error", err))
		}
		return
	}
	d.unicast(conn, TypeGameUpdated, NewGameView(session))
}

func (d *Dispatcher) handleLeaveLobby(ctx context.Context, conn model.ConnectionID) error {
	if _, ok := d.registry.Lookup(conn); !ok {
		return model.ErrNotInSession
	}
	return d.leaveCurrent(ctx, conn)
}

// leaveCurrent removes the connection's player from the session it is bound to, if any
func (d *Dispatcher) leaveCurrent(ctx context.Context, conn model.ConnectionID) error {
	b, ok := d.registry.Lookup(conn)
	if !ok {
		return nil
	}
	l, session, err := d.lobbies.Leave(ctx, b.Code, b.PlayerID)
	if err != nil && !errors.Is(err, model.ErrLobbyNotFound) && !errors.Is(err, model.ErrNotInSession) {
		return err
	}
	d.unbindPlayer(b.Code, b.PlayerID)
	if err == nil {
		d.afterDeparture(b.Code, l, session)
	}
	return nil
}

// afterDeparture announces the state left behind by a departing player
func (d *Dispatcher) afterDeparture(code model.SessionCode, l *model.Lobby, session *model.GameSession) {
	if l == nil {
		for _, conn := range d.registry.Members(code) {
			d.registry.Unbind(conn)
		}
		if d.observer != nil {
			d.observer.Close(code)
		}
		d.logger.Info("session closed", slog.String("code", string(code)))
		return
	}
	d.broadcastLobby(l)
	if session != nil {
		d.broadcastGame(session)
	}
}

func (d *Dispatcher) unbindPlayer(code model.SessionCode, playerID model.PlayerID) {
	for _, conn := range d.registry.ConnectionsFor(code, playerID) {
		d.registry.Unbind(conn)
	}
}

func (d *Dispatcher) disconnect(ctx context.Context, conn model.ConnectionID) {
	b, ok := d.registry.Remove(conn)
	d.logger.Debug("connection closed", slog.String("connection_id", string(conn)))
	if !ok {
		return
	}
	// Another connection may still hold the same seat
	if len(d.registry.ConnectionsFor(b.Code, b.PlayerID)) > 0 {
		return
	}
	l, left, err := d.lobbies.Disconnect(ctx, b.Code, b.PlayerID)
	if err != nil {
		if !errors.Is(err, model.ErrLobbyNotFound) {
			d.logger.Error("disconnect failed",
				slog.String("code", string(b.Code)),
				slog.String("player_id", string(b.PlayerID)),
				slog.Any("error", err))
		}
		return
	}
	if left {
		d.afterDeparture(b.Code, l, nil)
		return
	}
	d.ensureConnectedHost(ctx, b.Code)
}

// ensureConnectedHost hands the host role to the first connected member when
// the current host has no live connection, reporting whether it broadcast a change.
// Nothing changes when nobody is connected.
func (d *Dispatcher) ensureConnectedHost(ctx context.Context, code model.SessionCode) bool {
	l, err := d.lobbies.Get(ctx, code)
	if err != nil || len(d.registry.ConnectionsFor(code, l.HostID)) > 0 {
		return false
	}
	for _, p := range l.Players {
		if len(d.registry.ConnectionsFor(code, p.ID)) == 0 {
			continue
		}
		l, err = d.lobbies.TransferHost(ctx, code, p.ID)
		if err != nil {
			d.logger.Error("host failover failed",
				slog.String("code", string(code)),
				slog.String("player_id", string(p.ID)),
				slog.Any("error", err))
			return false
		}
		d.broadcastLobby(l)
		return true
	}
	return false
}

func (d *Dispatcher) handleResume(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p ResumePayload
	if err := msg.Decode(&p); err != nil {
		return err
	}
	l, player, err := d.lobbies.Resume(ctx, model.SessionCode(p.Code), p.PlayerID, p.Token)
	if err != nil {
		return err
	}
	if b, ok := d.registry.Lookup(conn); ok && (b.Code != l.Code || b.PlayerID != player.ID) {
		if err := d.leaveCurrent(ctx, conn); err != nil {
			return err
		}
	}
	d.registry.Bind(conn, l.Code, player.ID)
	d.unicast(conn, TypeJoined, JoinedPayload{Code: l.Code, PlayerID: player.ID})
	if !d.ensureConnectedHost(ctx, l.Code) {
		if l, err = d.lobbies.Get(ctx, l.Code); err != nil {
			return err
		}
		d.unicast(conn, TypeLobbyUpdated, NewLobbyView(l))
	}
	if l.State == model.LobbyStateStarted {
		d.sendGame(ctx, conn, l.Code)
	}
	return nil
}

// Lobby settings

func (d *Dispatcher) handleUpdateSettings(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p UpdateSettingsPayload
	b, err := d.decodeBound(conn, msg, &p, func() string { return p.Code })
	if err != nil {
		return err
	}
	l, err := d.lobbies.UpdateSettings(ctx, b.Code, b.PlayerID, p.Settings.ToModel())
	if err != nil {
		return err
	}
	d.broadcastLobby(l)
	return nil
}

func (d *Dispatcher) handleSetPlayerOrder(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p SetPlayerOrderPayload
	b, err := d.decodeBound(conn, msg, &p, func() string { return p.Code })
	if err != nil {
		return err
	}
	l, err := d.lobbies.ReorderTurns(ctx, b.Code, b.PlayerID, p.Order)
	if err != nil {
		return err
	}
	d.broadcastLobby(l)
	return nil
}

func (d *Dispatcher) handleKickPlayer(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p KickPlayerPayload
	b, err := d.decodeBound(conn, msg, &p, func() string { return p.Code })
	if err != nil {
		return err
	}
	l, session, err := d.lobbies.Kick(ctx, b.Code, b.PlayerID, p.TargetID)
	if err != nil {
		return err
	}
	for _, target := range d.registry.ConnectionsFor(b.Code, p.TargetID) {
		d.unicast(target, TypeKicked, KickedPayload{Code: b.Code})
		d.registry.Unbind(target)
	}
	d.broadcastLobby(l)
	if session != nil {
		d.broadcastGame(session)
	}
	return nil
}

// Game

func (d *Dispatcher) handleStartGame(ctx context.Context, conn model.ConnectionID, msg Message, restart bool) error {
	var p CodePayload
	b, err := d.decodeBound(conn, msg, &p, func() string { return p.Code })
	if err != nil {
		return err
	}
	start := d.ledger.Start
	if restart {
		start = d.ledger.Restart
	}
	session, l, err := start(ctx, b.Code, b.PlayerID)
	if err != nil {
		return err
	}
	d.broadcastLobby(l)
	d.broadcastGame(session)
	return nil
}

func (d *Dispatcher) handleTransferMoney(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p TransferMoneyPayload
	b, err := d.decodeBound(conn, msg, &p, func() string { return p.Code })
	if err != nil {
		return err
	}
	session, err := d.ledger.ApplyTransfer(ctx, b.Code, b.PlayerID, p.From, p.To, p.Amount)
	if err != nil {
		return err
	}
	d.broadcastGame(session)
	return nil
}

func (d *Dispatcher) handleBankAction(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p BankActionPayload
	b, err := d.decodeBound(conn, msg, &p, func() string { return p.Code })
	if err != nil {
		return err
	}
	session, err := d.ledger.ApplyBankAction(ctx, b.Code, b.PlayerID, p.PlayerID, p.Amount, p.Direction)
	if err != nil {
		return err
	}
	d.broadcastGame(session)
	return nil
}

func (d *Dispatcher) handleEndTurn(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p CodePayload
	b, err := d.decodeBound(conn, msg, &p, func() string { return p.Code })
	if err != nil {
		return err
	}
	session, err := d.ledger.EndTurn(ctx, b.Code, b.PlayerID)
	if err != nil {
		return err
	}
	d.broadcastGame(session)
	return nil
}

func (d *Dispatcher) handleUndoTransaction(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p CodePayload
	b, err := d.decodeBound(conn, msg, &p, func() string { return p.Code })
	if err != nil {
		return err
	}
	session, err := d.ledger.UndoLast(ctx, b.Code, b.PlayerID)
	if err != nil {
		return err
	}
	d.broadcastGame(session)
	return nil
}

func (d *Dispatcher) handleUndoSpecificTransaction(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p UndoSpecificTransactionPayload
	b, err := d.decodeBound(conn, msg, &p, func() string { return p.Code })
	if err != nil {
		return err
	}
	session, err := d.ledger.UndoTransaction(ctx, b.Code, b.PlayerID, p.TransactionID)
	if err != nil {
		return err
	}
	d.broadcastGame(session)
	return nil
}

// Resync

func (d *Dispatcher) handleGetLobbyState(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p CodePayload
	b, err := d.decodeBound(conn, msg, &p, func() string { return p.Code })
	if err != nil {
		return err
	}
	l, err := d.lobbies.Get(ctx, b.Code)
	if err != nil {
		return err
	}
	d.unicast(conn, TypeLobbyUpdated, NewLobbyView(l))
	return nil
}

func (d *Dispatcher) handleGetGameState(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p CodePayload
	b, err := d.decodeBound(conn, msg, &p, func() string { return p.Code })
	if err != nil {
		return err
	}
	session, err := d.ledger.Get(ctx, b.Code)
	if err != nil {
		return err
	}
	d.unicast(conn, TypeGameUpdated, NewGameView(session))
	return nil
}

func (d *Dispatcher) handleGetTransactions(ctx context.Context, conn model.ConnectionID, msg Message) error {
	var p CodePayload
	b, err := d.decodeBound(conn, msg, &p, func() string { return p.Code })
	if err != nil {
		return err
	}
	session, err := d.ledger.Get(ctx, b.Code)
	if err != nil {
		return err
	}
	d.unicast(conn, TypeTransactionHistory, NewTransactionHistory(session))
	return nil
}
