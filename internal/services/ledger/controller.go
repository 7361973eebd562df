package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/tablebank/internal/dependencies/clock"
	"github.com/mcoot/tablebank/internal/model"
	"github.com/mcoot/tablebank/internal/services/gate"
	"github.com/mcoot/tablebank/internal/storage"
)

// UndoMode selects how removing a transaction from the middle of the ledger
// is reflected in balances
type UndoMode string

const (
	// UndoModeInverse applies the removed transaction's inverse to current balances
	UndoModeInverse UndoMode = "inverse"
	// UndoModeReplay recomputes balances from the starting snapshot and the remaining ledger
	UndoModeReplay UndoMode = "replay"
)

// ParseUndoMode converts a config value to an UndoMode
func ParseUndoMode(s string) (UndoMode, error) {
	switch UndoMode(s) {
	case UndoModeInverse, UndoModeReplay:
		return UndoMode(s), nil
	case "":
		return UndoModeInverse, nil
	default:
		return "", fmt.Errorf("unknown undo mode %q", s)
	}
}

// Controller owns game sessions: balances, the ledger, and turn rotation
type Controller struct {
	storage  storage.Storage
	clock    clock.Clock
	undoMode UndoMode
	logger   *slog.Logger
}

// NewController creates a new ledger Controller
func NewController(
	storage storage.Storage,
	clock clock.Clock,
	undoMode UndoMode,
	logger *slog.Logger,
) *Controller {
	if undoMode == "" {
		undoMode = UndoModeInverse
	}
	return &Controller{
		storage:  storage,
		clock:    clock,
		undoMode: undoMode,
		logger:   logger.With(slog.String("component", "ledger")),
	}
}

// UndoMode returns the configured undo mode
func (c *Controller) UndoMode() UndoMode {
	return c.undoMode
}

// Start creates the game session for a lobby. Only the host may start, and only once.
func (c *Controller) Start(ctx context.Context, code model.SessionCode, caller model.PlayerID) (*model.GameSession, *model.Lobby, error) {
	lobby, err := c.storage.GetLobby(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if err := gate.RequireHost(lobby, caller); err != nil {
		return nil, nil, err
	}

	exists, err := c.storage.SessionExists(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if exists || lobby.State == model.LobbyStateStarted {
		return nil, nil, model.ErrAlreadyStarted
	}

	return c.materialize(ctx, lobby, caller)
}

// Restart replaces a running session with a fresh one, discarding balances and ledger
func (c *Controller) Restart(ctx context.Context, code model.SessionCode, caller model.PlayerID) (*model.GameSession, *model.Lobby, error) {
	lobby, err := c.storage.GetLobby(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if err := gate.RequireHost(lobby, caller); err != nil {
		return nil, nil, err
	}

	exists, err := c.storage.SessionExists(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, model.ErrNoGameInProgress
	}

	c.logger.Info("game restarted",
		slog.String("code", string(code)),
		slog.String("player_id", string(caller)),
	)
	return c.materialize(ctx, lobby, caller)
}

func (c *Controller) materialize(ctx context.Context, lobby *model.Lobby, caller model.PlayerID) (*model.GameSession, *model.Lobby, error) {
	if len(lobby.Players) == 0 {
		return nil, nil, model.ErrInsufficientPlayers
	}

	now := c.clock.Now()
	settings := lobby.Settings

	session := &model.GameSession{
		Code:              lobby.Code,
		Balances:          make(map[model.PlayerID]int64, len(lobby.Players)),
		StartingBalances:  make(map[model.PlayerID]int64, len(lobby.Players)),
		PlayerNames:       make(map[model.PlayerID]string, len(lobby.Players)),
		Ledger:            []model.Transaction{},
		NextTransactionID: 1,
		StartedAt:         now,
		UpdatedAt:         now,
	}
	for _, p := range lobby.Players {
		session.Balances[p.ID] = settings.StartingBalance
		session.StartingBalances[p.ID] = settings.StartingBalance
		session.PlayerNames[p.ID] = p.DisplayName
	}

	session.TurnOrder = turnOrderFor(lobby)
	session.CurrentTurn = session.TurnOrder[0]
	if settings.FirstPlayerID != "" && session.TurnIndex(settings.FirstPlayerID) >= 0 {
		session.CurrentTurn = settings.FirstPlayerID
	}

	if err := c.storage.SaveSession(ctx, session); err != nil {
		c.logger.Error("failed to save session",
			slog.String("code", string(lobby.Code)),
			slog.String("error", err.Error()),
		)
		return nil, nil, err
	}

	lobby.State = model.LobbyStateStarted
	lobby.UpdatedAt = now
	if err := c.storage.SaveLobby(ctx, lobby); err != nil {
		return nil, nil, err
	}

	c.logger.Info("game started",
		slog.String("code", string(lobby.Code)),
		slog.String("player_id", string(caller)),
		slog.Int("player_count", len(lobby.Players)),
		slog.Int64("starting_balance", settings.StartingBalance),
	)
	return session, lobby, nil
}

// turnOrderFor uses the configured order when it still covers every player, else join order
func turnOrderFor(lobby *model.Lobby) []model.PlayerID {
	order := lobby.Settings.TurnOrder
	if len(order) == 0 || !IsPermutation(order, lobby.PlayerIDs()) {
		return lobby.PlayerIDs()
	}
	return append([]model.PlayerID(nil), order...)
}

// ApplyTransfer moves money from the turn holder to another seated player
func (c *Controller) ApplyTransfer(ctx context.Context, code model.SessionCode, caller, from, to model.PlayerID, amount int64) (*model.GameSession, error) {
	session, err := c.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := gate.RequireTurnHolder(session, caller, from); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	if from == to {
		return nil, model.ErrInvalidTransfer
	}
	if !session.HasSeat(from) || !session.HasSeat(to) {
		return nil, model.ErrPlayerNotFound
	}

	tx := c.record(session, model.Transaction{
		Kind:       model.TransactionTransfer,
		From:       from,
		To:         to,
		Amount:     amount,
		RecordedBy: caller,
	})
	if err := c.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	c.logger.Info("transfer recorded",
		slog.String("code", string(code)),
		slog.String("player_id", string(from)),
		slog.String("to_player_id", string(to)),
		slog.Int64("amount", amount),
		slog.Int64("transaction_id", int64(tx.ID)),
	)
	return session, nil
}

// ApplyBankAction adds money from or returns money to the bank for the turn holder
func (c *Controller) ApplyBankAction(ctx context.Context, code model.SessionCode, caller, player model.PlayerID, amount int64, direction model.Direction) (*model.GameSession, error) {
	session, err := c.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := gate.RequireTurnHolder(session, caller, player); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	if !direction.Valid() {
		return nil, model.ErrInvalidDirection
	}
	if !session.HasSeat(player) {
		return nil, model.ErrPlayerNotFound
	}

	entry := model.Transaction{Amount: amount, RecordedBy: caller}
	if direction == model.DirectionAdd {
		entry.Kind = model.TransactionBankAdd
		entry.To = player
	} else {
		entry.Kind = model.TransactionBankSubtract
		entry.From = player
	}
	tx := c.record(session, entry)
	if err := c.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	c.logger.Info("bank action recorded",
		slog.String("code", string(code)),
		slog.String("player_id", string(player)),
		slog.String("direction", string(direction)),
		slog.Int64("amount", amount),
		slog.Int64("transaction_id", int64(tx.ID)),
	)
	return session, nil
}

func (c *Controller) record(session *model.GameSession, tx model.Transaction) model.Transaction {
	now := c.clock.Now()
	tx.ID = session.NextTransactionID
	tx.RecordedAt = now
	session.NextTransactionID++
	tx.Apply(session.Balances)
	session.Ledger = append(session.Ledger, tx)
	session.UpdatedAt = now
	return tx
}

// EndTurn passes the turn to the next player in the turn order, wrapping around
func (c *Controller) EndTurn(ctx context.Context, code model.SessionCode, caller model.PlayerID) (*model.GameSession, error) {
	session, err := c.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(session.TurnOrder) == 0 {
		return nil, model.ErrEmptyTurnOrder
	}
	if err := gate.RequireTurn(session, caller); err != nil {
		return nil, err
	}

	idx := session.TurnIndex(caller)
	session.CurrentTurn = session.TurnOrder[(idx+1)%len(session.TurnOrder)]
	session.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	c.logger.Info("turn ended",
		slog.String("code", string(code)),
		slog.String("player_id", string(caller)),
		slog.String("next_player_id", string(session.CurrentTurn)),
	)
	return session, nil
}

// UndoLast removes the most recent transaction and applies its exact inverse
func (c *Controller) UndoLast(ctx context.Context, code model.SessionCode, caller model.PlayerID) (*model.GameSession, error) {
	session, err := c.hostSession(ctx, code, caller)
	if err != nil {
		return nil, err
	}
	if len(session.Ledger) == 0 {
		return nil, model.ErrNothingToUndo
	}

	last := session.Ledger[len(session.Ledger)-1]
	session.Ledger = session.Ledger[:len(session.Ledger)-1]
	last.Revert(session.Balances)
	session.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	c.logger.Info("transaction undone",
		slog.String("code", string(code)),
		slog.String("player_id", string(caller)),
		slog.Int64("transaction_id", int64(last.ID)),
		slog.Int64("amount", last.Amount),
	)
	return session, nil
}

// UndoTransaction removes a transaction from anywhere in the ledger.
// Every transaction is an additive delta, so inverse and replay mode leave the
// same balances; inverse mode still checks against a replay and warns on drift.
func (c *Controller) UndoTransaction(ctx context.Context, code model.SessionCode, caller model.PlayerID, id model.TransactionID) (*model.GameSession, error) {
	session, err := c.hostSession(ctx, code, caller)
	if err != nil {
		return nil, err
	}

	idx := session.FindTransaction(id)
	if idx < 0 {
		return nil, model.ErrTransactionNotFound
	}
	removed := session.Ledger[idx]
	session.Ledger = append(session.Ledger[:idx:idx], session.Ledger[idx+1:]...)

	switch c.undoMode {
	case UndoModeReplay:
		session.Balances = Replay(session)
	default:
		removed.Revert(session.Balances)
		if idx < len(session.Ledger) && !balancesEqual(session.Balances, Replay(session)) {
			c.logger.Warn("undo left balances inconsistent with ledger replay",
				slog.String("code", string(code)),
				slog.Int64("transaction_id", int64(id)),
				slog.Int("later_transactions", len(session.Ledger)-idx),
			)
		}
	}
	session.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	c.logger.Info("transaction undone",
		slog.String("code", string(code)),
		slog.String("player_id", string(caller)),
		slog.Int64("transaction_id", int64(id)),
		slog.Int64("amount", removed.Amount),
		slog.String("undo_mode", string(c.undoMode)),
	)
	return session, nil
}

func (c *Controller) hostSession(ctx context.Context, code model.SessionCode, caller model.PlayerID) (*model.GameSession, error) {
	lobby, err := c.storage.GetLobby(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := gate.RequireHost(lobby, caller); err != nil {
		return nil, err
	}
	return c.storage.GetSession(ctx, code)
}

// RemoveFromTurnOrder drops a player from the rotation. Their balance stays for history.
// The turn passes to the next player if they held it.
func (c *Controller) RemoveFromTurnOrder(ctx context.Context, code model.SessionCode, player model.PlayerID) (*model.GameSession, error) {
	session, err := c.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}

	idx := session.TurnIndex(player)
	if idx < 0 {
		return session, nil
	}
	session.TurnOrder = append(session.TurnOrder[:idx:idx], session.TurnOrder[idx+1:]...)
	if session.CurrentTurn == player {
		if len(session.TurnOrder) == 0 {
			session.CurrentTurn = ""
		} else {
			session.CurrentTurn = session.TurnOrder[idx%len(session.TurnOrder)]
		}
	}
	session.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	c.logger.Info("player removed from turn order",
		slog.String("code", string(code)),
		slog.String("player_id", string(player)),
		slog.String("current_turn", string(session.CurrentTurn)),
	)
	return session, nil
}

// Discard deletes the session for a code, if any
func (c *Controller) Discard(ctx context.Context, code model.SessionCode) error {
	err := c.storage.DeleteSession(ctx, code)
	if err != nil && !errors.Is(err, model.ErrSessionNotFound) {
		return err
	}
	return nil
}

// Get retrieves a session by code
func (c *Controller) Get(ctx context.Context, code model.SessionCode) (*model.GameSession, error) {
	return c.storage.GetSession(ctx, code)
}

// History returns the ledger for a session, oldest first
func (c *Controller) History(ctx context.Context, code model.SessionCode) ([]model.Transaction, error) {
	session, err := c.storage.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	return session.Ledger, nil
}

// Replay recomputes balances from the starting snapshot and the current ledger
func Replay(session *model.GameSession) map[model.PlayerID]int64 {
	return session.ReplayBalances()
}

// IsPermutation reports whether order lists exactly the given ids, each once
func IsPermutation(order, ids []model.PlayerID) bool {
	if len(order) != len(ids) {
		return false
	}
	want := make(map[model.PlayerID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, id := range order {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return len(want) == 0
}

func balancesEqual(a, b map[model.PlayerID]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// ControllerInterface is the session ledger surface used by the dispatcher
type ControllerInterface interface {
	Start(ctx context.Context, code model.SessionCode, caller model.PlayerID) (*model.GameSession, *model.Lobby, error)
	Restart(ctx context.Context, code model.SessionCode, caller model.PlayerID) (*model.GameSession, *model.Lobby, error)
	ApplyTransfer(ctx context.Context, code model.SessionCode, caller, from, to model.PlayerID, amount int64) (*model.GameSession, error)
	ApplyBankAction(ctx context.Context, code model.SessionCode, caller, player model.PlayerID, amount int64, direction model.Direction) (*model.GameSession, error)
	EndTurn(ctx context.Context, code model.SessionCode, caller model.PlayerID) (*model.GameSession, error)
	UndoLast(ctx context.Context, code model.SessionCode, caller model.PlayerID) (*model.GameSession, error)
	UndoTransaction(ctx context.Context, code model.SessionCode, caller model.PlayerID, id model.TransactionID) (*model.GameSession, error)
	RemoveFromTurnOrder(ctx context.Context, code model.SessionCode, player model.PlayerID) (*model.GameSession, error)
	Discard(ctx context.Context, code model.SessionCode) error
	Get(ctx context.Context, code model.SessionCode) (*model.GameSession, error)
	History(ctx context.Context, code model.SessionCode) ([]model.Transaction, error)
}

var _ ControllerInterface = (*Controller)(nil)
