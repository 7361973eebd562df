package lobby

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mcoot/tablebank/internal/dependencies/clock"
	"github.com/mcoot/tablebank/internal/dependencies/idgen"
	"github.com/mcoot/tablebank/internal/model"
	"github.com/mcoot/tablebank/internal/services/codegen"
	"github.com/mcoot/tablebank/internal/services/gate"
	"github.com/mcoot/tablebank/internal/services/identity"
	"github.com/mcoot/tablebank/internal/services/ledger"
	"github.com/mcoot/tablebank/internal/storage"
)

// JoinResult describes a successful join
type JoinResult struct {
	Lobby  *model.Lobby
	Player model.Player

	// SeatToken is returned once, to the joining connection only
	SeatToken string

	// Created is true when the join created the lobby
	Created bool
}

// Controller manages lobby membership, settings, and host reassignment
type Controller struct {
	storage  storage.Storage
	ledger   ledger.ControllerInterface
	codes    codegen.CodeGenerator
	identity *identity.Service
	ids      idgen.Generator
	clock    clock.Clock
	defaults model.Settings
	logger   *slog.Logger
}

// NewController creates a new lobby Controller. New lobbies start with the given default settings.
func NewController(
	storage storage.Storage,
	ledger ledger.ControllerInterface,
	codes codegen.CodeGenerator,
	identity *identity.Service,
	ids idgen.Generator,
	clock clock.Clock,
	defaults model.Settings,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:  storage,
		ledger:   ledger,
		codes:    codes,
		identity: identity,
		ids:      ids,
		clock:    clock,
		defaults: defaults,
		logger:   logger.With(slog.String("component", "lobby")),
	}
}

// NormalizeCode trims and upper-cases a client-supplied session code
func NormalizeCode(code string) model.SessionCode {
	return model.SessionCode(strings.ToUpper(strings.TrimSpace(code)))
}

// Create draws a fresh session code and joins it as host
func (c *Controller) Create(ctx context.Context, name string) (*JoinResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, model.ErrInvalidName
	}
	code, err := c.codes.NewSessionCode(ctx)
	if err != nil {
		return nil, err
	}
	return c.Join(ctx, code, name)
}

// Join adds a player to the lobby for code, creating the lobby with the player
// as host when none exists. Players joining a started game become members
// without a seat until the host restarts.
func (c *Controller) Join(ctx context.Context, code model.SessionCode, name string) (*JoinResult, error) {
	code = NormalizeCode(string(code))
	if code == "" {
		return nil, model.ErrInvalidCode
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.ErrInvalidName
	}

	lobby, err := c.storage.GetLobby(ctx, code)
	created := false
	if errors.Is(err, model.ErrLobbyNotFound) {
		lobby, err = c.newLobby(ctx, code)
		created = true
	}
	if err != nil {
		return nil, err
	}

	token, hash, err := c.identity.Issue()
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	player := model.Player{
		ID:            model.PlayerID(c.ids.NewID()),
		DisplayName:   name,
		JoinedAt:      now,
		SeatTokenHash: hash,
	}
	lobby.Players = append(lobby.Players, player)
	if created {
		lobby.HostID = player.ID
	}
	if len(lobby.Settings.TurnOrder) > 0 {
		lobby.Settings.TurnOrder = append(lobby.Settings.TurnOrder, player.ID)
	}
	lobby.UpdatedAt = now

	if err := c.storage.SaveLobby(ctx, lobby); err != nil {
		return nil, err
	}

	c.logger.Info("player joined",
		slog.String("code", string(code)),
		slog.String("player_id", string(player.ID)),
		slog.Bool("created", created),
		slog.String("state", string(lobby.State)),
	)
	return &JoinResult{Lobby: lobby, Player: player, SeatToken: token, Created: created}, nil
}

func (c *Controller) newLobby(ctx context.Context, code model.SessionCode) (*model.Lobby, error) {
	// A session can outlive its lobby only transiently; never reuse its code
	exists, err := c.storage.SessionExists(ctx, code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.ErrAlreadyStarted
	}
	now := c.clock.Now()
	return &model.Lobby{
		Code:      code,
		State:     model.LobbyStateOpen,
		Players:   []model.Player{},
		Settings:  c.defaults.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Get retrieves a lobby by code
func (c *Controller) Get(ctx context.Context, code model.SessionCode) (*model.Lobby, error) {
	return c.storage.GetLobby(ctx, code)
}

// Leave removes a player from the lobby. The returned lobby is nil when the last
// player left and the lobby was deleted; the returned session is non-nil when the
// player was also dropped from a running game's turn order.
func (c *Controller) Leave(ctx context.Context, code model.SessionCode, playerID model.PlayerID) (*model.Lobby, *model.GameSession, error) {
	lobby, err := c.storage.GetLobby(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if err := gate.RequireMember(lobby, playerID); err != nil {
		return nil, nil, err
	}

	wasHost := lobby.IsHost(playerID)
	removePlayer(lobby, playerID)

	if len(lobby.Players) == 0 {
		if err := c.ledger.Discard(ctx, code); err != nil {
			return nil, nil, err
		}
		if err := c.storage.DeleteLobby(ctx, code); err != nil {
			return nil, nil, err
		}
		c.logger.Info("lobby deleted",
			slog.String("code", string(code)),
			slog.String("player_id", string(playerID)),
		)
		return nil, nil, nil
	}

	lobby.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveLobby(ctx, lobby); err != nil {
		return nil, nil, err
	}

	var session *model.GameSession
	if lobby.State == model.LobbyStateStarted {
		session, err = c.ledger.RemoveFromTurnOrder(ctx, code, playerID)
		if err != nil && !errors.Is(err, model.ErrSessionNotFound) {
			return nil, nil, err
		}
	}

	c.logger.Info("player left",
		slog.String("code", string(code)),
		slog.String("player_id", string(playerID)),
		slog.Bool("was_host", wasHost),
		slog.String("host_id", string(lobby.HostID)),
	)
	return lobby, session, nil
}

// Disconnect applies the policy for a dropped connection. While the lobby is open
// the player leaves; once the game has started they keep their seat so they can
// resume it. left reports whether the player was removed; the lobby is nil when
// it was deleted or nothing changed.
func (c *Controller) Disconnect(ctx context.Context, code model.SessionCode, playerID model.PlayerID) (*model.Lobby, bool, error) {
	lobby, err := c.storage.GetLobby(ctx, code)
	if err != nil {
		return nil, false, err
	}
	if !lobby.HasPlayer(playerID) || lobby.State == model.LobbyStateStarted {
		return nil, false, nil
	}
	lobby, _, err = c.Leave(ctx, code, playerID)
	if err != nil {
		return nil, false, err
	}
	return lobby, true, nil
}

// Resume verifies a seat token for a player who is still a lobby member
func (c *Controller) Resume(ctx context.Context, code model.SessionCode, playerID model.PlayerID, token string) (*model.Lobby, *model.Player, error) {
	code = NormalizeCode(string(code))
	lobby, err := c.storage.GetLobby(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	player := lobby.GetPlayer(playerID)
	if player == nil {
		return nil, nil, model.ErrInvalidSeatToken
	}
	if err := c.identity.Verify(player, token); err != nil {
		c.logger.Debug("seat token rejected",
			slog.String("code", string(code)),
			slog.String("player_id", string(playerID)),
		)
		return nil, nil, err
	}

	c.logger.Info("player resumed",
		slog.String("code", string(code)),
		slog.String("player_id", string(playerID)),
	)
	return lobby, player, nil
}

// UpdateSettings replaces the lobby settings wholesale. Host only, before the game starts.
func (c *Controller) UpdateSettings(ctx context.Context, code model.SessionCode, caller model.PlayerID, settings model.Settings) (*model.Lobby, error) {
	lobby, err := c.storage.GetLobby(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := gate.RequireHost(lobby, caller); err != nil {
		return nil, err
	}
	if lobby.State == model.LobbyStateStarted {
		return nil, model.ErrGameInProgress
	}
	if err := ValidateSettings(lobby, settings); err != nil {
		return nil, err
	}

	lobby.Settings = settings.Clone()
	lobby.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveLobby(ctx, lobby); err != nil {
		return nil, err
	}

	c.logger.Info("settings updated",
		slog.String("code", string(code)),
		slog.String("player_id", string(caller)),
		slog.Int64("starting_balance", settings.StartingBalance),
	)
	return lobby, nil
}

// ValidateSettings checks settings against the lobby's current members
func ValidateSettings(lobby *model.Lobby, settings model.Settings) error {
	if settings.StartingBalance < 0 {
		return model.ErrInvalidSettings
	}
	for _, amount := range settings.QuickAmounts {
		if amount <= 0 {
			return model.ErrInvalidSettings
		}
	}
	if settings.FirstPlayerID != "" && !lobby.HasPlayer(settings.FirstPlayerID) {
		return model.ErrInvalidSettings
	}
	if len(settings.TurnOrder) > 0 && !ledger.IsPermutation(settings.TurnOrder, lobby.PlayerIDs()) {
		return model.ErrInvalidSettings
	}
	return nil
}

// ReorderTurns sets the turn order. Any member may reorder while the lobby is open.
func (c *Controller) ReorderTurns(ctx context.Context, code model.SessionCode, caller model.PlayerID, order []model.PlayerID) (*model.Lobby, error) {
	lobby, err := c.storage.GetLobby(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := gate.RequireMember(lobby, caller); err != nil {
		return nil, err
	}
	if lobby.State == model.LobbyStateStarted {
		return nil, model.ErrGameInProgress
	}
	if !ledger.IsPermutation(order, lobby.PlayerIDs()) {
		return nil, model.ErrInvalidOrder
	}

	lobby.Settings.TurnOrder = append([]model.PlayerID(nil), order...)
	lobby.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveLobby(ctx, lobby); err != nil {
		return nil, err
	}

	c.logger.Info("turn order updated",
		slog.String("code", string(code)),
		slog.String("player_id", string(caller)),
		slog.Int("player_count", len(order)),
	)
	return lobby, nil
}

// Kick removes another player. Host only. During a game the target also leaves
// the turn order; their balance is kept for history.
func (c *Controller) Kick(ctx context.Context, code model.SessionCode, caller, target model.PlayerID) (*model.Lobby, *model.GameSession, error) {
	lobby, err := c.storage.GetLobby(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if err := gate.RequireHost(lobby, caller); err != nil {
		return nil, nil, err
	}
	if target == caller {
		return nil, nil, model.ErrCannotKickSelf
	}
	if !lobby.HasPlayer(target) {
		return nil, nil, model.ErrPlayerNotFound
	}

	removePlayer(lobby, target)
	lobby.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveLobby(ctx, lobby); err != nil {
		return nil, nil, err
	}

	var session *model.GameSession
	if lobby.State == model.LobbyStateStarted {
		session, err = c.ledger.RemoveFromTurnOrder(ctx, code, target)
		if err != nil && !errors.Is(err, model.ErrSessionNotFound) {
			return nil, nil, err
		}
	}

	c.logger.Info("player kicked",
		slog.String("code", string(code)),
		slog.String("player_id", string(target)),
		slog.String("host_id", string(caller)),
	)
	return lobby, session, nil
}

// TransferHost makes another member the host. The dispatcher uses it when the
// host's last connection drops after the game has started.
func (c *Controller) TransferHost(ctx context.Context, code model.SessionCode, to model.PlayerID) (*model.Lobby, error) {
	lobby, err := c.storage.GetLobby(ctx, code)
	if err != nil {
		return nil, err
	}
	if !lobby.HasPlayer(to) {
		return nil, model.ErrPlayerNotFound
	}
	if lobby.HostID == to {
		return lobby, nil
	}

	previous := lobby.HostID
	lobby.HostID = to
	lobby.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveLobby(ctx, lobby); err != nil {
		return nil, err
	}

	c.logger.Info("host transferred",
		slog.String("code", string(code)),
		slog.String("player_id", string(to)),
		slog.String("previous_host_id", string(previous)),
	)
	return lobby, nil
}

// removePlayer drops a member and repairs host, turn order, and first player
func removePlayer(lobby *model.Lobby, playerID model.PlayerID) {
	for i, p := range lobby.Players {
		if p.ID == playerID {
			lobby.Players = append(lobby.Players[:i:i], lobby.Players[i+1:]...)
			break
		}
	}

	order := lobby.Settings.TurnOrder
	for i, id := range order {
		if id == playerID {
			lobby.Settings.TurnOrder = append(order[:i:i], order[i+1:]...)
			break
		}
	}

	if len(lobby.Players) == 0 {
		lobby.HostID = ""
		lobby.Settings.FirstPlayerID = ""
		return
	}
	if lobby.HostID == playerID {
		lobby.HostID = lobby.Players[0].ID
	}
	if lobby.Settings.FirstPlayerID == playerID {
		if len(lobby.Settings.TurnOrder) > 0 {
			lobby.Settings.FirstPlayerID = lobby.Settings.TurnOrder[0]
		} else {
			lobby.Settings.FirstPlayerID = lobby.Players[0].ID
		}
	}
}

// ControllerInterface is the lobby surface used by the dispatcher
type ControllerInterface interface {
	Create(ctx context.Context, name string) (*JoinResult, error)
	Join(ctx context.Context, code model.SessionCode, name string) (*JoinResult, error)
	Get(ctx context.Context, code model.SessionCode) (*model.Lobby, error)
	Leave(ctx context.Context, code model.SessionCode, playerID model.PlayerID) (*model.Lobby, *model.GameSession, error)
	Disconnect(ctx context.Context, code model.SessionCode, playerID model.PlayerID) (*model.Lobby, bool, error)
	Resume(ctx context.Context, code model.SessionCode, playerID model.PlayerID, token string) (*model.Lobby, *model.Player, error)
	UpdateSettings(ctx context.Context, code model.SessionCode, caller model.PlayerID, settings model.Settings) (*model.Lobby, error)
	ReorderTurns(ctx context.Context, code model.SessionCode, caller model.PlayerID, order []model.PlayerID) (*model.Lobby, error)
	Kick(ctx context.Context, code model.SessionCode, caller, target model.PlayerID) (*model.Lobby, *model.GameSession, error)
	TransferHost(ctx context.Context, code model.SessionCode, to model.PlayerID) (*model.Lobby, error)
}

var _ ControllerInterface = (*Controller)(nil)
