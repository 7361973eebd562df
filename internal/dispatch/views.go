package dispatch

import (
	"time"

	"github.com/mcoot/tablebank/internal/model"
)

// PlayerView is the client-facing projection of a lobby member
type PlayerView struct {
	ID       model.PlayerID `json:"id"`
	Name     string         `json:"name"`
	IsHost   bool           `json:"isHost"`
	JoinedAt time.Time      `json:"joinedAt"`
}

// SettingsView is the wire form of lobby settings
type SettingsView struct {
	StartingBalance int64                         `json:"startingBalance"`
	FirstPlayerID   model.PlayerID                `json:"firstPlayer,omitempty"`
	TurnOrder       []model.PlayerID              `json:"turnOrder"`
	QuickAmounts    [model.QuickAmountCount]int64 `json:"quickAmounts"`
}

// ToModel converts the wire settings to the domain type
func (v SettingsView) ToModel() model.Settings {
	return model.Settings{
		StartingBalance: v.StartingBalance,
		FirstPlayerID:   v.FirstPlayerID,
		TurnOrder:       append([]model.PlayerID(nil), v.TurnOrder...),
		QuickAmounts:    v.QuickAmounts,
	}
}

// LobbyView is the payload of lobby-updated
type LobbyView struct {
	Code      model.SessionCode `json:"code"`
	State     model.LobbyState  `json:"state"`
	HostID    model.PlayerID    `json:"hostId"`
	Players   []PlayerView      `json:"players"`
	Settings  SettingsView      `json:"settings"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// TransactionView is the wire form of a ledger entry
type TransactionView struct {
	ID         model.TransactionID   `json:"id"`
	Kind       model.TransactionKind `json:"kind"`
	From       model.PlayerID        `json:"from,omitempty"`
	To         model.PlayerID        `json:"to,omitempty"`
	Amount     int64                 `json:"amount"`
	RecordedBy model.PlayerID        `json:"recordedBy"`
	RecordedAt time.Time             `json:"recordedAt"`
}

// GameView is the payload of game-updated
type GameView struct {
	Code         model.SessionCode         `json:"code"`
	Balances     map[model.PlayerID]int64  `json:"balances"`
	Players      map[model.PlayerID]string `json:"players"`
	TurnOrder    []model.PlayerID          `json:"turnOrder"`
	CurrentTurn  model.PlayerID            `json:"currentTurn"`
	Transactions []TransactionView         `json:"transactions"`
	StartedAt    time.Time                 `json:"startedAt"`
	UpdatedAt    time.Time                 `json:"updatedAt"`
}

// TransactionHistory is the payload of transaction-history
type TransactionHistory struct {
	Code         model.SessionCode `json:"code"`
	Transactions []TransactionView `json:"transactions"`
}

// NewLobbyView projects a lobby. Seat token hashes never leave the process.
func NewLobbyView(lobby *model.Lobby) LobbyView {
	players := make([]PlayerView, len(lobby.Players))
	for i, p := range lobby.Players {
		players[i] = PlayerView{
			ID:       p.ID,
			Name:     p.DisplayName,
			IsHost:   lobby.IsHost(p.ID),
			JoinedAt: p.JoinedAt,
		}
	}
	order := lobby.Settings.TurnOrder
	if order == nil {
		order = []model.PlayerID{}
	}
	return LobbyView{
		Code:    lobby.Code,
		State:   lobby.State,
		HostID:  lobby.HostID,
		Players: players,
		Settings: SettingsView{
			StartingBalance: lobby.Settings.StartingBalance,
			FirstPlayerID:   lobby.Settings.FirstPlayerID,
			TurnOrder:       append([]model.PlayerID{}, order...),
			QuickAmounts:    lobby.Settings.QuickAmounts,
		},
		CreatedAt: lobby.CreatedAt,
		UpdatedAt: lobby.UpdatedAt,
	}
}

// NewTransactionViews projects a ledger, oldest first
func NewTransactionViews(ledger []model.Transaction) []TransactionView {
	views := make([]TransactionView, len(ledger))
	for i, t := range ledger {
		views[i] = TransactionView{
			ID:         t.ID,
			Kind:       t.Kind,
			From:       t.From,
			To:         t.To,
			Amount:     t.Amount,
			RecordedBy: t.RecordedBy,
			RecordedAt: t.RecordedAt,
		}
	}
	return views
}

// NewGameView projects a game session
func NewGameView(session *model.GameSession) GameView {
	balances := make(map[model.PlayerID]int64, len(session.Balances))
	for id, b := range session.Balances {
		balances[id] = b
	}
	names := make(map[model.PlayerID]string, len(session.PlayerNames))
	for id, n := range session.PlayerNames {
		names[id] = n
	}
	return GameView{
		Code:         session.Code,
		Balances:     balances,
		Players:      names,
		TurnOrder:    append([]model.PlayerID{}, session.TurnOrder...),
		CurrentTurn:  session.CurrentTurn,
		Transactions: NewTransactionViews(session.Ledger),
		StartedAt:    session.StartedAt,
		UpdatedAt:    session.UpdatedAt,
	}
}

// NewTransactionHistory projects the ledger of a session
func NewTransactionHistory(session *model.GameSession) TransactionHistory {
	return TransactionHistory{
		Code:         session.Code,
		Transactions: NewTransactionViews(session.Ledger),
	}
}
