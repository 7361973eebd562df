package model

import "time"

// SessionCode is the short human-readable key shared by a lobby and its game session
type SessionCode string

// LobbyState represents the current state of a lobby
type LobbyState string

const (
	LobbyStateOpen    LobbyState = "open"    // Players joining, settings editable
	LobbyStateStarted LobbyState = "started" // Game session is the authority for money
)

// QuickAmountCount is the number of preset amounts offered to players
const QuickAmountCount = 3

// Settings holds the host-configurable game settings
type Settings struct {
	StartingBalance int64
	FirstPlayerID   PlayerID   // Empty means the head of the turn order
	TurnOrder       []PlayerID // Empty means join order
	QuickAmounts    [QuickAmountCount]int64
}

// DefaultSettings returns the default game settings
func DefaultSettings() Settings {
	return Settings{
		StartingBalance: 1500,
		QuickAmounts:    [QuickAmountCount]int64{10, 50, 100},
	}
}

// Clone returns a deep copy of the settings
func (s Settings) Clone() Settings {
	out := s
	if s.TurnOrder != nil {
		out.TurnOrder = append([]PlayerID(nil), s.TurnOrder...)
	}
	return out
}

// Lobby represents the pre-game grouping of players owned by a host
type Lobby struct {
	Code      SessionCode
	State     LobbyState
	HostID    PlayerID
	Players   []Player // Join order
	Settings  Settings
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetPlayer returns the player with the given ID, or nil if not found
func (l *Lobby) GetPlayer(playerID PlayerID) *Player {
	for i := range l.Players {
		if l.Players[i].ID == playerID {
			return &l.Players[i]
		}
	}
	return nil
}

// HasPlayer returns true if the player is a member of the lobby
func (l *Lobby) HasPlayer(playerID PlayerID) bool {
	return l.GetPlayer(playerID) != nil
}

// PlayerIDs returns member IDs in join order
func (l *Lobby) PlayerIDs() []PlayerID {
	ids := make([]PlayerID, len(l.Players))
	for i, p := range l.Players {
		ids[i] = p.ID
	}
	return ids
}

// IsHost returns true if the given player is the host
func (l *Lobby) IsHost(playerID PlayerID) bool {
	return playerID != "" && l.HostID == playerID
}

// Clone returns a deep copy of the lobby
func (l *Lobby) Clone() *Lobby {
	out := *l
	out.Players = append([]Player(nil), l.Players...)
	out.Settings = l.Settings.Clone()
	return &out
}
