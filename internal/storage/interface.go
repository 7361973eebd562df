package storage

import (
	"context"

	"github.com/mcoot/tablebank/internal/model"
)

// Storage is the registry of lobbies and game sessions, both keyed by session code.
// Implementations hand out copies: mutating a returned value never changes stored state
// until it is saved back.
type Storage interface {
	// Lobby operations
	SaveLobby(ctx context.Context, lobby *model.Lobby) error
	GetLobby(ctx context.Context, code model.SessionCode) (*model.Lobby, error)
	DeleteLobby(ctx context.Context, code model.SessionCode) error
	LobbyExists(ctx context.Context, code model.SessionCode) (bool, error)

	// Game session operations
	SaveSession(ctx context.Context, session *model.GameSession) error
	GetSession(ctx context.Context, code model.SessionCode) (*model.GameSession, error)
	DeleteSession(ctx context.Context, code model.SessionCode) error
	SessionExists(ctx context.Context, code model.SessionCode) (bool, error)
}

// CodeInUse reports whether a session code is taken by a lobby or a session
func CodeInUse(ctx context.Context, s Storage, code model.SessionCode) (bool, error) {
	exists, err := s.LobbyExists(ctx, code)
	if err != nil || exists {
		return exists, err
	}
	return s.SessionExists(ctx, code)
}
