package memory

import (
	"context"
	"sync"

	"github.com/mcoot/tablebank/internal/model"
	"github.com/mcoot/tablebank/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	lobbies  map[model.SessionCode]*model.Lobby
	sessions map[model.SessionCode]*model.GameSession
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		lobbies:  make(map[model.SessionCode]*model.Lobby),
		sessions: make(map[model.SessionCode]*model.GameSession),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Lobby operations

func (s *Storage) SaveLobby(ctx context.Context, lobby *model.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbies[lobby.Code] = lobby.Clone()
	return nil
}

func (s *Storage) GetLobby(ctx context.Context, code model.SessionCode) (*model.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lobby, ok := s.lobbies[code]
	if !ok {
		return nil, model.ErrLobbyNotFound
	}
	return lobby.Clone(), nil
}

func (s *Storage) DeleteLobby(ctx context.Context, code model.SessionCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, code)
	return nil
}

func (s *Storage) LobbyExists(ctx context.Context, code model.SessionCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lobbies[code]
	return ok, nil
}

// Game session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Code] = session.Clone()
	return nil
}

func (s *Storage) GetSession(ctx context.Context, code model.SessionCode) (*model.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[code]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Storage) DeleteSession(ctx context.Context, code model.SessionCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
	return nil
}

func (s *Storage) SessionExists(ctx context.Context, code model.SessionCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[code]
	return ok, nil
}
