package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tablebank/internal/model"
	"github.com/mcoot/tablebank/internal/storage"
)

type StorageSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.ctx = context.Background()
}

func (s *StorageSuite) newLobby(code model.SessionCode) *model.Lobby {
	return &model.Lobby{
		Code:   code,
		State:  model.LobbyStateOpen,
		HostID: "p1",
		Players: []model.Player{
			{ID: "p1", DisplayName: "Alice"},
			{ID: "p2", DisplayName: "Bob"},
		},
		Settings:  model.DefaultSettings(),
		CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *StorageSuite) newSession(code model.SessionCode) *model.GameSession {
	return &model.GameSession{
		Code:              code,
		Balances:          map[model.PlayerID]int64{"p1": 1500, "p2": 1500},
		StartingBalances:  map[model.PlayerID]int64{"p1": 1500, "p2": 1500},
		PlayerNames:       map[model.PlayerID]string{"p1": "Alice", "p2": "Bob"},
		TurnOrder:         []model.PlayerID{"p1", "p2"},
		CurrentTurn:       "p1",
		NextTransactionID: 1,
	}
}

// Lobby tests

func (s *StorageSuite) TestSaveAndGetLobby() {
	lobby := s.newLobby("ABCDE")

	s.Require().NoError(s.storage.SaveLobby(s.ctx, lobby))

	retrieved, err := s.storage.GetLobby(s.ctx, "ABCDE")
	s.Require().NoError(err)
	s.Equal(lobby.Code, retrieved.Code)
	s.Equal(lobby.HostID, retrieved.HostID)
	s.Len(retrieved.Players, 2)
}

func (s *StorageSuite) TestGetLobbyNotFound() {
	_, err := s.storage.GetLobby(s.ctx, "NONEXISTENT")
	s.ErrorIs(err, model.ErrLobbyNotFound)
}

func (s *StorageSuite) TestGetLobbyReturnsCopy() {
	_ = s.storage.SaveLobby(s.ctx, s.newLobby("ABCDE"))

	retrieved, _ := s.storage.GetLobby(s.ctx, "ABCDE")
	retrieved.Players[0].DisplayName = "Mallory"
	retrieved.HostID = "p2"

	again, _ := s.storage.GetLobby(s.ctx, "ABCDE")
	s.Equal("Alice", again.Players[0].DisplayName)
	s.Equal(model.PlayerID("p1"), again.HostID)
}

func (s *StorageSuite) TestSaveLobbyStoresCopy() {
	lobby := s.newLobby("ABCDE")
	_ = s.storage.SaveLobby(s.ctx, lobby)

	lobby.Settings.TurnOrder = append(lobby.Settings.TurnOrder, "p9")

	retrieved, _ := s.storage.GetLobby(s.ctx, "ABCDE")
	s.Empty(retrieved.Settings.TurnOrder)
}

func (s *StorageSuite) TestDeleteLobby() {
	_ = s.storage.SaveLobby(s.ctx, s.newLobby("ABCDE"))

	s.Require().NoError(s.storage.DeleteLobby(s.ctx, "ABCDE"))

	_, err := s.storage.GetLobby(s.ctx, "ABCDE")
	s.ErrorIs(err, model.ErrLobbyNotFound)
}

func (s *StorageSuite) TestLobbyExists() {
	exists, err := s.storage.LobbyExists(s.ctx, "ABCDE")
	s.Require().NoError(err)
	s.False(exists)

	_ = s.storage.SaveLobby(s.ctx, s.newLobby("ABCDE"))

	exists, err = s.storage.LobbyExists(s.ctx, "ABCDE")
	s.Require().NoError(err)
	s.True(exists)
}

// Session tests

func (s *StorageSuite) TestSaveAndGetSession() {
	session := s.newSession("ABCDE")

	s.Require().NoError(s.storage.SaveSession(s.ctx, session))

	retrieved, err := s.storage.GetSession(s.ctx, "ABCDE")
	s.Require().NoError(err)
	s.Equal(session.Balances, retrieved.Balances)
	s.Equal(session.TurnOrder, retrieved.TurnOrder)
	s.Equal(model.PlayerID("p1"), retrieved.CurrentTurn)
}

func (s *StorageSuite) TestGetSessionNotFound() {
	_, err := s.storage.GetSession(s.ctx, "NONEXISTENT")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StorageSuite) TestGetSessionReturnsCopy() {
	_ = s.storage.SaveSession(s.ctx, s.newSession("ABCDE"))

	retrieved, _ := s.storage.GetSession(s.ctx, "ABCDE")
	retrieved.Balances["p1"] = 0
	retrieved.Ledger = append(retrieved.Ledger, model.Transaction{ID: 1})

	again, _ := s.storage.GetSession(s.ctx, "ABCDE")
	s.Equal(int64(1500), again.Balances["p1"])
	s.Empty(again.Ledger)
}

func (s *StorageSuite) TestDeleteSession() {
	_ = s.storage.SaveSession(s.ctx, s.newSession("ABCDE"))

	s.Require().NoError(s.storage.DeleteSession(s.ctx, "ABCDE"))

	exists, err := s.storage.SessionExists(s.ctx, "ABCDE")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *StorageSuite) TestCodeInUse() {
	inUse, err := storage.CodeInUse(s.ctx, s.storage, "ABCDE")
	s.Require().NoError(err)
	s.False(inUse)

	_ = s.storage.SaveSession(s.ctx, s.newSession("ABCDE"))

	inUse, err = storage.CodeInUse(s.ctx, s.storage, "ABCDE")
	s.Require().NoError(err)
	s.True(inUse)
}
