package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/tablebank/internal/model"
	"github.com/mcoot/tablebank/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Lobby operations

func (s *Storage) SaveLobby(ctx context.Context, lobby *model.Lobby) error {
	return s.setJSON(ctx, lobbyKey(lobby.Code), lobby, s.cfg.LobbyTTL)
}

func (s *Storage) GetLobby(ctx context.Context, code model.SessionCode) (*model.Lobby, error) {
	var lobby model.Lobby
	if err := s.getJSON(ctx, lobbyKey(code), &lobby, model.ErrLobbyNotFound); err != nil {
		return nil, err
	}
	return &lobby, nil
}

func (s *Storage) DeleteLobby(ctx context.Context, code model.SessionCode) error {
	return s.client.Del(ctx, lobbyKey(code)).Err()
}

func (s *Storage) LobbyExists(ctx context.Context, code model.SessionCode) (bool, error) {
	return s.exists(ctx, lobbyKey(code))
}

// Game session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.GameSession) error {
	return s.setJSON(ctx, sessionKey(session.Code), session, s.cfg.SessionTTL)
}

func (s *Storage) GetSession(ctx context.Context, code model.SessionCode) (*model.GameSession, error) {
	var session model.GameSession
	if err := s.getJSON(ctx, sessionKey(code), &session, model.ErrSessionNotFound); err != nil {
		return nil, err
	}
	// JSON drops empty maps to nil; the engine writes into these
	if session.Balances == nil {
		session.Balances = make(map[model.PlayerID]int64)
	}
	if session.StartingBalances == nil {
		session.StartingBalances = make(map[model.PlayerID]int64)
	}
	if session.PlayerNames == nil {
		session.PlayerNames = make(map[model.PlayerID]string)
	}
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, code model.SessionCode) error {
	return s.client.Del(ctx, sessionKey(code)).Err()
}

func (s *Storage) SessionExists(ctx context.Context, code model.SessionCode) (bool, error) {
	return s.exists(ctx, sessionKey(code))
}

// Helpers

func (s *Storage) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *Storage) getJSON(ctx context.Context, key string, dest any, notFound error) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Storage) exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
