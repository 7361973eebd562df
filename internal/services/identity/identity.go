// Package identity issues and verifies the seat tokens that let a reconnecting
// client reclaim its player identity.
package identity

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tablebank/internal/dependencies/random"
	"github.com/mcoot/tablebank/internal/model"
)

// tokenBytes is the entropy of a seat token
const tokenBytes = 24

// Service issues seat tokens and checks them against stored hashes
type Service struct {
	random random.Random
	cost   int
}

// New creates a new Service. A cost outside bcrypt's range selects bcrypt.DefaultCost.
func New(random random.Random, cost int) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{random: random, cost: cost}
}

// Issue returns a fresh seat token and its hash. Only the hash is stored.
func (s *Service) Issue() (token string, hash string, err error) {
	token, err = s.random.Token(tokenBytes)
	if err != nil {
		return "", "", fmt.Errorf("generating seat token: %w", err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), s.cost)
	if err != nil {
		return "", "", fmt.Errorf("hashing seat token: %w", err)
	}
	return token, string(hashed), nil
}

// Verify checks a presented token against the player's stored hash
func (s *Service) Verify(player *model.Player, token string) error {
	if player == nil || player.SeatTokenHash == "" || token == "" {
		return model.ErrInvalidSeatToken
	}
	err := bcrypt.CompareHashAndPassword([]byte(player.SeatTokenHash), []byte(token))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return model.ErrInvalidSeatToken
	}
	if err != nil {
		return fmt.Errorf("verifying seat token: %w", err)
	}
	return nil
}
