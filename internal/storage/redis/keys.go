package redis

import (
	"fmt"

	"github.com/mcoot/tablebank/internal/model"
)

// Key prefix for all tablebank data
const keyPrefix = "tablebank"

// lobbyKey returns the Redis key for a Lobby
func lobbyKey(code model.SessionCode) string {
	return fmt.Sprintf("%s:lobby:%s", keyPrefix, code)
}

// sessionKey returns the Redis key for a GameSession
func sessionKey(code model.SessionCode) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, code)
}
