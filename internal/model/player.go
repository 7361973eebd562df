package model

import "time"

// PlayerID is the stable identity of a seat, independent of the connection holding it
type PlayerID string

// ConnectionID identifies one live client connection
type ConnectionID string

// Player represents a participant in a lobby
type Player struct {
	ID          PlayerID
	DisplayName string
	JoinedAt    time.Time

	// SeatTokenHash is the bcrypt hash of the token used to reclaim this seat
	// after a reconnect. Never sent to clients.
	SeatTokenHash string
}
