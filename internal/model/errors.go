package model

import "errors"

// ErrorKind classifies an error for reporting to clients
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindInternal      ErrorKind = "internal"
)

// Error is a domain error carrying a kind and a stable machine-readable code
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Common errors used across the application
var (
	// Validation errors
	ErrInvalidName      = newError(KindValidation, "INVALID_NAME", "display name must not be empty")
	ErrInvalidAmount    = newError(KindValidation, "INVALID_AMOUNT", "amount must be a positive integer")
	ErrInvalidOrder     = newError(KindValidation, "INVALID_ORDER", "turn order must list every player exactly once")
	ErrInvalidSettings  = newError(KindValidation, "INVALID_SETTINGS", "invalid game settings")
	ErrInvalidTransfer  = newError(KindValidation, "INVALID_TRANSFER", "cannot transfer money to the same player")
	ErrInvalidIntent    = newError(KindValidation, "INVALID_INTENT", "malformed or unknown intent")
	ErrInvalidDirection = newError(KindValidation, "INVALID_DIRECTION", "direction must be add or subtract")
	ErrInvalidCode      = newError(KindValidation, "INVALID_CODE", "session code must not be empty")

	// Authorization errors
	ErrNotHost          = newError(KindAuthorization, "NOT_HOST", "only the host can perform this action")
	ErrNotPlayerTurn    = newError(KindAuthorization, "NOT_YOUR_TURN", "not this player's turn")
	ErrNotInSession     = newError(KindAuthorization, "NOT_IN_SESSION", "connection is not part of this session")
	ErrInvalidSeatToken = newError(KindAuthorization, "INVALID_SEAT_TOKEN", "seat token does not match")
	ErrCannotKickSelf   = newError(KindAuthorization, "CANNOT_KICK_SELF", "the host cannot kick themselves")

	// Not found errors
	ErrLobbyNotFound       = newError(KindNotFound, "LOBBY_NOT_FOUND", "lobby not found")
	ErrSessionNotFound     = newError(KindNotFound, "SESSION_NOT_FOUND", "game session not found")
	ErrPlayerNotFound      = newError(KindNotFound, "PLAYER_NOT_FOUND", "player not found")
	ErrTransactionNotFound = newError(KindNotFound, "TRANSACTION_NOT_FOUND", "transaction not found")

	// Conflict errors
	ErrNothingToUndo       = newError(KindConflict, "NOTHING_TO_UNDO", "there are no transactions to undo")
	ErrAlreadyStarted      = newError(KindConflict, "ALREADY_STARTED", "game has already been started")
	ErrGameInProgress      = newError(KindConflict, "GAME_IN_PROGRESS", "game is in progress")
	ErrNoGameInProgress    = newError(KindConflict, "NO_GAME_IN_PROGRESS", "no game in progress")
	ErrEmptyTurnOrder      = newError(KindConflict, "EMPTY_TURN_ORDER", "turn order is empty")
	ErrInsufficientPlayers = newError(KindConflict, "INSUFFICIENT_PLAYERS", "insufficient players to start game")
	ErrCodeExhausted       = newError(KindConflict, "CODE_EXHAUSTED", "could not allocate a unique session code")
)

// KindOf returns the kind of a domain error, or KindInternal for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError returns the domain error wrapped in err, if any
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
