package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/mcoot/tablebank/internal/model"
)

// Message is the envelope for every frame in either direction
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes a payload into an envelope
func NewMessage(msgType string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", msgType, err)
	}
	return Message{Type: msgType, Payload: data}, nil
}

// Decode unmarshals the payload into v. An absent payload decodes as an empty object.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return model.ErrInvalidIntent
	}
	return nil
}

// IntentType names an inbound request
type IntentType string

const (
	IntentCreateLobby             IntentType = "create-lobby"
	IntentJoinLobby               IntentType = "join-lobby"
	IntentLeaveLobby              IntentType = "leave-lobby"
	IntentResume                  IntentType = "resume"
	IntentUpdateSettings          IntentType = "update-settings"
	IntentKickPlayer              IntentType = "kick-player"
	IntentSetPlayerOrder          IntentType = "set-player-order"
	IntentStartGame               IntentType = "start-game"
	IntentRestartGame             IntentType = "restart-game"
	IntentTransferMoney           IntentType = "transfer-money"
	IntentBankAction              IntentType = "bank-action"
	IntentEndTurn                 IntentType = "end-turn"
	IntentUndoTransaction         IntentType = "undo-transaction"
	IntentUndoSpecificTransaction IntentType = "undo-specific-transaction"
	IntentGetLobbyState           IntentType = "get-lobby-state"
	IntentGetGameState            IntentType = "get-game-state"
	IntentGetTransactions         IntentType = "get-transactions"
)

// Outbound message types
const (
	TypeConnected          = "connected"
	TypeJoined             = "joined"
	TypeLobbyUpdated       = "lobby-updated"
	TypeGameUpdated        = "game-updated"
	TypeTransactionHistory = "transaction-history"
	TypeKicked             = "kicked"
	TypeError              = "error-message"
)

// Inbound payloads

type CreateLobbyPayload struct {
	Name string `json:"name"`
}

type JoinLobbyPayload struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type ResumePayload struct {
	Code     string         `json:"code"`
	PlayerID model.PlayerID `json:"playerId"`
	Token    string         `json:"token"`
}

// CodePayload carries only the session code
type CodePayload struct {
	Code string `json:"code"`
}

type UpdateSettingsPayload struct {
	Code     string       `json:"code"`
	Settings SettingsView `json:"settings"`
}

type KickPlayerPayload struct {
	Code     string         `json:"code"`
	TargetID model.PlayerID `json:"targetId"`
}

type SetPlayerOrderPayload struct {
	Code  string           `json:"code"`
	Order []model.PlayerID `json:"order"`
}

type TransferMoneyPayload struct {
	Code   string         `json:"code"`
	From   model.PlayerID `json:"from"`
	To     model.PlayerID `json:"to"`
	Amount int64          `json:"amount"`
}

type BankActionPayload struct {
	Code      string          `json:"code"`
	PlayerID  model.PlayerID  `json:"playerId"`
	Amount    int64           `json:"amount"`
	Direction model.Direction `json:"direction"`
}

type UndoSpecificTransactionPayload struct {
	Code          string              `json:"code"`
	TransactionID model.TransactionID `json:"transactionId"`
}

// Outbound payloads

type ConnectedPayload struct {
	ConnectionID model.ConnectionID `json:"connectionId"`
}

type JoinedPayload struct {
	Code      model.SessionCode `json:"code"`
	PlayerID  model.PlayerID    `json:"playerId"`
	SeatToken string            `json:"seatToken,omitempty"`
}

type KickedPayload struct {
	Code model.SessionCode `json:"code"`
}

type ErrorPayload struct {
	Code    string          `json:"code"`
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}
