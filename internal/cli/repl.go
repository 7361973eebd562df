package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mcoot/tablebank/internal/dispatch"
	"github.com/mcoot/tablebank/internal/model"
)

var (
	errNotSeated     = errors.New("not in a session: create, join, or resume first")
	errNoLobbyState  = errors.New("no lobby state received yet")
	errUnknownInput  = errors.New("unknown command (try help)")
	errUsage         = errors.New("wrong arguments")
	errInvalidNumber = errors.New("amount must be a whole number")

	errInvalidTransactionID = errors.New("transaction id must be a number")
)

// PlayState is what the prompt knows about the seat it holds
type PlayState struct {
	Code     model.SessionCode
	PlayerID model.PlayerID
	Lobby    *dispatch.LobbyView
	Game     *dispatch.GameView
}

// Command is one parsed prompt line. Message is nil for local commands.
type Command struct {
	Message *dispatch.Message
	Help    bool
	Quit    bool
}

const helpText = `Commands:
  create <name>                        Create a lobby and become its host
  join <code> <name>                   Join a lobby
  resume <code> <player-id> <token>    Reclaim a seat after a disconnect
  leave                                Leave the session
  settings [balance=N] [first=P] [quick=A,B,C]
                                       Change lobby settings (host)
  order <p1> <p2> ...                  Set the turn order (host)
  kick <player>                        Remove a player (host)
  start | restart                      Start or restart the game (host)
  pay <to> <amount>                    Pay another player from your balance
  transfer <from> <to> <amount>        Record a transfer between players
  bank <player> add|subtract <amount>  Record a payment with the bank
  end                                  End the current turn
  undo [transaction-id]                Undo the latest or a specific transaction (host)
  lobby | game | history               Ask for the current state
  help                                 Show this help
  quit                                 Disconnect

Players may be named by ID or display name.`

// ParseCommand turns a prompt line into the intent to send
func ParseCommand(line string, st *PlayState) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "help", "?":
		return Command{Help: true}, nil
	case "quit", "exit":
		return Command{Quit: true}, nil

	case "create":
		if len(args) == 0 {
			return Command{}, usage("create <name>")
		}
		return intent(dispatch.IntentCreateLobby, dispatch.CreateLobbyPayload{Name: strings.Join(args, " ")})
	case "join":
		if len(args) < 2 {
			return Command{}, usage("join <code> <name>")
		}
		return intent(dispatch.IntentJoinLobby, dispatch.JoinLobbyPayload{Code: args[0], Name: strings.Join(args[1:], " ")})
	case "resume":
		if len(args) != 3 {
			return Command{}, usage("resume <code> <player-id> <token>")
		}
		return intent(dispatch.IntentResume, dispatch.ResumePayload{
			Code:     args[0],
			PlayerID: model.PlayerID(args[1]),
			Token:    args[2],
		})
	}

	if st == nil || st.Code == "" {
		return Command{}, errNotSeated
	}
	code := string(st.Code)

	switch name {
	case "leave":
		return intent(dispatch.IntentLeaveLobby, dispatch.CodePayload{Code: code})
	case "settings":
		return parseSettings(args, st)
	case "order":
		if len(args) == 0 {
			return Command{}, usage("order <p1> <p2> ...")
		}
		order := make([]model.PlayerID, len(args))
		for i, ref := range args {
			order[i] = st.resolvePlayer(ref)
		}
		return intent(dispatch.IntentSetPlayerOrder, dispatch.SetPlayerOrderPayload{Code: code, Order: order})
	case "kick":
		if len(args) != 1 {
			return Command{}, usage("kick <player>")
		}
		return intent(dispatch.IntentKickPlayer, dispatch.KickPlayerPayload{Code: code, TargetID: st.resolvePlayer(args[0])})
	case "start":
		return intent(dispatch.IntentStartGame, dispatch.CodePayload{Code: code})
	case "restart":
		return intent(dispatch.IntentRestartGame, dispatch.CodePayload{Code: code})
	case "pay":
		if len(args) != 2 {
			return Command{}, usage("pay <to> <amount>")
		}
		amount, err := parseAmount(args[1])
		if err != nil {
			return Command{}, err
		}
		return intent(dispatch.IntentTransferMoney, dispatch.TransferMoneyPayload{
			Code:   code,
			From:   st.PlayerID,
			To:     st.resolvePlayer(args[0]),
			Amount: amount,
		})
	case "transfer":
		if len(args) != 3 {
			return Command{}, usage("transfer <from> <to> <amount>")
		}
		amount, err := parseAmount(args[2])
		if err != nil {
			return Command{}, err
		}
		return intent(dispatch.IntentTransferMoney, dispatch.TransferMoneyPayload{
			Code:   code,
			From:   st.resolvePlayer(args[0]),
			To:     st.resolvePlayer(args[1]),
			Amount: amount,
		})
	case "bank":
		if len(args) != 3 {
			return Command{}, usage("bank <player> add|subtract <amount>")
		}
		amount, err := parseAmount(args[2])
		if err != nil {
			return Command{}, err
		}
		return intent(dispatch.IntentBankAction, dispatch.BankActionPayload{
			Code:      code,
			PlayerID:  st.resolvePlayer(args[0]),
			Amount:    amount,
			Direction: model.Direction(strings.ToLower(args[1])),
		})
	case "end":
		return intent(dispatch.IntentEndTurn, dispatch.CodePayload{Code: code})
	case "undo":
		switch len(args) {
		case 0:
			return intent(dispatch.IntentUndoTransaction, dispatch.CodePayload{Code: code})
		case 1:
			id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
			if err != nil {
				return Command{}, errInvalidTransactionID
			}
			return intent(dispatch.IntentUndoSpecificTransaction, dispatch.UndoSpecificTransactionPayload{
				Code:          code,
				TransactionID: model.TransactionID(id),
			})
		default:
			return Command{}, usage("undo [transaction-id]")
		}
	case "lobby":
		return intent(dispatch.IntentGetLobbyState, dispatch.CodePayload{Code: code})
	case "game":
		return intent(dispatch.IntentGetGameState, dispatch.CodePayload{Code: code})
	case "history":
		return intent(dispatch.IntentGetTransactions, dispatch.CodePayload{Code: code})
	}

	return Command{}, errUnknownInput
}

// parseSettings applies key=value overrides to the last known settings
func parseSettings(args []string, st *PlayState) (Command, error) {
	if st.Lobby == nil {
		return Command{}, errNoLobbyState
	}
	if len(args) == 0 {
		return Command{}, usage("settings [balance=N] [first=P] [quick=A,B,C]")
	}

	settings := st.Lobby.Settings
	settings.TurnOrder = append([]model.PlayerID(nil), settings.TurnOrder...)

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return Command{}, usage("settings [balance=N] [first=P] [quick=A,B,C]")
		}
		switch strings.ToLower(key) {
		case "balance":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Command{}, errInvalidNumber
			}
			settings.StartingBalance = n
		case "first":
			settings.FirstPlayerID = st.resolvePlayer(value)
		case "quick":
			parts := strings.Split(value, ",")
			if len(parts) != model.QuickAmountCount {
				return Command{}, fmt.Errorf("quick needs exactly %d amounts", model.QuickAmountCount)
			}
			for i, part := range parts {
				n, err := parseAmount(part)
				if err != nil {
					return Command{}, err
				}
				settings.QuickAmounts[i] = n
			}
		default:
			return Command{}, fmt.Errorf("unknown setting %q", key)
		}
	}

	return intent(dispatch.IntentUpdateSettings, dispatch.UpdateSettingsPayload{
		Code:     string(st.Code),
		Settings: settings,
	})
}

// resolvePlayer matches a reference against known IDs, then display names
func (st *PlayState) resolvePlayer(ref string) model.PlayerID {
	if st.Lobby != nil {
		for _, p := range st.Lobby.Players {
			if string(p.ID) == ref {
				return p.ID
			}
		}
		for _, p := range st.Lobby.Players {
			if strings.EqualFold(p.Name, ref) {
				return p.ID
			}
		}
	}
	if st.Game != nil {
		for id, name := range st.Game.Players {
			if strings.EqualFold(name, ref) {
				return id
			}
		}
	}
	return model.PlayerID(ref)
}

func intent(t dispatch.IntentType, payload any) (Command, error) {
	msg, err := dispatch.NewMessage(string(t), payload)
	if err != nil {
		return Command{}, err
	}
	return Command{Message: &msg}, nil
}

func parseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errInvalidNumber
	}
	return n, nil
}

func usage(form string) error {
	return fmt.Errorf("%w: usage: %s", errUsage, form)
}
