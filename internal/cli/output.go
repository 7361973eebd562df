package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mcoot/tablebank/internal/api/response"
	"github.com/mcoot/tablebank/internal/dispatch"
	"github.com/mcoot/tablebank/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintf(o.w, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Health:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case response.Code:
		fmt.Fprintf(o.w, "Code: %s\n", v.Code)
	case dispatch.LobbyView:
		o.printLobby(v)
	case dispatch.GameView:
		o.printGame(v)
	case dispatch.TransactionHistory:
		o.printHistory(v)
	case dispatch.JoinedPayload:
		fmt.Fprintf(o.w, "Joined %s as %s\n", v.Code, v.PlayerID)
	case dispatch.KickedPayload:
		fmt.Fprintf(o.w, "Kicked from %s\n", v.Code)
	case dispatch.ErrorPayload:
		fmt.Fprintf(o.w, "Error: %s (%s)\n", v.Message, v.Code)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printLobby(l dispatch.LobbyView) {
	fmt.Fprintf(o.w, "Lobby: %s\n", l.Code)
	fmt.Fprintf(o.w, "State: %s\n", l.State)
	fmt.Fprintf(o.w, "Starting Balance: %d\n", l.Settings.StartingBalance)
	fmt.Fprintf(o.w, "Quick Amounts: %s\n", joinAmounts(l.Settings.QuickAmounts[:]))
	if l.Settings.FirstPlayerID != "" {
		fmt.Fprintf(o.w, "First Player: %s\n", playerName(l, l.Settings.FirstPlayerID))
	}
	fmt.Fprintf(o.w, "Players (%d):\n", len(l.Players))
	for _, p := range l.Players {
		hostStr := ""
		if p.IsHost {
			hostStr = " [host]"
		}
		fmt.Fprintf(o.w, "  - %s (%s)%s\n", p.Name, p.ID, hostStr)
	}
	if len(l.Settings.TurnOrder) > 0 {
		names := make([]string, 0, len(l.Settings.TurnOrder))
		for _, id := range l.Settings.TurnOrder {
			names = append(names, playerName(l, id))
		}
		fmt.Fprintf(o.w, "Turn Order: %s\n", strings.Join(names, " -> "))
	}
}

func (o *Output) printGame(g dispatch.GameView) {
	fmt.Fprintf(o.w, "Game: %s\n", g.Code)
	if g.CurrentTurn != "" {
		fmt.Fprintf(o.w, "Turn: %s\n", gamePlayerName(g, g.CurrentTurn))
	}

	fmt.Fprintln(o.w, "Balances:")
	for _, id := range balanceOrder(g) {
		marker := "  "
		if id == g.CurrentTurn {
			marker = "> "
		}
		fmt.Fprintf(o.w, "%s%s: %d\n", marker, gamePlayerName(g, id), g.Balances[id])
	}

	fmt.Fprintf(o.w, "Transactions: %d\n", len(g.Transactions))
}

func (o *Output) printHistory(h dispatch.TransactionHistory) {
	fmt.Fprintf(o.w, "History: %s\n", h.Code)
	if len(h.Transactions) == 0 {
		fmt.Fprintln(o.w, "No transactions")
		return
	}
	for _, t := range h.Transactions {
		fmt.Fprintf(o.w, "  #%d %s\n", t.ID, describeTransaction(t))
	}
}

func describeTransaction(t dispatch.TransactionView) string {
	switch t.Kind {
	case model.TransactionTransfer:
		return fmt.Sprintf("transfer %d from %s to %s", t.Amount, t.From, t.To)
	case model.TransactionBankAdd:
		return fmt.Sprintf("bank paid %d to %s", t.Amount, t.To)
	case model.TransactionBankSubtract:
		return fmt.Sprintf("bank took %d from %s", t.Amount, t.From)
	default:
		return fmt.Sprintf("%s %d", t.Kind, t.Amount)
	}
}

// balanceOrder lists turn order first, then anyone else sorted by ID
func balanceOrder(g dispatch.GameView) []model.PlayerID {
	seen := make(map[model.PlayerID]bool, len(g.Balances))
	order := make([]model.PlayerID, 0, len(g.Balances))
	for _, id := range g.TurnOrder {
		if _, ok := g.Balances[id]; ok && !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	var rest []model.PlayerID
	for id := range g.Balances {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(order, rest...)
}

func playerName(l dispatch.LobbyView, id model.PlayerID) string {
	for _, p := range l.Players {
		if p.ID == id {
			return p.Name
		}
	}
	return string(id)
}

func gamePlayerName(g dispatch.GameView, id model.PlayerID) string {
	if name, ok := g.Players[id]; ok && name != "" {
		return name
	}
	return string(id)
}

func joinAmounts(amounts []int64) string {
	parts := make([]string, len(amounts))
	for i, a := range amounts {
		parts[i] = fmt.Sprintf("%d", a)
	}
	return strings.Join(parts, ", ")
}
