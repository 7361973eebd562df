package model

import "time"

// GameSession is the money-tracking instance created when the host starts the game.
// It owns exclusive write access to balances and the ledger.
type GameSession struct {
	Code SessionCode

	Balances         map[PlayerID]int64
	StartingBalances map[PlayerID]int64 // Snapshot at start, used for ledger replay
	PlayerNames      map[PlayerID]string

	// Turn management (snapshot of lobby settings at start)
	TurnOrder   []PlayerID
	CurrentTurn PlayerID

	Ledger            []Transaction
	NextTransactionID TransactionID

	StartedAt time.Time
	UpdatedAt time.Time
}

// HasSeat returns true if the player holds a balance in this session
func (g *GameSession) HasSeat(playerID PlayerID) bool {
	_, ok := g.Balances[playerID]
	return ok
}

// TurnIndex returns the position of the player in the turn order, or -1
func (g *GameSession) TurnIndex(playerID PlayerID) int {
	for i, p := range g.TurnOrder {
		if p == playerID {
			return i
		}
	}
	return -1
}

// FindTransaction returns the ledger position of a transaction, or -1
func (g *GameSession) FindTransaction(id TransactionID) int {
	for i, t := range g.Ledger {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the session
func (g *GameSession) Clone() *GameSession {
	out := *g
	out.Balances = cloneBalances(g.Balances)
	out.StartingBalances = cloneBalances(g.StartingBalances)
	out.PlayerNames = make(map[PlayerID]string, len(g.PlayerNames))
	for k, v := range g.PlayerNames {
		out.PlayerNames[k] = v
	}
	out.TurnOrder = append([]PlayerID(nil), g.TurnOrder...)
	out.Ledger = append([]Transaction(nil), g.Ledger...)
	return &out
}

func cloneBalances(in map[PlayerID]int64) map[PlayerID]int64 {
	out := make(map[PlayerID]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ReplayBalances recomputes balances by applying the ledger to the starting snapshot
func (g *GameSession) ReplayBalances() map[PlayerID]int64 {
	balances := cloneBalances(g.StartingBalances)
	for _, t := range g.Ledger {
		t.Apply(balances)
	}
	return balances
}
