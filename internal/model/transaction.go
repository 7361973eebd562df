package model

import "time"

// TransactionID identifies a ledger entry within one session. IDs increase
// monotonically and are never reused, even after an undo.
type TransactionID int64

// TransactionKind identifies the type of balance change
type TransactionKind string

const (
	TransactionBankAdd      TransactionKind = "bank_add"
	TransactionBankSubtract TransactionKind = "bank_subtract"
	TransactionTransfer     TransactionKind = "transfer"
)

// Direction is the direction of a bank action
type Direction string

const (
	DirectionAdd      Direction = "add"
	DirectionSubtract Direction = "subtract"
)

// Valid returns true for a known direction
func (d Direction) Valid() bool {
	return d == DirectionAdd || d == DirectionSubtract
}

// Transaction is a single attributable balance change
type Transaction struct {
	ID         TransactionID
	Kind       TransactionKind
	From       PlayerID // Set for bank_subtract and transfer
	To         PlayerID // Set for bank_add and transfer
	Amount     int64
	RecordedBy PlayerID
	RecordedAt time.Time
}

// Valid reports whether the transaction has the shape its kind requires
func (t Transaction) Valid() bool {
	if t.Amount <= 0 {
		return false
	}
	switch t.Kind {
	case TransactionBankAdd:
		return t.To != "" && t.From == ""
	case TransactionBankSubtract:
		return t.From != "" && t.To == ""
	case TransactionTransfer:
		return t.From != "" && t.To != "" && t.From != t.To
	default:
		return false
	}
}

// Apply adds the transaction's effect to the balances
func (t Transaction) Apply(balances map[PlayerID]int64) {
	t.apply(balances, 1)
}

// Revert applies the exact algebraic inverse of the transaction
func (t Transaction) Revert(balances map[PlayerID]int64) {
	t.apply(balances, -1)
}

func (t Transaction) apply(balances map[PlayerID]int64, sign int64) {
	if t.From != "" {
		balances[t.From] -= sign * t.Amount
	}
	if t.To != "" {
		balances[t.To] += sign * t.Amount
	}
}
