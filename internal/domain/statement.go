// internal/domain/statement.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementEntry is the human-readable, append-only mirror of a
// balance-affecting event, shown on account statements. Never mutated
// after creation.
type StatementEntry struct {
	ID          int64           `db:"id" json:"id"`
	AccountID   int64           `db:"account_id" json:"account_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Type        string          `db:"transaction_type" json:"transaction_type"`
	Description string          `db:"description" json:"description"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// NewStatementEntry creates a statement entry. Amount carries its sign:
// credits positive, debits negative.
func NewStatementEntry(accountID int64, amount decimal.Decimal, entryType, description string) *StatementEntry {
	return &StatementEntry{
		AccountID:   accountID,
		Amount:      amount,
		Type:        entryType,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}
