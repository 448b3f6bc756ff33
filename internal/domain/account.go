// internal/domain/account.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType identifies a user's named trading profile.
type AccountType string

const (
	AccountTypeStandard AccountType = "standard"
	AccountTypePro      AccountType = "pro"
	AccountTypeIslamic  AccountType = "islamic"
	AccountTypeOptions  AccountType = "options"
	AccountTypeCrypto   AccountType = "crypto"
	AccountTypeDemo     AccountType = "demo"
	AccountTypeProFX    AccountType = "pro-fx"
)

// MaxAccountsPerUser caps how many accounts a single user may hold.
const MaxAccountsPerUser = 3

// demoInitialBalance is the opening balance of a demo main wallet.
var demoInitialBalance = decimal.NewFromInt(10000)

// Account is a user's trading profile. It carries no balance column:
// its balance is derived from the associated main USD wallet.
type Account struct {
	ID          int64       `db:"id" json:"id"`
	UserID      int64       `db:"user_id" json:"user_id"`
	AccountType AccountType `db:"account_type" json:"account_type"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// NewAccount creates a new Account instance.
func NewAccount(userID int64, accountType AccountType) *Account {
	return &Account{
		UserID:      userID,
		AccountType: accountType,
		CreatedAt:   time.Now().UTC(),
	}
}

// DefaultBalance is the balance reported for an account whose main wallet
// does not exist yet, and the opening balance of that wallet once created.
func DefaultBalance(accountType AccountType) decimal.Decimal {
	if accountType == AccountTypeDemo {
		return demoInitialBalance
	}
	return decimal.Zero
}
