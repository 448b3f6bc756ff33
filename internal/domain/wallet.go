// internal/domain/wallet.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletType distinguishes the currency-scoped ledgers under one account.
type WalletType string

const (
	WalletTypeMain    WalletType = "main"
	WalletTypeTrading WalletType = "trading"
)

// Currency codes used by the platform.
const (
	CurrencyUSD = "USD"
	CurrencyKSH = "KSH"
)

// Wallet is a currency-and-kind-scoped balance ledger owned by one account.
type Wallet struct {
	ID         int64           `db:"id" json:"id"`
	AccountID  int64           `db:"account_id" json:"account_id"`
	WalletType WalletType      `db:"wallet_type" json:"wallet_type"`
	Currency   string          `db:"currency" json:"currency"`
	Balance    decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// NewWallet creates a new Wallet instance.
func NewWallet(accountID int64, walletType WalletType, currency string, balance decimal.Decimal) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		AccountID:  accountID,
		WalletType: walletType,
		Currency:   currency,
		Balance:    balance,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
