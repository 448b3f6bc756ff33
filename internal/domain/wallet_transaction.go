// internal/domain/wallet_transaction.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletTransactionType defines the type of a wallet transaction.
type WalletTransactionType string

const (
	WalletTxDeposit     WalletTransactionType = "deposit"
	WalletTxWithdrawal  WalletTransactionType = "withdrawal"
	WalletTxTransferIn  WalletTransactionType = "transfer_in"
	WalletTxTransferOut WalletTransactionType = "transfer_out"
)

// WalletTransactionStatus defines the lifecycle status of a wallet transaction.
type WalletTransactionStatus string

const (
	WalletTxPending   WalletTransactionStatus = "pending"
	WalletTxCompleted WalletTransactionStatus = "completed"
	WalletTxFailed    WalletTransactionStatus = "failed"
)

// WalletTransaction is a pending/completed/failed monetary event against a
// wallet. Transitions into completed drive balance changes exactly once;
// a transaction that has reached failed is frozen and needs manual override.
type WalletTransaction struct {
	ID              int64                   `db:"id" json:"id"`
	WalletID        int64                   `db:"wallet_id" json:"wallet_id"`
	Type            WalletTransactionType   `db:"transaction_type" json:"transaction_type"`
	Amount          decimal.Decimal         `db:"amount" json:"amount"`
	Currency        string                  `db:"currency" json:"currency"`
	ConvertedAmount *decimal.Decimal        `db:"converted_amount" json:"converted_amount,omitempty"`
	Status          WalletTransactionStatus `db:"status" json:"status"`
	CompletedAt     *time.Time              `db:"completed_at" json:"completed_at,omitempty"`
	ReferenceID     string                  `db:"reference_id" json:"reference_id"`
	MpesaPhone      *string                 `db:"mpesa_phone" json:"mpesa_phone,omitempty"`
	Description     string                  `db:"description" json:"description"`
	CreatedAt       time.Time               `db:"created_at" json:"created_at"`
}

// NewWalletTransaction creates a pending wallet transaction with a fresh
// reference id.
func NewWalletTransaction(
	walletID int64,
	txType WalletTransactionType,
	amount decimal.Decimal,
	currency string,
	convertedAmount *decimal.Decimal,
	mpesaPhone *string,
	description string,
) *WalletTransaction {
	return &WalletTransaction{
		WalletID:        walletID,
		Type:            txType,
		Amount:          amount,
		Currency:        currency,
		ConvertedAmount: convertedAmount,
		Status:          WalletTxPending,
		ReferenceID:     NewReferenceID(),
		MpesaPhone:      mpesaPhone,
		Description:     description,
		CreatedAt:       time.Now().UTC(),
	}
}

// CreditAmount is the USD figure a completed deposit credits: the converted
// amount when currency conversion happened, the raw amount otherwise.
func (t *WalletTransaction) CreditAmount() decimal.Decimal {
	if t.ConvertedAmount != nil {
		return *t.ConvertedAmount
	}
	return t.Amount
}

// NewReferenceID produces a wallet transaction reference of the form
// TR-XXXXXXXXXXXX.
func NewReferenceID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "TR-" + strings.ToUpper(hex[:12])
}
