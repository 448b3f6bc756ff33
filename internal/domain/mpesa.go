// internal/domain/mpesa.go
package domain

import (
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
)

// MpesaUser is the one-to-one external-ledger profile of a platform user:
// an independent KSH balance guarded by a hashed 4-digit PIN.
type MpesaUser struct {
	ID           int64           `db:"id" json:"id"`
	UserID       int64           `db:"user_id" json:"user_id"`
	RealName     string          `db:"real_name" json:"real_name"`
	PINHash      string          `db:"pin_hash" json:"-"`
	PhoneNumber  string          `db:"phone_number" json:"phone_number"`
	Balance      decimal.Decimal `db:"balance" json:"balance"`
	Fuliza       decimal.Decimal `db:"fuliza" json:"fuliza"`
	ProfilePhoto string          `db:"profile_photo" json:"profile_photo,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// NewMpesaUser creates an external-ledger profile with a zero balance.
func NewMpesaUser(userID int64, realName, phoneNumber, pinHash string) *MpesaUser {
	return &MpesaUser{
		UserID:      userID,
		RealName:    realName,
		PINHash:     pinHash,
		PhoneNumber: phoneNumber,
		Balance:     decimal.Zero,
		Fuliza:      decimal.Zero,
		CreatedAt:   time.Now().UTC(),
	}
}

// MpesaTransactionType defines the type of an external-ledger transaction.
type MpesaTransactionType string

const (
	MpesaTxDeposit    MpesaTransactionType = "deposit"
	MpesaTxWithdrawal MpesaTransactionType = "withdrawal"
	MpesaTxTransfer   MpesaTransactionType = "transfer"
)

// MpesaCategory labels an external-ledger transaction for the simulator UI.
type MpesaCategory string

const (
	MpesaCategoryFamilyFriends MpesaCategory = "family_friends"
	MpesaCategoryBusiness      MpesaCategory = "business"
	MpesaCategoryOther         MpesaCategory = "other"
)

// MpesaTransaction is an append-only record in the external ledger.
type MpesaTransaction struct {
	ID             int64                `db:"id" json:"id"`
	MpesaUserID    int64                `db:"mpesa_user_id" json:"mpesa_user_id"`
	Type           MpesaTransactionType `db:"transaction_type" json:"transaction_type"`
	Amount         decimal.Decimal      `db:"amount" json:"amount"`
	Description    string               `db:"description" json:"description"`
	Reference      string               `db:"reference" json:"reference"`
	MpesaID        string               `db:"mpesa_id" json:"mpesa_id"`
	RecipientName  string               `db:"recipient_name" json:"recipient_name"`
	RecipientPhone string               `db:"recipient_phone" json:"recipient_phone"`
	Category       MpesaCategory        `db:"category" json:"category"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
}

const base36Upper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// EncodeMpesaDatePrefix encodes a creation date into the three-character
// prefix of an M-Pesa transaction id:
//   - year letter: A=2006 .. Z=2031, clamped to Z beyond that range
//   - month letter: A=January .. L=December
//   - day code: '1'-'9' for days 1-9, 'A'-'V' for days 10-31
func EncodeMpesaDatePrefix(t time.Time) string {
	yearOffset := t.Year() - 2005
	yearChar := byte('Z')
	if yearOffset >= 1 && yearOffset <= 26 {
		yearChar = byte('A' + yearOffset - 1)
	}

	monthChar := byte('A' + int(t.Month()) - 1)

	day := t.Day()
	var dayChar byte
	switch {
	case day >= 1 && day <= 9:
		dayChar = byte('0' + day)
	case day >= 10 && day <= 31:
		dayChar = byte('A' + day - 10)
	default:
		dayChar = 'A'
	}

	return string([]byte{yearChar, monthChar, dayChar})
}

// RandomBase36Upper returns n random uppercase base-36 characters, used for
// the suffix of M-Pesa transaction ids and references.
func RandomBase36Upper(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36Upper[rand.IntN(len(base36Upper))]
	}
	return string(b)
}
