// internal/domain/user.go
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SuspensionType classifies a user-level suspension.
type SuspensionType string

const (
	SuspensionNone      SuspensionType = ""
	SuspensionTemporary SuspensionType = "temporary"
	SuspensionPermanent SuspensionType = "permanent"
)

// suspensionReasonMaxLen bounds the reason stored in history entries.
const suspensionReasonMaxLen = 200

// SuspensionEvent is one entry in a user's append-only suspension log.
type SuspensionEvent struct {
	Date   time.Time `json:"date"`
	Type   string    `json:"type"`
	Reason string    `json:"reason,omitempty"`
	By     string    `json:"by,omitempty"`
}

// SuspensionHistory is stored as a JSONB array on the users row.
type SuspensionHistory []SuspensionEvent

// Value implements driver.Valuer for JSONB persistence.
func (h SuspensionHistory) Value() (driver.Value, error) {
	if h == nil {
		h = SuspensionHistory{}
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner for JSONB persistence.
func (h *SuspensionHistory) Scan(src interface{}) error {
	if src == nil {
		*h = SuspensionHistory{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("suspension history: unsupported scan type %T", src)
	}
	return json.Unmarshal(b, h)
}

// User represents a platform user with suspension state.
type User struct {
	ID                int64             `db:"id" json:"id"`
	Username          string            `db:"username" json:"username"`
	Email             string            `db:"email" json:"email"`
	Phone             string            `db:"phone" json:"phone"`
	PasswordHash      string            `db:"password_hash" json:"-"`
	IsEmailVerified   bool              `db:"is_email_verified" json:"is_email_verified"`
	IsStaff           bool              `db:"is_staff" json:"is_staff"`
	IsMarketo         bool              `db:"is_marketo" json:"is_marketo"`
	ReferralCode      *string           `db:"referral_code" json:"referral_code,omitempty"`
	ReferredBy        *int64            `db:"referred_by" json:"referred_by,omitempty"`
	IsSuspended       bool              `db:"is_suspended" json:"is_suspended"`
	SuspensionType    SuspensionType    `db:"suspension_type" json:"suspension_type,omitempty"`
	SuspensionReason  string            `db:"suspension_reason" json:"suspension_reason,omitempty"`
	SuspendedAt       *time.Time        `db:"suspended_at" json:"suspended_at,omitempty"`
	SuspendedUntil    *time.Time        `db:"suspended_until" json:"suspended_until,omitempty"`
	SuspensionHistory SuspensionHistory `db:"suspension_history" json:"-"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// NewUser creates a new User instance.
func NewUser(username, email, phone string) *User {
	now := time.Now().UTC()
	return &User{
		Username:          username,
		Email:             email,
		Phone:             phone,
		SuspensionHistory: SuspensionHistory{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// IsPermanentlySuspended reports whether the user is under a permanent suspension.
func (u *User) IsPermanentlySuspended() bool {
	return u.IsSuspended && u.SuspensionType == SuspensionPermanent
}

// IsTemporarilySuspended reports whether the user is under a temporary
// suspension that is still in force at the given instant.
func (u *User) IsTemporarilySuspended(now time.Time) bool {
	if !u.IsSuspended || u.SuspensionType != SuspensionTemporary {
		return false
	}
	return u.SuspendedUntil == nil || u.SuspendedUntil.After(now)
}

// SuspensionExpired reports whether a temporary suspension has run out.
func (u *User) SuspensionExpired(now time.Time) bool {
	return u.IsSuspended &&
		u.SuspensionType == SuspensionTemporary &&
		u.SuspendedUntil != nil &&
		!u.SuspendedUntil.After(now)
}

// AppendSuspensionEvent records an entry in the suspension log.
// Reasons are truncated to keep the log bounded.
func (u *User) AppendSuspensionEvent(date time.Time, eventType, reason, by string) {
	if len(reason) > suspensionReasonMaxLen {
		reason = reason[:suspensionReasonMaxLen]
	}
	u.SuspensionHistory = append(u.SuspensionHistory, SuspensionEvent{
		Date:   date,
		Type:   eventType,
		Reason: reason,
		By:     by,
	})
}

// NewReferralCode produces a marketer referral code of the form MRK-XXXXXXXX.
func NewReferralCode() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "MRK-" + strings.ToUpper(hex[:8])
}
