// internal/repository/mpesa_repo.go
package repository

import (
	"context"

	"traderiser/internal/domain"

	"github.com/shopspring/decimal"
)

// MpesaRepository defines the interface for external-ledger (M-Pesa
// simulator) data operations.
type MpesaRepository interface {
	// CreateMpesaUser adds a new external-ledger profile.
	CreateMpesaUser(ctx context.Context, q DBExecutor, profile *domain.MpesaUser) error
	// GetMpesaUserByUserID retrieves a profile by owning user ID.
	GetMpesaUserByUserID(ctx context.Context, q DBExecutor, userID int64) (*domain.MpesaUser, error)
	// GetMpesaUserByPhone retrieves a profile by phone number.
	GetMpesaUserByPhone(ctx context.Context, q DBExecutor, phone string) (*domain.MpesaUser, error)
	// GetMpesaUserByPhoneForUpdate is GetMpesaUserByPhone with a row lock for
	// balance mirroring.
	GetMpesaUserByPhoneForUpdate(ctx context.Context, q DBExecutor, phone string) (*domain.MpesaUser, error)
	// ListMpesaUsersExcept retrieves every profile except the given user's,
	// for trial PIN verification (PINs are hashed, so uniqueness cannot be
	// checked by lookup).
	ListMpesaUsersExcept(ctx context.Context, q DBExecutor, userID int64) ([]domain.MpesaUser, error)
	// UpdateMpesaProfile persists real name, phone, PIN hash and photo handle.
	UpdateMpesaProfile(ctx context.Context, q DBExecutor, profile *domain.MpesaUser) error
	// SetMpesaBalance writes an absolute balance to a profile row.
	SetMpesaBalance(ctx context.Context, q DBExecutor, profileID int64, balance decimal.Decimal) error
	// CreateMpesaTransaction appends an external-ledger transaction record.
	CreateMpesaTransaction(ctx context.Context, q DBExecutor, tx *domain.MpesaTransaction) error
	// MpesaIDExists reports whether an external transaction id is taken.
	MpesaIDExists(ctx context.Context, q DBExecutor, mpesaID string) (bool, error)
	// GetMpesaTransactionsByProfileID retrieves a profile's transactions,
	// newest first.
	GetMpesaTransactionsByProfileID(ctx context.Context, q DBExecutor, profileID int64, limit int) ([]domain.MpesaTransaction, error)
	// GetMpesaTransactionByID retrieves one transaction scoped to a profile.
	GetMpesaTransactionByID(ctx context.Context, q DBExecutor, id, profileID int64) (*domain.MpesaTransaction, error)
}
