// internal/repository/transaction_repo.go
package repository

import (
	"context"
	"time"

	"traderiser/internal/domain"
)

// WalletTransactionRepository defines the interface for wallet transaction
// data operations.
type WalletTransactionRepository interface {
	// CreateWalletTransaction adds a new wallet transaction record.
	CreateWalletTransaction(ctx context.Context, q DBExecutor, tx *domain.WalletTransaction) error
	// GetWalletTransactionByID retrieves a wallet transaction by its ID.
	GetWalletTransactionByID(ctx context.Context, q DBExecutor, id int64) (*domain.WalletTransaction, error)
	// SetStatus writes a new lifecycle status to a wallet transaction row.
	SetStatus(ctx context.Context, q DBExecutor, id int64, status domain.WalletTransactionStatus) error
	// SetCompletedAt stamps the completion time of a wallet transaction.
	SetCompletedAt(ctx context.Context, q DBExecutor, id int64, completedAt time.Time) error
	// GetWalletTransactionsByWalletID retrieves transaction history for a wallet.
	GetWalletTransactionsByWalletID(ctx context.Context, q DBExecutor, walletID int64, limit, offset int) ([]domain.WalletTransaction, error)
}

// StatementRepository defines the interface for dashboard statement entries.
type StatementRepository interface {
	// CreateStatementEntry appends one statement entry; entries are never
	// updated afterwards.
	CreateStatementEntry(ctx context.Context, q DBExecutor, entry *domain.StatementEntry) error
	// GetStatementByAccountID retrieves statement entries for an account,
	// newest first.
	GetStatementByAccountID(ctx context.Context, q DBExecutor, accountID int64, limit, offset int) ([]domain.StatementEntry, error)
	// DeleteStatementByAccountID clears an account's statement (demo reset).
	DeleteStatementByAccountID(ctx context.Context, q DBExecutor, accountID int64) error
}
