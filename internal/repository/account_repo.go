// internal/repository/account_repo.go
package repository

import (
	"context"

	"traderiser/internal/domain"
)

// AccountRepository defines the interface for account data operations.
type AccountRepository interface {
	// CreateAccount adds a new account row using the provided DBExecutor.
	CreateAccount(ctx context.Context, q DBExecutor, account *domain.Account) error
	// GetAccountByID retrieves an account by its ID.
	GetAccountByID(ctx context.Context, q DBExecutor, id int64) (*domain.Account, error)
	// GetAccountsByUserID retrieves all accounts a user holds.
	GetAccountsByUserID(ctx context.Context, q DBExecutor, userID int64) ([]domain.Account, error)
	// GetAccountByUserAndType retrieves one of a user's accounts by type.
	GetAccountByUserAndType(ctx context.Context, q DBExecutor, userID int64, accountType domain.AccountType) (*domain.Account, error)
}
