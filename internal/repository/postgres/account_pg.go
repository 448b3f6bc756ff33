// internal/repository/postgres/account_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"traderiser/internal/domain"
	"traderiser/internal/repository"
	"traderiser/internal/util"

	"github.com/jmoiron/sqlx"
)

// AccountRepository implements repository.AccountRepository for PostgreSQL.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *sqlx.DB) repository.AccountRepository {
	return &AccountRepository{}
}

// CreateAccount inserts a new account row. The (user_id, account_type) unique
// constraint surfaces duplicates as a conflict.
func (r *AccountRepository) CreateAccount(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	query := `INSERT INTO accounts (user_id, account_type, created_at)
		VALUES ($1, $2, $3) RETURNING id`
	err := q.QueryRowContext(ctx, query, account.UserID, account.AccountType, account.CreatedAt).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccountByID retrieves an account by its ID.
func (r *AccountRepository) GetAccountByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, user_id, account_type, created_at FROM accounts WHERE id = $1`
	err := q.GetContext(ctx, &account, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID %d: %w", id, err)
	}
	return &account, nil
}

// GetAccountsByUserID retrieves all accounts a user holds.
func (r *AccountRepository) GetAccountsByUserID(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.Account, error) {
	accounts := []domain.Account{}
	query := `SELECT id, user_id, account_type, created_at FROM accounts WHERE user_id = $1 ORDER BY id`
	if err := q.SelectContext(ctx, &accounts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get accounts for user %d: %w", userID, err)
	}
	return accounts, nil
}

// GetAccountByUserAndType retrieves one of a user's accounts by type.
func (r *AccountRepository) GetAccountByUserAndType(ctx context.Context, q repository.DBExecutor, userID int64, accountType domain.AccountType) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, user_id, account_type, created_at FROM accounts WHERE user_id = $1 AND account_type = $2`
	err := q.GetContext(ctx, &account, query, userID, accountType)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s account for user %d: %w", accountType, userID, err)
	}
	return &account, nil
}
