// internal/repository/postgres/wallet_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"traderiser/internal/domain"
	"traderiser/internal/repository"
	"traderiser/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, account_id, wallet_type, currency, balance, created_at, updated_at`

// WalletRepository implements repository.WalletRepository for PostgreSQL.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *sqlx.DB) repository.WalletRepository {
	return &WalletRepository{}
}

// CreateWallet inserts a new wallet using the provided DBExecutor.
func (r *WalletRepository) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	query := `INSERT INTO wallets (account_id, wallet_type, currency, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		wallet.AccountID, wallet.WalletType, wallet.Currency, wallet.Balance,
		wallet.CreatedAt, wallet.UpdatedAt,
	).Scan(&wallet.ID)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *WalletRepository) getWallet(ctx context.Context, q repository.DBExecutor, query string, args ...interface{}) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := q.GetContext(ctx, &wallet, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

// GetWalletByID retrieves a wallet by its ID.
func (r *WalletRepository) GetWalletByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	return r.getWallet(ctx, q, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
}

// GetWalletByIDForUpdate retrieves a wallet by ID with a row lock.
func (r *WalletRepository) GetWalletByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	return r.getWallet(ctx, q, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
}

// GetWalletByAccount retrieves a wallet by (account, kind, currency).
func (r *WalletRepository) GetWalletByAccount(ctx context.Context, q repository.DBExecutor, accountID int64, walletType domain.WalletType, currency string) (*domain.Wallet, error) {
	return r.getWallet(ctx, q,
		`SELECT `+walletColumns+` FROM wallets WHERE account_id = $1 AND wallet_type = $2 AND currency = $3`,
		accountID, walletType, currency)
}

// GetWalletByAccountForUpdate is GetWalletByAccount with a row lock.
func (r *WalletRepository) GetWalletByAccountForUpdate(ctx context.Context, q repository.DBExecutor, accountID int64, walletType domain.WalletType, currency string) (*domain.Wallet, error) {
	return r.getWallet(ctx, q,
		`SELECT `+walletColumns+` FROM wallets WHERE account_id = $1 AND wallet_type = $2 AND currency = $3 FOR UPDATE`,
		accountID, walletType, currency)
}

// SetWalletBalance writes an absolute balance to a wallet row.
func (r *WalletRepository) SetWalletBalance(ctx context.Context, q repository.DBExecutor, walletID int64, balance decimal.Decimal) error {
	query := `UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3`
	result, err := q.ExecContext(ctx, query, balance, time.Now().UTC(), walletID)
	if err != nil {
		return fmt.Errorf("failed to set wallet balance for ID %d: %w", walletID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after setting wallet balance for ID %d: %w", walletID, err)
	}
	if rowsAffected == 0 {
		return util.ErrWalletNotFound
	}
	return nil
}
