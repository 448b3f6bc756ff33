// internal/repository/postgres/transaction_pg.go
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
)

const walletTxColumns = `id, wallet_id, transaction_type, amount, currency, converted_amount,
	status, completed_at, reference_id, mpesa_phone, description, created_at`

// WalletTransactionRepository implements
// repository.WalletTransactionRepository for PostgreSQL.
type WalletTransactionRepository struct{}

// NewWalletTransactionRepository creates a new WalletTransactionRepository.
func NewWalletTransactionRepository(db *sqlx.DB) repository.WalletTransactionRepository {
	return &WalletTransactionRepository{}
}

// CreateWalletTransaction inserts a new wallet transaction record.
func (r *WalletTransactionRepository) CreateWalletTransaction(ctx context.Context, q repository.DBExecutor, tx *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions
			(wallet_id, transaction_type, amount, currency, converted_amount,
			status, completed_at, reference_id, mpesa_phone, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		tx.WalletID, tx.Type, tx.Amount, tx.Currency, tx.ConvertedAmount,
		tx.Status, tx.CompletedAt, tx.ReferenceID, tx.MpesaPhone, tx.Description, tx.CreatedAt,
	).Scan(&tx.ID)
	if err != nil {
		return fmt.Errorf("failed to create wallet transaction: %w", err)
	}
	return nil
}

// GetWalletTransactionByID retrieves a wallet transaction by its ID.
func (r *WalletTransactionRepository) GetWalletTransactionByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.WalletTransaction, error) {
	var tx domain.WalletTransaction
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions WHERE id = $1`
	err := q.GetContext(ctx, &tx, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet transaction by ID %d: %w", id, err)
	}
	return &tx, nil
}

// SetStatus writes a new lifecycle status to a wallet transaction row.
func (r *WalletTransactionRepository) SetStatus(ctx context.Context, q repository.DBExecutor, id int64, status domain.WalletTransactionStatus) error {
	_, err := q.ExecContext(ctx,
		`UPDATE wallet_transactions SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set status for wallet transaction %d: %w", id, err)
	}
	return nil
}

// SetCompletedAt stamps the completion time of a wallet transaction.
func (r *WalletTransactionRepository) SetCompletedAt(ctx context.Context, q repository.DBExecutor, id int64, completedAt time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE wallet_transactions SET completed_at = $1 WHERE id = $2`, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to stamp completed_at for wallet transaction %d: %w", id, err)
	}
	return nil
}

// GetWalletTransactionsByWalletID retrieves transaction history for a wallet.
func (r *WalletTransactionRepository) GetWalletTransactionsByWalletID(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.WalletTransaction, error) {
	txs := []domain.WalletTransaction{}
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &txs, query, walletID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to get wallet transactions for wallet %d: %w", walletID, err)
	}
	return txs, nil
}

// StatementRepository implements repository.StatementRepository for PostgreSQL.
type StatementRepository struct{}

// NewStatementRepository creates a new StatementRepository.
func NewStatementRepository(db *sqlx.DB) repository.StatementRepository {
	return &StatementRepository{}
}

// CreateStatementEntry appends one statement entry.
func (r *StatementRepository) CreateStatementEntry(ctx context.Context, q repository.DBExecutor, entry *domain.StatementEntry) error {
	query := `INSERT INTO statement_entries (account_id, amount, transaction_type, description, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		entry.AccountID, entry.Amount, entry.Type, entry.Description, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create statement entry: %w", err)
	}
	return nil
}

// GetStatementByAccountID retrieves statement entries for an account.
func (r *StatementRepository) GetStatementByAccountID(ctx context.Context, q repository.DBExecutor, accountID int64, limit, offset int) ([]domain.StatementEntry, error) {
	entries := []domain.StatementEntry{}
	query := `SELECT id, account_id, amount, transaction_type, description, created_at
		FROM statement_entries WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &entries, query, accountID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to get statement for account %d: %w", accountID, err)
	}
	return entries, nil
}

// DeleteStatementByAccountID clears an account's statement (demo reset).
func (r *StatementRepository) DeleteStatementByAccountID(ctx context.Context, q repository.DBExecutor, accountID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM statement_entries WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to clear statement for account %d: %w", accountID, err)
	}
	return nil
}
