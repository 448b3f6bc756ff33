// internal/repository/postgres/mpesa_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"traderiser/internal/domain"
	"traderiser/internal/repository"
	"traderiser/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const mpesaUserColumns = `id, user_id, real_name, pin_hash, phone_number, balance, fuliza, profile_photo, created_at`

const mpesaTxColumns = `id, mpesa_user_id, transaction_type, amount, description, reference,
	mpesa_id, recipient_name, recipient_phone, category, created_at`

// MpesaRepository implements repository.MpesaRepository for PostgreSQL.
type MpesaRepository struct{}

// NewMpesaRepository creates a new MpesaRepository.
func NewMpesaRepository(db *sqlx.DB) repository.MpesaRepository {
	return &MpesaRepository{}
}

// CreateMpesaUser inserts a new external-ledger profile.
func (r *MpesaRepository) CreateMpesaUser(ctx context.Context, q repository.DBExecutor, profile *domain.MpesaUser) error {
	query := `INSERT INTO mpesa_users (user_id, real_name, pin_hash, phone_number, balance, fuliza, profile_photo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		profile.UserID, profile.RealName, profile.PINHash, profile.PhoneNumber,
		profile.Balance, profile.Fuliza, profile.ProfilePhoto, profile.CreatedAt,
	).Scan(&profile.ID)
	if err != nil {
		return fmt.Errorf("failed to create mpesa profile: %w", err)
	}
	return nil
}

func (r *MpesaRepository) getProfile(ctx context.Context, q repository.DBExecutor, query string, arg interface{}) (*domain.MpesaUser, error) {
	var profile domain.MpesaUser
	err := q.GetContext(ctx, &profile, query, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mpesa profile: %w", err)
	}
	return &profile, nil
}

// GetMpesaUserByUserID retrieves a profile by owning user ID.
func (r *MpesaRepository) GetMpesaUserByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.MpesaUser, error) {
	return r.getProfile(ctx, q, `SELECT `+mpesaUserColumns+` FROM mpesa_users WHERE user_id = $1`, userID)
}

// GetMpesaUserByPhone retrieves a profile by phone number.
func (r *MpesaRepository) GetMpesaUserByPhone(ctx context.Context, q repository.DBExecutor, phone string) (*domain.MpesaUser, error) {
	return r.getProfile(ctx, q, `SELECT `+mpesaUserColumns+` FROM mpesa_users WHERE phone_number = $1`, phone)
}

// GetMpesaUserByPhoneForUpdate is GetMpesaUserByPhone with a row lock.
func (r *MpesaRepository) GetMpesaUserByPhoneForUpdate(ctx context.Context, q repository.DBExecutor, phone string) (*domain.MpesaUser, error) {
	return r.getProfile(ctx, q, `SELECT `+mpesaUserColumns+` FROM mpesa_users WHERE phone_number = $1 FOR UPDATE`, phone)
}

// ListMpesaUsersExcept retrieves every profile except the given user's.
func (r *MpesaRepository) ListMpesaUsersExcept(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.MpesaUser, error) {
	profiles := []domain.MpesaUser{}
	query := `SELECT ` + mpesaUserColumns + ` FROM mpesa_users WHERE user_id != $1`
	if err := q.SelectContext(ctx, &profiles, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list mpesa profiles: %w", err)
	}
	return profiles, nil
}

// UpdateMpesaProfile persists real name, phone, PIN hash and photo handle.
func (r *MpesaRepository) UpdateMpesaProfile(ctx context.Context, q repository.DBExecutor, profile *domain.MpesaUser) error {
	query := `UPDATE mpesa_users SET real_name = $1, phone_number = $2, pin_hash = $3, profile_photo = $4 WHERE id = $5`
	_, err := q.ExecContext(ctx, query,
		profile.RealName, profile.PhoneNumber, profile.PINHash, profile.ProfilePhoto, profile.ID)
	if err != nil {
		return fmt.Errorf("failed to update mpesa profile %d: %w", profile.ID, err)
	}
	return nil
}

// SetMpesaBalance writes an absolute balance to a profile row.
func (r *MpesaRepository) SetMpesaBalance(ctx context.Context, q repository.DBExecutor, profileID int64, balance decimal.Decimal) error {
	result, err := q.ExecContext(ctx,
		`UPDATE mpesa_users SET balance = $1 WHERE id = $2`, balance, profileID)
	if err != nil {
		return fmt.Errorf("failed to set mpesa balance for profile %d: %w", profileID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after setting mpesa balance for profile %d: %w", profileID, err)
	}
	if rowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}

// CreateMpesaTransaction appends an external-ledger transaction record.
func (r *MpesaRepository) CreateMpesaTransaction(ctx context.Context, q repository.DBExecutor, tx *domain.MpesaTransaction) error {
	query := `INSERT INTO mpesa_transactions
			(mpesa_user_id, transaction_type, amount, description, reference,
			mpesa_id, recipient_name, recipient_phone, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		tx.MpesaUserID, tx.Type, tx.Amount, tx.Description, tx.Reference,
		tx.MpesaID, tx.RecipientName, tx.RecipientPhone, tx.Category, tx.CreatedAt,
	).Scan(&tx.ID)
	if err != nil {
		return fmt.Errorf("failed to create mpesa transaction: %w", err)
	}
	return nil
}

// MpesaIDExists reports whether an external transaction id is taken.
func (r *MpesaRepository) MpesaIDExists(ctx context.Context, q repository.DBExecutor, mpesaID string) (bool, error) {
	var exists bool
	err := q.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM mpesa_transactions WHERE mpesa_id = $1)`, mpesaID)
	if err != nil {
		return false, fmt.Errorf("failed to check mpesa id %s: %w", mpesaID, err)
	}
	return exists, nil
}

// GetMpesaTransactionsByProfileID retrieves a profile's transactions.
func (r *MpesaRepository) GetMpesaTransactionsByProfileID(ctx context.Context, q repository.DBExecutor, profileID int64, limit int) ([]domain.MpesaTransaction, error) {
	txs := []domain.MpesaTransaction{}
	query := `SELECT ` + mpesaTxColumns + ` FROM mpesa_transactions
		WHERE mpesa_user_id = $1 ORDER BY created_at DESC LIMIT $2`
	if err := q.SelectContext(ctx, &txs, query, profileID, limit); err != nil {
		return nil, fmt.Errorf("failed to get mpesa transactions for profile %d: %w", profileID, err)
	}
	return txs, nil
}

// GetMpesaTransactionByID retrieves one transaction scoped to a profile.
func (r *MpesaRepository) GetMpesaTransactionByID(ctx context.Context, q repository.DBExecutor, id, profileID int64) (*domain.MpesaTransaction, error) {
	var tx domain.MpesaTransaction
	query := `SELECT ` + mpesaTxColumns + ` FROM mpesa_transactions WHERE id = $1 AND mpesa_user_id = $2`
	err := q.GetContext(ctx, &tx, query, id, profileID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mpesa transaction %d: %w", id, err)
	}
	return &tx, nil
}
