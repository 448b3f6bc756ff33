// internal/repository/postgres/user_pg.go
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

const userColumns = `id, username, email, phone, password_hash, is_email_verified,
	is_staff, is_marketo, referral_code, referred_by,
	is_suspended, suspension_type, suspension_reason, suspended_at, suspended_until,
	suspension_history, created_at, updated_at`

// UserRepository implements repository.UserRepository for PostgreSQL.
type UserRepository struct{}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &UserRepository{}
}

// CreateUser inserts a new user using the provided DBExecutor.
func (r *UserRepository) CreateUser(ctx context.Context, q repository.DBExecutor, user *domain.User) error {
	query := `INSERT INTO users (username, email, phone, password_hash, is_email_verified,
			is_staff, is_marketo, referral_code, referred_by,
			is_suspended, suspension_type, suspension_reason, suspended_at, suspended_until,
			suspension_history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`
	err := q.QueryRowContext(ctx, query,
		user.Username, user.Email, user.Phone, user.PasswordHash, user.IsEmailVerified,
		user.IsStaff, user.IsMarketo, user.ReferralCode, user.ReferredBy,
		user.IsSuspended, user.SuspensionType, user.SuspensionReason, user.SuspendedAt, user.SuspendedUntil,
		user.SuspensionHistory, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) getUser(ctx context.Context, q repository.DBExecutor, query string, arg interface{}) (*domain.User, error) {
	var user domain.User
	err := q.GetContext(ctx, &user, query, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by their ID.
func (r *UserRepository) GetUserByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.User, error) {
	return r.getUser(ctx, q, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByIDForUpdate retrieves a user by ID with a row lock.
func (r *UserRepository) GetUserByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.User, error) {
	return r.getUser(ctx, q, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

// GetUserByEmail retrieves a user by their email address.
func (r *UserRepository) GetUserByEmail(ctx context.Context, q repository.DBExecutor, email string) (*domain.User, error) {
	return r.getUser(ctx, q, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetUserByReferralCode retrieves a marketer by their referral code.
func (r *UserRepository) GetUserByReferralCode(ctx context.Context, q repository.DBExecutor, code string) (*domain.User, error) {
	return r.getUser(ctx, q, `SELECT `+userColumns+` FROM users WHERE referral_code = $1 AND is_marketo = TRUE`, code)
}

// UpdateSuspension persists all suspension columns and the history log in one
// write.
func (r *UserRepository) UpdateSuspension(ctx context.Context, q repository.DBExecutor, user *domain.User) error {
	query := `UPDATE users SET
			is_suspended = $1, suspension_type = $2, suspension_reason = $3,
			suspended_at = $4, suspended_until = $5, suspension_history = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := q.ExecContext(ctx, query,
		user.IsSuspended, user.SuspensionType, user.SuspensionReason,
		user.SuspendedAt, user.SuspendedUntil, user.SuspensionHistory,
		time.Now().UTC(), user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update suspension state for user %d: %w", user.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for user %d: %w", user.ID, err)
	}
	if rowsAffected == 0 {
		return util.ErrUserNotFound
	}
	return nil
}

// SetReferredBy records the referrer of a user.
func (r *UserRepository) SetReferredBy(ctx context.Context, q repository.DBExecutor, userID, referrerID int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET referred_by = $1, updated_at = $2 WHERE id = $3`,
		referrerID, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to set referrer for user %d: %w", userID, err)
	}
	return nil
}

// SetReferralCode records a marketer's referral code.
func (r *UserRepository) SetReferralCode(ctx context.Context, q repository.DBExecutor, userID int64, code string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET referral_code = $1, updated_at = $2 WHERE id = $3`,
		code, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to set referral code for user %d: %w", userID, err)
	}
	return nil
}

// SetPasswordHash replaces a user's credential digest.
func (r *UserRepository) SetPasswordHash(ctx context.Context, q repository.DBExecutor, userID int64, hash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		hash, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to set password hash for user %d: %w", userID, err)
	}
	return nil
}

// SetEmailVerified marks a user's email address as verified.
func (r *UserRepository) SetEmailVerified(ctx context.Context, q repository.DBExecutor, userID int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET is_email_verified = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to mark email verified for user %d: %w", userID, err)
	}
	return nil
}
