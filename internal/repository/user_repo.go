// internal/repository/user_repo.go
package repository

import (
	"context"

	"traderiser/internal/domain"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// CreateUser adds a new user using the provided DBExecutor.
	CreateUser(ctx context.Context, q DBExecutor, user *domain.User) error
	// GetUserByID retrieves a user by their ID.
	GetUserByID(ctx context.Context, q DBExecutor, id int64) (*domain.User, error)
	// GetUserByIDForUpdate retrieves a user by ID with a row lock, serializing
	// concurrent suspension transitions on the same user.
	GetUserByIDForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.User, error)
	// GetUserByEmail retrieves a user by their email address.
	GetUserByEmail(ctx context.Context, q DBExecutor, email string) (*domain.User, error)
	// GetUserByReferralCode retrieves a marketer by their referral code.
	GetUserByReferralCode(ctx context.Context, q DBExecutor, code string) (*domain.User, error)
	// UpdateSuspension persists all suspension columns and the history log in
	// one write.
	UpdateSuspension(ctx context.Context, q DBExecutor, user *domain.User) error
	// SetReferredBy records the referrer of a user.
	SetReferredBy(ctx context.Context, q DBExecutor, userID, referrerID int64) error
	// SetReferralCode records a marketer's referral code.
	SetReferralCode(ctx context.Context, q DBExecutor, userID int64, code string) error
	// SetPasswordHash replaces a user's credential digest.
	SetPasswordHash(ctx context.Context, q DBExecutor, userID int64, hash string) error
	// SetEmailVerified marks a user's email address as verified.
	SetEmailVerified(ctx context.Context, q DBExecutor, userID int64) error
}
