// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"traderiser/internal/domain"

	"github.com/shopspring/decimal"
)

// WalletRepository defines the interface for wallet data operations.
type WalletRepository interface {
	// CreateWallet adds a new wallet.
	CreateWallet(ctx context.Context, q DBExecutor, wallet *domain.Wallet) error
	// GetWalletByID retrieves a wallet by its ID.
	GetWalletByID(ctx context.Context, q DBExecutor, id int64) (*domain.Wallet, error)
	// GetWalletByIDForUpdate retrieves a wallet by ID with a row lock so a
	// concurrent transition on the same wallet cannot interleave its
	// read-modify-write of the balance.
	GetWalletByIDForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.Wallet, error)
	// GetWalletByAccount retrieves a wallet by (account, kind, currency).
	GetWalletByAccount(ctx context.Context, q DBExecutor, accountID int64, walletType domain.WalletType, currency string) (*domain.Wallet, error)
	// GetWalletByAccountForUpdate is GetWalletByAccount with a row lock.
	GetWalletByAccountForUpdate(ctx context.Context, q DBExecutor, accountID int64, walletType domain.WalletType, currency string) (*domain.Wallet, error)
	// SetWalletBalance writes an absolute balance to a wallet row.
	SetWalletBalance(ctx context.Context, q DBExecutor, walletID int64, balance decimal.Decimal) error
}
