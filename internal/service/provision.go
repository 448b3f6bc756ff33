// internal/service/provision.go
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"traderiser/internal/domain"
	"traderiser/internal/repository"
	"traderiser/internal/util"
	"traderiser/pkg/db"
)

// provisionableTypes are the account types a user may open after signup.
var provisionableTypes = map[domain.AccountType]bool{
	domain.AccountTypeStandard: true,
	domain.AccountTypeDemo:     true,
	domain.AccountTypeProFX:    true,
}

// ProvisionService creates trading accounts and their wallet pairs, enforcing
// the per-user portfolio rules.
type ProvisionService interface {
	// CanCreateAccount reports whether a user holding the given accounts may
	// open another one of the given type.
	CanCreateAccount(accounts []domain.Account, accountType domain.AccountType) bool
	// Provision creates the account plus its main USD and trading KSH wallets
	// in one transaction.
	Provision(ctx context.Context, userID int64, accountType domain.AccountType) (*domain.Account, error)
	// ListAccounts returns every account a user holds.
	ListAccounts(ctx context.Context, userID int64) ([]domain.Account, error)
	// GetOwnedAccount returns an account only when the given user owns it.
	GetOwnedAccount(ctx context.Context, userID, accountID int64) (*domain.Account, error)
}

type provisionService struct {
	dbBeginner  db.DBTxBeginner
	dbExecutor  repository.DBExecutor
	accountRepo repository.AccountRepository
	walletRepo  repository.WalletRepository
	logger      *slog.Logger
	beginTx     db.BeginTxFunc
	commitTx    db.CommitTxFunc
	rollbackTx  db.RollbackTxFunc
}

// NewProvisionService creates a new instance of ProvisionService.
func NewProvisionService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	walletRepo repository.WalletRepository,
	logger *slog.Logger,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) ProvisionService {
	return &provisionService{
		dbBeginner:  dbBeginner,
		dbExecutor:  dbExecutor,
		accountRepo: accountRepo,
		walletRepo:  walletRepo,
		logger:      logger,
		beginTx:     beginTx,
		commitTx:    commitTx,
		rollbackTx:  rollbackTx,
	}
}

// CanCreateAccount applies the portfolio rules in order: the overall cap,
// then the per-type constraints, then the provisionable set.
func (s *provisionService) CanCreateAccount(accounts []domain.Account, accountType domain.AccountType) bool {
	if len(accounts) >= domain.MaxAccountsPerUser {
		return false
	}

	holds := func(t domain.AccountType) bool {
		for _, a := range accounts {
			if a.AccountType == t {
				return true
			}
		}
		return false
	}

	switch accountType {
	case domain.AccountTypeDemo:
		return !holds(domain.AccountTypeDemo)
	case domain.AccountTypeProFX:
		return holds(domain.AccountTypeStandard) && !holds(domain.AccountTypeProFX)
	case domain.AccountTypeStandard:
		return !holds(domain.AccountTypeStandard)
	default:
		return provisionableTypes[accountType]
	}
}

// Provision creates an account and its wallet pair.
func (s *provisionService) Provision(ctx context.Context, userID int64, accountType domain.AccountType) (*domain.Account, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("provision account: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("provision account: transaction controller does not implement DBExecutor")
	}

	accounts, err := s.accountRepo.GetAccountsByUserID(ctx, txExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("provision account: failed to list accounts for user %d: %w", userID, err)
	}
	if !s.CanCreateAccount(accounts, accountType) {
		return nil, fmt.Errorf("provision account: user %d may not open a %s account: %w",
			userID, accountType, util.ErrConflict)
	}

	account := domain.NewAccount(userID, accountType)
	if err := s.accountRepo.CreateAccount(ctx, txExecutor, account); err != nil {
		return nil, fmt.Errorf("provision account: failed to create account: %w", err)
	}

	mainWallet := domain.NewWallet(account.ID, domain.WalletTypeMain, domain.CurrencyUSD, domain.DefaultBalance(accountType))
	if err := s.walletRepo.CreateWallet(ctx, txExecutor, mainWallet); err != nil {
		return nil, fmt.Errorf("provision account: failed to create main wallet: %w", err)
	}
	tradingWallet := domain.NewWallet(account.ID, domain.WalletTypeTrading, domain.CurrencyKSH, decimal.Zero)
	if err := s.walletRepo.CreateWallet(ctx, txExecutor, tradingWallet); err != nil {
		return nil, fmt.Errorf("provision account: failed to create trading wallet: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("provision account: failed to commit: %w", err)
	}

	s.logger.Info("account provisioned", "user_id", userID, "account_id", account.ID, "type", accountType)
	return account, nil
}

// ListAccounts returns every account a user holds.
func (s *provisionService) ListAccounts(ctx context.Context, userID int64) ([]domain.Account, error) {
	accounts, err := s.accountRepo.GetAccountsByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// GetOwnedAccount returns an account only when the given user owns it.
func (s *provisionService) GetOwnedAccount(ctx context.Context, userID, accountID int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account.UserID != userID {
		return nil, fmt.Errorf("get account: account %d not owned by user %d: %w",
			accountID, userID, util.ErrAccountNotFound)
	}
	return account, nil
}
