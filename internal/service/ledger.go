// internal/service/ledger.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"traderiser/internal/domain"
	"traderiser/internal/notify"
	"traderiser/internal/repository"
	"traderiser/internal/util"
	"traderiser/pkg/db"
)

// commissionRate is the referral commission quoted on a client deposit.
var commissionRate = decimal.RequireFromString("0.80")

// ExternalLedgerSync mirrors completed wallet transactions into the external
// ledger. Failures are logged and never affect the wallet-side commit.
type ExternalLedgerSync interface {
	SyncCompleted(ctx context.Context, tx *domain.WalletTransaction) error
}

// LedgerService is the single authority over balance-affecting state. Every
// wallet transaction status transition funnels through OnStatusChange, which
// applies the balance delta, statement entry and completion stamp atomically
// and exactly once, then fires the non-transactional side effects.
type LedgerService interface {
	// CreateWalletTransaction records a new pending transaction against a wallet.
	CreateWalletTransaction(ctx context.Context, walletID int64, txType domain.WalletTransactionType, amount decimal.Decimal, currency string, convertedAmount *decimal.Decimal, mpesaPhone *string, description string) (*domain.WalletTransaction, error)
	// GetMainWallet returns the main USD wallet backing an account's balance,
	// creating it lazily at the type default.
	GetMainWallet(ctx context.Context, account *domain.Account) (*domain.Wallet, error)
	// RequestDeposit records a pending deposit against the account's main wallet.
	RequestDeposit(ctx context.Context, account *domain.Account, amount decimal.Decimal, currency string, convertedAmount *decimal.Decimal, mpesaPhone *string) (*domain.WalletTransaction, error)
	// RequestWithdrawal debits the main wallet up front and records a pending
	// withdrawal. Fails on insufficient funds.
	RequestWithdrawal(ctx context.Context, account *domain.Account, amount decimal.Decimal, mpesaPhone *string) (*domain.WalletTransaction, error)
	// Transfer moves funds between two accounts' main wallets, recording a
	// transfer_out/transfer_in pair and completing both.
	Transfer(ctx context.Context, fromAccount, toAccount *domain.Account, amount decimal.Decimal) error
	// OnStatusChange drives a wallet transaction from oldStatus to newStatus
	// and applies every consequence of that transition. Re-invoking with an
	// unchanged status is a no-op; a transaction that reached failed is frozen.
	OnStatusChange(ctx context.Context, txID int64, oldStatus, newStatus domain.WalletTransactionStatus) error
	// AccountBalance derives an account's displayed balance from its main USD
	// wallet, falling back to the type default when the wallet does not exist.
	AccountBalance(ctx context.Context, account *domain.Account) (decimal.Decimal, error)
	// SetAccountBalance writes an absolute balance through to the main USD
	// wallet, creating it when missing.
	SetAccountBalance(ctx context.Context, account *domain.Account, value decimal.Decimal) error
	// ReconcileAccountWallet ensures the main USD wallet exists and matches the
	// expected balance when one is given.
	ReconcileAccountWallet(ctx context.Context, account *domain.Account, expected *decimal.Decimal) error
	// ResetDemoBalance restores a demo account to its opening balance and
	// clears its statement. Returns the restored balance.
	ResetDemoBalance(ctx context.Context, account *domain.Account) (decimal.Decimal, error)
	// GetStatement returns an account's statement entries, newest first.
	GetStatement(ctx context.Context, accountID int64, limit, offset int) ([]domain.StatementEntry, error)
	// GetWalletTransactions returns a wallet's transaction history.
	GetWalletTransactions(ctx context.Context, walletID int64, limit, offset int) ([]domain.WalletTransaction, error)
}

type ledgerService struct {
	dbBeginner    db.DBTxBeginner
	dbExecutor    repository.DBExecutor
	userRepo      repository.UserRepository
	accountRepo   repository.AccountRepository
	walletRepo    repository.WalletRepository
	txRepo        repository.WalletTransactionRepository
	statementRepo repository.StatementRepository
	externalSync  ExternalLedgerSync
	notifier      notify.Notifier
	logger        *slog.Logger
	beginTx       db.BeginTxFunc
	commitTx      db.CommitTxFunc
	rollbackTx    db.RollbackTxFunc
	now           func() time.Time
}

// NewLedgerService creates a new instance of LedgerService. externalSync may
// be nil when no external ledger is wired.
func NewLedgerService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	walletRepo repository.WalletRepository,
	txRepo repository.WalletTransactionRepository,
	statementRepo repository.StatementRepository,
	externalSync ExternalLedgerSync,
	notifier notify.Notifier,
	logger *slog.Logger,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) LedgerService {
	return &ledgerService{
		dbBeginner:    dbBeginner,
		dbExecutor:    dbExecutor,
		userRepo:      userRepo,
		accountRepo:   accountRepo,
		walletRepo:    walletRepo,
		txRepo:        txRepo,
		statementRepo: statementRepo,
		externalSync:  externalSync,
		notifier:      notifier,
		logger:        logger,
		beginTx:       beginTx,
		commitTx:      commitTx,
		rollbackTx:    rollbackTx,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateWalletTransaction records a new pending transaction against a wallet.
func (s *ledgerService) CreateWalletTransaction(
	ctx context.Context,
	walletID int64,
	txType domain.WalletTransactionType,
	amount decimal.Decimal,
	currency string,
	convertedAmount *decimal.Decimal,
	mpesaPhone *string,
	description string,
) (*domain.WalletTransaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("create wallet transaction: amount must be positive: %w", util.ErrInvalidInput)
	}
	if _, err := s.walletRepo.GetWalletByID(ctx, s.dbExecutor, walletID); err != nil {
		return nil, fmt.Errorf("create wallet transaction: %w", err)
	}

	walletTx := domain.NewWalletTransaction(walletID, txType, amount, currency, convertedAmount, mpesaPhone, description)
	if err := s.txRepo.CreateWalletTransaction(ctx, s.dbExecutor, walletTx); err != nil {
		return nil, fmt.Errorf("create wallet transaction: %w", err)
	}
	return walletTx, nil
}

// GetMainWallet returns the main USD wallet backing an account's balance,
// creating it lazily at the type default.
func (s *ledgerService) GetMainWallet(ctx context.Context, account *domain.Account) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetWalletByAccount(ctx, s.dbExecutor, account.ID, domain.WalletTypeMain, domain.CurrencyUSD)
	if err == nil {
		return wallet, nil
	}
	if !util.IsError(err, util.ErrNotFound) {
		return nil, fmt.Errorf("get main wallet: %w", err)
	}
	wallet = domain.NewWallet(account.ID, domain.WalletTypeMain, domain.CurrencyUSD, domain.DefaultBalance(account.AccountType))
	if err := s.walletRepo.CreateWallet(ctx, s.dbExecutor, wallet); err != nil {
		return nil, fmt.Errorf("get main wallet: failed to create wallet: %w", err)
	}
	return wallet, nil
}

// RequestDeposit records a pending deposit against the account's main wallet.
// Nothing is credited until the transition into completed.
func (s *ledgerService) RequestDeposit(ctx context.Context, account *domain.Account, amount decimal.Decimal, currency string, convertedAmount *decimal.Decimal, mpesaPhone *string) (*domain.WalletTransaction, error) {
	wallet, err := s.GetMainWallet(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("request deposit: %w", err)
	}
	walletTx, err := s.CreateWalletTransaction(ctx, wallet.ID, domain.WalletTxDeposit, amount, currency, convertedAmount, mpesaPhone, "Deposit request")
	if err != nil {
		return nil, fmt.Errorf("request deposit: %w", err)
	}
	return walletTx, nil
}

// RequestWithdrawal debits the main wallet up front and records a pending
// withdrawal. Completion only stamps the payout on the statement; a failure
// needs a manual refund.
func (s *ledgerService) RequestWithdrawal(ctx context.Context, account *domain.Account, amount decimal.Decimal, mpesaPhone *string) (*domain.WalletTransaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("request withdrawal: amount must be positive: %w", util.ErrInvalidInput)
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("request withdrawal: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("request withdrawal: transaction controller does not implement DBExecutor")
	}

	wallet, err := s.walletRepo.GetWalletByAccountForUpdate(ctx, txExecutor, account.ID, domain.WalletTypeMain, domain.CurrencyUSD)
	if err != nil {
		return nil, fmt.Errorf("request withdrawal: %w", err)
	}
	if wallet.Balance.LessThan(amount) {
		return nil, fmt.Errorf("request withdrawal: balance %s below %s: %w",
			wallet.Balance.String(), amount.String(), util.ErrInsufficientFunds)
	}
	if err := s.walletRepo.SetWalletBalance(ctx, txExecutor, wallet.ID, wallet.Balance.Sub(amount)); err != nil {
		return nil, fmt.Errorf("request withdrawal: %w", err)
	}

	walletTx := domain.NewWalletTransaction(wallet.ID, domain.WalletTxWithdrawal, amount, domain.CurrencyUSD, nil, mpesaPhone, "Withdrawal request")
	if err := s.txRepo.CreateWalletTransaction(ctx, txExecutor, walletTx); err != nil {
		return nil, fmt.Errorf("request withdrawal: %w", err)
	}
	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("request withdrawal: failed to commit: %w", err)
	}

	s.logger.Info("withdrawal requested", "account_id", account.ID, "tx_id", walletTx.ID, "amount", amount.String())
	return walletTx, nil
}

// Transfer moves funds between two accounts' main wallets. The outbound leg
// is checked for funds up front; both legs then complete through the normal
// transition pipeline.
func (s *ledgerService) Transfer(ctx context.Context, fromAccount, toAccount *domain.Account, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("transfer: amount must be positive: %w", util.ErrInvalidInput)
	}
	if fromAccount.ID == toAccount.ID {
		return fmt.Errorf("transfer: source and destination are the same account: %w", util.ErrInvalidInput)
	}

	fromWallet, err := s.GetMainWallet(ctx, fromAccount)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if fromWallet.Balance.LessThan(amount) {
		return fmt.Errorf("transfer: balance %s below %s: %w",
			fromWallet.Balance.String(), amount.String(), util.ErrInsufficientFunds)
	}
	toWallet, err := s.GetMainWallet(ctx, toAccount)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	outTx, err := s.CreateWalletTransaction(ctx, fromWallet.ID, domain.WalletTxTransferOut, amount, domain.CurrencyUSD, nil, nil,
		fmt.Sprintf("to account %d", toAccount.ID))
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	inTx, err := s.CreateWalletTransaction(ctx, toWallet.ID, domain.WalletTxTransferIn, amount, domain.CurrencyUSD, nil, nil,
		fmt.Sprintf("from account %d", fromAccount.ID))
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	if err := s.OnStatusChange(ctx, outTx.ID, domain.WalletTxPending, domain.WalletTxCompleted); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if err := s.OnStatusChange(ctx, inTx.ID, domain.WalletTxPending, domain.WalletTxCompleted); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return nil
}

// transitionEffect describes what a completed transaction does to the wallet
// and how it lands on the statement.
type transitionEffect struct {
	walletDelta     decimal.Decimal // applied to the wallet balance
	statementAmount decimal.Decimal // signed figure on the statement
	statementType   string
	descPrefix      string
	known           bool
}

func completionEffect(walletTx *domain.WalletTransaction) transitionEffect {
	switch walletTx.Type {
	case domain.WalletTxDeposit:
		credit := walletTx.CreditAmount()
		return transitionEffect{
			walletDelta:     credit,
			statementAmount: credit,
			statementType:   "deposit",
			descPrefix:      "Deposit",
			known:           true,
		}
	case domain.WalletTxTransferIn:
		return transitionEffect{
			walletDelta:     walletTx.Amount,
			statementAmount: walletTx.Amount,
			statementType:   "transfer",
			descPrefix:      "Transfer received",
			known:           true,
		}
	case domain.WalletTxTransferOut:
		return transitionEffect{
			walletDelta:     walletTx.Amount.Neg(),
			statementAmount: walletTx.Amount.Neg(),
			statementType:   "transfer",
			descPrefix:      "Transfer sent",
			known:           true,
		}
	case domain.WalletTxWithdrawal:
		// The wallet was already debited when the withdrawal was requested;
		// completion only records the payout on the statement.
		return transitionEffect{
			walletDelta:     decimal.Zero,
			statementAmount: walletTx.Amount.Neg(),
			statementType:   "withdrawal",
			descPrefix:      "Withdrawal",
			known:           true,
		}
	default:
		return transitionEffect{}
	}
}

// OnStatusChange drives a wallet transaction status transition.
func (s *ledgerService) OnStatusChange(ctx context.Context, txID int64, oldStatus, newStatus domain.WalletTransactionStatus) error {
	if oldStatus == newStatus {
		return nil
	}
	if oldStatus == domain.WalletTxFailed {
		// Failed transactions are frozen; reviving one takes a manual override.
		return fmt.Errorf("status change: transaction %d is failed and frozen: %w", txID, util.ErrConflict)
	}

	switch newStatus {
	case domain.WalletTxCompleted:
		return s.applyCompletion(ctx, txID, oldStatus)
	case domain.WalletTxFailed:
		return s.applyFailure(ctx, txID, oldStatus)
	case domain.WalletTxPending:
		// Moving back to pending records the status and nothing else.
		if err := s.txRepo.SetStatus(ctx, s.dbExecutor, txID, domain.WalletTxPending); err != nil {
			return fmt.Errorf("status change: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("status change: unknown status %q: %w", newStatus, util.ErrInvalidInput)
	}
}

func (s *ledgerService) applyCompletion(ctx context.Context, txID int64, oldStatus domain.WalletTransactionStatus) error {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("complete transaction: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("complete transaction: transaction controller does not implement DBExecutor")
	}

	walletTx, err := s.txRepo.GetWalletTransactionByID(ctx, txExecutor, txID)
	if err != nil {
		return fmt.Errorf("complete transaction: failed to get transaction %d: %w", txID, err)
	}
	if walletTx.Status != oldStatus {
		// A concurrent caller already moved this transaction.
		return fmt.Errorf("complete transaction: transaction %d is %s, not %s: %w",
			txID, walletTx.Status, oldStatus, util.ErrConflict)
	}

	wallet, err := s.walletRepo.GetWalletByIDForUpdate(ctx, txExecutor, walletTx.WalletID)
	if err != nil {
		return fmt.Errorf("complete transaction: failed to lock wallet %d: %w", walletTx.WalletID, err)
	}
	account, err := s.accountRepo.GetAccountByID(ctx, txExecutor, wallet.AccountID)
	if err != nil {
		return fmt.Errorf("complete transaction: failed to get account %d: %w", wallet.AccountID, err)
	}

	effect := completionEffect(walletTx)
	if effect.known {
		if !effect.walletDelta.IsZero() {
			newBalance := wallet.Balance.Add(effect.walletDelta)
			if err := s.walletRepo.SetWalletBalance(ctx, txExecutor, wallet.ID, newBalance); err != nil {
				return fmt.Errorf("complete transaction: failed to update wallet balance: %w", err)
			}
			wallet.Balance = newBalance
		}
		entry := domain.NewStatementEntry(account.ID, effect.statementAmount, effect.statementType,
			fmt.Sprintf("%s %s", effect.descPrefix, walletTx.ReferenceID))
		if err := s.statementRepo.CreateStatementEntry(ctx, txExecutor, entry); err != nil {
			return fmt.Errorf("complete transaction: failed to record statement entry: %w", err)
		}
	} else {
		s.logger.Warn("completing wallet transaction of unknown type, no balance effect",
			"tx_id", txID, "type", walletTx.Type)
	}

	if err := s.txRepo.SetStatus(ctx, txExecutor, txID, domain.WalletTxCompleted); err != nil {
		return fmt.Errorf("complete transaction: failed to set status: %w", err)
	}
	if walletTx.CompletedAt == nil {
		completedAt := s.now()
		if err := s.txRepo.SetCompletedAt(ctx, txExecutor, txID, completedAt); err != nil {
			return fmt.Errorf("complete transaction: failed to stamp completion: %w", err)
		}
		walletTx.CompletedAt = &completedAt
	}

	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("complete transaction: failed to commit: %w", err)
	}
	walletTx.Status = domain.WalletTxCompleted

	s.logger.Info("wallet transaction completed",
		"tx_id", txID, "type", walletTx.Type, "wallet_id", wallet.ID, "delta", effect.walletDelta.String())

	s.afterCompletion(ctx, walletTx, account)
	return nil
}

// afterCompletion runs the side effects of a completed transaction: user and
// referrer notifications and the external-ledger mirror. All best-effort;
// the balance change has already committed.
func (s *ledgerService) afterCompletion(ctx context.Context, walletTx *domain.WalletTransaction, account *domain.Account) {
	user, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, account.UserID)
	if err != nil {
		s.logger.Warn("skipping completion notices, owner lookup failed",
			"tx_id", walletTx.ID, "user_id", account.UserID, "error", err)
	} else {
		switch walletTx.Type {
		case domain.WalletTxDeposit:
			subject, body := notify.DepositApprovedNotice(
				user.Username, walletTx.Amount, walletTx.Currency, walletTx.CreditAmount(), walletTx.ReferenceID)
			notify.BestEffort(ctx, s.notifier, s.logger, user.Email, subject, body)
			s.notifyReferralCommission(ctx, user, walletTx)
		case domain.WalletTxWithdrawal:
			destination := ""
			if walletTx.MpesaPhone != nil {
				destination = *walletTx.MpesaPhone
			}
			subject, body := notify.WithdrawalPaidNotice(
				user.Username, walletTx.Amount, walletTx.Currency, destination, walletTx.ReferenceID)
			notify.BestEffort(ctx, s.notifier, s.logger, user.Email, subject, body)
		case domain.WalletTxTransferIn:
			subject, body := notify.TransferReceivedNotice(
				user.Username, walletTx.Amount, string(account.AccountType), walletTx.Description, walletTx.ReferenceID)
			notify.BestEffort(ctx, s.notifier, s.logger, user.Email, subject, body)
		}
	}

	if s.externalSync != nil {
		if err := s.externalSync.SyncCompleted(ctx, walletTx); err != nil {
			s.logger.Warn("external ledger sync failed", "tx_id", walletTx.ID, "error", err)
		}
	}
}

// notifyReferralCommission quotes the referral commission on a completed
// deposit. The figure is notification-only: nothing is ever credited to the
// referrer's wallets.
func (s *ledgerService) notifyReferralCommission(ctx context.Context, client *domain.User, walletTx *domain.WalletTransaction) {
	if client.ReferredBy == nil {
		return
	}
	referrer, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, *client.ReferredBy)
	if err != nil {
		s.logger.Warn("skipping commission notice, referrer lookup failed",
			"tx_id", walletTx.ID, "referrer_id", *client.ReferredBy, "error", err)
		return
	}

	credited := walletTx.CreditAmount()
	commission := credited.Mul(commissionRate).Round(2)
	subject, body := notify.CommissionEarnedNotice(
		referrer.Username, client.Username, walletTx.Amount, walletTx.Currency,
		credited, commission, "COMM-"+walletTx.ReferenceID)
	notify.BestEffort(ctx, s.notifier, s.logger, referrer.Email, subject, body)

	s.logger.Info("referral commission quoted",
		"tx_id", walletTx.ID, "referrer_id", referrer.ID, "commission", commission.String())
}

func (s *ledgerService) applyFailure(ctx context.Context, txID int64, oldStatus domain.WalletTransactionStatus) error {
	walletTx, err := s.txRepo.GetWalletTransactionByID(ctx, s.dbExecutor, txID)
	if err != nil {
		return fmt.Errorf("fail transaction: failed to get transaction %d: %w", txID, err)
	}
	if walletTx.Status != oldStatus {
		return fmt.Errorf("fail transaction: transaction %d is %s, not %s: %w",
			txID, walletTx.Status, oldStatus, util.ErrConflict)
	}
	if err := s.txRepo.SetStatus(ctx, s.dbExecutor, txID, domain.WalletTxFailed); err != nil {
		return fmt.Errorf("fail transaction: failed to set status: %w", err)
	}
	walletTx.Status = domain.WalletTxFailed

	wallet, err := s.walletRepo.GetWalletByID(ctx, s.dbExecutor, walletTx.WalletID)
	if err != nil {
		s.logger.Warn("skipping failure notice, wallet lookup failed", "tx_id", txID, "error", err)
		return nil
	}
	account, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, wallet.AccountID)
	if err != nil {
		s.logger.Warn("skipping failure notice, account lookup failed", "tx_id", txID, "error", err)
		return nil
	}
	user, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, account.UserID)
	if err != nil {
		s.logger.Warn("skipping failure notice, owner lookup failed", "tx_id", txID, "error", err)
		return nil
	}

	switch walletTx.Type {
	case domain.WalletTxDeposit:
		subject, body := notify.DepositFailedNotice(user.Username, walletTx.Amount, walletTx.Currency, walletTx.ReferenceID)
		notify.BestEffort(ctx, s.notifier, s.logger, user.Email, subject, body)
	case domain.WalletTxWithdrawal:
		subject, body := notify.WithdrawalFailedNotice(user.Username, walletTx.Amount, walletTx.Currency, walletTx.ReferenceID)
		notify.BestEffort(ctx, s.notifier, s.logger, user.Email, subject, body)
	}

	s.logger.Info("wallet transaction failed", "tx_id", txID, "type", walletTx.Type)
	return nil
}

// AccountBalance derives an account's displayed balance.
func (s *ledgerService) AccountBalance(ctx context.Context, account *domain.Account) (decimal.Decimal, error) {
	wallet, err := s.walletRepo.GetWalletByAccount(ctx, s.dbExecutor, account.ID, domain.WalletTypeMain, domain.CurrencyUSD)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return domain.DefaultBalance(account.AccountType), nil
		}
		return decimal.Zero, fmt.Errorf("account balance: %w", err)
	}
	return wallet.Balance, nil
}

// SetAccountBalance writes an absolute balance through to the main USD wallet.
func (s *ledgerService) SetAccountBalance(ctx context.Context, account *domain.Account, value decimal.Decimal) error {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("set account balance: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("set account balance: transaction controller does not implement DBExecutor")
	}

	wallet, err := s.walletRepo.GetWalletByAccountForUpdate(ctx, txExecutor, account.ID, domain.WalletTypeMain, domain.CurrencyUSD)
	switch {
	case err == nil:
		if err := s.walletRepo.SetWalletBalance(ctx, txExecutor, wallet.ID, value); err != nil {
			return fmt.Errorf("set account balance: %w", err)
		}
	case util.IsError(err, util.ErrNotFound):
		wallet = domain.NewWallet(account.ID, domain.WalletTypeMain, domain.CurrencyUSD, value)
		if err := s.walletRepo.CreateWallet(ctx, txExecutor, wallet); err != nil {
			return fmt.Errorf("set account balance: failed to create wallet: %w", err)
		}
	default:
		return fmt.Errorf("set account balance: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("set account balance: failed to commit: %w", err)
	}
	return nil
}

// ReconcileAccountWallet ensures the main USD wallet backing an account's
// balance exists, and corrects drift against an expected figure when given.
func (s *ledgerService) ReconcileAccountWallet(ctx context.Context, account *domain.Account, expected *decimal.Decimal) error {
	wallet, err := s.walletRepo.GetWalletByAccount(ctx, s.dbExecutor, account.ID, domain.WalletTypeMain, domain.CurrencyUSD)
	if err != nil {
		if !util.IsError(err, util.ErrNotFound) {
			return fmt.Errorf("reconcile account wallet: %w", err)
		}
		initial := domain.DefaultBalance(account.AccountType)
		if expected != nil {
			initial = *expected
		}
		wallet = domain.NewWallet(account.ID, domain.WalletTypeMain, domain.CurrencyUSD, initial)
		if err := s.walletRepo.CreateWallet(ctx, s.dbExecutor, wallet); err != nil {
			return fmt.Errorf("reconcile account wallet: failed to create wallet: %w", err)
		}
		s.logger.Info("created missing main wallet during reconciliation",
			"account_id", account.ID, "balance", initial.String())
		return nil
	}

	if expected != nil && !wallet.Balance.Equal(*expected) {
		s.logger.Warn("account wallet drift detected, correcting",
			"account_id", account.ID, "wallet_balance", wallet.Balance.String(), "expected", expected.String())
		if err := s.SetAccountBalance(ctx, account, *expected); err != nil {
			return fmt.Errorf("reconcile account wallet: %w", err)
		}
	}
	return nil
}

// ResetDemoBalance restores a demo account to its opening state.
func (s *ledgerService) ResetDemoBalance(ctx context.Context, account *domain.Account) (decimal.Decimal, error) {
	if account.AccountType != domain.AccountTypeDemo {
		return decimal.Zero, fmt.Errorf("reset demo balance: account %d is %s, not demo: %w",
			account.ID, account.AccountType, util.ErrInvalidInput)
	}

	initial := domain.DefaultBalance(domain.AccountTypeDemo)

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reset demo balance: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return decimal.Zero, fmt.Errorf("reset demo balance: transaction controller does not implement DBExecutor")
	}

	wallet, err := s.walletRepo.GetWalletByAccountForUpdate(ctx, txExecutor, account.ID, domain.WalletTypeMain, domain.CurrencyUSD)
	switch {
	case err == nil:
		if err := s.walletRepo.SetWalletBalance(ctx, txExecutor, wallet.ID, initial); err != nil {
			return decimal.Zero, fmt.Errorf("reset demo balance: %w", err)
		}
	case util.IsError(err, util.ErrNotFound):
		wallet = domain.NewWallet(account.ID, domain.WalletTypeMain, domain.CurrencyUSD, initial)
		if err := s.walletRepo.CreateWallet(ctx, txExecutor, wallet); err != nil {
			return decimal.Zero, fmt.Errorf("reset demo balance: failed to create wallet: %w", err)
		}
	default:
		return decimal.Zero, fmt.Errorf("reset demo balance: %w", err)
	}

	if err := s.statementRepo.DeleteStatementByAccountID(ctx, txExecutor, account.ID); err != nil {
		return decimal.Zero, fmt.Errorf("reset demo balance: failed to clear statement: %w", err)
	}
	if err := s.commitTx(txController); err != nil {
		return decimal.Zero, fmt.Errorf("reset demo balance: failed to commit: %w", err)
	}

	s.logger.Info("demo account reset", "account_id", account.ID)
	return initial, nil
}

// GetStatement returns an account's statement entries, newest first.
func (s *ledgerService) GetStatement(ctx context.Context, accountID int64, limit, offset int) ([]domain.StatementEntry, error) {
	entries, err := s.statementRepo.GetStatementByAccountID(ctx, s.dbExecutor, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get statement: %w", err)
	}
	return entries, nil
}

// GetWalletTransactions returns a wallet's transaction history.
func (s *ledgerService) GetWalletTransactions(ctx context.Context, walletID int64, limit, offset int) ([]domain.WalletTransaction, error) {
	txs, err := s.txRepo.GetWalletTransactionsByWalletID(ctx, s.dbExecutor, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get wallet transactions: %w", err)
	}
	return txs, nil
}
