// internal/service/mocks_test.go
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"traderiser/internal/domain"
	"traderiser/internal/repository"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

// MockDBBeginner is a mock implementation of db.DBTxBeginner.
type MockDBBeginner struct {
	mock.Mock
}

func (m *MockDBBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	return &sqlx.Tx{}, args.Error(1)
}

// MockTxController is a mock implementation of db.TxController that also
// satisfies repository.DBExecutor, like *sqlx.Tx does.
type MockTxController struct {
	mock.Mock
	MockDBExecutor
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, q repository.DBExecutor, user *domain.User) error {
	args := m.Called(ctx, q, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.User, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.User, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByEmail(ctx context.Context, q repository.DBExecutor, email string) (*domain.User, error) {
	args := m.Called(ctx, q, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByReferralCode(ctx context.Context, q repository.DBExecutor, code string) (*domain.User, error) {
	args := m.Called(ctx, q, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) UpdateSuspension(ctx context.Context, q repository.DBExecutor, user *domain.User) error {
	args := m.Called(ctx, q, user)
	return args.Error(0)
}

func (m *MockUserRepository) SetReferredBy(ctx context.Context, q repository.DBExecutor, userID, referrerID int64) error {
	args := m.Called(ctx, q, userID, referrerID)
	return args.Error(0)
}

func (m *MockUserRepository) SetReferralCode(ctx context.Context, q repository.DBExecutor, userID int64, code string) error {
	args := m.Called(ctx, q, userID, code)
	return args.Error(0)
}

func (m *MockUserRepository) SetPasswordHash(ctx context.Context, q repository.DBExecutor, userID int64, hash string) error {
	args := m.Called(ctx, q, userID, hash)
	return args.Error(0)
}

func (m *MockUserRepository) SetEmailVerified(ctx context.Context, q repository.DBExecutor, userID int64) error {
	args := m.Called(ctx, q, userID)
	return args.Error(0)
}

// MockAccountRepository is a mock implementation of repository.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) CreateAccount(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	args := m.Called(ctx, q, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetAccountByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Account, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) GetAccountsByUserID(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.Account, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Account), args.Error(1)
}

func (m *MockAccountRepository) GetAccountByUserAndType(ctx context.Context, q repository.DBExecutor, userID int64, accountType domain.AccountType) (*domain.Account, error) {
	args := m.Called(ctx, q, userID, accountType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

// MockWalletRepository is a mock implementation of repository.WalletRepository.
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	args := m.Called(ctx, q, wallet)
	return args.Error(0)
}

func (m *MockWalletRepository) GetWalletByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetWalletByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetWalletByAccount(ctx context.Context, q repository.DBExecutor, accountID int64, walletType domain.WalletType, currency string) (*domain.Wallet, error) {
	args := m.Called(ctx, q, accountID, walletType, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetWalletByAccountForUpdate(ctx context.Context, q repository.DBExecutor, accountID int64, walletType domain.WalletType, currency string) (*domain.Wallet, error) {
	args := m.Called(ctx, q, accountID, walletType, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) SetWalletBalance(ctx context.Context, q repository.DBExecutor, walletID int64, balance decimal.Decimal) error {
	args := m.Called(ctx, q, walletID, balance)
	return args.Error(0)
}

// MockWalletTransactionRepository is a mock implementation of
// repository.WalletTransactionRepository.
type MockWalletTransactionRepository struct {
	mock.Mock
}

func (m *MockWalletTransactionRepository) CreateWalletTransaction(ctx context.Context, q repository.DBExecutor, tx *domain.WalletTransaction) error {
	args := m.Called(ctx, q, tx)
	return args.Error(0)
}

func (m *MockWalletTransactionRepository) GetWalletTransactionByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.WalletTransaction, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletTransaction), args.Error(1)
}

func (m *MockWalletTransactionRepository) SetStatus(ctx context.Context, q repository.DBExecutor, id int64, status domain.WalletTransactionStatus) error {
	args := m.Called(ctx, q, id, status)
	return args.Error(0)
}

func (m *MockWalletTransactionRepository) SetCompletedAt(ctx context.Context, q repository.DBExecutor, id int64, completedAt time.Time) error {
	args := m.Called(ctx, q, id, completedAt)
	return args.Error(0)
}

func (m *MockWalletTransactionRepository) GetWalletTransactionsByWalletID(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.WalletTransaction, error) {
	args := m.Called(ctx, q, walletID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WalletTransaction), args.Error(1)
}

// MockStatementRepository is a mock implementation of repository.StatementRepository.
type MockStatementRepository struct {
	mock.Mock
}

func (m *MockStatementRepository) CreateStatementEntry(ctx context.Context, q repository.DBExecutor, entry *domain.StatementEntry) error {
	args := m.Called(ctx, q, entry)
	return args.Error(0)
}

func (m *MockStatementRepository) GetStatementByAccountID(ctx context.Context, q repository.DBExecutor, accountID int64, limit, offset int) ([]domain.StatementEntry, error) {
	args := m.Called(ctx, q, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StatementEntry), args.Error(1)
}

func (m *MockStatementRepository) DeleteStatementByAccountID(ctx context.Context, q repository.DBExecutor, accountID int64) error {
	args := m.Called(ctx, q, accountID)
	return args.Error(0)
}

// MockEvidenceRepository is a mock implementation of repository.EvidenceRepository.
type MockEvidenceRepository struct {
	mock.Mock
}

func (m *MockEvidenceRepository) CreateEvidence(ctx context.Context, q repository.DBExecutor, evidence *domain.SuspensionEvidence) error {
	args := m.Called(ctx, q, evidence)
	return args.Error(0)
}

func (m *MockEvidenceRepository) GetEvidenceByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.SuspensionEvidence, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SuspensionEvidence), args.Error(1)
}

func (m *MockEvidenceRepository) GetEvidenceByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.SuspensionEvidence, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SuspensionEvidence), args.Error(1)
}

func (m *MockEvidenceRepository) GetLatestEvidenceByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.SuspensionEvidence, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SuspensionEvidence), args.Error(1)
}

func (m *MockEvidenceRepository) ResubmitEvidence(ctx context.Context, q repository.DBExecutor, evidence *domain.SuspensionEvidence) error {
	args := m.Called(ctx, q, evidence)
	return args.Error(0)
}

func (m *MockEvidenceRepository) MarkReviewed(ctx context.Context, q repository.DBExecutor, evidence *domain.SuspensionEvidence) error {
	args := m.Called(ctx, q, evidence)
	return args.Error(0)
}

// MockMpesaRepository is a mock implementation of repository.MpesaRepository.
type MockMpesaRepository struct {
	mock.Mock
}

func (m *MockMpesaRepository) CreateMpesaUser(ctx context.Context, q repository.DBExecutor, profile *domain.MpesaUser) error {
	args := m.Called(ctx, q, profile)
	return args.Error(0)
}

func (m *MockMpesaRepository) GetMpesaUserByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.MpesaUser, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MpesaUser), args.Error(1)
}

func (m *MockMpesaRepository) GetMpesaUserByPhone(ctx context.Context, q repository.DBExecutor, phone string) (*domain.MpesaUser, error) {
	args := m.Called(ctx, q, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MpesaUser), args.Error(1)
}

func (m *MockMpesaRepository) GetMpesaUserByPhoneForUpdate(ctx context.Context, q repository.DBExecutor, phone string) (*domain.MpesaUser, error) {
	args := m.Called(ctx, q, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MpesaUser), args.Error(1)
}

func (m *MockMpesaRepository) ListMpesaUsersExcept(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.MpesaUser, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MpesaUser), args.Error(1)
}

func (m *MockMpesaRepository) UpdateMpesaProfile(ctx context.Context, q repository.DBExecutor, profile *domain.MpesaUser) error {
	args := m.Called(ctx, q, profile)
	return args.Error(0)
}

func (m *MockMpesaRepository) SetMpesaBalance(ctx context.Context, q repository.DBExecutor, profileID int64, balance decimal.Decimal) error {
	args := m.Called(ctx, q, profileID, balance)
	return args.Error(0)
}

func (m *MockMpesaRepository) CreateMpesaTransaction(ctx context.Context, q repository.DBExecutor, tx *domain.MpesaTransaction) error {
	args := m.Called(ctx, q, tx)
	return args.Error(0)
}

func (m *MockMpesaRepository) MpesaIDExists(ctx context.Context, q repository.DBExecutor, mpesaID string) (bool, error) {
	args := m.Called(ctx, q, mpesaID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMpesaRepository) GetMpesaTransactionsByProfileID(ctx context.Context, q repository.DBExecutor, profileID int64, limit int) ([]domain.MpesaTransaction, error) {
	args := m.Called(ctx, q, profileID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MpesaTransaction), args.Error(1)
}

func (m *MockMpesaRepository) GetMpesaTransactionByID(ctx context.Context, q repository.DBExecutor, id, profileID int64) (*domain.MpesaTransaction, error) {
	args := m.Called(ctx, q, id, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MpesaTransaction), args.Error(1)
}

// MockNotifier is a mock implementation of notify.Notifier that records every
// message it was asked to send.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	args := m.Called(ctx, recipient, subject, body)
	return args.Error(0)
}

// MockBlobStore is a mock implementation of blob.Store.
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	args := m.Called(ctx, name, data)
	return args.String(0), args.Error(1)
}

// MockExternalSync is a mock implementation of ExternalLedgerSync.
type MockExternalSync struct {
	mock.Mock
}

func (m *MockExternalSync) SyncCompleted(ctx context.Context, tx *domain.WalletTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}
