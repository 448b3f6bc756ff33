// internal/service/auth_test.go
package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"traderiser/internal/domain"
	"traderiser/internal/util"
	"traderiser/pkg/credentials"
	"traderiser/pkg/db"
)

// authFixture wires a real AuthService, with real sub-services, on top of the
// repository mocks. The code store stays nil; none of these paths touch it.
type authFixture struct {
	userRepo      *MockUserRepository
	accountRepo   *MockAccountRepository
	walletRepo    *MockWalletRepository
	txRepo        *MockWalletTransactionRepository
	statementRepo *MockStatementRepository
	evidenceRepo  *MockEvidenceRepository
	blobStore     *MockBlobStore
	notifier      *MockNotifier
	txController  *MockTxController
	dbBeginner    *MockDBBeginner
	dbExecutor    *MockDBExecutor
	service       *authService
}

func newAuthFixture(now time.Time) *authFixture {
	f := &authFixture{
		userRepo:      new(MockUserRepository),
		accountRepo:   new(MockAccountRepository),
		walletRepo:    new(MockWalletRepository),
		txRepo:        new(MockWalletTransactionRepository),
		statementRepo: new(MockStatementRepository),
		evidenceRepo:  new(MockEvidenceRepository),
		blobStore:     new(MockBlobStore),
		notifier:      new(MockNotifier),
		txController:  new(MockTxController),
		dbBeginner:    new(MockDBBeginner),
		dbExecutor:    new(MockDBExecutor),
	}

	beginTx := func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
		return f.txController, nil
	}
	commitTx := func(tx db.TxController) error {
		return f.txController.Commit()
	}
	rollbackTx := func(tx db.TxController) {
		_ = f.txController.Rollback()
	}

	logger := testLogger()
	suspension := NewSuspensionService(f.dbBeginner, f.dbExecutor, f.userRepo, f.evidenceRepo,
		f.notifier, f.blobStore, logger, beginTx, commitTx, rollbackTx)
	suspension.(*suspensionService).now = func() time.Time { return now }

	ledger := NewLedgerService(f.dbBeginner, f.dbExecutor, f.userRepo, f.accountRepo, f.walletRepo,
		f.txRepo, f.statementRepo, nil, f.notifier, logger, beginTx, commitTx, rollbackTx)
	provision := NewProvisionService(f.dbBeginner, f.dbExecutor, f.accountRepo, f.walletRepo,
		logger, beginTx, commitTx, rollbackTx)

	svc := NewAuthService(f.dbExecutor, f.userRepo, f.accountRepo, provision, suspension, ledger,
		nil, f.notifier, "test-secret", logger)
	f.service = svc.(*authService)
	f.service.now = func() time.Time { return now }
	return f
}

func verifiedUser(id int64, password string) *domain.User {
	user := domain.NewUser("trader", "trader@example.com", "0700000050")
	user.ID = id
	hash, err := credentials.Hash(password)
	if err != nil {
		panic(err)
	}
	user.PasswordHash = hash
	return user
}

func TestLogin(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)

	t.Run("UnknownEmail", func(t *testing.T) {
		ctx := context.Background()
		f := newAuthFixture(now)

		f.userRepo.On("GetUserByEmail", ctx, mock.Anything, "nobody@example.com").
			Return(nil, util.ErrNotFound).Once()

		_, err := f.service.Login(ctx, "nobody@example.com", "pass1234", "")

		assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		ctx := context.Background()
		f := newAuthFixture(now)

		user := verifiedUser(1, "pass1234")
		f.userRepo.On("GetUserByEmail", ctx, mock.Anything, user.Email).Return(user, nil).Once()

		_, err := f.service.Login(ctx, user.Email, "wrong", "")

		assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	})

	t.Run("PicksRequestedAccount", func(t *testing.T) {
		ctx := context.Background()
		f := newAuthFixture(now)

		user := verifiedUser(1, "pass1234")
		account := &domain.Account{ID: 30, UserID: 1, AccountType: domain.AccountTypeDemo}
		wallet := &domain.Wallet{ID: 60, AccountID: 30, WalletType: domain.WalletTypeMain,
			Currency: domain.CurrencyUSD, Balance: decimal.RequireFromString("250.00")}

		f.userRepo.On("GetUserByEmail", ctx, mock.Anything, user.Email).Return(user, nil).Once()
		f.accountRepo.On("GetAccountByUserAndType", ctx, mock.Anything, int64(1), domain.AccountTypeDemo).
			Return(account, nil).Once()
		f.walletRepo.On("GetWalletByAccount", ctx, mock.Anything, int64(30), domain.WalletTypeMain, domain.CurrencyUSD).
			Return(wallet, nil).Once()

		result, err := f.service.Login(ctx, user.Email, "pass1234", domain.AccountTypeDemo)

		assert.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.Equal(t, account, result.ActiveAccount)
		assert.True(t, result.ActiveBalance.Equal(decimal.RequireFromString("250.00")))
		assert.Nil(t, result.Suspension)
		assert.False(t, result.RecentlyRecovered)

		mock.AssertExpectationsForObjects(t, f.userRepo, f.accountRepo, f.walletRepo)
	})

	t.Run("FallsBackToStandard", func(t *testing.T) {
		ctx := context.Background()
		f := newAuthFixture(now)

		user := verifiedUser(1, "pass1234")
		standard := &domain.Account{ID: 31, UserID: 1, AccountType: domain.AccountTypeStandard}
		wallet := &domain.Wallet{ID: 61, AccountID: 31, WalletType: domain.WalletTypeMain,
			Currency: domain.CurrencyUSD, Balance: decimal.Zero}

		f.userRepo.On("GetUserByEmail", ctx, mock.Anything, user.Email).Return(user, nil).Once()
		f.accountRepo.On("GetAccountByUserAndType", ctx, mock.Anything, int64(1), domain.AccountTypeProFX).
			Return(nil, util.ErrNotFound).Once()
		f.accountRepo.On("GetAccountByUserAndType", ctx, mock.Anything, int64(1), domain.AccountTypeStandard).
			Return(standard, nil).Once()
		f.walletRepo.On("GetWalletByAccount", ctx, mock.Anything, int64(31), domain.WalletTypeMain, domain.CurrencyUSD).
			Return(wallet, nil).Once()

		result, err := f.service.Login(ctx, user.Email, "pass1234", domain.AccountTypeProFX)

		assert.NoError(t, err)
		assert.Equal(t, standard, result.ActiveAccount)
	})

	t.Run("PermanentSuspensionStillGetsTokens", func(t *testing.T) {
		ctx := context.Background()
		f := newAuthFixture(now)

		user := verifiedUser(2, "pass1234")
		user.IsSuspended = true
		user.SuspensionType = domain.SuspensionPermanent
		user.SuspensionReason = "chargeback fraud"

		f.userRepo.On("GetUserByEmail", ctx, mock.Anything, user.Email).Return(user, nil).Once()
		f.accountRepo.On("GetAccountByUserAndType", ctx, mock.Anything, int64(2), domain.AccountTypeStandard).
			Return(nil, util.ErrNotFound).Once()
		f.accountRepo.On("GetAccountsByUserID", ctx, mock.Anything, int64(2)).
			Return([]domain.Account{}, nil).Once()
		f.evidenceRepo.On("GetLatestEvidenceByUserID", ctx, mock.Anything, int64(2)).
			Return(&domain.SuspensionEvidence{ID: 5, UserID: 2, Status: domain.EvidencePending}, nil).Once()

		result, err := f.service.Login(ctx, user.Email, "pass1234", "")

		assert.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotNil(t, result.Suspension)
		assert.Equal(t, CodeSuspendedPermanent, result.Suspension.Code)
		assert.Equal(t, "chargeback fraud", result.Suspension.Reason)
		assert.Equal(t, "pending", result.Suspension.EvidenceStatus)
		assert.True(t, result.Suspension.AppealAvailable)
	})

	t.Run("PermanentWithoutAppealShowsNoEvidence", func(t *testing.T) {
		ctx := context.Background()
		f := newAuthFixture(now)

		user := verifiedUser(2, "pass1234")
		user.IsSuspended = true
		user.SuspensionType = domain.SuspensionPermanent

		f.userRepo.On("GetUserByEmail", ctx, mock.Anything, user.Email).Return(user, nil).Once()
		f.accountRepo.On("GetAccountByUserAndType", ctx, mock.Anything, int64(2), domain.AccountTypeStandard).
			Return(nil, util.ErrNotFound).Once()
		f.accountRepo.On("GetAccountsByUserID", ctx, mock.Anything, int64(2)).
			Return([]domain.Account{}, nil).Once()
		f.evidenceRepo.On("GetLatestEvidenceByUserID", ctx, mock.Anything, int64(2)).
			Return(nil, util.ErrNotFound).Once()

		result, err := f.service.Login(ctx, user.Email, "pass1234", "")

		assert.NoError(t, err)
		assert.Equal(t, "no_evidence", result.Suspension.EvidenceStatus)
	})

	t.Run("TemporaryCarriesDeadline", func(t *testing.T) {
		ctx := context.Background()
		f := newAuthFixture(now)

		until := now.Add(48 * time.Hour)
		user := verifiedUser(3, "pass1234")
		user.IsSuspended = true
		user.SuspensionType = domain.SuspensionTemporary
		user.SuspendedUntil = &until

		f.userRepo.On("GetUserByEmail", ctx, mock.Anything, user.Email).Return(user, nil).Once()
		f.accountRepo.On("GetAccountByUserAndType", ctx, mock.Anything, int64(3), domain.AccountTypeStandard).
			Return(nil, util.ErrNotFound).Once()
		f.accountRepo.On("GetAccountsByUserID", ctx, mock.Anything, int64(3)).
			Return([]domain.Account{}, nil).Once()

		result, err := f.service.Login(ctx, user.Email, "pass1234", "")

		assert.NoError(t, err)
		assert.Equal(t, CodeSuspendedTemporary, result.Suspension.Code)
		assert.Equal(t, &until, result.Suspension.SuspendedUntil)
		assert.False(t, result.Suspension.AppealAvailable)
	})

	t.Run("ExpiredTemporaryLiftsAtLogin", func(t *testing.T) {
		ctx := context.Background()
		f := newAuthFixture(now)

		until := now.Add(-time.Hour)
		suspendedAt := now.Add(-73 * time.Hour)
		expired := func() *domain.User {
			u := verifiedUser(4, "pass1234")
			u.IsSuspended = true
			u.SuspensionType = domain.SuspensionTemporary
			u.SuspendedAt = &suspendedAt
			u.SuspendedUntil = &until
			u.AppendSuspensionEvent(suspendedAt, "suspended", "spam", "root")
			return u
		}

		f.userRepo.On("GetUserByEmail", ctx, mock.Anything, "trader@example.com").
			Return(expired(), nil).Once()
		f.userRepo.On("GetUserByIDForUpdate", ctx, mock.Anything, int64(4)).
			Return(expired(), nil).Once()
		f.userRepo.On("UpdateSuspension", ctx, mock.Anything, mock.AnythingOfType("*domain.User")).
			Return(nil).Once()
		f.txController.On("Commit").Return(nil).Once()
		f.txController.On("Rollback").Return(nil).Maybe()
		f.notifier.On("Send", mock.Anything, "trader@example.com", mock.Anything, mock.Anything).
			Return(nil).Once()
		f.accountRepo.On("GetAccountByUserAndType", ctx, mock.Anything, int64(4), domain.AccountTypeStandard).
			Return(nil, util.ErrNotFound).Once()
		f.accountRepo.On("GetAccountsByUserID", ctx, mock.Anything, int64(4)).
			Return([]domain.Account{}, nil).Once()

		result, err := f.service.Login(ctx, "trader@example.com", "pass1234", "")

		assert.NoError(t, err)
		assert.False(t, result.User.IsSuspended)
		assert.Nil(t, result.Suspension)
		assert.True(t, result.RecentlyRecovered)
		assert.Equal(t, "temporary_expired", result.RecoveredFrom)

		mock.AssertExpectationsForObjects(t, f.userRepo, f.txController, f.notifier)
	})

	t.Run("AppealApprovalWindowFlagsRecovery", func(t *testing.T) {
		ctx := context.Background()
		f := newAuthFixture(now)

		user := verifiedUser(5, "pass1234")
		user.AppendSuspensionEvent(now.Add(-40*time.Hour), "suspended", "fraud", "root")
		user.AppendSuspensionEvent(now.Add(-10*time.Minute), "unsuspended", "appeal approved", "root")

		f.userRepo.On("GetUserByEmail", ctx, mock.Anything, user.Email).Return(user, nil).Once()
		f.accountRepo.On("GetAccountByUserAndType", ctx, mock.Anything, int64(5), domain.AccountTypeStandard).
			Return(nil, util.ErrNotFound).Once()
		f.accountRepo.On("GetAccountsByUserID", ctx, mock.Anything, int64(5)).
			Return([]domain.Account{}, nil).Once()

		result, err := f.service.Login(ctx, user.Email, "pass1234", "")

		assert.NoError(t, err)
		assert.True(t, result.RecentlyRecovered)
		assert.Equal(t, "appeal_approved", result.RecoveredFrom)
	})

	t.Run("StaleRecoveryIgnored", func(t *testing.T) {
		ctx := context.Background()
		f := newAuthFixture(now)

		// An expiry-driven lift only counts for five minutes.
		user := verifiedUser(6, "pass1234")
		user.AppendSuspensionEvent(now.Add(-10*time.Minute), "unsuspended", "", "")

		f.userRepo.On("GetUserByEmail", ctx, mock.Anything, user.Email).Return(user, nil).Once()
		f.accountRepo.On("GetAccountByUserAndType", ctx, mock.Anything, int64(6), domain.AccountTypeStandard).
			Return(nil, util.ErrNotFound).Once()
		f.accountRepo.On("GetAccountsByUserID", ctx, mock.Anything, int64(6)).
			Return([]domain.Account{}, nil).Once()

		result, err := f.service.Login(ctx, user.Email, "pass1234", "")

		assert.NoError(t, err)
		assert.False(t, result.RecentlyRecovered)
		assert.Empty(t, result.RecoveredFrom)
	})
}

func TestSignupExistingUser(t *testing.T) {
	now := time.Date(2025, 8, 2, 9, 0, 0, 0, time.UTC)

	t.Run("WrongPasswordRejected", func(t *testing.T) {
		ctx := context.Background()
		f := newAuthFixture(now)

		user := verifiedUser(1, "pass1234")
		f.userRepo.On("GetUserByEmail", ctx, mock.Anything, user.Email).Return(user, nil).Once()

		_, err := f.service.Signup(ctx, SignupParams{
			Email:       user.Email,
			Password:    "wrong",
			AccountType: domain.AccountTypeProFX,
		})

		assert.ErrorIs(t, err, util.ErrInvalidCredentials)
		f.accountRepo.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("OpensAdditionalAccount", func(t *testing.T) {
		ctx := context.Background()
		f := newAuthFixture(now)

		user := verifiedUser(1, "pass1234")

		f.userRepo.On("GetUserByEmail", ctx, mock.Anything, user.Email).Return(user, nil).Once()
		f.accountRepo.On("GetAccountsByUserID", ctx, mock.Anything, int64(1)).
			Return(accountsOf(domain.AccountTypeStandard), nil).Once()
		f.accountRepo.On("CreateAccount", ctx, mock.Anything, mock.AnythingOfType("*domain.Account")).
			Run(func(args mock.Arguments) {
				args.Get(2).(*domain.Account).ID = 40
			}).Return(nil).Once()
		f.walletRepo.On("CreateWallet", ctx, mock.Anything, mock.AnythingOfType("*domain.Wallet")).
			Return(nil).Twice()
		f.txController.On("Commit").Return(nil).Once()
		f.txController.On("Rollback").Return(nil).Maybe()

		proFX := &domain.Account{ID: 40, UserID: 1, AccountType: domain.AccountTypeProFX}
		f.accountRepo.On("GetAccountByUserAndType", ctx, mock.Anything, int64(1), domain.AccountTypeProFX).
			Return(proFX, nil).Once()
		f.walletRepo.On("GetWalletByAccount", ctx, mock.Anything, int64(40), domain.WalletTypeMain, domain.CurrencyUSD).
			Return(&domain.Wallet{ID: 80, AccountID: 40, Balance: decimal.Zero}, nil).Once()

		result, err := f.service.Signup(ctx, SignupParams{
			Email:       user.Email,
			Password:    "pass1234",
			AccountType: domain.AccountTypeProFX,
		})

		assert.NoError(t, err)
		assert.Equal(t, proFX, result.ActiveAccount)
		mock.AssertExpectationsForObjects(t, f.accountRepo, f.walletRepo, f.txController)
	})
}

func TestTokens(t *testing.T) {
	now := time.Now().UTC()
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		f := newAuthFixture(now)

		user := verifiedUser(7, "pass1234")
		f.userRepo.On("GetUserByID", ctx, mock.Anything, int64(7)).Return(user, nil).Once()

		access, refresh, err := f.service.IssueTokens(7)
		assert.NoError(t, err)
		assert.NotEmpty(t, access)
		assert.NotEmpty(t, refresh)
		assert.NotEqual(t, access, refresh)

		got, err := f.service.UserFromToken(ctx, access)
		assert.NoError(t, err)
		assert.Equal(t, user, got)
	})

	t.Run("RefreshTokenRejectedAsAccess", func(t *testing.T) {
		f := newAuthFixture(now)

		_, refresh, err := f.service.IssueTokens(7)
		assert.NoError(t, err)

		_, err = f.service.UserFromToken(ctx, refresh)
		assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	})

	t.Run("TamperedTokenRejected", func(t *testing.T) {
		f := newAuthFixture(now)

		access, _, err := f.service.IssueTokens(7)
		assert.NoError(t, err)

		_, err = f.service.UserFromToken(ctx, access+"x")
		assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	})

	t.Run("ExpiredAccessRejected", func(t *testing.T) {
		f := newAuthFixture(now.Add(-2 * time.Hour))

		access, _, err := f.service.IssueTokens(7)
		assert.NoError(t, err)

		_, err = f.service.UserFromToken(ctx, access)
		assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	})

	t.Run("RefreshIssuesNewPair", func(t *testing.T) {
		f := newAuthFixture(now)

		user := verifiedUser(7, "pass1234")
		f.userRepo.On("GetUserByID", ctx, mock.Anything, int64(7)).Return(user, nil).Once()

		_, refresh, err := f.service.IssueTokens(7)
		assert.NoError(t, err)

		access2, refresh2, err := f.service.Refresh(ctx, refresh)
		assert.NoError(t, err)
		assert.NotEmpty(t, access2)
		assert.NotEmpty(t, refresh2)
	})
}

func TestEnsureReferralCode(t *testing.T) {
	now := time.Date(2025, 8, 3, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("NonMarketerForbidden", func(t *testing.T) {
		f := newAuthFixture(now)

		user := verifiedUser(8, "pass1234")
		f.userRepo.On("GetUserByID", ctx, mock.Anything, int64(8)).Return(user, nil).Once()

		_, err := f.service.EnsureReferralCode(ctx, 8)

		assert.ErrorIs(t, err, util.ErrForbidden)
	})

	t.Run("ReusesExistingCode", func(t *testing.T) {
		f := newAuthFixture(now)

		existing := "MRK-AAAA1111"
		user := verifiedUser(8, "pass1234")
		user.IsMarketo = true
		user.ReferralCode = &existing
		f.userRepo.On("GetUserByID", ctx, mock.Anything, int64(8)).Return(user, nil).Once()

		code, err := f.service.EnsureReferralCode(ctx, 8)

		assert.NoError(t, err)
		assert.Equal(t, existing, code)
		f.userRepo.AssertNotCalled(t, "SetReferralCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MintsOnFirstUse", func(t *testing.T) {
		f := newAuthFixture(now)

		user := verifiedUser(8, "pass1234")
		user.IsMarketo = true
		f.userRepo.On("GetUserByID", ctx, mock.Anything, int64(8)).Return(user, nil).Once()
		f.userRepo.On("SetReferralCode", ctx, mock.Anything, int64(8), mock.MatchedBy(func(code string) bool {
			return strings.HasPrefix(code, "MRK-") && len(code) == 12
		})).Return(nil).Once()

		code, err := f.service.EnsureReferralCode(ctx, 8)

		assert.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "MRK-"))
		mock.AssertExpectationsForObjects(t, f.userRepo)
	})
}
