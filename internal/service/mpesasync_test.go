// internal/service/mpesasync_test.go
package service

import (
	"context"
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

// mpesaFixture bundles the mocks behind an MpesaService under test.
type mpesaFixture struct {
	userRepo     *MockUserRepository
	mpesaRepo    *MockMpesaRepository
	blobStore    *MockBlobStore
	txController *MockTxController
	dbBeginner   *MockDBBeginner
	dbExecutor   *MockDBExecutor
	service      *mpesaService
}

func newMpesaFixture(now time.Time) *mpesaFixture {
	f := &mpesaFixture{
		userRepo:     new(MockUserRepository),
		mpesaRepo:    new(MockMpesaRepository),
		blobStore:    new(MockBlobStore),
		txController: new(MockTxController),
		dbBeginner:   new(MockDBBeginner),
		dbExecutor:   new(MockDBExecutor),
	}
	svc := NewMpesaService(
		f.dbBeginner,
		f.dbExecutor,
		f.userRepo,
		f.mpesaRepo,
		f.blobStore,
		testLogger(),
		func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
			return f.txController, nil
		},
		func(tx db.TxController) error {
			return f.txController.Commit()
		},
		func(tx db.TxController) {
			_ = f.txController.Rollback()
		},
	)
	f.service = svc.(*mpesaService)
	f.service.now = func() time.Time { return now }
	return f
}

func TestSyncCompleted(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	phone := "254712345678"

	completedDeposit := func(amount string) *domain.WalletTransaction {
		return &domain.WalletTransaction{
			ID:       200,
			WalletID: 10,
			Type:     domain.WalletTxDeposit,
			Amount:   decimal.RequireFromString(amount),
			Currency: domain.CurrencyKSH,
			Status:   domain.WalletTxCompleted,
			MpesaPhone: func() *string {
				p := phone
				return &p
			}(),
		}
	}

	t.Run("DepositMirrorsAsPhoneWithdrawal", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)
		f.service.suffix = func() string { return "1234567" }

		profile := &domain.MpesaUser{ID: 3, UserID: 4, PhoneNumber: phone, Balance: decimal.RequireFromString("500.00")}

		var record *domain.MpesaTransaction

		f.mpesaRepo.On("GetMpesaUserByPhoneForUpdate", ctx, mock.Anything, phone).Return(profile, nil).Once()
		f.mpesaRepo.On("MpesaIDExists", ctx, mock.Anything, "SCF1234567").Return(false, nil).Once()
		f.mpesaRepo.On("SetMpesaBalance", ctx, mock.Anything, profile.ID, decimal.RequireFromString("370.00")).Return(nil).Once()
		f.mpesaRepo.On("CreateMpesaTransaction", ctx, mock.Anything, mock.AnythingOfType("*domain.MpesaTransaction")).
			Run(func(args mock.Arguments) {
				record = args.Get(2).(*domain.MpesaTransaction)
			}).Return(nil).Once()
		f.txController.On("Commit").Return(nil).Once()
		f.txController.On("Rollback").Return(nil).Maybe()

		err := f.service.SyncCompleted(ctx, completedDeposit("130.00"))

		assert.NoError(t, err)
		assert.NotNil(t, record)
		// Money left the phone, so the mirror is a withdrawal paid to the
		// platform's fixed business identity.
		assert.Equal(t, domain.MpesaTxWithdrawal, record.Type)
		assert.Equal(t, "5515738", record.Reference)
		assert.Equal(t, "SASHITRENDY TECHNOLOGIES", record.RecipientName)
		assert.Equal(t, domain.MpesaCategoryBusiness, record.Category)
		assert.Equal(t, "SCF1234567", record.MpesaID)

		mock.AssertExpectationsForObjects(t, f.mpesaRepo, f.txController)
	})

	t.Run("WithdrawalMirrorsAsPhoneDeposit", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)
		f.service.suffix = func() string { return "ABCDEFG" }

		converted := decimal.RequireFromString("6500.00")
		p := phone
		walletTx := &domain.WalletTransaction{
			ID:              201,
			WalletID:        10,
			Type:            domain.WalletTxWithdrawal,
			Amount:          decimal.RequireFromString("50.00"),
			Currency:        domain.CurrencyUSD,
			ConvertedAmount: &converted,
			Status:          domain.WalletTxCompleted,
			MpesaPhone:      &p,
		}
		profile := &domain.MpesaUser{ID: 3, UserID: 4, PhoneNumber: phone, Balance: decimal.RequireFromString("100.00")}

		var record *domain.MpesaTransaction

		f.mpesaRepo.On("GetMpesaUserByPhoneForUpdate", ctx, mock.Anything, phone).Return(profile, nil).Once()
		f.mpesaRepo.On("MpesaIDExists", ctx, mock.Anything, "SCFABCDEFG").Return(false, nil).Once()
		f.mpesaRepo.On("SetMpesaBalance", ctx, mock.Anything, profile.ID, decimal.RequireFromString("6600.00")).Return(nil).Once()
		f.mpesaRepo.On("CreateMpesaTransaction", ctx, mock.Anything, mock.AnythingOfType("*domain.MpesaTransaction")).
			Run(func(args mock.Arguments) {
				record = args.Get(2).(*domain.MpesaTransaction)
			}).Return(nil).Once()
		f.txController.On("Commit").Return(nil).Once()
		f.txController.On("Rollback").Return(nil).Maybe()

		err := f.service.SyncCompleted(ctx, walletTx)

		assert.NoError(t, err)
		assert.Equal(t, domain.MpesaTxDeposit, record.Type)
		assert.True(t, record.Amount.Equal(converted))

		mock.AssertExpectationsForObjects(t, f.mpesaRepo, f.txController)
	})

	t.Run("InsufficientPhoneBalanceSkipsQuietly", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)

		profile := &domain.MpesaUser{ID: 3, UserID: 4, PhoneNumber: phone, Balance: decimal.RequireFromString("50.00")}

		f.mpesaRepo.On("GetMpesaUserByPhoneForUpdate", ctx, mock.Anything, phone).Return(profile, nil).Once()
		f.txController.On("Rollback").Return(nil).Once()

		err := f.service.SyncCompleted(ctx, completedDeposit("130.00"))

		assert.NoError(t, err)
		f.txController.AssertNotCalled(t, "Commit")
		f.mpesaRepo.AssertNotCalled(t, "SetMpesaBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.mpesaRepo.AssertNotCalled(t, "CreateMpesaTransaction", mock.Anything, mock.Anything, mock.Anything)

		mock.AssertExpectationsForObjects(t, f.mpesaRepo, f.txController)
	})

	t.Run("CollisionRerollsSuffix", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)

		suffixes := []string{"TAKEN00", "FRESH00"}
		f.service.suffix = func() string {
			s := suffixes[0]
			suffixes = suffixes[1:]
			return s
		}

		profile := &domain.MpesaUser{ID: 3, UserID: 4, PhoneNumber: phone, Balance: decimal.RequireFromString("500.00")}

		f.mpesaRepo.On("GetMpesaUserByPhoneForUpdate", ctx, mock.Anything, phone).Return(profile, nil).Once()
		f.mpesaRepo.On("MpesaIDExists", ctx, mock.Anything, "SCFTAKEN00").Return(true, nil).Once()
		f.mpesaRepo.On("MpesaIDExists", ctx, mock.Anything, "SCFFRESH00").Return(false, nil).Once()
		f.mpesaRepo.On("SetMpesaBalance", ctx, mock.Anything, profile.ID, mock.Anything).Return(nil).Once()
		f.mpesaRepo.On("CreateMpesaTransaction", ctx, mock.Anything, mock.AnythingOfType("*domain.MpesaTransaction")).Return(nil).Once()
		f.txController.On("Commit").Return(nil).Once()
		f.txController.On("Rollback").Return(nil).Maybe()

		err := f.service.SyncCompleted(ctx, completedDeposit("130.00"))

		assert.NoError(t, err)
		mock.AssertExpectationsForObjects(t, f.mpesaRepo, f.txController)
	})

	t.Run("PendingTransactionIgnored", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)

		walletTx := completedDeposit("130.00")
		walletTx.Status = domain.WalletTxPending

		assert.NoError(t, f.service.SyncCompleted(ctx, walletTx))
		f.dbBeginner.AssertNotCalled(t, "BeginTxx", mock.Anything, mock.Anything)
	})

	t.Run("NoPhoneIgnored", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)

		walletTx := completedDeposit("130.00")
		walletTx.MpesaPhone = nil

		assert.NoError(t, f.service.SyncCompleted(ctx, walletTx))
		f.dbBeginner.AssertNotCalled(t, "BeginTxx", mock.Anything, mock.Anything)
	})
}

func TestMpesaConnect(t *testing.T) {
	now := time.Date(2025, 7, 5, 10, 0, 0, 0, time.UTC)

	marketer := func(id int64) *domain.User {
		user := domain.NewUser("seller", "seller@example.com", "0700000030")
		user.ID = id
		user.IsMarketo = true
		return user
	}

	t.Run("NonMarketerForbidden", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)

		user := domain.NewUser("plain", "plain@example.com", "0700000031")
		user.ID = 1

		_, err := f.service.Connect(ctx, user, "Plain User", "254700000031", "1234", nil, "")

		assert.ErrorIs(t, err, util.ErrForbidden)
	})

	t.Run("BadPINRejected", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)

		_, err := f.service.Connect(ctx, marketer(2), "Seller", "254700000032", "12a4", nil, "")
		assert.ErrorIs(t, err, util.ErrInvalidInput)

		_, err = f.service.Connect(ctx, marketer(2), "Seller", "254700000032", "12345", nil, "")
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})

	t.Run("PINAlreadyInUse", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)

		takenHash, err := credentials.Hash("1234")
		assert.NoError(t, err)
		others := []domain.MpesaUser{{ID: 9, UserID: 99, PINHash: takenHash}}

		f.mpesaRepo.On("ListMpesaUsersExcept", ctx, mock.Anything, int64(2)).Return(others, nil).Once()

		_, err = f.service.Connect(ctx, marketer(2), "Seller", "254700000033", "1234", nil, "")

		assert.ErrorIs(t, err, util.ErrConflict)
		f.mpesaRepo.AssertNotCalled(t, "CreateMpesaUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CreatesProfile", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)

		var created *domain.MpesaUser

		f.mpesaRepo.On("ListMpesaUsersExcept", ctx, mock.Anything, int64(2)).Return([]domain.MpesaUser{}, nil).Once()
		f.mpesaRepo.On("GetMpesaUserByUserID", ctx, mock.Anything, int64(2)).Return(nil, util.ErrNotFound).Once()
		f.mpesaRepo.On("CreateMpesaUser", ctx, mock.Anything, mock.AnythingOfType("*domain.MpesaUser")).
			Run(func(args mock.Arguments) {
				created = args.Get(2).(*domain.MpesaUser)
			}).Return(nil).Once()

		profile, err := f.service.Connect(ctx, marketer(2), "Seller Person", "254700000034", "4321", nil, "")

		assert.NoError(t, err)
		assert.Equal(t, profile, created)
		assert.Equal(t, "Seller Person", created.RealName)
		assert.True(t, created.Balance.IsZero())
		// The PIN is never stored in the clear.
		assert.NotEqual(t, "4321", created.PINHash)
		assert.True(t, credentials.Verify("4321", created.PINHash))

		mock.AssertExpectationsForObjects(t, f.mpesaRepo)
	})
}

func TestMpesaLogin(t *testing.T) {
	now := time.Date(2025, 7, 6, 10, 0, 0, 0, time.UTC)
	phone := "254700000040"

	t.Run("WrongPIN", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)

		hash, _ := credentials.Hash("1234")
		profile := &domain.MpesaUser{ID: 5, UserID: 6, PhoneNumber: phone, PINHash: hash}

		f.mpesaRepo.On("GetMpesaUserByPhone", ctx, mock.Anything, phone).Return(profile, nil).Once()

		_, err := f.service.Login(ctx, phone, "9999")

		assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	})

	t.Run("SuspendedOwnerBlocked", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)

		hash, _ := credentials.Hash("1234")
		profile := &domain.MpesaUser{ID: 5, UserID: 6, PhoneNumber: phone, PINHash: hash}
		owner := domain.NewUser("owner", "owner@example.com", "0700000041")
		owner.ID = 6
		owner.IsSuspended = true
		owner.SuspensionType = domain.SuspensionPermanent

		f.mpesaRepo.On("GetMpesaUserByPhone", ctx, mock.Anything, phone).Return(profile, nil).Once()
		f.userRepo.On("GetUserByID", ctx, mock.Anything, int64(6)).Return(owner, nil).Once()

		_, err := f.service.Login(ctx, phone, "1234")

		assert.ErrorIs(t, err, util.ErrSuspended)
	})

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		f := newMpesaFixture(now)

		hash, _ := credentials.Hash("1234")
		profile := &domain.MpesaUser{ID: 5, UserID: 6, PhoneNumber: phone, PINHash: hash}
		owner := domain.NewUser("owner", "owner@example.com", "0700000041")
		owner.ID = 6

		f.mpesaRepo.On("GetMpesaUserByPhone", ctx, mock.Anything, phone).Return(profile, nil).Once()
		f.userRepo.On("GetUserByID", ctx, mock.Anything, int64(6)).Return(owner, nil).Once()

		got, err := f.service.Login(ctx, phone, "1234")

		assert.NoError(t, err)
		assert.Equal(t, profile, got)
	})
}
