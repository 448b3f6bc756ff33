// internal/service/provision_test.go
package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"traderiser/internal/domain"
	"traderiser/internal/util"
	"traderiser/pkg/db"
)

// provisionFixture bundles the mocks behind a ProvisionService under test.
type provisionFixture struct {
	accountRepo  *MockAccountRepository
	walletRepo   *MockWalletRepository
	txController *MockTxController
	dbBeginner   *MockDBBeginner
	dbExecutor   *MockDBExecutor
	service      ProvisionService
}

func newProvisionFixture() *provisionFixture {
	f := &provisionFixture{
		accountRepo:  new(MockAccountRepository),
		walletRepo:   new(MockWalletRepository),
		txController: new(MockTxController),
		dbBeginner:   new(MockDBBeginner),
		dbExecutor:   new(MockDBExecutor),
	}
	f.service = NewProvisionService(
		f.dbBeginner,
		f.dbExecutor,
		f.accountRepo,
		f.walletRepo,
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
	return f
}

func accountsOf(types ...domain.AccountType) []domain.Account {
	accounts := make([]domain.Account, 0, len(types))
	for i, t := range types {
		accounts = append(accounts, domain.Account{ID: int64(i + 1), UserID: 1, AccountType: t})
	}
	return accounts
}

func TestCanCreateAccount(t *testing.T) {
	f := newProvisionFixture()

	cases := []struct {
		name     string
		held     []domain.AccountType
		want     domain.AccountType
		expected bool
	}{
		{"FirstStandard", nil, domain.AccountTypeStandard, true},
		{"FirstDemo", nil, domain.AccountTypeDemo, true},
		{"SecondDemoRejected", []domain.AccountType{domain.AccountTypeDemo}, domain.AccountTypeDemo, false},
		{"SecondStandardRejected", []domain.AccountType{domain.AccountTypeStandard}, domain.AccountTypeStandard, false},
		{"ProFXNeedsStandard", []domain.AccountType{domain.AccountTypeDemo}, domain.AccountTypeProFX, false},
		{"ProFXWithStandard", []domain.AccountType{domain.AccountTypeStandard}, domain.AccountTypeProFX, true},
		{"SecondProFXRejected", []domain.AccountType{domain.AccountTypeStandard, domain.AccountTypeProFX}, domain.AccountTypeProFX, false},
		{"CapOfThree", []domain.AccountType{domain.AccountTypeDemo, domain.AccountTypeStandard, domain.AccountTypeProFX}, domain.AccountTypeDemo, false},
		{"UnknownTypeRejected", nil, domain.AccountTypePro, false},
		{"CryptoRejected", []domain.AccountType{domain.AccountTypeStandard}, domain.AccountTypeCrypto, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, f.service.CanCreateAccount(accountsOf(tc.held...), tc.want))
		})
	}
}

func TestProvision(t *testing.T) {
	userID := int64(1)

	t.Run("DemoAccountGetsWalletPair", func(t *testing.T) {
		ctx := context.Background()
		f := newProvisionFixture()

		var createdWallets []*domain.Wallet

		f.accountRepo.On("GetAccountsByUserID", ctx, mock.Anything, userID).Return([]domain.Account{}, nil).Once()
		f.accountRepo.On("CreateAccount", ctx, mock.Anything, mock.AnythingOfType("*domain.Account")).
			Run(func(args mock.Arguments) {
				args.Get(2).(*domain.Account).ID = 77
			}).Return(nil).Once()
		f.walletRepo.On("CreateWallet", ctx, mock.Anything, mock.AnythingOfType("*domain.Wallet")).
			Run(func(args mock.Arguments) {
				createdWallets = append(createdWallets, args.Get(2).(*domain.Wallet))
			}).Return(nil).Twice()
		f.txController.On("Commit").Return(nil).Once()
		f.txController.On("Rollback").Return(nil).Maybe()

		account, err := f.service.Provision(ctx, userID, domain.AccountTypeDemo)

		assert.NoError(t, err)
		assert.Equal(t, int64(77), account.ID)
		assert.Len(t, createdWallets, 2)

		main, trading := createdWallets[0], createdWallets[1]
		assert.Equal(t, domain.WalletTypeMain, main.WalletType)
		assert.Equal(t, domain.CurrencyUSD, main.Currency)
		assert.True(t, main.Balance.Equal(decimal.NewFromInt(10000)))
		assert.Equal(t, domain.WalletTypeTrading, trading.WalletType)
		assert.Equal(t, domain.CurrencyKSH, trading.Currency)
		assert.True(t, trading.Balance.IsZero())

		mock.AssertExpectationsForObjects(t, f.accountRepo, f.walletRepo, f.txController)
	})

	t.Run("StandardAccountStartsAtZero", func(t *testing.T) {
		ctx := context.Background()
		f := newProvisionFixture()

		var createdWallets []*domain.Wallet

		f.accountRepo.On("GetAccountsByUserID", ctx, mock.Anything, userID).
			Return(accountsOf(domain.AccountTypeDemo), nil).Once()
		f.accountRepo.On("CreateAccount", ctx, mock.Anything, mock.AnythingOfType("*domain.Account")).Return(nil).Once()
		f.walletRepo.On("CreateWallet", ctx, mock.Anything, mock.AnythingOfType("*domain.Wallet")).
			Run(func(args mock.Arguments) {
				createdWallets = append(createdWallets, args.Get(2).(*domain.Wallet))
			}).Return(nil).Twice()
		f.txController.On("Commit").Return(nil).Once()
		f.txController.On("Rollback").Return(nil).Maybe()

		_, err := f.service.Provision(ctx, userID, domain.AccountTypeStandard)

		assert.NoError(t, err)
		assert.True(t, createdWallets[0].Balance.IsZero())
	})

	t.Run("RuleViolationIsConflict", func(t *testing.T) {
		ctx := context.Background()
		f := newProvisionFixture()

		f.accountRepo.On("GetAccountsByUserID", ctx, mock.Anything, userID).
			Return(accountsOf(domain.AccountTypeDemo), nil).Once()
		f.txController.On("Rollback").Return(nil).Once()

		_, err := f.service.Provision(ctx, userID, domain.AccountTypeDemo)

		assert.ErrorIs(t, err, util.ErrConflict)
		f.txController.AssertNotCalled(t, "Commit")
		f.accountRepo.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything)
	})
}
