// internal/service/mpesasync.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"traderiser/internal/blob"
	"traderiser/internal/domain"
	"traderiser/internal/repository"
	"traderiser/internal/util"
	"traderiser/pkg/credentials"
	"traderiser/pkg/db"
)

// Fixed counterparty identity of the platform inside the external ledger.
const (
	mpesaBusinessReference = "5515738"
	mpesaBusinessName      = "SASHITRENDY TECHNOLOGIES"
	mpesaBusinessDesc      = "SASHITRENDY TECH"
)

// mpesaIDSuffixLen is the random tail appended to the date prefix of an
// external transaction id.
const mpesaIDSuffixLen = 7

// mpesaIDMaxAttempts bounds the collision re-roll loop.
const mpesaIDMaxAttempts = 10

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// MpesaService runs the external-ledger simulator: phone-and-PIN profiles,
// an independent KSH balance, and the mirror writes driven by completed
// wallet transactions.
type MpesaService interface {
	ExternalLedgerSync

	// Connect creates or updates the caller's external-ledger profile.
	// Restricted to marketers.
	Connect(ctx context.Context, user *domain.User, realName, phone, pin string, photo []byte, photoName string) (*domain.MpesaUser, error)
	// Login authenticates a profile by phone number and PIN. A suspended
	// platform owner cannot log in.
	Login(ctx context.Context, phone, pin string) (*domain.MpesaUser, error)
	// Profile returns the external-ledger profile of a platform user.
	Profile(ctx context.Context, userID int64) (*domain.MpesaUser, error)
	// Transactions returns a profile's recent external-ledger records.
	Transactions(ctx context.Context, userID int64, limit int) ([]domain.MpesaTransaction, error)
	// Transaction returns one record, scoped to the caller's profile.
	Transaction(ctx context.Context, userID, txID int64) (*domain.MpesaTransaction, error)
}

type mpesaService struct {
	dbBeginner db.DBTxBeginner
	dbExecutor repository.DBExecutor
	userRepo   repository.UserRepository
	mpesaRepo  repository.MpesaRepository
	blobStore  blob.Store
	logger     *slog.Logger
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
	now        func() time.Time
	suffix     func() string
}

// NewMpesaService creates a new instance of MpesaService.
func NewMpesaService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	mpesaRepo repository.MpesaRepository,
	blobStore blob.Store,
	logger *slog.Logger,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) MpesaService {
	return &mpesaService{
		dbBeginner: dbBeginner,
		dbExecutor: dbExecutor,
		userRepo:   userRepo,
		mpesaRepo:  mpesaRepo,
		blobStore:  blobStore,
		logger:     logger,
		beginTx:    beginTx,
		commitTx:   commitTx,
		rollbackTx: rollbackTx,
		now:        func() time.Time { return time.Now().UTC() },
		suffix:     func() string { return domain.RandomBase36Upper(mpesaIDSuffixLen) },
	}
}

// kshAmount is the KSH figure a wallet transaction carries: the raw amount
// when it is already in KSH, otherwise the converted amount.
func kshAmount(walletTx *domain.WalletTransaction) decimal.Decimal {
	if walletTx.Currency == domain.CurrencyKSH {
		return walletTx.Amount
	}
	if walletTx.ConvertedAmount != nil {
		return *walletTx.ConvertedAmount
	}
	return decimal.Zero
}

// generateMpesaID produces a date-prefixed external transaction id that is
// not yet in use, re-rolling the random suffix on collision.
func (s *mpesaService) generateMpesaID(ctx context.Context, q repository.DBExecutor) (string, error) {
	prefix := domain.EncodeMpesaDatePrefix(s.now())
	for attempt := 0; attempt < mpesaIDMaxAttempts; attempt++ {
		id := prefix + s.suffix()
		exists, err := s.mpesaRepo.MpesaIDExists(ctx, q, id)
		if err != nil {
			return "", fmt.Errorf("generate mpesa id: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate mpesa id: exhausted %d attempts", mpesaIDMaxAttempts)
}

// SyncCompleted mirrors one completed wallet transaction into the external
// ledger. The mirror is inverse: a platform deposit is money leaving the
// phone, a platform withdrawal is money arriving on it. Transactions without
// an attached phone number, or phones without a profile, are skipped.
func (s *mpesaService) SyncCompleted(ctx context.Context, walletTx *domain.WalletTransaction) error {
	if walletTx.Status != domain.WalletTxCompleted {
		return nil
	}
	if walletTx.Type != domain.WalletTxDeposit && walletTx.Type != domain.WalletTxWithdrawal {
		return nil
	}
	if walletTx.MpesaPhone == nil || *walletTx.MpesaPhone == "" {
		return nil
	}

	amount := kshAmount(walletTx)
	if amount.LessThanOrEqual(decimal.Zero) {
		s.logger.Warn("skipping external ledger mirror, no KSH amount",
			"tx_id", walletTx.ID, "currency", walletTx.Currency)
		return nil
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("mpesa sync: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("mpesa sync: transaction controller does not implement DBExecutor")
	}

	profile, err := s.mpesaRepo.GetMpesaUserByPhoneForUpdate(ctx, txExecutor, *walletTx.MpesaPhone)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			s.logger.Warn("skipping external ledger mirror, no profile for phone",
				"tx_id", walletTx.ID, "phone", *walletTx.MpesaPhone)
			return nil
		}
		return fmt.Errorf("mpesa sync: failed to lock profile: %w", err)
	}

	record := &domain.MpesaTransaction{
		MpesaUserID:    profile.ID,
		Amount:         amount,
		Description:    mpesaBusinessDesc,
		Reference:      mpesaBusinessReference,
		RecipientName:  mpesaBusinessName,
		RecipientPhone: mpesaBusinessReference,
		Category:       domain.MpesaCategoryBusiness,
		CreatedAt:      s.now(),
	}

	var newBalance decimal.Decimal
	switch walletTx.Type {
	case domain.WalletTxDeposit:
		// Money moved from the phone into the platform.
		if profile.Balance.LessThan(amount) {
			s.logger.Warn("skipping external ledger mirror, insufficient phone balance",
				"tx_id", walletTx.ID, "phone", *walletTx.MpesaPhone,
				"balance", profile.Balance.String(), "amount", amount.String())
			return nil
		}
		newBalance = profile.Balance.Sub(amount)
		record.Type = domain.MpesaTxWithdrawal
	case domain.WalletTxWithdrawal:
		// Payout landed on the phone.
		newBalance = profile.Balance.Add(amount)
		record.Type = domain.MpesaTxDeposit
	}

	mpesaID, err := s.generateMpesaID(ctx, txExecutor)
	if err != nil {
		return fmt.Errorf("mpesa sync: %w", err)
	}
	record.MpesaID = mpesaID

	if err := s.mpesaRepo.SetMpesaBalance(ctx, txExecutor, profile.ID, newBalance); err != nil {
		return fmt.Errorf("mpesa sync: failed to update balance: %w", err)
	}
	if err := s.mpesaRepo.CreateMpesaTransaction(ctx, txExecutor, record); err != nil {
		return fmt.Errorf("mpesa sync: failed to record transaction: %w", err)
	}
	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("mpesa sync: failed to commit: %w", err)
	}

	s.logger.Info("external ledger mirrored",
		"tx_id", walletTx.ID, "mpesa_id", mpesaID, "type", record.Type, "amount", amount.String())
	return nil
}

// Connect creates or updates the caller's external-ledger profile.
func (s *mpesaService) Connect(ctx context.Context, user *domain.User, realName, phone, pin string, photo []byte, photoName string) (*domain.MpesaUser, error) {
	if !user.IsMarketo {
		return nil, fmt.Errorf("mpesa connect: only marketers can connect a profile: %w", util.ErrForbidden)
	}
	if realName == "" || phone == "" {
		return nil, fmt.Errorf("mpesa connect: real name and phone required: %w", util.ErrInvalidInput)
	}
	if !pinPattern.MatchString(pin) {
		return nil, fmt.Errorf("mpesa connect: PIN must be exactly 4 digits: %w", util.ErrInvalidInput)
	}

	// PINs are stored hashed, so uniqueness takes a trial verification
	// against every other profile.
	others, err := s.mpesaRepo.ListMpesaUsersExcept(ctx, s.dbExecutor, user.ID)
	if err != nil {
		return nil, fmt.Errorf("mpesa connect: failed to list profiles: %w", err)
	}
	for i := range others {
		if credentials.Verify(pin, others[i].PINHash) {
			return nil, fmt.Errorf("mpesa connect: PIN already in use: %w", util.ErrConflict)
		}
	}

	pinHash, err := credentials.Hash(pin)
	if err != nil {
		return nil, fmt.Errorf("mpesa connect: failed to hash PIN: %w", err)
	}

	photoHandle := ""
	if len(photo) > 0 {
		handle, err := s.blobStore.Save(ctx, photoName, photo)
		if err != nil {
			return nil, fmt.Errorf("mpesa connect: failed to store photo: %w", err)
		}
		photoHandle = handle
	}

	profile, err := s.mpesaRepo.GetMpesaUserByUserID(ctx, s.dbExecutor, user.ID)
	switch {
	case err == nil:
		profile.RealName = realName
		profile.PhoneNumber = phone
		profile.PINHash = pinHash
		if photoHandle != "" {
			profile.ProfilePhoto = photoHandle
		}
		if err := s.mpesaRepo.UpdateMpesaProfile(ctx, s.dbExecutor, profile); err != nil {
			return nil, fmt.Errorf("mpesa connect: failed to update profile: %w", err)
		}
	case util.IsError(err, util.ErrNotFound):
		profile = domain.NewMpesaUser(user.ID, realName, phone, pinHash)
		profile.ProfilePhoto = photoHandle
		if err := s.mpesaRepo.CreateMpesaUser(ctx, s.dbExecutor, profile); err != nil {
			return nil, fmt.Errorf("mpesa connect: failed to create profile: %w", err)
		}
	default:
		return nil, fmt.Errorf("mpesa connect: failed to look up profile: %w", err)
	}

	s.logger.Info("mpesa profile connected", "user_id", user.ID, "phone", phone)
	return profile, nil
}

// Login authenticates a profile by phone number and PIN.
func (s *mpesaService) Login(ctx context.Context, phone, pin string) (*domain.MpesaUser, error) {
	profile, err := s.mpesaRepo.GetMpesaUserByPhone(ctx, s.dbExecutor, phone)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("mpesa login: %w", util.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("mpesa login: %w", err)
	}
	if !credentials.Verify(pin, profile.PINHash) {
		return nil, fmt.Errorf("mpesa login: %w", util.ErrInvalidCredentials)
	}

	owner, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, profile.UserID)
	if err != nil {
		return nil, fmt.Errorf("mpesa login: failed to get owner %d: %w", profile.UserID, err)
	}
	if owner.IsSuspended {
		return nil, fmt.Errorf("mpesa login: owner account suspended: %w", util.ErrSuspended)
	}
	return profile, nil
}

// Profile returns the external-ledger profile of a platform user.
func (s *mpesaService) Profile(ctx context.Context, userID int64) (*domain.MpesaUser, error) {
	profile, err := s.mpesaRepo.GetMpesaUserByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("mpesa profile: %w", err)
	}
	return profile, nil
}

// Transactions returns a profile's recent external-ledger records.
func (s *mpesaService) Transactions(ctx context.Context, userID int64, limit int) ([]domain.MpesaTransaction, error) {
	profile, err := s.mpesaRepo.GetMpesaUserByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("mpesa transactions: %w", err)
	}
	txs, err := s.mpesaRepo.GetMpesaTransactionsByProfileID(ctx, s.dbExecutor, profile.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("mpesa transactions: %w", err)
	}
	return txs, nil
}

// Transaction returns one record scoped to the caller's profile.
func (s *mpesaService) Transaction(ctx context.Context, userID, txID int64) (*domain.MpesaTransaction, error) {
	profile, err := s.mpesaRepo.GetMpesaUserByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("mpesa transaction: %w", err)
	}
	record, err := s.mpesaRepo.GetMpesaTransactionByID(ctx, s.dbExecutor, txID, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("mpesa transaction: %w", err)
	}
	return record, nil
}
