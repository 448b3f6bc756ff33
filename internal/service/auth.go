// internal/service/auth.go
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"traderiser/internal/domain"
	"traderiser/internal/notify"
	"traderiser/internal/otp"
	"traderiser/internal/repository"
	"traderiser/internal/util"
	"traderiser/pkg/credentials"
)

// Token lifetimes.
const (
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

// OTP lifetimes and lengths.
const (
	emailVerifyCodeLen   = 6
	emailVerifyCodeTTL   = 60 * time.Second
	passwordResetCodeLen = 4
	passwordResetCodeTTL = 5 * time.Minute
)

// Windows after an automatic or appeal-driven reactivation during which a
// login is flagged as recently recovered.
const (
	expiryRecoveryWindow = 5 * time.Minute
	appealRecoveryWindow = 30 * time.Minute
)

// Suspension block codes returned at login.
const (
	CodeSuspendedTemporary = "suspended_temporary"
	CodeSuspendedPermanent = "suspended_permanent"
)

// SignupParams carries a registration request.
type SignupParams struct {
	Username     string
	Email        string
	Phone        string
	Password     string
	AccountType  domain.AccountType
	ReferralCode string
}

// SuspensionInfo is the suspension block attached to a login response.
// Tokens are still issued so the client can reach the appeal endpoints.
type SuspensionInfo struct {
	Code            string     `json:"code"`
	Reason          string     `json:"reason"`
	SuspendedUntil  *time.Time `json:"suspended_until,omitempty"`
	EvidenceStatus  string     `json:"evidence_status,omitempty"`
	AppealAvailable bool       `json:"appeal_available"`
}

// AuthResult is what a successful authentication returns.
type AuthResult struct {
	AccessToken       string
	RefreshToken      string
	User              *domain.User
	ActiveAccount     *domain.Account
	ActiveBalance     decimal.Decimal
	RecentlyRecovered bool
	RecoveredFrom     string
	Suspension        *SuspensionInfo
}

// AuthService handles registration, credential checks, token issuance and
// the one-time-code flows.
type AuthService interface {
	// Signup registers a new user (or opens an additional account for an
	// existing one) and returns tokens.
	Signup(ctx context.Context, params SignupParams) (*AuthResult, error)
	// Login authenticates by email and password. A suspended user still gets
	// tokens, with the suspension block populated.
	Login(ctx context.Context, email, password string, accountType domain.AccountType) (*AuthResult, error)
	// IssueTokens mints an access/refresh token pair for a user.
	IssueTokens(userID int64) (access string, refresh string, err error)
	// UserFromToken resolves the bearer of an access token.
	UserFromToken(ctx context.Context, token string) (*domain.User, error)
	// Refresh exchanges a refresh token for a fresh pair.
	Refresh(ctx context.Context, refreshToken string) (access string, refresh string, err error)
	// SendVerificationCode emails a short-lived email-verification code.
	SendVerificationCode(ctx context.Context, email string) error
	// VerifyEmail consumes a verification code and marks the address verified.
	VerifyEmail(ctx context.Context, email, code string) error
	// RequestPasswordReset emails a short-lived reset code. Always succeeds
	// from the caller's point of view so addresses cannot be probed.
	RequestPasswordReset(ctx context.Context, email string) error
	// VerifyPasswordReset checks a reset code without consuming it.
	VerifyPasswordReset(ctx context.Context, email, code string) error
	// ConfirmPasswordReset consumes a reset code and replaces the password.
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword, confirmPassword string) error
	// EnsureReferralCode returns a marketer's referral code, minting one on
	// first use.
	EnsureReferralCode(ctx context.Context, userID int64) (string, error)
}

type authService struct {
	dbExecutor  repository.DBExecutor
	userRepo    repository.UserRepository
	accountRepo repository.AccountRepository
	provision   ProvisionService
	suspension  SuspensionService
	ledger      LedgerService
	codes       *otp.CodeStore
	notifier    notify.Notifier
	jwtSecret   []byte
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	provision ProvisionService,
	suspension SuspensionService,
	ledger LedgerService,
	codes *otp.CodeStore,
	notifier notify.Notifier,
	jwtSecret string,
	logger *slog.Logger,
) AuthService {
	return &authService{
		dbExecutor:  dbExecutor,
		userRepo:    userRepo,
		accountRepo: accountRepo,
		provision:   provision,
		suspension:  suspension,
		ledger:      ledger,
		codes:       codes,
		notifier:    notifier,
		jwtSecret:   []byte(jwtSecret),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// randomDigits returns n cryptographically random decimal digits.
func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("random digits: %w", err)
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}

// Signup registers a new user or opens an additional account.
func (s *authService) Signup(ctx context.Context, params SignupParams) (*AuthResult, error) {
	if params.Email == "" || params.Password == "" {
		return nil, fmt.Errorf("signup: email and password required: %w", util.ErrInvalidInput)
	}
	if params.AccountType == "" {
		params.AccountType = domain.AccountTypeStandard
	}

	user, err := s.userRepo.GetUserByEmail(ctx, s.dbExecutor, params.Email)
	switch {
	case err == nil:
		// Existing user opening another account. The password must match.
		if !credentials.Verify(params.Password, user.PasswordHash) {
			return nil, fmt.Errorf("signup: %w", util.ErrInvalidCredentials)
		}
		if _, err := s.provision.Provision(ctx, user.ID, params.AccountType); err != nil {
			return nil, fmt.Errorf("signup: %w", err)
		}
	case util.IsError(err, util.ErrNotFound):
		user, err = s.registerUser(ctx, params)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("signup: failed to look up user: %w", err)
	}

	return s.buildAuthResult(ctx, user, params.AccountType)
}

func (s *authService) registerUser(ctx context.Context, params SignupParams) (*domain.User, error) {
	hash, err := credentials.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("signup: failed to hash password: %w", err)
	}

	user := domain.NewUser(params.Username, params.Email, params.Phone)
	user.PasswordHash = hash
	if err := s.userRepo.CreateUser(ctx, s.dbExecutor, user); err != nil {
		return nil, fmt.Errorf("signup: failed to create user: %w", err)
	}

	// Every new user starts with a demo account; the requested type comes on
	// top when it is not demo itself.
	if _, err := s.provision.Provision(ctx, user.ID, domain.AccountTypeDemo); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	if params.AccountType != domain.AccountTypeDemo {
		if _, err := s.provision.Provision(ctx, user.ID, params.AccountType); err != nil {
			return nil, fmt.Errorf("signup: %w", err)
		}
	}

	s.attachReferrer(ctx, user, params.ReferralCode)

	if err := s.SendVerificationCode(ctx, user.Email); err != nil {
		s.logger.Warn("failed to send verification code after signup", "user_id", user.ID, "error", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// attachReferrer records the referral attribution. An unknown code is
// ignored silently; signup never fails over a referral.
func (s *authService) attachReferrer(ctx context.Context, user *domain.User, code string) {
	if code == "" {
		return
	}
	referrer, err := s.userRepo.GetUserByReferralCode(ctx, s.dbExecutor, code)
	if err != nil {
		if !util.IsError(err, util.ErrNotFound) {
			s.logger.Warn("referral lookup failed", "code", code, "error", err)
		}
		return
	}
	if referrer.ID == user.ID {
		return
	}
	if err := s.userRepo.SetReferredBy(ctx, s.dbExecutor, user.ID, referrer.ID); err != nil {
		s.logger.Warn("failed to record referral", "user_id", user.ID, "referrer_id", referrer.ID, "error", err)
		return
	}
	user.ReferredBy = &referrer.ID

	subject, body := notify.ReferralSignupNotice(referrer.Username, user.Username, user.Email)
	notify.BestEffort(ctx, s.notifier, s.logger, referrer.Email, subject, body)
}

// Login authenticates by email and password.
func (s *authService) Login(ctx context.Context, email, password string, accountType domain.AccountType) (*AuthResult, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, s.dbExecutor, email)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("login: %w", util.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if !credentials.Verify(password, user.PasswordHash) {
		return nil, fmt.Errorf("login: %w", util.ErrInvalidCredentials)
	}

	if err := s.suspension.CleanupExpired(ctx, user); err != nil {
		s.logger.Warn("suspension cleanup failed at login", "user_id", user.ID, "error", err)
	}

	result, err := s.buildAuthResult(ctx, user, accountType)
	if err != nil {
		return nil, err
	}
	result.RecentlyRecovered, result.RecoveredFrom = s.recentRecovery(user)
	return result, nil
}

// recentRecovery inspects the tail of the suspension log for a reactivation
// fresh enough to surface on the login response.
func (s *authService) recentRecovery(user *domain.User) (bool, string) {
	if user.IsSuspended || len(user.SuspensionHistory) == 0 {
		return false, ""
	}
	last := user.SuspensionHistory[len(user.SuspensionHistory)-1]
	if last.Type != "unsuspended" {
		return false, ""
	}
	age := s.now().Sub(last.Date)
	if last.Reason == "appeal approved" {
		if age <= appealRecoveryWindow {
			return true, "appeal_approved"
		}
		return false, ""
	}
	if age <= expiryRecoveryWindow {
		return true, "temporary_expired"
	}
	return false, ""
}

func (s *authService) buildAuthResult(ctx context.Context, user *domain.User, accountType domain.AccountType) (*AuthResult, error) {
	access, refresh, err := s.IssueTokens(user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	result := &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
	}

	account, err := s.activeAccount(ctx, user.ID, accountType)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if account != nil {
		result.ActiveAccount = account
		balance, err := s.ledger.AccountBalance(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
		result.ActiveBalance = balance
	}

	if user.IsSuspended {
		result.Suspension = s.suspensionInfo(ctx, user)
		s.logger.Info("suspended user authenticated",
			"user_id", user.ID, "code", result.Suspension.Code)
	}
	return result, nil
}

// activeAccount picks the account a session lands on: the requested type if
// held, otherwise standard, otherwise the first account.
func (s *authService) activeAccount(ctx context.Context, userID int64, accountType domain.AccountType) (*domain.Account, error) {
	if accountType != "" {
		account, err := s.accountRepo.GetAccountByUserAndType(ctx, s.dbExecutor, userID, accountType)
		if err == nil {
			return account, nil
		}
		if !util.IsError(err, util.ErrNotFound) {
			return nil, err
		}
	}
	account, err := s.accountRepo.GetAccountByUserAndType(ctx, s.dbExecutor, userID, domain.AccountTypeStandard)
	if err == nil {
		return account, nil
	}
	if !util.IsError(err, util.ErrNotFound) {
		return nil, err
	}
	accounts, err := s.accountRepo.GetAccountsByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

func (s *authService) suspensionInfo(ctx context.Context, user *domain.User) *SuspensionInfo {
	info := &SuspensionInfo{
		Code:   CodeSuspendedTemporary,
		Reason: user.SuspensionReason,
	}
	if info.Reason == "" {
		info.Reason = "Your account has been suspended"
	}
	if user.IsPermanentlySuspended() {
		info.Code = CodeSuspendedPermanent
		info.AppealAvailable = true
		evidence, err := s.suspension.LatestEvidence(ctx, user.ID)
		switch {
		case err == nil:
			info.EvidenceStatus = string(evidence.Status)
		case util.IsError(err, util.ErrNotFound):
			info.EvidenceStatus = "no_evidence"
		default:
			s.logger.Warn("evidence lookup failed at login", "user_id", user.ID, "error", err)
			info.EvidenceStatus = "no_evidence"
		}
	} else {
		info.SuspendedUntil = user.SuspendedUntil
	}
	return info
}

func (s *authService) signToken(userID int64, kind string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"typ": kind,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// IssueTokens mints an access/refresh token pair.
func (s *authService) IssueTokens(userID int64) (string, string, error) {
	access, err := s.signToken(userID, "access", accessTokenTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.signToken(userID, "refresh", refreshTokenTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *authService) parseToken(tokenString, wantKind string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("parse token: %w", util.ErrInvalidCredentials)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("parse token: bad claims: %w", util.ErrInvalidCredentials)
	}
	if kind, _ := claims["typ"].(string); kind != wantKind {
		return 0, fmt.Errorf("parse token: wrong token type: %w", util.ErrInvalidCredentials)
	}
	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token: bad subject: %w", util.ErrInvalidCredentials)
	}
	return userID, nil
}

// UserFromToken resolves the bearer of an access token.
func (s *authService) UserFromToken(ctx context.Context, tokenString string) (*domain.User, error) {
	userID, err := s.parseToken(tokenString, "access")
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, userID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("user from token: %w", util.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("user from token: %w", err)
	}
	if err := s.suspension.CleanupExpired(ctx, user); err != nil {
		s.logger.Warn("suspension cleanup failed on token resolve", "user_id", user.ID, "error", err)
	}
	return user, nil
}

// Refresh exchanges a refresh token for a fresh pair.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	userID, err := s.parseToken(refreshToken, "refresh")
	if err != nil {
		return "", "", err
	}
	if _, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, userID); err != nil {
		return "", "", fmt.Errorf("refresh: %w", util.ErrInvalidCredentials)
	}
	return s.IssueTokens(userID)
}

// SendVerificationCode emails a short-lived email-verification code.
func (s *authService) SendVerificationCode(ctx context.Context, email string) error {
	if _, err := s.userRepo.GetUserByEmail(ctx, s.dbExecutor, email); err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return fmt.Errorf("send verification code: %w", util.ErrUserNotFound)
		}
		return fmt.Errorf("send verification code: %w", err)
	}

	code, err := randomDigits(emailVerifyCodeLen)
	if err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	if err := s.codes.Put(ctx, otp.KindEmailVerify, email, code, emailVerifyCodeTTL); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}

	subject, body := notify.VerificationCodeNotice(code)
	if err := s.notifier.Send(ctx, email, subject, body); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

// VerifyEmail consumes a verification code and marks the address verified.
func (s *authService) VerifyEmail(ctx context.Context, email, code string) error {
	ok, err := s.codes.Check(ctx, otp.KindEmailVerify, email, code)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	if !ok {
		return fmt.Errorf("verify email: wrong or expired code: %w", util.ErrInvalidInput)
	}

	user, err := s.userRepo.GetUserByEmail(ctx, s.dbExecutor, email)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	if err := s.userRepo.SetEmailVerified(ctx, s.dbExecutor, user.ID); err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	if err := s.codes.Delete(ctx, otp.KindEmailVerify, email); err != nil {
		s.logger.Warn("failed to delete consumed verification code", "email", email, "error", err)
	}
	s.logger.Info("email verified", "user_id", user.ID)
	return nil
}

// RequestPasswordReset emails a short-lived reset code.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	if _, err := s.userRepo.GetUserByEmail(ctx, s.dbExecutor, email); err != nil {
		if util.IsError(err, util.ErrNotFound) {
			// Do not reveal whether the address exists.
			return nil
		}
		return fmt.Errorf("request password reset: %w", err)
	}

	code, err := randomDigits(passwordResetCodeLen)
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	if err := s.codes.Put(ctx, otp.KindPasswordReset, email, code, passwordResetCodeTTL); err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}

	subject, body := notify.PasswordResetNotice(code)
	notify.BestEffort(ctx, s.notifier, s.logger, email, subject, body)
	return nil
}

// VerifyPasswordReset checks a reset code without consuming it.
func (s *authService) VerifyPasswordReset(ctx context.Context, email, code string) error {
	ok, err := s.codes.Check(ctx, otp.KindPasswordReset, email, code)
	if err != nil {
		return fmt.Errorf("verify password reset: %w", err)
	}
	if !ok {
		return fmt.Errorf("verify password reset: wrong or expired code: %w", util.ErrInvalidInput)
	}
	return nil
}

// ConfirmPasswordReset consumes a reset code and replaces the password.
func (s *authService) ConfirmPasswordReset(ctx context.Context, email, code, newPassword, confirmPassword string) error {
	if newPassword == "" || newPassword != confirmPassword {
		return fmt.Errorf("confirm password reset: passwords do not match: %w", util.ErrInvalidInput)
	}
	if err := s.VerifyPasswordReset(ctx, email, code); err != nil {
		return err
	}

	user, err := s.userRepo.GetUserByEmail(ctx, s.dbExecutor, email)
	if err != nil {
		return fmt.Errorf("confirm password reset: %w", err)
	}
	hash, err := credentials.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("confirm password reset: %w", err)
	}
	if err := s.userRepo.SetPasswordHash(ctx, s.dbExecutor, user.ID, hash); err != nil {
		return fmt.Errorf("confirm password reset: %w", err)
	}
	if err := s.codes.Delete(ctx, otp.KindPasswordReset, email); err != nil {
		s.logger.Warn("failed to delete consumed reset code", "email", email, "error", err)
	}
	s.logger.Info("password reset", "user_id", user.ID)
	return nil
}

// EnsureReferralCode returns a marketer's referral code, minting one on
// first use.
func (s *authService) EnsureReferralCode(ctx context.Context, userID int64) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, userID)
	if err != nil {
		return "", fmt.Errorf("ensure referral code: %w", err)
	}
	if !user.IsMarketo {
		return "", fmt.Errorf("ensure referral code: user %d is not a marketer: %w", userID, util.ErrForbidden)
	}
	if user.ReferralCode != nil && *user.ReferralCode != "" {
		return *user.ReferralCode, nil
	}
	code := domain.NewReferralCode()
	if err := s.userRepo.SetReferralCode(ctx, s.dbExecutor, userID, code); err != nil {
		return "", fmt.Errorf("ensure referral code: %w", err)
	}
	return code, nil
}
